package api

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string     `json:"message"`
	Client  ClientInfo `json:"client"`
}

// ClientInfo identifies the front-end.
type ClientInfo struct {
	UI string `json:"ui"`
}

// ChatResponse is the answer to POST /chat.
type ChatResponse struct {
	Reply      string   `json:"reply"`
	Tone       string   `json:"tone,omitempty"`
	TemplateID string   `json:"template_id,omitempty"`
	Brevity    string   `json:"brevity,omitempty"`
	Meta       ChatMeta `json:"meta"`
}

// ChatMeta carries the session-mode signals. Raw keeps the full object for
// display alongside the assistant turn.
type ChatMeta struct {
	Mode  string         `json:"mode,omitempty"`
	Admin AdminMeta      `json:"admin"`
	Raw   map[string]any `json:"-"`
}

// AdminMeta is meta.admin.
type AdminMeta struct {
	Enabled bool `json:"enabled,omitempty"`
	Exited  bool `json:"exited,omitempty"`
}

// UnmarshalJSON keeps the whole object in Raw and reads the mode signals
// loosely. A meta that is not an object decodes as empty.
func (m *ChatMeta) UnmarshalJSON(data []byte) error {
	*m = ChatMeta{}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	m.Raw = raw
	m.Mode = cast.ToString(raw["mode"])
	if admin, ok := raw["admin"].(map[string]any); ok {
		m.Admin.Enabled = truthy(admin["enabled"])
		m.Admin.Exited = truthy(admin["exited"])
	}
	return nil
}

func truthy(v any) bool {
	b, err := cast.ToBoolE(v)
	if err != nil {
		s, isString := v.(string)
		return v != nil && (!isString || s != "")
	}
	return b
}

// EntersAdmin reports whether the reply switches the session into admin mode.
func (r *ChatResponse) EntersAdmin() bool {
	return r.Meta.Mode == "admin" && r.Meta.Admin.Enabled
}

// ExitsAdmin reports whether the reply confirms leaving admin mode.
func (r *ChatResponse) ExitsAdmin() bool {
	return r.Meta.Mode == "user" && r.Meta.Admin.Exited
}

// TurnID is a server turn id, sent either as a number or a string.
type TurnID string

func (id *TurnID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = TurnID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = TurnID(n.String())
	return nil
}

// ResumeTurn is one server-side turn from GET /session/resume.
type ResumeTurn struct {
	TurnID TurnID         `json:"turn_id"`
	Role   string         `json:"role"`
	Text   string         `json:"text"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// MetaString returns meta[key] when it is a string.
func (t ResumeTurn) MetaString(key string) string {
	if v, ok := t.Meta[key].(string); ok {
		return v
	}
	return ""
}

// ResumeResponse is the answer to GET /session/resume.
type ResumeResponse struct {
	Turns []ResumeTurn `json:"turns"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	Rating     int    `json:"rating"`
	TemplateID string `json:"template_id,omitempty"`
	Tone       string `json:"tone,omitempty"`
}

// AnalyzeRequest is the body of POST /api/chat.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse is the simple-mode analysis answer.
type AnalyzeResponse struct {
	Response  string `json:"response"`
	Sentiment any    `json:"sentiment,omitempty"`
	Threat    any    `json:"threat,omitempty"`
	Sarcasm   any    `json:"sarcasm,omitempty"`
	Audio     string `json:"audio,omitempty"` // base64 wav
}

// RetrainResponse is the answer to POST /api/retrain.
type RetrainResponse struct {
	Msg string `json:"msg"`
}

// Profile is the user's profile as stored by the backend.
type Profile struct {
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	Location string `json:"location"`
}

// ProfileStatus is the answer to GET /user/profile.
type ProfileStatus struct {
	Exists  bool     `json:"exists"`
	Profile *Profile `json:"profile,omitempty"`
}

// TrainingStatus is the answer to GET /training/status.
type TrainingStatus struct {
	TrainDir     string         `json:"train_dir"`
	DataDir      string         `json:"data_dir"`
	TrackedFiles int            `json:"tracked_files"`
	LastRuns     map[string]any `json:"last_runs"`
}

// TrainingRunRequest is the body of POST /training/run.
type TrainingRunRequest struct {
	Modules   []string `json:"modules"`
	ForceFull bool     `json:"force_full"`
}

// TrainingRunResponse is the answer to POST /training/run.
type TrainingRunResponse struct {
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result,omitempty"`
}

// Health is the answer to GET /health.
type Health struct {
	OK        bool      `json:"ok"`
	UptimeSec float64   `json:"uptime_sec"`
	Locale    string    `json:"locale"`
	Memory    Memory    `json:"memory"`
	Resources Resources `json:"resources"`
}

// Memory holds the backend's memory store counters.
type Memory struct {
	STMTurns  int `json:"stm_turns"`
	Facts     int `json:"facts"`
	Topics    int `json:"topics"`
	Episodes  int `json:"episodes"`
	IndexDocs int `json:"index_docs"`
}

// Resources holds host utilisation figures. Nil means not reported.
type Resources struct {
	CPUPercent     *float64 `json:"cpu_percent"`
	MemPercent     *float64 `json:"mem_percent"`
	RSSMB          *float64 `json:"rss_mb"`
	TempC          *float64 `json:"temp_c"`
	GPUUtilPercent *float64 `json:"gpu_util_percent"`
	GPUTempC       *float64 `json:"gpu_temp_c"`
}
