package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/testutil"
	"github.com/sxlabs/sxconsole/internal/training"
)

type result struct {
	out    string
	errOut string
	err    error
}

func run(t *testing.T, dir string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(append([]string{"--dir", dir}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func chatBackend(t *testing.T) *testutil.FakeBackend {
	t.Helper()
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodPost, "/chat", func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"reply":       "echo " + req.Message,
			"tone":        "warm",
			"brevity":     "short",
			"template_id": "echo.1",
			"meta":        map[string]any{"mode": "user"},
		})
	})
	b.JSON(http.MethodPost, "/feedback", http.StatusOK, map[string]any{"ok": true})
	return b
}

func TestSendPrintsReplyAndKeepsHistory(t *testing.T) {
	b := chatBackend(t)
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "send", "hello", "there")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "SentienceX: echo hello there")
	assert.Contains(t, res.out, "warm · short · echo.1")

	var body api.ChatRequest
	require.NoError(t, b.Requests("/chat")[0].Decode(&body))
	assert.Equal(t, "hello there", body.Message)

	res = run(t, dir, "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "2 turns")
	assert.Contains(t, res.out, "You: hello there")

	res = run(t, dir, "history", "--clear")
	require.NoError(t, res.err)
	res = run(t, dir, "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "No local history.")
}

func TestSendAdminMessageIsRedactedInHistory(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodPost, "/chat", http.StatusOK, map[string]any{
		"reply": "That token was not accepted.",
		"meta":  map[string]any{"mode": "user"},
	})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "send", "admin:hunter2")
	require.NoError(t, res.err)
	assert.NotContains(t, res.out, "hunter2")

	res = run(t, dir, "history")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "You: admin:[redacted]")
	assert.NotContains(t, res.out, "hunter2")
}

func TestSendFailureIsReportedOnce(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodPost, "/chat", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "--ephemeral", "send", "hello")
	assert.ErrorIs(t, res.err, errReported)
	assert.Contains(t, res.errOut, "POST /chat failed: 500")
}

func TestFeedbackRatesLastReply(t *testing.T) {
	b := chatBackend(t)
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "feedback", "up")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "no reply to rate yet")

	require.NoError(t, run(t, dir, "send", "hello").err)
	res = run(t, dir, "feedback", "down")
	require.NoError(t, res.err)
	assert.Contains(t, res.errOut, "Feedback recorded")

	var fb api.FeedbackRequest
	require.NoError(t, b.Requests("/feedback")[0].Decode(&fb))
	assert.Equal(t, api.FeedbackRequest{Rating: -1, TemplateID: "echo.1", Tone: "warm"}, fb)
}

func TestParseRating(t *testing.T) {
	for in, want := range map[string]int{"up": 1, "+1": 1, "Good": 1, "down": -1, "-": -1, " bad ": -1} {
		got, err := parseRating(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseRating("meh")
	assert.Error(t, err)
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()

	res := run(t, dir, "--api-base", "http://sx.example:9000", "config", "init")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(dir, ".sxconsole", "config.yaml"))

	res = run(t, dir, "config", "init")
	assert.Error(t, res.err)

	res = run(t, dir, "--token", "s3cret", "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "base_url: http://sx.example:9000")
	assert.Contains(t, res.out, "********")
	assert.NotContains(t, res.out, "s3cret")
}

func TestAnalyzeWritesAudio(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	wav := []byte("RIFF....WAVE")
	b.JSON(http.MethodPost, "/api/chat", http.StatusOK, map[string]any{
		"response":  "Sounds lovely",
		"sentiment": 0.82,
		"threat":    "low",
		"audio":     base64.StdEncoding.EncodeToString(wav),
	})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))
	audio := filepath.Join(dir, "reply.wav")

	res := run(t, dir, "--token", "tok", "analyze", "--audio", audio, "what a day")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Sounds lovely")
	assert.Contains(t, res.out, "sentiment  0.82")
	assert.Contains(t, res.out, "threat     low")
	assert.Contains(t, res.out, "sarcasm    n/a")

	got, err := os.ReadFile(audio)
	require.NoError(t, err)
	assert.Equal(t, wav, got)
	assert.Equal(t, "Bearer tok", b.Requests("/api/chat")[0].Header.Get("Authorization"))
}

func TestRetrain(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodPost, "/api/retrain", http.StatusOK, map[string]any{"msg": "Retraining started"})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "retrain")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Retraining started")
}

func TestDashboardOnce(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodGet, "/health", http.StatusOK, map[string]any{
		"ok": true, "uptime_sec": 90, "locale": "en-GB",
		"memory": map[string]any{"facts": 3},
	})
	b.JSON(http.MethodGet, "/training/status", http.StatusUnauthorized, map[string]any{"detail": "admin required"})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "dashboard")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "1m30s")
	assert.Contains(t, res.out, "en-GB")
	assert.Contains(t, res.out, "3 facts")
	assert.Contains(t, res.out, training.AdminHint)
}

func TestDashboardUnreachable(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "dashboard")
	assert.ErrorIs(t, res.err, errReported)
	assert.Contains(t, res.out, "unreachable")
}

func TestTrainRunNeedsAdmin(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodPost, "/training/run", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "admin required", http.StatusUnauthorized)
	})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "train", "run", "--modules", "topics,skills", "--full")
	assert.ErrorIs(t, res.err, errReported)
	assert.Contains(t, res.errOut, training.AdminHint)

	var req api.TrainingRunRequest
	require.NoError(t, b.Requests("/training/run")[0].Decode(&req))
	assert.Equal(t, api.TrainingRunRequest{Modules: []string{"topics", "skills"}, ForceFull: true}, req)
}

func TestTrainStatus(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodGet, "/training/status", http.StatusOK, map[string]any{
		"train_dir": "/srv/train", "tracked_files": 12, "last_runs": map[string]any{"topics": "2025-01-02"},
	})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "train", "status")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Tracked files: 12")
	assert.Contains(t, res.out, "topics")
}

func TestSetupWithFlags(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodPost, "/user/profile", http.StatusOK, map[string]any{"ok": true})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "setup", "--name", " Sam ", "--dob", "1990-01-02", "--location", "Leeds")
	require.NoError(t, res.err)
	assert.Contains(t, res.errOut, "Profile saved")

	var p api.Profile
	require.NoError(t, b.Requests("/user/profile")[0].Decode(&p))
	assert.Equal(t, api.Profile{Name: "Sam", DOB: "1990-01-02", Location: "Leeds"}, p)

	res = run(t, dir, "setup", "--name", "Sam", "--dob", "02/01/1990", "--location", "Leeds")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "dob")
	assert.Len(t, b.Requests("/user/profile"), 1)
}

func TestWatchPrintsSamples(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		testutil.StartSSE(w)
		testutil.WriteSSE(w, "1", `{"sentiment_positive":0.9,"sentiment_negative":0.1,"threat_level":0.2}`)
		<-r.Context().Done()
	})
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	res := run(t, dir, "watch", "--duration", "1500ms")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "[LIVE]")
	assert.Contains(t, res.out, "positive 0.90!")
	assert.Contains(t, res.out, "threat 0.20 ")
	assert.Contains(t, res.out, "received 1")
}

func TestLogShowsEvents(t *testing.T) {
	b := chatBackend(t)
	dir := testutil.TempWorkspace(t, testutil.ConfigFile(b.URL))

	require.NoError(t, run(t, dir, "send", "hello").err)
	res := run(t, dir, "log", "-n", "0")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "hydrated")
	assert.Contains(t, res.out, "turn_appended")
	assert.NotContains(t, res.out, "hello")
}
