// Package session holds the conversation turn model and its local persisted cache.
package session

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AdminPrefix marks messages addressed to the backend's admin channel.
const AdminPrefix = "admin:"

// RedactedText is displayed in place of any admin-prefixed user message.
const RedactedText = "admin:[redacted]"

// Turn is one conversational utterance.
type Turn struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Text       string         `json:"text"`
	Tone       string         `json:"tone,omitempty"`
	TemplateID string         `json:"template_id,omitempty"`
	Brevity    string         `json:"brevity,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewID returns a fresh client-side turn id.
func NewID() string {
	return uuid.NewString()
}

// IsAdminMessage reports whether msg is addressed to the admin channel.
func IsAdminMessage(msg string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(msg)), AdminPrefix)
}

// DisplayText returns the text shown for an outgoing user message.
func DisplayText(msg string) string {
	if IsAdminMessage(msg) {
		return RedactedText
	}
	return msg
}

// NewUserTurn builds the optimistic turn for an outgoing message.
// The returned turn never carries admin content.
func NewUserTurn(msg string) Turn {
	return Turn{
		ID:   NewID(),
		Role: RoleUser,
		Text: DisplayText(msg),
	}
}

// CloneTurns returns a deep-enough copy of turns for handing out of a lock.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// LastAssistant returns the most recent assistant turn, if any.
func LastAssistant(turns []Turn) (Turn, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleAssistant {
			return turns[i], true
		}
	}
	return Turn{}, false
}
