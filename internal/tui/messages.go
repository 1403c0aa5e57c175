package tui

import (
	"github.com/sxlabs/sxconsole/internal/health"
	"github.com/sxlabs/sxconsole/internal/telemetry"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// ============================================================================
// Session Messages
// ============================================================================

// SessionChangedMsg signals that the reconciler state changed. Receivers
// read a fresh snapshot, so out-of-order delivery is harmless.
type SessionChangedMsg struct{}

// HydratedMsg signals that initial hydration finished.
type HydratedMsg struct {
	Err error
}

// SendDoneMsg signals that a chat request completed.
type SendDoneMsg struct {
	Err error
}

// FeedbackDoneMsg signals that a rating was sent.
type FeedbackDoneMsg struct {
	Rating int
	Err    error
}

// ============================================================================
// Telemetry Messages
// ============================================================================

// TelemetryMsg carries an aggregator update.
type TelemetryMsg struct {
	Update telemetry.Update
}

// ============================================================================
// Dashboard Messages
// ============================================================================

// HealthMsg carries a dashboard refresh.
type HealthMsg struct {
	Snapshot health.Snapshot
}

// TrainingDoneMsg signals that a training run request returned.
type TrainingDoneMsg struct {
	Err error
}

// ============================================================================
// Utility Messages
// ============================================================================

// NotifyMsg carries a notification for the status bar.
type NotifyMsg struct {
	Notification ui.Notification
}

// TickMsg is sent once a second to refresh countdowns.
type TickMsg struct{}
