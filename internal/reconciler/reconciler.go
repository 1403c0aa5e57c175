// Package reconciler keeps the visible conversation consistent with the
// backend session, the local cache and the admin-mode state.
package reconciler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/clock"
	"github.com/sxlabs/sxconsole/internal/log"
	"github.com/sxlabs/sxconsole/internal/session"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// Defaults used when an option is left at its zero value.
const (
	DefaultResumeTurns      = 40
	DefaultAdminIdleTimeout = 15 * time.Second
	DefaultExitCommand      = "admin:exit"
)

// ExitedText is shown when admin mode ended but no history could be loaded.
const ExitedText = "Admin mode exited."

// divergedText warns that the local view may not match the server session.
const divergedText = "Could not reach the server to leave admin mode. Showing local history, which may be out of date."

var (
	ErrBusy            = errors.New("a message is already in flight")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrHydrating       = errors.New("conversation is still loading")
	ErrNoAssistantTurn = errors.New("no assistant reply to rate")
	ErrClosed          = errors.New("reconciler is closed")
)

// Backend is the part of the API client the reconciler needs.
type Backend interface {
	Chat(ctx context.Context, message string) (*api.ChatResponse, error)
	Resume(ctx context.Context, n int) (*api.ResumeResponse, error)
	Feedback(ctx context.Context, req api.FeedbackRequest) error
}

// Mode is the session mode.
type Mode int

const (
	ModeHydrating Mode = iota
	ModeNormal
	ModeAdmin
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeAdmin:
		return "admin"
	default:
		return "hydrating"
	}
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Turns        []session.Turn
	Mode         Mode
	Busy         bool
	LastActivity time.Time
	// IdleDeadline is when admin mode expires; zero when no countdown runs.
	IdleDeadline time.Time
	// Diverged is set when admin mode was left locally without the server
	// confirming it.
	Diverged bool
}

// Options configures a Reconciler.
type Options struct {
	ResumeTurns      int
	AdminIdleTimeout time.Duration
	ExitCommand      string
	Clock            clock.Clock
	Notifier         ui.Notifier
	Logger           *log.Logger
	// OnChange is called outside the lock after every state change.
	OnChange func()
}

// Reconciler owns the turn list and the session mode.
type Reconciler struct {
	backend Backend
	cache   session.Cache
	opts    Options
	clock   clock.Clock
	notify  ui.Notifier
	logger  *log.Logger

	// ctx scopes requests the reconciler starts on its own (idle expiry).
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	turns        []session.Turn
	mode         Mode
	hydrating    bool
	busy         bool
	lastActivity time.Time
	deadline     time.Time
	diverged     bool
	timer        clock.Timer
	gen          uint64
	closed       bool
}

// New creates a Reconciler in the Hydrating mode.
func New(backend Backend, cache session.Cache, opts Options) *Reconciler {
	if opts.ResumeTurns <= 0 {
		opts.ResumeTurns = DefaultResumeTurns
	}
	if opts.AdminIdleTimeout <= 0 {
		opts.AdminIdleTimeout = DefaultAdminIdleTimeout
	}
	if opts.ExitCommand == "" {
		opts.ExitCommand = DefaultExitCommand
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		backend: backend,
		cache:   cache,
		opts:    opts,
		clock:   clock.OrReal(opts.Clock),
		notify:  ui.OrDiscard(opts.Notifier),
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		mode:    ModeHydrating,
	}
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Turns:        session.CloneTurns(r.turns),
		Mode:         r.mode,
		Busy:         r.busy,
		LastActivity: r.lastActivity,
		IdleDeadline: r.deadline,
		Diverged:     r.diverged,
	}
}

// Hydrate loads the initial turn list: the local cache when it holds turns,
// otherwise the server's recent history. A failing resume leaves the list
// empty. Calling Hydrate again is a no-op.
func (r *Reconciler) Hydrate(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.mode != ModeHydrating || r.hydrating {
		r.mu.Unlock()
		return nil
	}
	r.hydrating = true
	r.mu.Unlock()

	start := r.clock.Now()
	source := "none"
	var turns []session.Turn

	st, err := r.cache.Load()
	if err != nil {
		r.logger.Warn().Err(err).Msg("load chat cache")
	}
	if st != nil && len(st.Turns) > 0 {
		turns = st.Turns
		source = "cache"
	} else {
		res, err := r.backend.Resume(ctx, r.opts.ResumeTurns)
		if err != nil {
			r.logger.Record(log.LogEvent{Event: log.EventResumeFailed, Reason: "hydrate", Error: err.Error()})
		} else if len(res.Turns) > 0 {
			turns = FromResume(res.Turns)
			source = "resume"
		}
	}
	if turns == nil {
		turns = []session.Turn{}
	}

	r.mu.Lock()
	r.turns = turns
	r.mode = ModeNormal
	r.hydrating = false
	r.persistLocked()
	r.mu.Unlock()

	r.logger.Record(log.LogEvent{
		Event:      log.EventHydrated,
		Mode:       ModeNormal.String(),
		Turns:      len(turns),
		Reason:     source,
		DurationMs: r.clock.Now().Sub(start).Milliseconds(),
	})
	r.changed()
	return nil
}

// Send transmits text and reconciles the reply into the turn list. The
// visible user turn is appended before the request and redacted when the
// message is addressed to the admin channel. Only one send runs at a time.
func (r *Reconciler) Send(ctx context.Context, text string) (*session.Turn, error) {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	r.mu.Lock()
	switch {
	case r.closed:
		r.mu.Unlock()
		return nil, ErrClosed
	case r.mode == ModeHydrating:
		r.mu.Unlock()
		return nil, ErrHydrating
	case r.busy:
		r.mu.Unlock()
		return nil, ErrBusy
	}
	r.busy = true
	r.disarmLocked()
	userTurn := session.NewUserTurn(msg)
	r.turns = append(r.turns, userTurn)
	r.lastActivity = r.clock.Now()
	r.persistLocked()
	mode := r.mode
	r.mu.Unlock()
	r.changed()

	r.logger.Record(log.LogEvent{Event: log.EventSendStarted, Mode: mode.String(), TurnID: userTurn.ID})

	res, err := r.backend.Chat(ctx, msg)
	if err != nil {
		r.logger.Record(log.LogEvent{Event: log.EventSendFailed, Mode: mode.String(), Status: api.StatusOf(err), Error: err.Error()})
		ui.Error(r.notify, err, "Chat request failed")
		r.finish(func() {})
		return nil, errors.Wrap(err, "send message")
	}

	reply := assistantTurn(res)
	switch {
	case res.EntersAdmin():
		r.finish(func() {
			r.mode = ModeAdmin
			r.turns = []session.Turn{reply}
			r.lastActivity = r.clock.Now()
			r.diverged = false
		})
		r.logger.Record(log.LogEvent{Event: log.EventAdminEntered, Mode: ModeAdmin.String()})
	case res.ExitsAdmin():
		r.exitAdmin(ctx, reply, reply, "explicit")
	default:
		r.finish(func() {
			r.turns = append(r.turns, reply)
			r.lastActivity = r.clock.Now()
			r.diverged = false
			r.persistLocked()
		})
		r.logger.Record(log.LogEvent{Event: log.EventTurnAppended, Mode: mode.String(), TurnID: reply.ID})
	}
	return &reply, nil
}

// Touch records user activity such as a keystroke. In admin mode it
// restarts the idle countdown.
func (r *Reconciler) Touch() {
	r.mu.Lock()
	if r.mode != ModeAdmin || r.closed {
		r.mu.Unlock()
		return
	}
	r.lastActivity = r.clock.Now()
	if !r.busy {
		r.armLocked()
	}
	r.mu.Unlock()
	r.changed()
}

// Feedback rates the most recent assistant turn. It never changes the
// turn list and is not retried.
func (r *Reconciler) Feedback(ctx context.Context, rating int) error {
	r.mu.Lock()
	last, ok := session.LastAssistant(r.turns)
	r.mu.Unlock()
	if !ok {
		return ErrNoAssistantTurn
	}

	err := r.backend.Feedback(ctx, api.FeedbackRequest{
		Rating:     rating,
		TemplateID: last.TemplateID,
		Tone:       last.Tone,
	})
	if err != nil {
		ui.Error(r.notify, err, "Feedback failed")
		return errors.Wrap(err, "send feedback")
	}

	r.logger.Record(log.LogEvent{Event: log.EventFeedbackSent, TurnID: last.ID, Data: map[string]interface{}{"rating": rating}})
	ui.OK(r.notify, "Feedback recorded")
	return nil
}

// Clear empties the visible conversation. In normal mode the local cache
// is cleared too.
func (r *Reconciler) Clear() error {
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return ErrBusy
	}
	r.turns = []session.Turn{}
	var err error
	if r.mode == ModeNormal {
		err = r.cache.Clear()
	}
	mode := r.mode
	r.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "clear chat cache")
	}
	r.logger.Record(log.LogEvent{Event: log.EventCacheCleared, Mode: mode.String()})
	r.changed()
	return nil
}

// Close stops the idle countdown and cancels any request the reconciler
// started on its own.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	r.disarmLocked()
	r.mu.Unlock()
	r.cancel()
}

// exitAdmin runs the exit procedure: drop the cache, reload the server's
// recent history and return to normal mode. onEmpty replaces an empty
// history, onFail a failed reload. The caller holds the busy flag.
func (r *Reconciler) exitAdmin(ctx context.Context, onEmpty, onFail session.Turn, reason string) {
	if err := r.cache.Clear(); err != nil {
		r.logger.Warn().Err(err).Msg("clear chat cache")
	}

	var turns []session.Turn
	res, err := r.backend.Resume(ctx, r.opts.ResumeTurns)
	switch {
	case err != nil:
		r.logger.Record(log.LogEvent{Event: log.EventResumeFailed, Reason: "admin_exit", Error: err.Error()})
		turns = []session.Turn{onFail}
	case len(res.Turns) == 0:
		turns = []session.Turn{onEmpty}
	default:
		turns = FromResume(res.Turns)
	}

	r.finish(func() {
		r.mode = ModeNormal
		r.turns = turns
		r.diverged = false
		r.lastActivity = r.clock.Now()
		r.persistLocked()
	})
	r.logger.Record(log.LogEvent{Event: log.EventAdminExited, Mode: ModeNormal.String(), Turns: len(turns), Reason: reason})
}

// expire fires when the admin idle countdown runs out.
func (r *Reconciler) expire(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen || r.mode != ModeAdmin || r.busy {
		r.mu.Unlock()
		return
	}
	r.busy = true
	r.timer = nil
	r.deadline = time.Time{}
	ctx := r.ctx
	r.mu.Unlock()
	r.changed()

	r.logger.Record(log.LogEvent{Event: log.EventAdminExpired, Mode: ModeAdmin.String()})

	res, err := r.backend.Chat(ctx, r.opts.ExitCommand)
	if err != nil {
		if ctx.Err() != nil {
			r.finish(func() {})
			return
		}
		r.logger.Record(log.LogEvent{Event: log.EventAdminExpireFailed, Error: err.Error()})
		r.forceNormal()
		return
	}

	placeholder := session.Turn{ID: session.NewID(), Role: session.RoleAssistant, Text: ExitedText}
	r.exitAdmin(ctx, assistantTurn(res), placeholder, "idle")
}

// forceNormal leaves admin mode without the server's confirmation and
// shows whatever the local cache held before admin mode was entered.
func (r *Reconciler) forceNormal() {
	var turns []session.Turn
	st, err := r.cache.Load()
	if err != nil {
		r.logger.Warn().Err(err).Msg("load chat cache")
	}
	if st != nil {
		turns = st.Turns
	}
	if turns == nil {
		turns = []session.Turn{}
	}

	r.finish(func() {
		r.mode = ModeNormal
		r.turns = turns
		r.diverged = true
	})
	ui.Warn(r.notify, divergedText)
}

// finish applies f under the lock, releases the busy flag, re-arms the
// idle countdown when appropriate and reports the change.
func (r *Reconciler) finish(f func()) {
	r.mu.Lock()
	f()
	r.busy = false
	r.armLocked()
	r.mu.Unlock()
	r.changed()
}

// armLocked (re)starts the idle countdown from lastActivity. Outside admin
// mode, or while busy, it only cancels a pending countdown.
func (r *Reconciler) armLocked() {
	r.disarmLocked()
	if r.closed || r.mode != ModeAdmin || r.busy {
		return
	}
	r.deadline = r.lastActivity.Add(r.opts.AdminIdleTimeout)
	delay := r.deadline.Sub(r.clock.Now())
	if delay < 0 {
		delay = 0
	}
	gen := r.gen
	r.timer = r.clock.AfterFunc(delay, func() { r.expire(gen) })
}

func (r *Reconciler) disarmLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.deadline = time.Time{}
	r.gen++
}

// persistLocked writes the turn list to the cache. Admin turns never reach it.
func (r *Reconciler) persistLocked() {
	if r.mode != ModeNormal {
		return
	}
	if err := r.cache.Save(r.turns); err != nil {
		r.logger.Warn().Err(err).Msg("save chat cache")
	}
}

func (r *Reconciler) changed() {
	if r.opts.OnChange != nil {
		r.opts.OnChange()
	}
}

func assistantTurn(res *api.ChatResponse) session.Turn {
	return session.Turn{
		ID:         session.NewID(),
		Role:       session.RoleAssistant,
		Text:       res.Reply,
		Tone:       res.Tone,
		TemplateID: res.TemplateID,
		Brevity:    res.Brevity,
		Meta:       res.Meta.Raw,
	}
}

// FromResume converts server turns to display turns. Admin-channel user
// messages are redacted.
func FromResume(turns []api.ResumeTurn) []session.Turn {
	out := make([]session.Turn, 0, len(turns))
	for _, t := range turns {
		text := t.Text
		if session.Role(t.Role) == session.RoleUser {
			text = session.DisplayText(text)
		}
		out = append(out, session.Turn{
			ID:         "t" + string(t.TurnID),
			Role:       session.Role(t.Role),
			Text:       text,
			Tone:       t.MetaString("tone"),
			TemplateID: t.MetaString("template_id"),
			Brevity:    t.MetaString("brevity"),
			Meta:       t.Meta,
		})
	}
	return out
}
