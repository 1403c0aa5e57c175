// Package training triggers and inspects backend training runs.
package training

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/log"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// DefaultModules are the pipelines run when none are named.
var DefaultModules = []string{
	"weak_labels",
	"supervised",
	"stories",
	"topics",
	"skills",
	"conversations",
	"style_bootstrap",
}

// AdminHint tells the user how to get the privileges training needs.
const AdminHint = "Admin mode required. In chat, send: admin:<your_token>"

// ErrRunning is returned when a run is already in progress.
var ErrRunning = errors.New("training run already in progress")

// Client is the part of the API client used here.
type Client interface {
	TrainingStatus(ctx context.Context) (*api.TrainingStatus, error)
	RunTraining(ctx context.Context, req api.TrainingRunRequest) (*api.TrainingRunResponse, error)
}

// Runner runs at most one training job at a time.
type Runner struct {
	client Client
	notify ui.Notifier
	logger *log.Logger

	mu      sync.Mutex
	running bool
}

// NewRunner creates a Runner.
func NewRunner(c Client, n ui.Notifier, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{client: c, notify: ui.OrDiscard(n), logger: logger}
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status fetches the training status.
func (r *Runner) Status(ctx context.Context) (*api.TrainingStatus, error) {
	st, err := r.client.TrainingStatus(ctx)
	if err != nil {
		r.fail(err, "Training status unavailable (is training enabled on the API?)")
		return nil, errors.Wrap(err, "training status")
	}
	return st, nil
}

// Run starts a training run over modules, or DefaultModules when empty.
func (r *Runner) Run(ctx context.Context, modules []string, forceFull bool) (*api.TrainingRunResponse, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunning
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if len(modules) == 0 {
		modules = DefaultModules
	}

	ui.Info(r.notify, "Training started")
	start := time.Now()
	res, err := r.client.RunTraining(ctx, api.TrainingRunRequest{Modules: modules, ForceFull: forceFull})
	r.logger.Record(log.LogEvent{
		Event:      log.EventTrainingRun,
		Status:     api.StatusOf(err),
		Error:      errText(err),
		DurationMs: time.Since(start).Milliseconds(),
		Data:       map[string]interface{}{"modules": modules, "force_full": forceFull},
	})
	if err != nil {
		r.fail(err, "Training run failed")
		return nil, errors.Wrap(err, "training run")
	}

	ui.OK(r.notify, "Training finished")
	return res, nil
}

func (r *Runner) fail(err error, fallback string) {
	if api.IsUnauthorized(err) {
		ui.Error(r.notify, nil, AdminHint)
		return
	}
	ui.Error(r.notify, err, fallback)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
