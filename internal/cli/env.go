package cli

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/config"
	"github.com/sxlabs/sxconsole/internal/log"
	"github.com/sxlabs/sxconsole/internal/reconciler"
	"github.com/sxlabs/sxconsole/internal/session"
	"github.com/sxlabs/sxconsole/internal/telemetry"
	"github.com/sxlabs/sxconsole/internal/ui"
)

// env is the runtime a command works in: resolved config, logger and client.
type env struct {
	dir       string
	cfg       *config.Config
	logger    *log.Logger
	client    *api.Client
	out       io.Writer
	errOut    io.Writer
	ephemeral bool
	closers   []func() error
}

// load resolves the project directory, config and flag overrides, and
// builds the logger and API client.
func (o *rootOptions) load(cmd *cobra.Command) (*env, error) {
	dir, err := projectDir(o)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if o.apiBase != "" {
		cfg.API.BaseURL = o.apiBase
	}
	if o.token != "" {
		cfg.API.AuthToken = o.token
	}

	var logOpts []log.Option
	if o.debug {
		logOpts = append(logOpts, log.WithLevel(zerolog.DebugLevel), log.WithConsole(cmd.ErrOrStderr()))
	}
	logger, err := log.NewLogger(dir, logOpts...)
	if err != nil {
		return nil, err
	}

	client, err := api.New(api.Options{
		BaseURL:           cfg.API.BaseURL,
		AuthToken:         cfg.API.AuthToken,
		ClientUI:          cfg.API.ClientUI,
		Timeout:           cfg.API.Timeout(),
		Retries:           cfg.API.Retries,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Logger:            logger,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &env{
		dir:       dir,
		cfg:       cfg,
		logger:    logger,
		client:    client,
		out:       cmd.OutOrStdout(),
		errOut:    cmd.ErrOrStderr(),
		ephemeral: o.ephemeral,
		closers:   []func() error{logger.Close},
	}, nil
}

// Close releases everything the env opened, newest first.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// printer returns a notifier writing to stderr.
func (e *env) printer() *ui.Printer {
	return ui.NewPrinter(e.errOut)
}

// cache opens the local chat cache.
func (e *env) cache() (session.Cache, error) {
	if e.ephemeral {
		return session.NewMemoryCache(e.cfg.Session.CacheLimit), nil
	}
	store, err := session.NewStore(e.cfg.StateDBPath(e.dir), e.cfg.Session.CacheLimit)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, store.Close)
	return store, nil
}

// reconciler builds a session reconciler over the local cache.
func (e *env) reconciler(n ui.Notifier, onChange func()) (*reconciler.Reconciler, error) {
	cache, err := e.cache()
	if err != nil {
		return nil, err
	}
	rec := reconciler.New(e.client, cache, reconciler.Options{
		ResumeTurns:      e.cfg.Session.ResumeTurns,
		AdminIdleTimeout: e.cfg.Session.AdminIdleTimeout(),
		ExitCommand:      e.cfg.Session.ExitCommand,
		Notifier:         n,
		Logger:           e.logger,
		OnChange:         onChange,
	})
	e.closers = append(e.closers, func() error {
		rec.Close()
		return nil
	})
	return rec, nil
}

// aggregator builds an idle telemetry aggregator for the configured stream.
func (e *env) aggregator(onUpdate func(telemetry.Update)) *telemetry.Aggregator {
	t := e.cfg.Telemetry
	agg := telemetry.NewAggregator(telemetry.Options{
		URL:            e.client.StreamURL(t.Path),
		Header:         e.client.AuthHeader(),
		HTTPClient:     e.client.StreamClient(),
		Debounce:       t.Debounce(),
		WindowSize:     t.WindowSize,
		MaxReconnects:  t.MaxReconnects,
		InitialBackoff: t.InitialBackoff(),
		MaxBackoff:     t.MaxBackoff(),
		Logger:         e.logger,
		OnUpdate:       onUpdate,
	})
	e.closers = append(e.closers, func() error {
		agg.Close()
		return nil
	})
	return agg
}
