package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"symptobuddy/internal/config"
	"symptobuddy/internal/core"
	"symptobuddy/internal/logging"
	"symptobuddy/internal/repository"
	"symptobuddy/internal/session"
	"symptobuddy/internal/state"
)

// globalFlags are bound on the root command.
type globalFlags struct {
	configFile string
	envFile    string
	driver     string
	metrics    string
}

// app is one command invocation: config, logger, store and controller.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	ctrl    *session.Controller
	closers []io.Closer

	expvar   *core.ExpvarMetricsRecorder
	registry *prometheus.Registry
}

func openApp(flags *globalFlags) (*app, error) {
	cfg, err := config.Load(config.Sources{File: flags.configFile, EnvFile: flags.envFile})
	if err != nil {
		return nil, err
	}
	if flags.driver != "" {
		cfg.Storage.Driver = flags.driver
	}
	if flags.metrics != "" {
		cfg.Metrics.Exporter = flags.metrics
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	opts := core.StoreOptions{Logger: logger}
	switch cfg.Metrics.Exporter {
	case "expvar":
		a.expvar = core.NewExpvarMetricsRecorder("")
		opts.Metrics = a.expvar
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusRecorder(a.registry)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		opts.Metrics = rec
	}
	if cfg.Metrics.TraceFile != "" {
		f, err := os.OpenFile(cfg.Metrics.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			_ = a.close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		opts.Tracer = core.NewJSONTracer(f)
	}

	store := core.NewDurableStore(cfg.Storage, opts)
	a.ctrl = session.New(repository.New(store, logger), state.New(), session.WithLogger(logger))
	return a, nil
}

// start runs the startup sequence and surfaces a failed load. The session
// itself degrades to empty state; the CLI reports it.
func (a *app) start(ctx context.Context) error {
	report := a.ctrl.Start(ctx)
	if report.Profile.Failed() {
		return report.Profile.Err
	}
	if report.Tests.Failed() {
		return report.Tests.Err
	}
	return nil
}

// finish drains queued writes, writes metrics to w and releases resources.
func (a *app) finish(ctx context.Context, w io.Writer) error {
	err := a.ctrl.Close(ctx)
	if mErr := a.writeMetrics(w); mErr != nil {
		err = errors.Join(err, mErr)
	}
	return errors.Join(err, a.close())
}

func (a *app) writeMetrics(w io.Writer) error {
	switch {
	case a.expvar != nil:
		return a.expvar.WriteJSON(w)
	case a.registry != nil:
		families, err := a.registry.Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i].Close())
	}
	a.closers = nil
	return err
}

// withApp opens an app, runs fn and always finishes it.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.finish(context.WithoutCancel(ctx), cmd.ErrOrStderr()))
	}()
	if err := a.start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
