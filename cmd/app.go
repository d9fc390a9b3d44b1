package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/config"
	"github.com/mj1618/vbs-autopilot/internal/diag"
	"github.com/mj1618/vbs-autopilot/internal/logging"
	"github.com/mj1618/vbs-autopilot/internal/metrics"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/notify"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is what every command needs: configuration, a logger and the
// platform backend.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	provider *platform.Provider
	clk      clock.Clock

	closeLog func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := rootCmd.PersistentFlags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
		if err := cfg.Logging.Validate(); err != nil {
			return nil, err
		}
	}
	log, closeLog, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	provider, err := platform.NewProvider()
	if err != nil {
		closeLog()
		return nil, err
	}
	return &app{cfg: cfg, log: log, provider: provider, clk: clock.Real{}, closeLog: closeLog}, nil
}

func (a *app) Close() {
	a.closeLog()
}

func (a *app) profile() (*model.CoordinateProfile, error) {
	return config.LoadProfile(a.cfg.Profile.Path)
}

// runner owns one orchestrator and the recorders around it.
type runner struct {
	cfg     *config.Config
	orch    *workflow.Orchestrator
	metrics *metrics.Metrics
	deps    phase.Deps
	phases  []phase.Phase
	profile *model.CoordinateProfile
}

func (a *app) newRunner() (*runner, error) {
	profile, err := a.profile()
	if err != nil {
		return nil, err
	}
	deps := a.cfg.Deps(a.provider, profile, a.clk, a.log)
	phases, err := a.cfg.Phases(deps)
	if err != nil {
		return nil, err
	}

	m := metrics.New(a.log)
	m.Textfile = a.cfg.Metrics.Textfile
	recorders := workflow.Recorders{m}
	if a.cfg.Notify.OutboxDir != "" {
		recorders = append(recorders, notify.NewOutbox(a.cfg.Notify.OutboxDir, a.cfg.Notify.SubjectPrefix, a.cfg.Notify.Recipients, a.log))
	}

	opts := a.cfg.WorkflowOptions()
	opts.Recorder = recorders
	if a.cfg.Diagnostics.Enabled {
		opts.Snapshotter = diag.NewSnapshotter(a.provider.Windows, profile, a.cfg.Diagnostics.Dir, a.log)
	}

	return &runner{
		cfg:     a.cfg,
		orch:    workflow.New(phases, profile, a.provider.Windows, a.clk, a.log, opts),
		metrics: m,
		deps:    deps,
		phases:  phases,
		profile: profile,
	}, nil
}

func (r *runner) run(ctx context.Context, date time.Time) model.WorkflowResult {
	return r.orch.RunWorkflow(ctx, r.cfg.Context(date))
}

func requirements(phases []phase.Phase) []string {
	var out []string
	for _, p := range phases {
		out = append(out, p.Requirements()...)
	}
	return out
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
}
