// Package workflow runs the four phases in order against one application
// instance and reports a single result.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/retry"
	"go.uber.org/zap"
)

// Recorder observes phase and run outcomes, e.g. for metrics.
type Recorder interface {
	ObservePhase(res model.PhaseResult)
	ObserveRun(res model.WorkflowResult)
}

// Recorders fans out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) ObservePhase(res model.PhaseResult) {
	for _, r := range rs {
		r.ObservePhase(res)
	}
}

func (rs Recorders) ObserveRun(res model.WorkflowResult) {
	for _, r := range rs {
		r.ObserveRun(res)
	}
}

// Snapshotter captures the application window when a run fails and
// returns the path of the image it wrote.
type Snapshotter interface {
	Snapshot(runID string, failed model.Phase, h model.WindowHandle) (string, error)
}

// Options tune an Orchestrator. The zero value is usable.
type Options struct {
	Retry retry.Policy
	// PhaseDelay is waited between consecutive phases.
	PhaseDelay time.Duration
	// CloseOnFailure closes the application window after a failed run.
	CloseOnFailure bool

	Recorder    Recorder
	Snapshotter Snapshotter
}

// Orchestrator sequences phases. It does not guard against concurrent
// runs; callers serialise RunWorkflow.
type Orchestrator struct {
	phases  []phase.Phase
	profile *model.CoordinateProfile
	ws      platform.WindowSystem
	clk     clock.Clock
	log     *zap.Logger
	opts    Options

	aborted atomic.Bool

	mu     sync.Mutex
	handle *model.WindowHandle
	last   *model.WorkflowResult
}

func New(phases []phase.Phase, profile *model.CoordinateProfile, ws platform.WindowSystem, clk clock.Clock, log *zap.Logger, opts Options) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	opts.Retry = opts.Retry.ApplyDefaults()
	if opts.PhaseDelay < 0 {
		opts.PhaseDelay = 0
	}
	return &Orchestrator{
		phases:  phases,
		profile: profile,
		ws:      ws,
		clk:     clk,
		log:     log.Named("workflow"),
		opts:    opts,
	}
}

// Abort asks the current run to stop before its next phase. A phase in
// progress always runs to completion. The request is cleared when the run
// returns.
func (o *Orchestrator) Abort() {
	o.aborted.Store(true)
}

// Last returns the result of the most recent run.
func (o *Orchestrator) Last() (model.WorkflowResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return model.WorkflowResult{}, false
	}
	return *o.last, true
}

// RunWorkflow executes every phase in order, each under the retry policy,
// and stops at the first phase that exhausts its attempts. It never
// panics and never returns a partial success.
func (o *Orchestrator) RunWorkflow(ctx context.Context, wc model.WorkflowContext) (res model.WorkflowResult) {
	defer o.aborted.Store(false)
	o.setHandle(nil)

	start := o.clk.Now()
	res = model.WorkflowResult{
		RunID:           wc.RunID,
		StartedAt:       start,
		PhasesAttempted: []model.Phase{},
		PhasesCompleted: []model.Phase{},
	}
	log := o.log.With(zap.String("run_id", wc.RunID), zap.String("date", wc.DateFolder))

	defer func() {
		if r := recover(); r != nil {
			log.Error("workflow panicked", zap.Any("panic", r))
			res.Success = false
			res.Errors = append(res.Errors, model.PhaseError{
				Phase:   res.FailedPhase,
				Kind:    model.KindUnknown,
				Message: fmt.Sprintf("unexpected failure: %v", r),
			})
		}
		res.FinishedAt = o.clk.Now()
		res.Duration = res.FinishedAt.Sub(start)
		o.finish(log, res)
	}()

	if err := o.validate(wc); err != nil {
		log.Error("workflow not started", zap.Error(err))
		res.Errors = append(res.Errors, model.NewPhaseError("", err))
		return res
	}

	log.Info("workflow started", zap.Int("phases", len(o.phases)))
	var handle *model.WindowHandle
	for i, p := range o.phases {
		name := p.Name()
		if i > 0 {
			o.clk.Sleep(o.opts.PhaseDelay)
		}
		if reason := o.stopReason(ctx); reason != "" {
			log.Warn("workflow aborted", zap.String("before", string(name)), zap.String("reason", reason))
			res.Aborted = true
			res.Errors = append(res.Errors, model.PhaseError{
				Phase:   name,
				Kind:    model.KindUnknown,
				Message: fmt.Sprintf("run aborted before %s: %s", name, reason),
			})
			return res
		}

		res.PhasesAttempted = append(res.PhasesAttempted, name)
		in := handle
		pr := retry.WithRetry(func() model.PhaseResult {
			return p.Run(wc, in)
		}, o.opts.Retry, o.clk, log.With(zap.String("phase", string(name))))
		res.Errors = append(res.Errors, pr.Errors...)
		if o.opts.Recorder != nil {
			o.opts.Recorder.ObservePhase(pr)
		}

		if pr.Success && (pr.Handle == nil || pr.Handle.IsZero()) {
			pr.Success = false
			err := model.NewError(model.KindConfigurationError, string(name), "phase reported success without a window handle")
			res.Errors = append(res.Errors, model.NewPhaseError(name, err))
		}
		if !pr.Success {
			res.FailedPhase = name
			res.Errors = append(res.Errors, model.PhaseError{
				Phase:   name,
				Kind:    model.KindRetryExhausted,
				Message: fmt.Sprintf("%s failed after %d attempt(s)", name, pr.Attempts),
				Attempt: pr.Attempts,
			})
			o.collect(&res, pr)
			o.onFailure(log, &res, handle)
			return res
		}

		handle = pr.Handle
		o.setHandle(handle)
		o.collect(&res, pr)
		res.PhasesCompleted = append(res.PhasesCompleted, name)
		log.Info("phase completed", zap.String("phase", string(name)), zap.Int("attempts", pr.Attempts), zap.Duration("elapsed", pr.Duration))
	}

	res.Success = true
	return res
}

func (o *Orchestrator) validate(wc model.WorkflowContext) error {
	if len(o.phases) == 0 {
		return model.NewError(model.KindConfigurationError, "workflow", "no phases configured")
	}
	if err := wc.Validate(); err != nil {
		return err
	}
	var required []string
	for _, p := range o.phases {
		required = append(required, p.Requirements()...)
	}
	return o.profile.Require(required...)
}

func (o *Orchestrator) stopReason(ctx context.Context) string {
	if o.aborted.Load() {
		return "abort requested"
	}
	if err := ctx.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// collect copies artifacts a phase produced into the run result.
func (o *Orchestrator) collect(res *model.WorkflowResult, pr model.PhaseResult) {
	if v := pr.Artifacts[model.ArtifactExcelFile]; v != "" {
		res.ExcelFile = v
	}
	if v := pr.Artifacts[model.ArtifactPDFFile]; v != "" {
		res.PDFFile = v
	}
}

func (o *Orchestrator) onFailure(log *zap.Logger, res *model.WorkflowResult, handle *model.WindowHandle) {
	if o.opts.Snapshotter != nil && handle != nil {
		path, err := o.opts.Snapshotter.Snapshot(res.RunID, res.FailedPhase, *handle)
		if err != nil {
			log.Warn("failure screenshot not taken", zap.Error(err))
		} else {
			res.Screenshot = path
		}
	}
	if o.opts.CloseOnFailure {
		o.Cleanup()
	}
}

func (o *Orchestrator) finish(log *zap.Logger, res model.WorkflowResult) {
	if res.Success {
		log.Info("workflow succeeded", zap.String("excel", res.ExcelFile), zap.String("pdf", res.PDFFile), zap.Duration("elapsed", res.Duration))
	} else {
		log.Error("workflow failed",
			zap.String("failed_phase", string(res.FailedPhase)),
			zap.Int("phases_completed", len(res.PhasesCompleted)),
			zap.Int("errors", len(res.Errors)),
			zap.Bool("aborted", res.Aborted))
	}
	if o.opts.Recorder != nil {
		o.opts.Recorder.ObserveRun(res)
	}
	o.mu.Lock()
	o.last = &res
	o.mu.Unlock()
}

func (o *Orchestrator) setHandle(h *model.WindowHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if h == nil {
		o.handle = nil
		return
	}
	cp := *h
	o.handle = &cp
}

// Cleanup closes the last window the current or most recent run worked
// with. Each run starts with no window, so a failure before the first
// successful phase closes nothing. It is best effort and safe to call more
// than once; it reports whether a window was closed.
func (o *Orchestrator) Cleanup() bool {
	o.mu.Lock()
	h := o.handle
	o.handle = nil
	o.mu.Unlock()
	if h == nil || o.ws == nil {
		return false
	}
	w, err := o.ws.Describe(h.HWND)
	if err != nil || (h.PID != 0 && w.PID != h.PID) {
		o.log.Debug("nothing to clean up", zap.Stringer("handle", *h))
		return false
	}
	if err := o.ws.Close(h.HWND); err != nil {
		o.log.Warn("cleanup close failed", zap.Stringer("handle", *h), zap.Error(err))
		return false
	}
	o.log.Info("application window closed", zap.Stringer("handle", *h))
	return true
}
