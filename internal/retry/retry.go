// Package retry re-runs a phase until it succeeds or its attempts run out.
package retry

import (
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"go.uber.org/zap"
)

// Policy bounds how often and how far apart a phase is retried. A zero
// field takes its DefaultPolicy value, so an unset config gets the ten
// second pause; set Delay negative to retry immediately.
type Policy struct {
	MaxAttempts int           `koanf:"attempts" yaml:"attempts" json:"attempts"`
	Delay       time.Duration `koanf:"delay"    yaml:"delay"    json:"delay"`
}

// DefaultPolicy is three attempts, ten seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 10 * time.Second}
}

// ApplyDefaults fills zero fields from DefaultPolicy.
func (p Policy) ApplyDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	} else if p.Delay == 0 {
		p.Delay = def.Delay
	}
	return p
}

// WithRetry calls run until it succeeds or MaxAttempts is reached,
// sleeping Delay between attempts. The returned result is the last
// attempt's, carrying the errors of every attempt in order, each tagged
// with its attempt number, and the number of attempts made.
func WithRetry(run func() model.PhaseResult, policy Policy, clk clock.Clock, log *zap.Logger) model.PhaseResult {
	policy = policy.ApplyDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	var errs []model.PhaseError
	var res model.PhaseResult
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res = run()
		if !res.Success && len(res.Errors) == 0 {
			res.Errors = []model.PhaseError{{Phase: res.Phase, Kind: model.KindUnknown, Message: "phase failed without reporting an error"}}
		}
		for _, e := range res.Errors {
			e.Attempt = attempt
			errs = append(errs, e)
		}
		res.Errors = errs
		res.Attempts = attempt
		if res.Success {
			if attempt > 1 {
				log.Info("phase recovered", zap.String("phase", string(res.Phase)), zap.Int("attempt", attempt))
			}
			return res
		}
		log.Warn("phase attempt failed",
			zap.String("phase", string(res.Phase)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts))
		if attempt < policy.MaxAttempts {
			clk.Sleep(policy.Delay)
		}
	}
	return res
}
