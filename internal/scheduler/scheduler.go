// Package scheduler runs one spray pass: a single secret tried against every
// identity through a bounded, paced pool of attempts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"spraykit/internal/collector"
	"spraykit/internal/core"
	"spraykit/internal/observability"
	"spraykit/internal/observability/noop"
	"spraykit/internal/ratelimit"
)

const (
	defaultMaxConcurrency = 5
	defaultAttemptTimeout = 30 * time.Second
)

// Options controls admission and pacing. The zero value runs five attempts
// at a time with no delay and a 30s attempt timeout.
type Options struct {
	MaxConcurrency int
	Delay          time.Duration // from a completion to the next dispatch in the freed slot
	AttemptTimeout time.Duration
	RateLimit      float64 // dispatches per second across the pass, 0 = none

	Clock    core.Clock
	Logger   logr.Logger
	Recorder observability.Recorder
}

// PassSummary is what a single pass added to the aggregator.
type PassSummary struct {
	collector.Snapshot
	Dispatched int
	Cancelled  bool // dispatch stopped before every identity was attempted
	Elapsed    time.Duration
}

// Scheduler dispatches attempts for one secret at a time. Run may be called
// repeatedly but not concurrently on the same Scheduler.
type Scheduler struct {
	auth    core.Authenticator
	agg     *collector.Aggregator
	opts    Options
	limiter *ratelimit.RateLimiter
}

func New(auth core.Authenticator, agg *collector.Aggregator, opts Options) *Scheduler {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}
	if opts.Clock == nil {
		opts.Clock = core.RealClock{}
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Recorder == nil {
		opts.Recorder = noop.Recorder{}
	}

	s := &Scheduler{auth: auth, agg: agg, opts: opts}
	if opts.RateLimit > 0 {
		s.limiter = ratelimit.NewRateLimiter(opts.RateLimit)
	}
	return s
}

// Options returns the normalized options in effect.
func (s *Scheduler) Options() Options {
	return s.opts
}

// Run tries secret against every identity and returns the counts this pass
// added to the aggregator.
//
// Only invalid input is returned as an error, before anything is dispatched.
// Attempt faults are recorded as errored outcomes. When ctx is cancelled no
// further attempts start; attempts already running finish and are counted,
// and the partial summary is returned with a nil error.
func (s *Scheduler) Run(ctx context.Context, secret string, identities []string, endpoint string) (PassSummary, error) {
	if err := validate(secret, identities, endpoint); err != nil {
		return PassSummary{}, err
	}

	log := s.opts.Logger.WithValues("endpoint", endpoint)
	log.Info("Starting spray pass",
		"identities", len(identities),
		"maxConcurrency", s.opts.MaxConcurrency,
		"delay", s.opts.Delay)

	start := s.opts.Clock.Now()
	before := s.agg.Snapshot()

	pacer := ratelimit.NewPacer(s.opts.MaxConcurrency, s.opts.Delay, s.limiter)
	defer pacer.Close()

	var wg sync.WaitGroup
	dispatched := 0
	for _, identity := range identities {
		if err := pacer.Acquire(ctx); err != nil {
			log.Info("Dispatch stopped", "reason", err.Error(), "dispatched", dispatched, "remaining", len(identities)-dispatched)
			break
		}
		dispatched++
		wg.Add(1)
		go func(identity string) {
			defer wg.Done()
			defer pacer.Release()
			s.attempt(ctx, log, identity, secret, endpoint)
		}(identity)
	}
	wg.Wait()

	summary := PassSummary{
		Snapshot:   s.agg.Snapshot().Sub(before),
		Dispatched: dispatched,
		Cancelled:  dispatched < len(identities),
		Elapsed:    s.opts.Clock.Since(start),
	}

	s.opts.Recorder.RecordPass(observability.Pass{
		Accepted:  summary.Accepted,
		Rejected:  summary.Rejected,
		Errored:   summary.Errored,
		Cancelled: summary.Cancelled,
		Elapsed:   summary.Elapsed,
	})
	log.Info("Spray pass completed",
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"errored", summary.Errored,
		"cancelled", summary.Cancelled,
		"elapsed", summary.Elapsed)

	return summary, nil
}

func validate(secret string, identities []string, endpoint string) error {
	if secret == "" {
		return core.ErrEmptySecret
	}
	if len(identities) == 0 {
		return core.ErrNoIdentities
	}
	for i, id := range identities {
		if id == "" {
			return fmt.Errorf("identity %d: %w", i, core.ErrEmptyIdentity)
		}
	}
	if endpoint == "" {
		return core.ErrEmptyEndpoint
	}
	return nil
}

// attempt performs one authentication and records exactly one result.
func (s *Scheduler) attempt(ctx context.Context, log logr.Logger, identity, secret, endpoint string) {
	started := s.opts.Clock.Now()
	outcome, detail := s.call(ctx, identity, secret, endpoint)
	elapsed := s.opts.Clock.Since(started)

	s.agg.Record(core.AttemptResult{
		Identity:    identity,
		Secret:      secret,
		Outcome:     outcome,
		StartedAt:   started,
		Elapsed:     elapsed,
		ErrorDetail: detail,
	})
	s.opts.Recorder.RecordAttempt(outcome.Kind, elapsed)

	switch outcome.Kind {
	case core.OutcomeAccepted:
		log.Info("Valid credential found", "identity", identity)
	case core.OutcomeRejected:
		log.V(1).Info("Attempt rejected", "identity", identity, "elapsed", elapsed)
	default:
		log.Info("Attempt errored", "identity", identity, "error", outcome.Message)
	}
}

// call runs the Authenticator under the attempt timeout. The attempt context
// ignores pass cancellation so an attempt that already started completes.
// The caller keeps its slot until the Authenticator returns, even past the
// deadline; any attempt that ends after the deadline is a timeout.
func (s *Scheduler) call(parent context.Context, identity, secret, endpoint string) (core.Outcome, string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.opts.AttemptTimeout)
	defer cancel()

	outcome, err := s.invoke(ctx, identity, secret, endpoint)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("attempt exceeded %v: %w", s.opts.AttemptTimeout, ctx.Err())
	}

	outcome = core.Classify(outcome, err)
	detail := ""
	if err != nil {
		detail = err.Error()
	} else if outcome.IsErrored() {
		detail = outcome.Message
	}
	return outcome, detail
}

// invoke converts a panicking Authenticator into an error.
func (s *Scheduler) invoke(ctx context.Context, identity, secret, endpoint string) (outcome core.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.auth.Attempt(ctx, identity, secret, endpoint)
}
