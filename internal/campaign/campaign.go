// Package campaign sprays a list of secrets one pass at a time.
package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"spraykit/internal/collector"
	"spraykit/internal/core"
	"spraykit/internal/progress"
	"spraykit/internal/scheduler"
)

// Passer runs one secret against every identity. *scheduler.Scheduler
// satisfies it.
type Passer interface {
	Run(ctx context.Context, secret string, identities []string, endpoint string) (scheduler.PassSummary, error)
}

type Options struct {
	// Delay is slept between passes when more secrets remain.
	Delay    time.Duration
	Clock    core.Clock
	Logger   logr.Logger
	Progress *progress.Progress
}

// Totals is the sum of every pass delta in a campaign.
type Totals struct {
	collector.Snapshot
	Passes    int
	Cancelled bool
	Elapsed   time.Duration
}

type Runner struct {
	passer Passer
	opts   Options
}

func NewRunner(p Passer, opts Options) *Runner {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.Clock == nil {
		opts.Clock = core.RealClock{}
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return &Runner{passer: p, opts: opts}
}

// SprayAll runs one pass per secret, strictly in order. A pass never starts
// before the previous one has fully completed.
//
// Cancellation during a pass or the inter-pass delay stops the campaign and
// returns the totals accumulated so far with a nil error. Invalid input
// surfaces as the first pass's error.
func (r *Runner) SprayAll(ctx context.Context, secrets, identities []string, endpoint string) (Totals, error) {
	var totals Totals
	if len(secrets) == 0 {
		return totals, nil
	}

	id := uuid.New().String()
	log := r.opts.Logger.WithValues("campaign", id)
	log.Info("Starting campaign", "secrets", len(secrets), "identities", len(identities), "endpoint", endpoint)

	if r.opts.Progress != nil {
		r.opts.Progress.Start()
		defer r.opts.Progress.Stop()
	}

	start := r.opts.Clock.Now()
	for i, secret := range secrets {
		if ctx.Err() != nil {
			totals.Cancelled = true
			break
		}
		if r.opts.Progress != nil {
			r.opts.Progress.Printf("Pass %d/%d (identities: %d)", i+1, len(secrets), len(identities))
		}

		summary, err := r.passer.Run(ctx, secret, identities, endpoint)
		if err != nil {
			return totals, fmt.Errorf("pass %d: %w", i+1, err)
		}
		totals.Snapshot = totals.Snapshot.Add(summary.Snapshot)
		totals.Passes++

		if summary.Cancelled || ctx.Err() != nil {
			totals.Cancelled = true
			break
		}

		if i < len(secrets)-1 && r.opts.Delay > 0 {
			log.V(1).Info("Waiting before next pass", "delay", r.opts.Delay)
			if !sleep(ctx, r.opts.Delay) {
				totals.Cancelled = true
				break
			}
		}
	}

	totals.Elapsed = r.opts.Clock.Since(start)
	log.Info("Campaign finished",
		"passes", totals.Passes,
		"accepted", totals.Accepted,
		"rejected", totals.Rejected,
		"errored", totals.Errored,
		"cancelled", totals.Cancelled,
		"elapsed", totals.Elapsed)

	return totals, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
