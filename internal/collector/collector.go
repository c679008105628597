// Package collector aggregates attempt results into accepted, rejected and
// errored buckets.
package collector

import (
	"sync"
	"time"

	"spraykit/internal/core"
)

// Snapshot is a point-in-time count of each bucket.
type Snapshot struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Errored  int `json:"errored"`
}

// Total returns the number of attempts counted.
func (s Snapshot) Total() int {
	return s.Accepted + s.Rejected + s.Errored
}

// Sub returns the change from prev to s.
func (s Snapshot) Sub(prev Snapshot) Snapshot {
	return Snapshot{
		Accepted: s.Accepted - prev.Accepted,
		Rejected: s.Rejected - prev.Rejected,
		Errored:  s.Errored - prev.Errored,
	}
}

// Add returns the sum of s and o.
func (s Snapshot) Add(o Snapshot) Snapshot {
	return Snapshot{
		Accepted: s.Accepted + o.Accepted,
		Rejected: s.Rejected + o.Rejected,
		Errored:  s.Errored + o.Errored,
	}
}

// Aggregator collects attempt results from concurrent workers.
// Buckets are append-only and never handed out directly.
type Aggregator struct {
	mu        sync.Mutex
	accepted  []core.AttemptResult
	rejected  []core.AttemptResult
	errored   []core.AttemptResult
	clock     core.Clock
	startTime time.Time
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return NewAggregatorWithClock(core.RealClock{})
}

func NewAggregatorWithClock(clock core.Clock) *Aggregator {
	return &Aggregator{
		clock:     clock,
		startTime: clock.Now(),
	}
}

// Record files result into exactly one bucket. Thread-safe.
// A result whose outcome is not a valid classification is filed as errored.
func (a *Aggregator) Record(result core.AttemptResult) {
	result.Outcome = core.Classify(result.Outcome, nil)

	a.mu.Lock()
	switch result.Outcome.Kind {
	case core.OutcomeAccepted:
		a.accepted = append(a.accepted, result)
	case core.OutcomeRejected:
		a.rejected = append(a.rejected, result)
	default:
		a.errored = append(a.errored, result)
	}
	a.mu.Unlock()
}

// Snapshot returns consistent counts for all three buckets.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	return Snapshot{
		Accepted: len(a.accepted),
		Rejected: len(a.rejected),
		Errored:  len(a.errored),
	}
}

// AcceptedList returns the accepted credentials in completion order.
func (a *Aggregator) AcceptedList() []core.Credential {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.Credential, len(a.accepted))
	for i, r := range a.accepted {
		out[i] = r.Credential()
	}
	return out
}

// Accepted returns a copy of the accepted results.
func (a *Aggregator) Accepted() []core.AttemptResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneResults(a.accepted)
}

// Rejected returns a copy of the rejected results.
func (a *Aggregator) Rejected() []core.AttemptResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneResults(a.rejected)
}

// Errored returns a copy of the errored results.
func (a *Aggregator) Errored() []core.AttemptResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneResults(a.errored)
}

// Duration returns the time since the aggregator was created.
func (a *Aggregator) Duration() time.Duration {
	return a.clock.Since(a.startTime)
}

func cloneResults(in []core.AttemptResult) []core.AttemptResult {
	out := make([]core.AttemptResult, len(in))
	copy(out, in)
	return out
}
