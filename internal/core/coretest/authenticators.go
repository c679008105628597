// Package coretest provides Authenticator doubles for exercising the spray
// engine without a network.
package coretest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"spraykit/internal/core"
)

// StaticAuthenticator accepts a fixed set of credentials and rejects
// everything else.
type StaticAuthenticator struct {
	valid map[core.Credential]struct{}
	calls atomic.Int64
}

func NewStaticAuthenticator(valid ...core.Credential) *StaticAuthenticator {
	a := &StaticAuthenticator{valid: make(map[core.Credential]struct{}, len(valid))}
	for _, c := range valid {
		a.valid[c] = struct{}{}
	}
	return a
}

func (a *StaticAuthenticator) Attempt(ctx context.Context, identity, secret, endpoint string) (core.Outcome, error) {
	a.calls.Add(1)
	if _, ok := a.valid[core.Credential{Identity: identity, Secret: secret}]; ok {
		return core.Accepted(), nil
	}
	return core.Rejected(), nil
}

// Calls returns how many attempts were made.
func (a *StaticAuthenticator) Calls() int {
	return int(a.calls.Load())
}

// FaultyAuthenticator returns a transport fault for the listed identities and
// delegates the rest to Next.
type FaultyAuthenticator struct {
	Next   core.Authenticator
	Faults map[string]error
}

func (a *FaultyAuthenticator) Attempt(ctx context.Context, identity, secret, endpoint string) (core.Outcome, error) {
	if err, ok := a.Faults[identity]; ok {
		return core.Outcome{}, err
	}
	return a.Next.Attempt(ctx, identity, secret, endpoint)
}

// PanickingAuthenticator panics for one identity and delegates the rest.
type PanickingAuthenticator struct {
	Next     core.Authenticator
	Identity string
}

func (a *PanickingAuthenticator) Attempt(ctx context.Context, identity, secret, endpoint string) (core.Outcome, error) {
	if identity == a.Identity {
		panic("authenticator exploded")
	}
	return a.Next.Attempt(ctx, identity, secret, endpoint)
}

// Interval is the wall-clock span of one recorded attempt.
type Interval struct {
	Identity string
	Secret   string
	Start    time.Time
	End      time.Time
}

// Overlaps reports whether the two intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// RecordingAuthenticator wraps Next, sleeping Latency per attempt and recording
// start/end intervals, dispatch order and peak concurrency.
type RecordingAuthenticator struct {
	Next    core.Authenticator
	Latency time.Duration
	// IgnoreContext keeps sleeping past the attempt deadline, like a
	// transport that does not honour cancellation.
	IgnoreContext bool
	// OnStart is called with the 1-based start count before Next runs.
	OnStart func(n int)

	mu          sync.Mutex
	intervals   []Interval
	order       []string
	started     atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (a *RecordingAuthenticator) Attempt(ctx context.Context, identity, secret, endpoint string) (core.Outcome, error) {
	start := time.Now()
	n := a.started.Add(1)

	a.mu.Lock()
	a.order = append(a.order, identity)
	a.mu.Unlock()

	cur := a.inFlight.Add(1)
	for {
		peak := a.maxInFlight.Load()
		if cur <= peak || a.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer a.inFlight.Add(-1)

	if a.OnStart != nil {
		a.OnStart(int(n))
	}

	var err error
	if a.Latency > 0 {
		if a.IgnoreContext {
			time.Sleep(a.Latency)
		} else {
			select {
			case <-time.After(a.Latency):
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
	}

	outcome := core.Rejected()
	if err == nil && a.Next != nil {
		outcome, err = a.Next.Attempt(ctx, identity, secret, endpoint)
	}

	a.mu.Lock()
	a.intervals = append(a.intervals, Interval{Identity: identity, Secret: secret, Start: start, End: time.Now()})
	a.mu.Unlock()

	return outcome, err
}

// Intervals returns a copy of the recorded intervals in completion order.
func (a *RecordingAuthenticator) Intervals() []Interval {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Interval, len(a.intervals))
	copy(out, a.intervals)
	return out
}

// Order returns identities in the order their attempts started.
func (a *RecordingAuthenticator) Order() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Started returns how many attempts have begun.
func (a *RecordingAuthenticator) Started() int {
	return int(a.started.Load())
}

// MaxInFlight returns the peak number of simultaneous attempts observed.
func (a *RecordingAuthenticator) MaxInFlight() int {
	return int(a.maxInFlight.Load())
}
