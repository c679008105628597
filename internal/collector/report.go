package collector

import (
	"time"

	"spraykit/internal/core"
)

// DefaultFailedPreview is how many rejected attempts a report lists by default.
const DefaultFailedPreview = 10

// Report is the exportable state of an Aggregator.
type Report struct {
	Snapshot
	Duration        time.Duration
	Credentials     []core.Credential
	RejectedPreview []core.AttemptResult
	RejectedOmitted int
	Errors          []core.AttemptResult
	Latency         DurationMetrics
}

// Report builds a Report listing at most preview rejected attempts.
// A negative preview uses DefaultFailedPreview.
func (a *Aggregator) Report(preview int) Report {
	if preview < 0 {
		preview = DefaultFailedPreview
	}

	a.mu.Lock()
	snap := a.snapshotLocked()
	accepted := cloneResults(a.accepted)
	rejected := cloneResults(a.rejected)
	errored := cloneResults(a.errored)
	a.mu.Unlock()

	r := Report{
		Snapshot:    snap,
		Duration:    a.Duration(),
		Credentials: make([]core.Credential, len(accepted)),
		Errors:      errored,
		Latency:     ComputeLatency(accepted, rejected, errored),
	}
	for i, res := range accepted {
		r.Credentials[i] = res.Credential()
	}
	if len(rejected) > preview {
		r.RejectedOmitted = len(rejected) - preview
		rejected = rejected[:preview]
	}
	r.RejectedPreview = rejected
	return r
}
