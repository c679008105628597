// Package observability defines the metrics surface of the spray engine.
package observability

import (
	"time"

	"spraykit/internal/core"
)

// Recorder receives one call per completed attempt and one per finished pass.
type Recorder interface {
	RecordAttempt(kind core.OutcomeKind, latency time.Duration)
	RecordPass(pass Pass)
}

// Pass summarizes one spray pass for metrics.
type Pass struct {
	Accepted  int
	Rejected  int
	Errored   int
	Cancelled bool
	Elapsed   time.Duration
}
