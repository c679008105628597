package noop

import (
	"time"

	"spraykit/internal/core"
	"spraykit/internal/observability"
)

type Recorder struct{}

var _ observability.Recorder = Recorder{}

func (Recorder) RecordAttempt(kind core.OutcomeKind, latency time.Duration) {}

func (Recorder) RecordPass(pass observability.Pass) {
}
