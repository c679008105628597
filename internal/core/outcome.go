package core

import (
	"context"
	"errors"
)

// OutcomeKind is the tri-state classification of one attempt.
type OutcomeKind int

const (
	// OutcomeUnknown is the zero value and never leaves Classify.
	OutcomeUnknown OutcomeKind = iota
	OutcomeAccepted
	OutcomeRejected
	OutcomeErrored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of an attempt. Message is only set for
// errored outcomes.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// TimeoutMessage is the message of an attempt that hit its deadline.
const TimeoutMessage = "timeout"

func Accepted() Outcome { return Outcome{Kind: OutcomeAccepted} }
func Rejected() Outcome { return Outcome{Kind: OutcomeRejected} }

// Errored returns an error outcome carrying msg.
func Errored(msg string) Outcome {
	return Outcome{Kind: OutcomeErrored, Message: msg}
}

func (o Outcome) IsAccepted() bool { return o.Kind == OutcomeAccepted }
func (o Outcome) IsRejected() bool { return o.Kind == OutcomeRejected }
func (o Outcome) IsErrored() bool  { return o.Kind == OutcomeErrored }

func (o Outcome) String() string {
	if o.Kind == OutcomeErrored && o.Message != "" {
		return o.Kind.String() + ": " + o.Message
	}
	return o.Kind.String()
}

// Classify maps an Authenticator reply to exactly one outcome.
//
// Any fault wins over the reported outcome. Deadline faults become
// Errored("timeout"); anything that is not an explicit accept or reject
// becomes Errored.
func Classify(outcome Outcome, err error) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return Errored(TimeoutMessage)
	case err != nil:
		return Errored(err.Error())
	}

	switch outcome.Kind {
	case OutcomeAccepted, OutcomeRejected:
		return Outcome{Kind: outcome.Kind}
	case OutcomeErrored:
		if outcome.Message == "" {
			return Errored("unspecified error")
		}
		return outcome
	default:
		return Errored("unclassified outcome")
	}
}

// Signal is a protocol-agnostic reading of a target's response.
type Signal int

const (
	SignalOther Signal = iota
	SignalSuccess
	SignalInvalidCredential
)

// ClassifySignal maps a raw response signal to an outcome. Only the two
// explicit signals yield Accepted or Rejected; every other response is
// Errored with detail as its message.
func ClassifySignal(sig Signal, detail string) Outcome {
	switch sig {
	case SignalSuccess:
		return Accepted()
	case SignalInvalidCredential:
		return Rejected()
	default:
		if detail == "" {
			detail = "unexpected response"
		}
		return Errored(detail)
	}
}
