// Package core defines the fundamental types of a spray campaign: the
// authentication capability the engine drives and the records it produces.
package core

import (
	"context"
	"time"
)

// Credential is an identity/secret pair.
type Credential struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

func (c Credential) String() string {
	return c.Identity + ":" + c.Secret
}

// AttemptResult records a single authentication attempt.
// It is created once per dispatched attempt and never modified afterwards.
type AttemptResult struct {
	Identity    string
	Secret      string
	Outcome     Outcome
	StartedAt   time.Time
	Elapsed     time.Duration
	ErrorDetail string // raw fault text, empty unless Outcome is Errored
}

// Credential returns the identity/secret pair that was attempted.
func (r AttemptResult) Credential() Credential {
	return Credential{Identity: r.Identity, Secret: r.Secret}
}

// Authenticator performs one authentication attempt against endpoint.
//
// The returned Outcome must be Accepted or Rejected when the target gave an
// explicit answer. A non-nil error is a transport or protocol fault. The
// per-attempt timeout is carried by ctx's deadline.
type Authenticator interface {
	Attempt(ctx context.Context, identity, secret, endpoint string) (Outcome, error)
}

// AuthenticatorFunc adapts an ordinary function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, identity, secret, endpoint string) (Outcome, error)

func (f AuthenticatorFunc) Attempt(ctx context.Context, identity, secret, endpoint string) (Outcome, error) {
	return f(ctx, identity, secret, endpoint)
}
