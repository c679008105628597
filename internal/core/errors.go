package core

import (
	"errors"
	"fmt"
)

// ErrCallerContract marks invalid input to a spray pass. It is the only
// error the engine returns to its caller; attempt faults are recorded as
// Errored outcomes instead.
var ErrCallerContract = errors.New("caller contract violation")

var (
	ErrEmptySecret   = fmt.Errorf("%w: secret is empty", ErrCallerContract)
	ErrNoIdentities  = fmt.Errorf("%w: identity list is empty", ErrCallerContract)
	ErrEmptyIdentity = fmt.Errorf("%w: identity is empty", ErrCallerContract)
	ErrEmptyEndpoint = fmt.Errorf("%w: endpoint is empty", ErrCallerContract)
)

// ErrTimeout may be returned by an Authenticator that enforces its own deadline.
var ErrTimeout = errors.New("attempt timed out")
