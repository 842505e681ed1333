package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/taurusgroup/frost-peg/pkg/party"
)

var (
	ErrUnknownKind   = errors.New("protocol: unknown message kind")
	ErrUnknownSender = errors.New("protocol: unknown sender")
	ErrBadSignature  = errors.New("protocol: invalid envelope signature")
	ErrReplay        = errors.New("protocol: envelope already processed")
	ErrWrongParty    = errors.New("protocol: party does not belong to sender")
	// ErrInvariant marks a condition that can only be caused by a bug.
	ErrInvariant = errors.New("internal invariant violated")
)

// ValidationError is returned when an input is malformed or out of range.
// It never indicates misbehaviour by a remote party.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CryptoError is returned when a cryptographic check fails.
//
// Culprits lists the parties whose data failed verification, when they are known.
type CryptoError struct {
	Op       string
	Culprits []party.ID
	Err      error
}

func (e *CryptoError) Error() string {
	if len(e.Culprits) == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	ids := make([]string, len(e.Culprits))
	for i, id := range e.Culprits {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: parties %s: %s", e.Op, strings.Join(ids, ", "), e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// TransportError wraps failures of the network collaborator.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
