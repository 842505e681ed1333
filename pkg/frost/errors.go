package frost

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/taurusgroup/frost-peg/pkg/party"
)

var (
	ErrSecretNotComputed     = errors.New("frost: private share not computed")
	ErrPolynomialErased      = errors.New("frost: polynomial already erased")
	ErrNonceReused           = errors.New("frost: nonce already used")
	ErrInvalidNonce          = errors.New("frost: invalid public nonce")
	ErrInvalidCommitment     = errors.New("frost: invalid polynomial commitment")
	ErrInvalidShare          = errors.New("frost: share does not match commitment")
	ErrMissingShare          = errors.New("frost: missing share")
	ErrInvalidSignatureShare = errors.New("frost: invalid signature share")
	ErrNotSigner             = errors.New("frost: party is not a nominated signer")
)

// DkgError collects every party whose contribution to a DKG failed verification.
type DkgError struct {
	Errors map[party.ID]error
}

// Culprits returns the sorted ids of the failing parties.
func (e *DkgError) Culprits() []party.ID {
	ids := make([]party.ID, 0, len(e.Errors))
	for id := range e.Errors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *DkgError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, id := range e.Culprits() {
		parts = append(parts, fmt.Sprintf("party %s: %v", id, e.Errors[id]))
	}
	return "frost: dkg failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the underlying errors, ordered by culprit.
func (e *DkgError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, id := range e.Culprits() {
		errs = append(errs, e.Errors[id])
	}
	return errs
}
