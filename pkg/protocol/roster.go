package protocol

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

// Roster holds the long-term network keys of every participant, and the
// parties each signer is responsible for.
type Roster struct {
	Coordinator *secp256k1.PublicKey
	Signers     map[party.SignerID]*secp256k1.PublicKey
	Parties     map[party.SignerID]party.IDSlice
}

// Validate checks that every signer has a key, and that the parties are
// 0, …, N-1 with each party held by exactly one signer.
func (r *Roster) Validate() error {
	if r.Coordinator == nil {
		return &ValidationError{Op: "protocol.Roster", Err: errors.New("missing coordinator key")}
	}
	seen := make(map[party.ID]party.SignerID)
	for signer, ids := range r.Parties {
		if _, ok := r.Signers[signer]; !ok {
			return &ValidationError{Op: "protocol.Roster", Err: fmt.Errorf("signer %s has no key", signer)}
		}
		for _, id := range ids {
			if other, ok := seen[id]; ok {
				return &ValidationError{Op: "protocol.Roster", Err: fmt.Errorf("party %s held by signers %s and %s", id, other, signer)}
			}
			seen[id] = signer
		}
	}
	for i := 0; i < len(seen); i++ {
		if _, ok := seen[party.ID(i)]; !ok {
			return &ValidationError{Op: "protocol.Roster", Err: fmt.Errorf("party ids are not contiguous: missing %d", i)}
		}
	}
	return nil
}

// N returns the total number of parties.
func (r *Roster) N() int {
	n := 0
	for _, ids := range r.Parties {
		n += len(ids)
	}
	return n
}

// SignerOf returns the signer holding the given party.
func (r *Roster) SignerOf(id party.ID) (party.SignerID, bool) {
	for signer, ids := range r.Parties {
		if ids.Contains(id) {
			return signer, true
		}
	}
	return 0, false
}

// VerifyCoordinator checks that env was signed by the coordinator.
func (r *Roster) VerifyCoordinator(env *Envelope) error {
	if !env.Kind.FromCoordinator() {
		return fmt.Errorf("%w: %s is not a coordinator message", ErrUnknownSender, env.Kind)
	}
	return env.VerifyWith(r.Coordinator)
}

// VerifySigner checks that env was signed by signer, and that every party the
// message speaks for belongs to that signer.
func (r *Roster) VerifySigner(env *Envelope, signer party.SignerID, parties ...party.ID) error {
	if env.Kind.FromCoordinator() {
		return fmt.Errorf("%w: %s is not a signer message", ErrUnknownSender, env.Kind)
	}
	key, ok := r.Signers[signer]
	if !ok {
		return fmt.Errorf("%w: signer %s", ErrUnknownSender, signer)
	}
	if err := env.VerifyWith(key); err != nil {
		return err
	}
	owned := r.Parties[signer]
	for _, id := range parties {
		if !owned.Contains(id) {
			return fmt.Errorf("%w: party %s, signer %s", ErrWrongParty, id, signer)
		}
	}
	return nil
}
