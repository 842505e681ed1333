package keygen

import (
	"errors"
	"fmt"
	"time"

	"github.com/taurusgroup/frost-peg/internal/params"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var (
	// ErrInconsistentMap is returned when the party → signer assignment is malformed.
	ErrInconsistentMap = errors.New("keygen: inconsistent party assignment")
	// ErrConfigMismatch is returned when a DKG id is reused with a different configuration.
	ErrConfigMismatch = errors.New("keygen: dkg id reused with a different configuration")
)

// Policy decides what happens when some parties publish invalid commitments.
type Policy uint8

const (
	// FailWholeRound fails the DKG as soon as any party misbehaves.
	FailWholeRound Policy = iota
	// ExcludeFaulty drops parties whose commitment proof is invalid, and
	// continues with the others as long as at least Threshold remain.
	//
	// Only publicly verifiable faults lead to exclusion, so that every honest
	// signer excludes the same parties. A share that does not match its
	// commitment is only visible to its recipient, and still fails the round.
	ExcludeFaulty
)

func (p Policy) String() string {
	switch p {
	case FailWholeRound:
		return "fail"
	case ExcludeFaulty:
		return "exclude"
	default:
		return fmt.Sprintf("Policy(%d)", uint8(p))
	}
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail":
		return FailWholeRound, nil
	case "exclude":
		return ExcludeFaulty, nil
	default:
		return 0, fmt.Errorf("keygen: unknown policy %q", s)
	}
}

// Config describes a single DKG.
type Config struct {
	ID protocol.DkgID
	// Threshold is the number of parties needed to sign.
	Threshold uint32
	// Signers maps every signer to the parties it holds.
	Signers map[party.SignerID]party.IDSlice
	Policy  Policy
	// Timeout bounds the time spent waiting for shares. Zero means no timeout.
	Timeout time.Duration
}

// N returns the total number of parties.
func (c *Config) N() uint32 {
	n := 0
	for _, ids := range c.Signers {
		n += len(ids)
	}
	return uint32(n)
}

// Validate checks that parties 0, …, N-1 are each held by exactly one signer,
// and that the threshold can be reached.
func (c *Config) Validate() error {
	n := c.N()
	if n == 0 || n > params.MaxParties {
		return &protocol.ValidationError{Op: "keygen.Config", Err: fmt.Errorf("%w: %d parties", ErrInconsistentMap, n)}
	}
	if c.Threshold == 0 || c.Threshold > n {
		return &protocol.ValidationError{Op: "keygen.Config", Err: fmt.Errorf("invalid threshold %d for %d parties", c.Threshold, n)}
	}
	owner := make(map[party.ID]party.SignerID, n)
	for signer, ids := range c.Signers {
		if len(ids) == 0 || !ids.Valid() {
			return &protocol.ValidationError{Op: "keygen.Config", Err: fmt.Errorf("%w: signer %s has parties %v", ErrInconsistentMap, signer, ids)}
		}
		for _, id := range ids {
			if other, ok := owner[id]; ok {
				return &protocol.ValidationError{Op: "keygen.Config", Err: fmt.Errorf("%w: party %s held by signers %s and %s", ErrInconsistentMap, id, other, signer)}
			}
			if uint32(id) >= n {
				return &protocol.ValidationError{Op: "keygen.Config", Err: fmt.Errorf("%w: party %s out of range", ErrInconsistentMap, id)}
			}
			owner[id] = signer
		}
	}
	return nil
}

// Owner returns the signer holding party id.
func (c *Config) Owner(id party.ID) (party.SignerID, bool) {
	for signer, ids := range c.Signers {
		if ids.Contains(id) {
			return signer, true
		}
	}
	return 0, false
}

// Check returns ErrConfigMismatch unless other describes the same DKG.
//
// The timeout and policy are local settings and are not compared.
func (c *Config) Check(other *Config) error {
	if c.ID != other.ID {
		return fmt.Errorf("%w: ids %s and %s", ErrConfigMismatch, c.ID, other.ID)
	}
	if c.Threshold != other.Threshold || len(c.Signers) != len(other.Signers) {
		return fmt.Errorf("%w: dkg %s", ErrConfigMismatch, c.ID)
	}
	for signer, ids := range c.Signers {
		otherIDs, ok := other.Signers[signer]
		if !ok || len(ids) != len(otherIDs) || !otherIDs.Contains(ids...) {
			return fmt.Errorf("%w: dkg %s, signer %s", ErrConfigMismatch, c.ID, signer)
		}
	}
	return nil
}
