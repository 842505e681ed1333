package keygen

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/pkg/taproot"
)

var group = curve.Secp256k1{}

// Result contains everything a signer keeps after a successful DKG.
type Result struct {
	ID protocol.DkgID
	// Threshold is the number of parties needed to sign.
	Threshold uint32
	// N is the number of parties taking part in the DKG, excluded ones included.
	N       uint32
	Signers map[party.SignerID]party.IDSlice
	// GroupKey is the public key of the consortium, with an even y coordinate.
	GroupKey curve.Point
	// Commitments are the accepted polynomial commitments, sorted by party.
	//
	// Anyone holding these can recompute GroupKey and every party's public share.
	Commitments []*frost.PolyCommitment
	// Excluded are the parties whose commitments were rejected under ExcludeFaulty.
	Excluded party.IDSlice
	// Parties holds the key share of every local party.
	Parties map[party.ID]*frost.Party
}

func newResult(cfg *Config, parties map[party.ID]*frost.Party, accepted map[party.ID]*frost.PolyCommitment, excluded party.IDSlice) (*Result, error) {
	r := &Result{
		ID:        cfg.ID,
		Threshold: cfg.Threshold,
		N:         cfg.N(),
		Signers:   cfg.Signers,
		Excluded:  excluded,
		Parties:   parties,
	}
	for _, c := range accepted {
		r.Commitments = append(r.Commitments, c)
	}
	sort.Slice(r.Commitments, func(i, j int) bool { return r.Commitments[i].ID < r.Commitments[j].ID })

	for id, p := range parties {
		if r.GroupKey == nil {
			r.GroupKey = p.GroupKey()
			continue
		}
		if !r.GroupKey.Equal(p.GroupKey()) {
			return nil, fmt.Errorf("keygen: party %s derived a different group key: %w", id, protocol.ErrInvariant)
		}
	}
	return r, nil
}

// PublicKey returns the x-only group key.
func (r *Result) PublicKey() taproot.PublicKey {
	return taproot.PublicKeyFromPoint(r.GroupKey)
}

// Aggregator returns an aggregator for signatures under this key.
func (r *Result) Aggregator() (*frost.Aggregator, error) {
	agg, err := frost.NewAggregator(r.N, r.Threshold, r.Commitments)
	if err != nil {
		return nil, err
	}
	if !agg.GroupKey().Equal(r.GroupKey) {
		return nil, fmt.Errorf("keygen: commitments do not match the group key: %w", protocol.ErrInvariant)
	}
	return agg, nil
}

type resultWire struct {
	ID          protocol.DkgID                   `cbor:"1,keyasint"`
	Threshold   uint32                           `cbor:"2,keyasint"`
	N           uint32                           `cbor:"3,keyasint"`
	Signers     map[party.SignerID]party.IDSlice `cbor:"4,keyasint"`
	GroupKey    []byte                           `cbor:"5,keyasint"`
	Commitments []*frost.PolyCommitment          `cbor:"6,keyasint"`
	Excluded    party.IDSlice                    `cbor:"7,keyasint,omitempty"`
	Shares      map[party.ID]*frost.SecretShare  `cbor:"8,keyasint"`
}

// MarshalBinary encodes the result, private shares included.
func (r *Result) MarshalBinary() ([]byte, error) {
	groupKey, err := r.GroupKey.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("keygen.Result: %w", err)
	}
	w := resultWire{
		ID:          r.ID,
		Threshold:   r.Threshold,
		N:           r.N,
		Signers:     r.Signers,
		GroupKey:    groupKey,
		Commitments: r.Commitments,
		Excluded:    r.Excluded,
		Shares:      make(map[party.ID]*frost.SecretShare, len(r.Parties)),
	}
	for id, p := range r.Parties {
		share, err := p.PrivateShare()
		if err != nil {
			return nil, fmt.Errorf("keygen.Result: party %s: %w", id, err)
		}
		w.Shares[id] = &frost.SecretShare{Value: share}
	}
	return cbor.Marshal(w)
}

// UnmarshalBinary restores a result encoded with MarshalBinary.
func (r *Result) UnmarshalBinary(data []byte) error {
	var w resultWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("keygen.Result: %w", err)
	}
	groupKey := group.NewPoint()
	if err := groupKey.UnmarshalBinary(w.GroupKey); err != nil {
		return fmt.Errorf("keygen.Result: group key: %w", err)
	}
	parties := make(map[party.ID]*frost.Party, len(w.Shares))
	for id, share := range w.Shares {
		if share == nil || share.Value == nil {
			return fmt.Errorf("keygen.Result: party %s: %w", id, frost.ErrMissingShare)
		}
		p, err := frost.RestoreParty(id, w.N, w.Threshold, share.Value, groupKey)
		if err != nil {
			return fmt.Errorf("keygen.Result: party %s: %w", id, err)
		}
		parties[id] = p
	}
	*r = Result{
		ID:          w.ID,
		Threshold:   w.Threshold,
		N:           w.N,
		Signers:     w.Signers,
		GroupKey:    groupKey,
		Commitments: w.Commitments,
		Excluded:    w.Excluded,
		Parties:     parties,
	}
	return nil
}
