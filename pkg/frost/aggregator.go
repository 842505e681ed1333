package frost

import (
	"errors"
	"fmt"

	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

// Aggregator combines signature shares into a single BIP-340 signature.
//
// It only needs public data: the polynomial commitments of the DKG, from
// which it derives the group key and each party's verification share.
type Aggregator struct {
	n, t        uint32
	commitments map[party.ID]*PolyCommitment
	// negate is true if ∑ Aⱼ₀ had an odd y coordinate, in which case every
	// party negated its share.
	negate   bool
	groupKey curve.Point
}

// NewAggregator verifies the commitments and derives the group key.
//
// commitments may omit parties excluded from the DKG.
func NewAggregator(n, t uint32, commitments []*PolyCommitment) (*Aggregator, error) {
	if t == 0 || t > n {
		return nil, &protocol.ValidationError{Op: "frost.NewAggregator", Err: fmt.Errorf("invalid threshold %d for %d parties", t, n)}
	}
	a := &Aggregator{
		n:           n,
		t:           t,
		commitments: make(map[party.ID]*PolyCommitment, len(commitments)),
	}
	var culprits []party.ID
	Y := group.NewPoint()
	for _, c := range commitments {
		if c == nil {
			return nil, &protocol.ValidationError{Op: "frost.NewAggregator", Err: errors.New("nil commitment")}
		}
		if uint32(c.ID) >= n {
			return nil, &protocol.ValidationError{Op: "frost.NewAggregator", Err: fmt.Errorf("party %s out of range", c.ID)}
		}
		if _, dup := a.commitments[c.ID]; dup {
			return nil, &protocol.ValidationError{Op: "frost.NewAggregator", Err: fmt.Errorf("duplicate commitment for party %s", c.ID)}
		}
		if !c.Verify() || c.Poly.Degree() != int(t)-1 {
			culprits = append(culprits, c.ID)
			continue
		}
		a.commitments[c.ID] = c
		Y = Y.Add(c.Poly.Constant())
	}
	if len(culprits) > 0 {
		return nil, &protocol.CryptoError{Op: "frost.NewAggregator", Culprits: party.NewIDSlice(culprits), Err: ErrInvalidCommitment}
	}
	if uint32(len(a.commitments)) < t || Y.IsIdentity() {
		return nil, &protocol.ValidationError{Op: "frost.NewAggregator", Err: fmt.Errorf("%d commitments cannot reach threshold %d", len(a.commitments), t)}
	}
	if !Y.HasEvenY() {
		a.negate = true
		Y = Y.Negate()
	}
	a.groupKey = Y
	return a, nil
}

// GroupKey returns Y, normalized to an even y coordinate.
func (a *Aggregator) GroupKey() curve.Point {
	return a.groupKey
}

// Threshold returns t.
func (a *Aggregator) Threshold() uint32 {
	return a.t
}

// N returns the number of parties in the DKG.
func (a *Aggregator) N() uint32 {
	return a.n
}

// PublicShare returns Yᵢ = sᵢ•G = ∑ⱼ Fⱼ(i+1), adjusted for the group key parity.
func (a *Aggregator) PublicShare(id party.ID) curve.Point {
	x := id.Scalar(group)
	Y := group.NewPoint()
	for _, c := range a.commitments {
		Y = Y.Add(c.Poly.Evaluate(x))
	}
	if a.negate {
		Y = Y.Negate()
	}
	return Y
}

// Sign verifies every share against the signer's public share and sums them.
//
// nonces must contain exactly the nominated signers, and shares one entry per
// signer. If any share is invalid, a *protocol.CryptoError naming every
// faulty party is returned and no signature is produced.
func (a *Aggregator) Sign(m []byte, nonces map[party.ID]*PublicNonce, shares []*SignatureShare) (*Signature, error) {
	if uint32(len(nonces)) < a.t {
		return nil, &protocol.ValidationError{Op: "frost.Aggregator.Sign", Err: fmt.Errorf("%d signers is below the threshold %d", len(nonces), a.t)}
	}
	for id := range nonces {
		if uint32(id) >= a.n {
			return nil, &protocol.ValidationError{Op: "frost.Aggregator.Sign", Err: fmt.Errorf("party %s out of range", id)}
		}
	}
	byID := make(map[party.ID]*SignatureShare, len(shares))
	for _, share := range shares {
		if share == nil || share.Z == nil {
			return nil, &protocol.ValidationError{Op: "frost.Aggregator.Sign", Err: ErrInvalidSignatureShare}
		}
		if _, ok := nonces[share.ID]; !ok {
			return nil, &protocol.ValidationError{Op: "frost.Aggregator.Sign", Err: fmt.Errorf("%w: party %s", ErrNotSigner, share.ID)}
		}
		byID[share.ID] = share
	}
	if len(byID) != len(nonces) {
		return nil, &protocol.ValidationError{Op: "frost.Aggregator.Sign", Err: fmt.Errorf("got %d shares for %d signers", len(byID), len(nonces))}
	}

	ctx, err := newSigningContext(a.groupKey, m, nonces)
	if err != nil {
		return nil, &protocol.ValidationError{Op: "frost.Aggregator.Sign", Err: err}
	}

	// 7.b "Each zᵢ is verified by checking zᵢ•G = Rᵢ + c•λᵢ•Yᵢ"
	var culprits []party.ID
	z := group.NewScalar()
	for _, l := range ctx.signers {
		share := byID[l]
		lhs := share.Z.ActOnBase()
		rhs := group.NewScalar().Set(ctx.c).Mul(ctx.lambda[l]).Act(a.PublicShare(l)).Add(ctx.RShares[l])
		if !lhs.Equal(rhs) {
			culprits = append(culprits, l)
			continue
		}
		z.Add(share.Z)
	}
	if len(culprits) > 0 {
		return nil, &protocol.CryptoError{Op: "frost.Aggregator.Sign", Culprits: culprits, Err: ErrInvalidSignatureShare}
	}

	sig := &Signature{R: ctx.R, Z: z}
	if !sig.Verify(a.groupKey, m) {
		return nil, fmt.Errorf("frost.Aggregator.Sign: aggregate does not verify: %w", protocol.ErrInvariant)
	}
	return sig, nil
}
