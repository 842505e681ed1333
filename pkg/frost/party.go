package frost

import (
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-peg/internal/params"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/polynomial"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/pool"
	zksch "github.com/taurusgroup/frost-peg/pkg/zk/sch"
)

var group = curve.Secp256k1{}

// Party holds one key share of a FROST group key.
//
// A Party is created with a fresh random polynomial of degree t-1. It shares that
// polynomial with the N-1 other parties, and once it has received their shares,
// ComputeSecret derives its long-lived signing share sᵢ.
type Party struct {
	id   party.ID
	n, t uint32

	f          *polynomial.Polynomial
	commitment *PolyCommitment

	// private is sᵢ, set by ComputeSecret.
	private curve.Scalar
	// public is Yᵢ = sᵢ•G.
	public   curve.Point
	groupKey curve.Point
}

// NewParty creates party id out of n, with signing threshold t.
//
// The polynomial f(X) = a₀ + a₁X + … + aₜ₋₁Xᵗ⁻¹ is sampled from rand.
func NewParty(id party.ID, n, t uint32, rand io.Reader) (*Party, error) {
	if err := validateParameters(id, n, t); err != nil {
		return nil, err
	}
	return &Party{
		id: id,
		n:  n,
		t:  t,
		f:  polynomial.NewPolynomial(group, int(t)-1, nil, rand),
	}, nil
}

func validateParameters(id party.ID, n, t uint32) error {
	switch {
	case n == 0 || n > params.MaxParties:
		return fmt.Errorf("frost: invalid number of parties %d", n)
	case t == 0 || t > n:
		return fmt.Errorf("frost: invalid threshold %d for %d parties", t, n)
	case uint32(id) >= n:
		return fmt.Errorf("frost: party %s out of range [0, %d)", id, n)
	}
	return nil
}

// ID returns the party's identifier.
func (p *Party) ID() party.ID { return p.id }

// Threshold returns t, the number of parties needed to sign.
func (p *Party) Threshold() uint32 { return p.t }

// N returns the total number of parties.
func (p *Party) N() uint32 { return p.n }

// Commitment returns the commitment to this party's polynomial, with a proof of
// knowledge of its constant term.
//
// The commitment is computed once and cached, so it remains available after
// the polynomial has been erased by Shares.
func (p *Party) Commitment(rand io.Reader) (*PolyCommitment, error) {
	if p.commitment != nil {
		return p.commitment, nil
	}
	if p.f == nil {
		return nil, ErrPolynomialErased
	}
	// Every participant Pᵢ computes a proof of knowledge to the corresponding secret aᵢ₀
	// by calculating σᵢ = (Rᵢ, μᵢ), such that k ← $ ℤ_q, Rᵢ = g^k, cᵢ = H(i, Φ, g^aᵢ₀, Rᵢ), μᵢ = k + aᵢ₀ · cᵢ.
	a0 := p.f.Constant()
	poly := polynomial.NewPolynomialExponent(p.f)
	proof := zksch.NewProof(proofHash(p.id), poly.Constant(), a0, rand)
	p.commitment = &PolyCommitment{
		ID:    p.id,
		Proof: proof,
		Poly:  poly,
	}
	return p.commitment, nil
}

// Shares evaluates the polynomial at every party's point, ourselves included,
// then erases the polynomial.
//
// The result maps party l to fᵢ(l+1).
func (p *Party) Shares() (map[party.ID]curve.Scalar, error) {
	if p.f == nil {
		return nil, ErrPolynomialErased
	}
	shares := make(map[party.ID]curve.Scalar, p.n)
	for l := uint32(0); l < p.n; l++ {
		id := party.ID(l)
		shares[id] = p.f.Evaluate(id.Scalar(group))
	}
	p.f.Zeroize()
	p.f = nil
	return shares, nil
}

// ComputeSecret verifies every commitment and the share each sender gave us,
// then derives sᵢ = ∑ⱼ fⱼ(i) and the group key Y = ∑ⱼ Aⱼ₀.
//
// All senders are checked before returning, so a *DkgError names every party
// that misbehaved, not just the first one. The group key is normalized to have
// an even y coordinate, as required by BIP-340, negating sᵢ if needed.
func (p *Party) ComputeSecret(pl *pool.Pool, shares map[party.ID]curve.Scalar, commitments map[party.ID]*PolyCommitment) error {
	if len(commitments) == 0 {
		return errors.New("frost: no commitments")
	}
	senders := make([]party.ID, 0, len(commitments))
	for id := range commitments {
		senders = append(senders, id)
	}
	senders = party.NewIDSlice(senders)

	x := p.id.Scalar(group)
	errs := pl.Errors(len(senders), func(i int) error {
		from := senders[i]
		return p.verifyShare(x, from, shares[from], commitments[from])
	})
	if len(errs) > 0 {
		dkgErr := &DkgError{Errors: make(map[party.ID]error, len(errs))}
		for i, err := range errs {
			dkgErr.Errors[senders[i]] = err
		}
		return dkgErr
	}

	private := group.NewScalar()
	Y := group.NewPoint()
	for _, from := range senders {
		private.Add(shares[from])
		Y = Y.Add(commitments[from].Poly.Constant())
	}
	if Y.IsIdentity() {
		return fmt.Errorf("frost: group key is the identity: %w", ErrInvalidCommitment)
	}
	if !Y.HasEvenY() {
		private.Negate()
		Y = Y.Negate()
	}
	p.private = private
	p.public = private.ActOnBase()
	p.groupKey = Y
	return nil
}

func (p *Party) verifyShare(x curve.Scalar, from party.ID, share curve.Scalar, commitment *PolyCommitment) error {
	if commitment == nil || commitment.ID != from {
		return ErrInvalidCommitment
	}
	if commitment.Poly.Degree() != int(p.t)-1 {
		return fmt.Errorf("%w: degree %d, expected %d", ErrInvalidCommitment, commitment.Poly.Degree(), p.t-1)
	}
	if !commitment.Verify() {
		return ErrInvalidCommitment
	}
	if share == nil {
		return ErrMissingShare
	}
	// sₗᵢ•G = ∑ₖ (i+1)ᵏ•Aₗₖ
	if !share.ActOnBase().Equal(commitment.Poly.Evaluate(x)) {
		return ErrInvalidShare
	}
	return nil
}

// PrivateShare returns sᵢ, or ErrSecretNotComputed before ComputeSecret succeeded.
func (p *Party) PrivateShare() (curve.Scalar, error) {
	if p.private == nil {
		return nil, ErrSecretNotComputed
	}
	return group.NewScalar().Set(p.private), nil
}

// PublicShare returns Yᵢ = sᵢ•G, or nil before ComputeSecret succeeded.
func (p *Party) PublicShare() curve.Point {
	return p.public
}

// GroupKey returns the group public key Y, or nil before ComputeSecret succeeded.
func (p *Party) GroupKey() curve.Point {
	return p.groupKey
}

// RestoreParty recreates a party from a previously computed share.
func RestoreParty(id party.ID, n, t uint32, private curve.Scalar, groupKey curve.Point) (*Party, error) {
	if err := validateParameters(id, n, t); err != nil {
		return nil, err
	}
	if private == nil || private.IsZero() || groupKey == nil || !groupKey.HasEvenY() {
		return nil, errors.New("frost: invalid restored key material")
	}
	return &Party{
		id:       id,
		n:        n,
		t:        t,
		private:  group.NewScalar().Set(private),
		public:   private.ActOnBase(),
		groupKey: groupKey,
	}, nil
}
