package zksch

import (
	"errors"
	"io"

	"github.com/taurusgroup/frost-peg/internal/params"
	"github.com/taurusgroup/frost-peg/pkg/hash"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/sample"
)

// Randomness = a ← ℤₚ.
type Randomness struct {
	a          curve.Scalar
	commitment Commitment
}

// Commitment = randomness•G, where.
type Commitment struct {
	C curve.Point
}

// Response = randomness + H(..., commitment, public)•secret (mod p).
type Response struct {
	group curve.Curve
	Z     curve.Scalar
}

// Proof is a non-interactive proof of knowledge of x such that X = x•G.
type Proof struct {
	C Commitment
	Z Response
}

// NewProof generates a Schnorr proof of knowledge of exponent for public, using the Fiat-Shamir transform.
//
// The hash must already contain the context the proof is bound to, such as the prover's ID.
func NewProof(hash *hash.Hash, public curve.Point, private curve.Scalar, rand io.Reader) *Proof {
	group := private.Curve()

	a := NewRandomness(rand, group)
	z := a.Prove(hash, public, private)
	return &Proof{
		C: *a.Commitment(),
		Z: *z,
	}
}

// NewRandomness creates a new a ∈ ℤₚ and the corresponding commitment C = a•G.
func NewRandomness(rand io.Reader, group curve.Curve) *Randomness {
	a, C := sample.ScalarPointPair(rand, group)
	return &Randomness{
		a:          a,
		commitment: Commitment{C: C},
	}
}

func challenge(hash *hash.Hash, group curve.Curve, commitment *Commitment, public curve.Point) (e curve.Scalar, err error) {
	err = hash.WriteAny(commitment.C, public)
	e = curve.FromHash(group, hash.Sum())
	return
}

// Prove creates a Response = Randomness + H(..., Commitment, public)•secret (mod p).
func (r *Randomness) Prove(hash *hash.Hash, public curve.Point, secret curve.Scalar) *Response {
	if public.IsIdentity() || secret.IsZero() {
		return nil
	}
	group := secret.Curve()

	e, err := challenge(hash, group, &r.commitment, public)
	if err != nil {
		return nil
	}
	es := e.Mul(secret)
	z := es.Add(r.a)
	return &Response{group: group, Z: z}
}

// Commitment returns the commitment C = a•G for the randomness a.
func (r *Randomness) Commitment() *Commitment {
	return &r.commitment
}

// Verify checks that Response•G = Commitment + H(..., Commitment, public)•Public.
func (z *Response) Verify(hash *hash.Hash, public curve.Point, commitment *Commitment) bool {
	if z == nil || !z.IsValid() || public.IsIdentity() {
		return false
	}

	e, err := challenge(hash, z.group, commitment, public)
	if err != nil {
		return false
	}

	lhs := z.Z.ActOnBase()
	rhs := e.Act(public).Add(commitment.C)

	return lhs.Equal(rhs)
}

// Verify checks that Proof.Response•G = Proof.Commitment + H(..., Proof.Commitment, Public)•Public.
func (p *Proof) Verify(hash *hash.Hash, public curve.Point) bool {
	if !p.IsValid() {
		return false
	}
	return p.Z.Verify(hash, public, &p.C)
}

// IsValid returns true if the proof has no missing or trivial elements.
func (p *Proof) IsValid() bool {
	if p == nil || p.C.C == nil || p.C.C.IsIdentity() {
		return false
	}
	return p.Z.IsValid()
}

// IsValid returns true if the response is non-zero.
func (z *Response) IsValid() bool {
	return z != nil && z.Z != nil && !z.Z.IsZero()
}

// EmptyProof returns a Proof ready to be unmarshalled into.
func EmptyProof(group curve.Curve) *Proof {
	return &Proof{
		C: Commitment{C: group.NewPoint()},
		Z: Response{group: group, Z: group.NewScalar()},
	}
}

// MarshalBinary encodes the proof as C ‖ Z.
func (p *Proof) MarshalBinary() ([]byte, error) {
	if !p.IsValid() {
		return nil, errors.New("zksch: marshal invalid proof")
	}
	c, err := p.C.C.MarshalBinary()
	if err != nil {
		return nil, err
	}
	z, err := p.Z.Z.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(c, z...), nil
}

// UnmarshalBinary decodes a proof produced by MarshalBinary.
// The proof must have been created with EmptyProof.
func (p *Proof) UnmarshalBinary(data []byte) error {
	if len(data) != params.BytesPoint+params.BytesScalar {
		return errors.New("zksch: invalid proof length")
	}
	if err := p.C.C.UnmarshalBinary(data[:params.BytesPoint]); err != nil {
		return err
	}
	return p.Z.Z.UnmarshalBinary(data[params.BytesPoint:])
}
