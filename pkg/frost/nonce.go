package frost

import (
	"fmt"
	"io"
	"sync"

	"github.com/taurusgroup/frost-peg/internal/params"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/sample"
)

// Nonce is the secret pair (dᵢ, eᵢ) a party commits to before signing.
//
// A Nonce can be used for a single signature share. The secrets are erased on
// first use, and later uses fail with ErrNonceReused.
type Nonce struct {
	mtx    sync.Mutex
	d, e   curve.Scalar
	public *PublicNonce
}

// PublicNonce is the commitment (Dᵢ, Eᵢ) = (dᵢ•G, eᵢ•G).
type PublicNonce struct {
	D curve.Point
	E curve.Point
}

// GenNonce samples a new nonce pair for this party.
func (p *Party) GenNonce(rand io.Reader) *Nonce {
	d, D := sample.ScalarPointPair(rand, group)
	e, E := sample.ScalarPointPair(rand, group)
	return &Nonce{
		d:      d,
		e:      e,
		public: &PublicNonce{D: D, E: E},
	}
}

// Public returns the commitment to this nonce.
func (n *Nonce) Public() *PublicNonce {
	return n.public
}

// Used returns true once the nonce has been consumed.
func (n *Nonce) Used() bool {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return n.d == nil
}

// consume returns copies of (d, e) and erases the originals.
func (n *Nonce) consume() (curve.Scalar, curve.Scalar, error) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.d == nil || n.e == nil {
		return nil, nil, ErrNonceReused
	}
	d := group.NewScalar().Set(n.d)
	e := group.NewScalar().Set(n.e)
	n.d.Set(group.NewScalar())
	n.e.Set(group.NewScalar())
	n.d, n.e = nil, nil
	return d, e, nil
}

// IsValid returns true if neither commitment is the identity.
func (n *PublicNonce) IsValid() bool {
	return n != nil && n.D != nil && n.E != nil && !n.D.IsIdentity() && !n.E.IsIdentity()
}

// Equal returns true if both nonces commit to the same values.
func (n *PublicNonce) Equal(other *PublicNonce) bool {
	return n.IsValid() && other.IsValid() && n.D.Equal(other.D) && n.E.Equal(other.E)
}

// MarshalBinary encodes the nonce as D ‖ E.
func (n *PublicNonce) MarshalBinary() ([]byte, error) {
	if !n.IsValid() {
		return nil, ErrInvalidNonce
	}
	d, err := n.D.MarshalBinary()
	if err != nil {
		return nil, err
	}
	e, err := n.E.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(d, e...), nil
}

func (n *PublicNonce) UnmarshalBinary(data []byte) error {
	if len(data) != 2*params.BytesPoint {
		return fmt.Errorf("frost.PublicNonce: invalid length %d", len(data))
	}
	D, E := group.NewPoint(), group.NewPoint()
	if err := D.UnmarshalBinary(data[:params.BytesPoint]); err != nil {
		return fmt.Errorf("frost.PublicNonce: %w", err)
	}
	if err := E.UnmarshalBinary(data[params.BytesPoint:]); err != nil {
		return fmt.Errorf("frost.PublicNonce: %w", err)
	}
	n.D, n.E = D, E
	return nil
}
