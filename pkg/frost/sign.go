package frost

import (
	"encoding/binary"
	"fmt"

	"github.com/taurusgroup/frost-peg/pkg/hash"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/polynomial"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/taproot"
)

// signingContext holds the values every participant derives from the set of
// public nonces B and the message m.
type signingContext struct {
	signers party.IDSlice
	// rho[l] = ρₗ = H(m, B, l)
	rho map[party.ID]curve.Scalar
	// R = ∑ₗ Dₗ + ρₗ•Eₗ, with an even y coordinate.
	R curve.Point
	// RShares[l] = Dₗ + ρₗ•Eₗ, negated along with R when needed.
	RShares map[party.ID]curve.Point
	// negateNonces is true when R had to be negated, so every kᵢ must be too.
	negateNonces bool
	// lambda[l] = λₗ over the signer set.
	lambda map[party.ID]curve.Scalar
	c      curve.Scalar
}

// newSigningContext follows step 4 of Figure 3 in the Frost paper:
//
//	https://eprint.iacr.org/2020/852.pdf
//
// "Each Pᵢ then computes the set of binding values ρₗ = H₁(l, m, B).
// Each Pᵢ then derives the group commitment R = ∑ₗ Dₗ + ρₗ * Eₗ and
// the challenge c = H₂(R, Y, m)."
//
// It's easier to calculate H(m, B, l), that way we can simply clone the hash
// state after H(m, B), instead of rehashing them each time.
func newSigningContext(Y curve.Point, m []byte, nonces map[party.ID]*PublicNonce) (*signingContext, error) {
	ids := make([]party.ID, 0, len(nonces))
	for id, nonce := range nonces {
		if !nonce.IsValid() {
			return nil, fmt.Errorf("%w: party %s", ErrInvalidNonce, id)
		}
		ids = append(ids, id)
	}
	signers := party.NewIDSlice(ids)

	rhoPreHash := hash.New(hash.Tagged{Tag: "FROST Sign", Data: []byte("binding")})
	if err := rhoPreHash.WriteAny(hash.Tagged{Tag: "message", Data: m}, signers); err != nil {
		return nil, fmt.Errorf("frost: binding hash: %w", err)
	}
	for _, l := range signers {
		if err := rhoPreHash.WriteAny(nonces[l].D, nonces[l].E); err != nil {
			return nil, fmt.Errorf("frost: binding hash: %w", err)
		}
	}

	ctx := &signingContext{
		signers: signers,
		rho:     make(map[party.ID]curve.Scalar, len(signers)),
		RShares: make(map[party.ID]curve.Point, len(signers)),
		R:       group.NewPoint(),
	}
	for _, l := range signers {
		ctx.rho[l] = curve.FromHash(group, rhoPreHash.Fork(l).Sum())
		ctx.RShares[l] = ctx.rho[l].Act(nonces[l].E).Add(nonces[l].D)
		ctx.R = ctx.R.Add(ctx.RShares[l])
	}
	if ctx.R.IsIdentity() {
		return nil, fmt.Errorf("frost: group commitment is the identity: %w", ErrInvalidNonce)
	}

	// BIP-340 adjustment: We need R to have an even y coordinate. This means
	// conditionally negating k = ∑ᵢ (dᵢ + (eᵢ ρᵢ)), which we can accomplish
	// by negating our dᵢ, eᵢ, if necessary. This entails negating the RShares
	// as well.
	if !ctx.R.HasEvenY() {
		ctx.negateNonces = true
		ctx.R = ctx.R.Negate()
		for _, l := range signers {
			ctx.RShares[l] = ctx.RShares[l].Negate()
		}
	}

	// BIP-340 adjustment: we need to calculate our hash as specified in:
	// https://github.com/bitcoin/bips/blob/master/bip-0340.mediawiki#default-signing
	ctx.c = taproot.Challenge(ctx.R.XBytes(), Y.XBytes(), m)
	ctx.lambda = polynomial.Lagrange(group, signers)
	return ctx, nil
}

// SignatureShare is zᵢ, party i's contribution to a signature.
type SignatureShare struct {
	ID party.ID
	Z  curve.Scalar
}

// Sign computes this party's signature share on m.
//
// nonces must hold the public nonce of every nominated signer, this party
// included, and nonce must be the secret matching our own entry. The nonce is
// consumed whether or not signing succeeds.
func (p *Party) Sign(m []byte, nonces map[party.ID]*PublicNonce, nonce *Nonce) (*SignatureShare, error) {
	d, e, err := nonce.consume()
	if err != nil {
		return nil, err
	}
	if p.private == nil {
		return nil, ErrSecretNotComputed
	}
	own, ok := nonces[p.id]
	if !ok {
		return nil, ErrNotSigner
	}
	if !own.Equal(nonce.Public()) {
		return nil, fmt.Errorf("%w: nonce does not match the one we committed to", ErrInvalidNonce)
	}
	if uint32(len(nonces)) < p.t {
		return nil, fmt.Errorf("frost: %d signers is below the threshold %d", len(nonces), p.t)
	}

	ctx, err := newSigningContext(p.groupKey, m, nonces)
	if err != nil {
		return nil, err
	}
	if ctx.negateNonces {
		d.Negate()
		e.Negate()
	}

	// 5. "Each Pᵢ computes their response using their long-lived secret share sᵢ
	// by computing zᵢ = dᵢ + (eᵢ ρᵢ) + λᵢ sᵢ c, using S to determine
	// the ith lagrange coefficient λᵢ"
	z := group.NewScalar().Set(ctx.lambda[p.id]).Mul(p.private).Mul(ctx.c)
	z.Add(d)
	z.Add(e.Mul(ctx.rho[p.id]))

	// 6. "Each Pᵢ securely deletes ((dᵢ, Dᵢ), (eᵢ, Eᵢ)) from their local storage"
	d.Set(group.NewScalar())
	e.Set(group.NewScalar())

	return &SignatureShare{ID: p.id, Z: z}, nil
}

// MarshalBinary encodes the share as ID ‖ z.
func (s *SignatureShare) MarshalBinary() ([]byte, error) {
	if s.Z == nil {
		return nil, ErrInvalidSignatureShare
	}
	z, err := s.Z.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(s.ID.Bytes(), z...), nil
}

func (s *SignatureShare) UnmarshalBinary(data []byte) error {
	if len(data) != party.ByteSize+32 {
		return fmt.Errorf("frost.SignatureShare: invalid length %d", len(data))
	}
	z := group.NewScalar()
	if err := z.UnmarshalBinary(data[party.ByteSize:]); err != nil {
		return fmt.Errorf("frost.SignatureShare: %w", err)
	}
	s.ID = party.ID(binary.BigEndian.Uint32(data))
	s.Z = z
	return nil
}
