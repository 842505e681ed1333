package frost

import (
	"fmt"

	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/taproot"
)

// Signature represents the result of a Schnorr signature.
//
// This signature claims to satisfy:
//
//	z * G = R + H(R, Y, m) * Y
//
// for a public key Y, where H is the BIP-340 challenge hash, and both R and Y
// have an even y coordinate.
type Signature struct {
	// R is the commitment point.
	R curve.Point
	// Z is the response scalar.
	Z curve.Scalar
}

// Taproot returns the 64 byte BIP-340 encoding R.x ‖ z.
func (sig *Signature) Taproot() taproot.Signature {
	z, _ := sig.Z.MarshalBinary()
	out := make([]byte, 0, taproot.SignatureLen)
	out = append(out, sig.R.XBytes()...)
	return append(out, z...)
}

// Verify checks if a signature equation actually holds.
//
// Note that m is the hash of a message, and not the message itself.
func (sig *Signature) Verify(public curve.Point, m []byte) bool {
	if sig == nil || sig.R == nil || sig.Z == nil || public == nil {
		return false
	}
	return taproot.PublicKeyFromPoint(public).Verify(sig.Taproot(), m)
}

// ParseSignature decodes a 64 byte BIP-340 signature.
func ParseSignature(data []byte) (*Signature, error) {
	if len(data) != taproot.SignatureLen {
		return nil, fmt.Errorf("frost: invalid signature length %d", len(data))
	}
	R, err := group.LiftX(data[:32])
	if err != nil {
		return nil, fmt.Errorf("frost: invalid signature: %w", err)
	}
	z := group.NewScalar()
	if err := z.UnmarshalBinary(data[32:]); err != nil {
		return nil, fmt.Errorf("frost: invalid signature: %w", err)
	}
	return &Signature{R: R, Z: z}, nil
}
