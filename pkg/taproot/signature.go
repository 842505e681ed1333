// Package taproot holds the BIP-340 primitives the FROST signer needs:
// x-only public keys, the tagged challenge hash, and verification.
//
// See: https://github.com/bitcoin/bips/blob/master/bip-0340.mediawiki
package taproot

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
)

const (
	// PublicKeyLength is the size of an x-only public key.
	PublicKeyLength = 32
	// SignatureLen is the size of R.x ‖ z.
	SignatureLen = 64
)

// TaggedHash returns SHA-256(SHA-256(tag) ‖ SHA-256(tag) ‖ data...).
func TaggedHash(tag string, data ...[]byte) []byte {
	tagSum := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagSum[:])
	h.Write(tagSum[:])
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Challenge computes e = H_BIP0340/challenge(R.x ‖ P.x ‖ m) mod n.
func Challenge(RBytes, PBytes, m []byte) curve.Scalar {
	e := TaggedHash("BIP0340/challenge", RBytes, PBytes, m)
	return curve.Secp256k1{}.NewScalar().SetNat(new(saferith.Nat).SetBytes(e))
}

// PublicKey is the x coordinate of a point with even y.
type PublicKey []byte

// Signature is a 64 byte BIP-340 signature.
type Signature []byte

// PublicKeyFromPoint returns the x-only encoding of P.
// P and -P map to the same key.
func PublicKeyFromPoint(P curve.Point) PublicKey {
	return PublicKey(P.XBytes())
}

// Point lifts the key to the point with even y.
func (pk PublicKey) Point() (curve.Point, error) {
	return curve.Secp256k1{}.LiftX(pk)
}

// BTCEC parses the key into the representation btcd uses in scripts.
func (pk PublicKey) BTCEC() (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(pk)
}

// Verify checks sig against the 32 byte digest m.
//
//	z⋅G - e⋅P = R, with R.y even
func (pk PublicKey) Verify(sig Signature, m []byte) bool {
	if len(sig) != SignatureLen || len(pk) != PublicKeyLength {
		return false
	}
	P, err := pk.Point()
	if err != nil {
		return false
	}
	z := new(curve.Secp256k1Scalar)
	if err = z.UnmarshalBinary(sig[32:]); err != nil {
		return false
	}
	e := Challenge(sig[:32], pk, m)
	R := z.ActOnBase().Sub(e.Act(P))
	if R.IsIdentity() || !R.HasEvenY() {
		return false
	}
	return bytes.Equal(R.XBytes(), sig[:32])
}
