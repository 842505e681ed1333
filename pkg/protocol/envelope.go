package protocol

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Envelope is the unit exchanged over the network.
//
// Payload holds the canonical CBOR encoding of the message, and Signature is a
// DER encoded ECDSA signature over Digest by the sender's network key.
type Envelope struct {
	Kind      Kind   `cbor:"1,keyasint"`
	Payload   []byte `cbor:"2,keyasint"`
	Signature []byte `cbor:"3,keyasint"`
}

// Seal signs kind ‖ payload with key.
func Seal(kind Kind, payload []byte, key *secp256k1.PrivateKey) (*Envelope, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	if key == nil {
		return nil, &ValidationError{Op: "protocol.Seal", Err: errors.New("missing network key")}
	}
	env := &Envelope{Kind: kind, Payload: payload}
	env.Signature = ecdsa.Sign(key, env.Digest()).Serialize()
	return env, nil
}

// Digest returns sha256(kind ‖ payload), the value covered by the signature.
func (e *Envelope) Digest() []byte {
	h := sha256.New()
	h.Write([]byte{byte(e.Kind)})
	h.Write(e.Payload)
	return h.Sum(nil)
}

// ID identifies the envelope, signature included.
func (e *Envelope) ID() [32]byte {
	h := sha256.New()
	h.Write(e.Digest())
	h.Write(e.Signature)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyWith checks the envelope signature against key.
func (e *Envelope) VerifyWith(key *secp256k1.PublicKey) error {
	if key == nil {
		return ErrUnknownSender
	}
	sig, err := ecdsa.ParseDERSignature(e.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !sig.Verify(e.Digest(), key) {
		return ErrBadSignature
	}
	return nil
}

func (e *Envelope) String() string {
	return fmt.Sprintf("envelope{%s, %d bytes}", e.Kind, len(e.Payload))
}
