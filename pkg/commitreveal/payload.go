package commitreveal

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"golang.org/x/crypto/ripemd160"
)

const (
	PegInTag  = '<'
	PegOutTag = '>'

	// PayloadSize is the length of both payloads.
	PayloadSize = 86
	// feeOffset is where the big endian reveal fee starts.
	feeOffset = 78
	// contractOffset is where the contract name starts in a peg-in payload.
	contractOffset = 1 + 1 + 20
	// MaxContractNameSize is the room left for the contract name.
	MaxContractNameSize = feeOffset - contractOffset

	recoverySignatureSize = 64
	memoSize              = 4
)

var (
	ErrContractNameTooLong = errors.New("commitreveal: contract name too long")
	ErrInvalidRecoveryID   = errors.New("commitreveal: invalid recovery id")
	ErrInvalidPayload      = errors.New("commitreveal: invalid payload")
)

// StacksAddress is a Stacks address: a version byte and a hash160.
type StacksAddress struct {
	Version byte
	Hash    [20]byte
}

// Hash160 returns ripemd160(sha256(data)).
func Hash160(data []byte) [20]byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// NewStacksAddress returns the single-signature address of a compressed public key.
func NewStacksAddress(version byte, key *secp256k1.PublicKey) StacksAddress {
	return StacksAddress{Version: version, Hash: Hash160(key.SerializeCompressed())}
}

// PegInData is the payload of a peg-in commit.
//
//	'<' ‖ version ‖ hash160 ‖ contract name, zero padded to byte 78 ‖ fee (u64 BE)
type PegInData struct {
	Address StacksAddress
	// ContractName is empty for a standard principal.
	ContractName string
	RevealFee    uint64
}

// MarshalBinary returns the 86 byte payload.
func (d *PegInData) MarshalBinary() ([]byte, error) {
	if len(d.ContractName) > MaxContractNameSize {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegInData", Err: fmt.Errorf("%w: %d bytes, at most %d", ErrContractNameTooLong, len(d.ContractName), MaxContractNameSize)}
	}
	if bytes.IndexByte([]byte(d.ContractName), 0) >= 0 {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegInData", Err: fmt.Errorf("%w: contract name contains a zero byte", ErrInvalidPayload)}
	}
	out := make([]byte, PayloadSize)
	out[0] = PegInTag
	out[1] = d.Address.Version
	copy(out[2:contractOffset], d.Address.Hash[:])
	copy(out[contractOffset:feeOffset], d.ContractName)
	binary.BigEndian.PutUint64(out[feeOffset:], d.RevealFee)
	return out, nil
}

func (d *PegInData) UnmarshalBinary(data []byte) error {
	if len(data) != PayloadSize || data[0] != PegInTag {
		return &protocol.ValidationError{Op: "commitreveal.PegInData", Err: fmt.Errorf("%w: not a peg-in payload", ErrInvalidPayload)}
	}
	name := bytes.TrimRight(data[contractOffset:feeOffset], "\x00")
	if bytes.IndexByte(name, 0) >= 0 {
		return &protocol.ValidationError{Op: "commitreveal.PegInData", Err: fmt.Errorf("%w: contract name contains a zero byte", ErrInvalidPayload)}
	}
	*d = PegInData{ContractName: string(name)}
	d.Address.Version = data[1]
	copy(d.Address.Hash[:], data[2:contractOffset])
	d.RevealFee = binary.BigEndian.Uint64(data[feeOffset:])
	return nil
}

// PegOutData is the payload of a peg-out request commit.
//
//	'>' ‖ amount (u64 BE) ‖ recovery id ‖ r ‖ s ‖ memo (4 zero bytes) ‖ fee (u64 BE)
//
// The signature proves the request comes from the owner of the pegged funds.
type PegOutData struct {
	Amount     uint64
	RecoveryID byte
	Signature  [recoverySignatureSize]byte
	RevealFee  uint64
}

// PegOutDigest is the message signed by a peg-out request: sha256 of the
// big endian amount.
func PegOutDigest(amount uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	sum := sha256.Sum256(buf[:])
	return sum[:]
}

// SignPegOut creates a peg-out payload signed by key.
func SignPegOut(key *secp256k1.PrivateKey, amount, revealFee uint64) *PegOutData {
	compact := ecdsa.SignCompact(key, PegOutDigest(amount), true)
	d := &PegOutData{
		Amount:     amount,
		RecoveryID: (compact[0] - 27) & 3,
		RevealFee:  revealFee,
	}
	copy(d.Signature[:], compact[1:])
	return d
}

// Signer recovers the public key that signed the request.
func (d *PegOutData) Signer() (*secp256k1.PublicKey, error) {
	if d.RecoveryID > 3 {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegOutData", Err: fmt.Errorf("%w: %d", ErrInvalidRecoveryID, d.RecoveryID)}
	}
	compact := make([]byte, 1+recoverySignatureSize)
	compact[0] = 27 + 4 + d.RecoveryID
	copy(compact[1:], d.Signature[:])
	key, _, err := ecdsa.RecoverCompact(compact, PegOutDigest(d.Amount))
	if err != nil {
		return nil, &protocol.CryptoError{Op: "commitreveal.PegOutData", Err: err}
	}
	return key, nil
}

// MarshalBinary returns the 86 byte payload.
func (d *PegOutData) MarshalBinary() ([]byte, error) {
	if d.RecoveryID > 3 {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegOutData", Err: fmt.Errorf("%w: %d", ErrInvalidRecoveryID, d.RecoveryID)}
	}
	out := make([]byte, 0, PayloadSize)
	out = append(out, PegOutTag)
	out = binary.BigEndian.AppendUint64(out, d.Amount)
	out = append(out, d.RecoveryID)
	out = append(out, d.Signature[:]...)
	out = append(out, make([]byte, memoSize)...)
	out = binary.BigEndian.AppendUint64(out, d.RevealFee)
	return out, nil
}

func (d *PegOutData) UnmarshalBinary(data []byte) error {
	if len(data) != PayloadSize || data[0] != PegOutTag {
		return &protocol.ValidationError{Op: "commitreveal.PegOutData", Err: fmt.Errorf("%w: not a peg-out payload", ErrInvalidPayload)}
	}
	if data[9] > 3 {
		return &protocol.ValidationError{Op: "commitreveal.PegOutData", Err: fmt.Errorf("%w: %d", ErrInvalidRecoveryID, data[9])}
	}
	d.Amount = binary.BigEndian.Uint64(data[1:9])
	d.RecoveryID = data[9]
	copy(d.Signature[:], data[10:10+recoverySignatureSize])
	d.RevealFee = binary.BigEndian.Uint64(data[feeOffset:])
	return nil
}
