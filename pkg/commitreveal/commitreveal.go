// Package commitreveal builds the commit/reveal transactions of a peg-in or
// peg-out request.
//
// A depositor first pays to a commit address: a Taproot output whose script
// tree has two leaves at depth 1,
//
//	reveal:  <payload> OP_DROP <revealer> OP_CHECKSIG
//	reclaim: <reclaimer> OP_CHECKSIG
//
// The revealer then spends it through the reveal leaf, which publishes the
// payload in the witness, and marks the transaction with an OP_RETURN output
// holding magic ‖ 'w'. The key path is disabled by using an internal key with
// no known discrete logarithm.
package commitreveal

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

// MaxPayloadSize is the largest element a script may push.
const MaxPayloadSize = txscript.MaxScriptElementSize

// revealMarker follows the magic bytes in the OP_RETURN output.
const revealMarker = 'w'

// numsKey is the x coordinate of the point H suggested by BIP-341 for
// disabling the key path: lift_x(sha256(G)), whose discrete log is unknown.
const numsKey = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

var (
	ErrPayloadTooLarge = errors.New("commitreveal: payload exceeds the maximum push size")
	ErrFeeUnderflow    = errors.New("commitreveal: fees exceed the committed amount")
	// ErrNoControlBlock means the reveal leaf is missing from its own tree.
	ErrNoControlBlock = errors.New("commitreveal: no control block for the reveal leaf")
)

// Builder derives commit addresses and reveal transactions for one network.
// A Builder is immutable and safe for concurrent use.
type Builder struct {
	params      *chaincfg.Params
	internalKey *btcec.PublicKey
}

// NewBuilder returns a Builder for params, using the BIP-341 NUMS internal key.
func NewBuilder(params *chaincfg.Params) (*Builder, error) {
	raw, err := hex.DecodeString(numsKey)
	if err != nil {
		return nil, fmt.Errorf("commitreveal: internal key: %w", err)
	}
	key, err := schnorr.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("commitreveal: internal key: %w", err)
	}
	return NewBuilderWithKey(params, key)
}

// NewBuilderWithKey returns a Builder using a custom internal key.
func NewBuilderWithKey(params *chaincfg.Params, internalKey *btcec.PublicKey) (*Builder, error) {
	if params == nil || internalKey == nil {
		return nil, &protocol.ValidationError{Op: "commitreveal.NewBuilder", Err: errors.New("missing network or internal key")}
	}
	return &Builder{params: params, internalKey: internalKey}, nil
}

// Params returns the network the builder derives addresses on.
func (b *Builder) Params() *chaincfg.Params { return b.params }

// InternalKey returns the Taproot internal key.
func (b *Builder) InternalKey() *btcec.PublicKey { return b.internalKey }

// SpendInfo is the script tree of a commit output.
type SpendInfo struct {
	InternalKey *btcec.PublicKey
	// OutputKey is the internal key tweaked by the tree root.
	OutputKey    *btcec.PublicKey
	RevealLeaf   txscript.TapLeaf
	ReclaimLeaf  txscript.TapLeaf
	ControlBlock []byte
	MerkleRoot   []byte
}

// PkScript returns the segwit v1 output script paying to the commit.
func (s *SpendInfo) PkScript() ([]byte, error) {
	return txscript.PayToTaprootScript(s.OutputKey)
}

func revealScript(payload []byte, revealer *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(payload).
		AddOp(txscript.OP_DROP).
		AddData(schnorr.SerializePubKey(revealer)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

func reclaimScript(reclaimer *btcec.PublicKey) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddData(schnorr.SerializePubKey(reclaimer)).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// SpendInfo builds the script tree committing to payload.
func (b *Builder) SpendInfo(payload []byte, revealer, reclaimer *btcec.PublicKey) (*SpendInfo, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &protocol.ValidationError{Op: "commitreveal.SpendInfo", Err: fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))}
	}
	if revealer == nil || reclaimer == nil {
		return nil, &protocol.ValidationError{Op: "commitreveal.SpendInfo", Err: errors.New("missing revealer or reclaim key")}
	}
	reveal, err := revealScript(payload, revealer)
	if err != nil {
		return nil, fmt.Errorf("commitreveal: reveal script: %w", err)
	}
	reclaim, err := reclaimScript(reclaimer)
	if err != nil {
		return nil, fmt.Errorf("commitreveal: reclaim script: %w", err)
	}

	info := &SpendInfo{
		InternalKey: b.internalKey,
		RevealLeaf:  txscript.NewBaseTapLeaf(reveal),
		ReclaimLeaf: txscript.NewBaseTapLeaf(reclaim),
	}
	tree := txscript.AssembleTaprootScriptTree(info.RevealLeaf, info.ReclaimLeaf)
	root := tree.RootNode.TapHash()
	info.MerkleRoot = root[:]
	info.OutputKey = txscript.ComputeTaprootOutputKey(b.internalKey, info.MerkleRoot)

	i, ok := tree.LeafProofIndex[info.RevealLeaf.TapHash()]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNoControlBlock, protocol.ErrInvariant)
	}
	proof := tree.LeafMerkleProofs[i]
	controlBlock := proof.ToControlBlock(b.internalKey)
	if info.ControlBlock, err = controlBlock.ToBytes(); err != nil {
		return nil, fmt.Errorf("%w: %v: %w", ErrNoControlBlock, err, protocol.ErrInvariant)
	}
	return info, nil
}

// Commit returns the address the depositor pays to.
func (b *Builder) Commit(payload []byte, revealer, reclaimer *btcec.PublicKey) (*btcutil.AddressTaproot, error) {
	info, err := b.SpendInfo(payload, revealer, reclaimer)
	if err != nil {
		return nil, err
	}
	return btcutil.NewAddressTaproot(schnorr.SerializePubKey(info.OutputKey), b.params)
}

// RevealInputs identifies the commit output being spent.
type RevealInputs struct {
	CommitOutput wire.OutPoint
	// Magic identifies the consuming chain.
	Magic     [2]byte
	Revealer  *btcec.PublicKey
	Reclaimer *btcec.PublicKey
}

// Reveal returns an unsigned transaction spending the commit output through
// the reveal leaf. Its witness is [script, control block]; the revealer's
// signature goes in front with AttachSignature.
//
// Output 0 is the OP_RETURN marker; callers append the value outputs.
func (b *Builder) Reveal(payload []byte, in *RevealInputs) (*wire.MsgTx, error) {
	info, err := b.SpendInfo(payload, in.Revealer, in.Reclaimer)
	if err != nil {
		return nil, err
	}
	marker, err := txscript.NullDataScript([]byte{in.Magic[0], in.Magic[1], revealMarker})
	if err != nil {
		return nil, fmt.Errorf("commitreveal: op_return: %w", err)
	}

	tx := wire.NewMsgTx(2)
	outpoint := in.CommitOutput
	tx.AddTxIn(wire.NewTxIn(&outpoint, nil, wire.TxWitness{info.RevealLeaf.Script, info.ControlBlock}))
	tx.AddTxOut(wire.NewTxOut(0, marker))
	return tx, nil
}
