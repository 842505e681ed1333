package commitreveal

import (
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

// PegInCommit returns the address a peg-in depositor pays to.
func (b *Builder) PegInCommit(data *PegInData, in *RevealInputs) (*btcutil.AddressTaproot, error) {
	payload, err := data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return b.Commit(payload, in.Revealer, in.Reclaimer)
}

// PegOutRequestCommit returns the address a peg-out requester pays to.
func (b *Builder) PegOutRequestCommit(data *PegOutData, in *RevealInputs) (*btcutil.AddressTaproot, error) {
	payload, err := data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return b.Commit(payload, in.Revealer, in.Reclaimer)
}

// PegInReveal reveals a peg-in, paying commitAmount - RevealFee to the peg wallet.
func (b *Builder) PegInReveal(data *PegInData, in *RevealInputs, commitAmount uint64, pegWallet btcutil.Address) (*wire.MsgTx, error) {
	value, err := subtract(commitAmount, data.RevealFee, 0)
	if err != nil {
		return nil, err
	}
	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegInReveal", Err: err}
	}
	payload, err := data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	tx, err := b.Reveal(payload, in)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(value, pegScript))
	return tx, nil
}

// PegOutRequestReveal reveals a peg-out request. The recipient receives
// commitAmount - RevealFee - fulfillmentFee, and the peg wallet receives
// fulfillmentFee to pay for the fulfillment transaction.
func (b *Builder) PegOutRequestReveal(data *PegOutData, in *RevealInputs, fulfillmentFee, commitAmount uint64, pegWallet, recipient btcutil.Address) (*wire.MsgTx, error) {
	value, err := subtract(commitAmount, data.RevealFee, fulfillmentFee)
	if err != nil {
		return nil, err
	}
	if fulfillmentFee > math.MaxInt64 {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegOutRequestReveal", Err: fmt.Errorf("fulfillment fee %d out of range", fulfillmentFee)}
	}
	recipientScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegOutRequestReveal", Err: err}
	}
	pegScript, err := txscript.PayToAddrScript(pegWallet)
	if err != nil {
		return nil, &protocol.ValidationError{Op: "commitreveal.PegOutRequestReveal", Err: err}
	}
	payload, err := data.MarshalBinary()
	if err != nil {
		return nil, err
	}
	tx, err := b.Reveal(payload, in)
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(value, recipientScript))
	tx.AddTxOut(wire.NewTxOut(int64(fulfillmentFee), pegScript))
	return tx, nil
}

// subtract returns amount - a - b, rejecting any underflow and any value
// that does not fit an output.
func subtract(amount, a, b uint64) (int64, error) {
	if a > amount || b > amount-a {
		return 0, &protocol.ValidationError{Op: "commitreveal", Err: fmt.Errorf("%w: %d - %d - %d", ErrFeeUnderflow, amount, a, b)}
	}
	value := amount - a - b
	if value > math.MaxInt64 {
		return 0, &protocol.ValidationError{Op: "commitreveal", Err: fmt.Errorf("amount %d out of range", value)}
	}
	return int64(value), nil
}

// RevealSigHash returns the BIP-341 script path sighash of input 0 of tx,
// which spends a commit output of the given amount through the reveal leaf.
// This is the message the revealer, typically the FROST group key, signs.
func (b *Builder) RevealSigHash(tx *wire.MsgTx, info *SpendInfo, commitAmount int64) ([]byte, error) {
	if len(tx.TxIn) == 0 {
		return nil, &protocol.ValidationError{Op: "commitreveal.RevealSigHash", Err: errors.New("transaction has no inputs")}
	}
	pkScript, err := info.PkScript()
	if err != nil {
		return nil, fmt.Errorf("commitreveal.RevealSigHash: %w", err)
	}
	fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, commitAmount)
	hashes := txscript.NewTxSigHashes(tx, fetcher)
	return txscript.CalcTapscriptSignaturehash(hashes, txscript.SigHashDefault, tx, 0, fetcher, info.RevealLeaf)
}

// AttachSignature puts the 64 byte BIP-340 signature in front of the reveal
// witness, completing input 0.
func AttachSignature(tx *wire.MsgTx, sig []byte) error {
	if len(tx.TxIn) == 0 || len(tx.TxIn[0].Witness) != 2 {
		return &protocol.ValidationError{Op: "commitreveal.AttachSignature", Err: errors.New("not an unsigned reveal transaction")}
	}
	if len(sig) != 64 {
		return &protocol.ValidationError{Op: "commitreveal.AttachSignature", Err: fmt.Errorf("signature is %d bytes", len(sig))}
	}
	witness := tx.TxIn[0].Witness
	tx.TxIn[0].Witness = wire.TxWitness{sig, witness[0], witness[1]}
	return nil
}
