package hash

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-peg/internal/params"
	"github.com/zeebo/blake3"
)

// DigestLengthBytes is the number of bytes returned by Sum.
const DigestLengthBytes = params.HashBytes

// Domained is a value that encodes itself, and names its encoding so that
// two types with the same bytes hash differently.
type Domained interface {
	io.WriterTo
	Domain() string
}

// Tagged is raw data written under an explicit tag.
type Tagged struct {
	Tag  string
	Data []byte
}

func (t Tagged) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(t.Data)
	return int64(n), err
}

func (t Tagged) Domain() string { return t.Tag }

// Hash is the hash function we use for transcripts, binding values and proofs.
//
// It wraps BLAKE3 and writes every piece of data with its domain and length,
// so that distinct sequences of inputs cannot collide.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash struct where the internal hash function is initialized with "FROST-PEG".
func New(initialData ...Domained) *Hash {
	hash := &Hash{h: blake3.New()}
	_, _ = hash.h.WriteString("FROST-PEG")
	for _, data := range initialData {
		_ = hash.WriteAny(data)
	}
	return hash
}

// Digest returns a reader for the current string of the hash.
//
// The output can be read for as long as needed.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns a slice of length DigestLengthBytes resulting from the current hash state.
// If a different length is required, use io.ReadFull(hash.Digest(), out) instead.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny writes each value to the hash state. It accepts []byte, string,
// Domained and encoding.BinaryMarshaler values.
func (hash *Hash) WriteAny(data ...interface{}) error {
	for _, d := range data {
		var item Domained
		switch t := d.(type) {
		case []byte:
			item = Tagged{"[]byte", t}
		case string:
			item = Tagged{"string", []byte(t)}
		case Domained:
			item = t
		case encoding.BinaryMarshaler:
			raw, err := t.MarshalBinary()
			if err != nil {
				return fmt.Errorf("hash.WriteAny: %w", err)
			}
			item = Tagged{"BinaryMarshaler", raw}
		default:
			return fmt.Errorf("hash.WriteAny: unsupported type %T", d)
		}
		if err := hash.write(item); err != nil {
			return err
		}
	}
	return nil
}

// write appends (domain ‖ len(data) ‖ data).
func (hash *Hash) write(data Domained) error {
	var buf writeBuffer
	if _, err := data.WriteTo(&buf); err != nil {
		return fmt.Errorf("hash.WriteAny: %s: %w", data.Domain(), err)
	}
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(buf)))

	_, _ = hash.h.WriteString("(")
	_, _ = hash.h.WriteString(data.Domain())
	_, _ = hash.h.Write(length[:])
	_, _ = hash.h.Write(buf)
	_, _ = hash.h.WriteString(")")
	return nil
}

// Clone returns a copy of the Hash in its current state.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}

// Fork clones this hash, and then writes some data.
func (hash *Hash) Fork(data ...interface{}) *Hash {
	newHash := hash.Clone()
	_ = newHash.WriteAny(data...)
	return newHash
}

type writeBuffer []byte

func (b *writeBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
