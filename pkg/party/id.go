package party

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
)

// ByteSize is the number of bytes required to store an ID.
const ByteSize = 4

// ID represents the identifier of a key-share holder ("party") within a DKG.
//
// IDs are numbered from 0. The evaluation point of party i is i+1, since the
// polynomial evaluated at 0 is the group secret.
type ID uint32

// SignerID identifies a signer process, which may hold several parties.
type SignerID uint32

// Scalar converts this ID into the scalar i+1 on which party polynomials are evaluated.
func (id ID) Scalar(group curve.Curve) curve.Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetUint64(uint64(id) + 1))
}

// Bytes returns a []byte slice of length party.ByteSize.
func (id ID) Bytes() []byte {
	bytes := make([]byte, ByteSize)
	binary.BigEndian.PutUint32(bytes, uint32(id))
	return bytes
}

// WriteTo implements io.WriterTo.
func (id ID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id.Bytes())
	return int64(n), err
}

// Domain implements hash.Domained.
func (ID) Domain() string {
	return "ID"
}

// String returns a base 10 representation of ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// String returns a base 10 representation of SignerID.
func (id SignerID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
