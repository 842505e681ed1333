package curve

import (
	"encoding"

	"github.com/cronokirby/saferith"
)

// Curve represents the prime order group used by the threshold protocols.
//
// Only secp256k1 is implemented, since both the Bitcoin script layer and the
// BIP-340 signatures produced by FROST live on that curve.
type Curve interface {
	// NewPoint returns the identity element.
	NewPoint() Point
	// NewBasePoint returns the generator G.
	NewBasePoint() Point
	// NewScalar returns the zero scalar.
	NewScalar() Scalar
	// LiftX returns the point with the given 32 byte x coordinate and an even y coordinate.
	LiftX([]byte) (Point, error)
	// Name returns the name of this curve.
	Name() string
	// ScalarBits returns the number of significant bits in a scalar.
	ScalarBits() int
	// SafeScalarBytes returns the number of random bytes needed to sample a scalar
	// without noticeable bias.
	SafeScalarBytes() int
	// Order returns the order of the group.
	Order() *saferith.Modulus
}

// Scalar represents an element of ℤ/nℤ, where n is the order of the curve.
//
// Methods mutate the receiver and return it, so that calls can be chained.
type Scalar interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	// Add sets s = s + that, returning s.
	Add(Scalar) Scalar
	// Sub sets s = s - that, returning s.
	Sub(Scalar) Scalar
	// Mul sets s = s * that, returning s.
	Mul(Scalar) Scalar
	// Invert sets s = 1/s, returning s.
	Invert() Scalar
	// Negate sets s = -s, returning s.
	Negate() Scalar
	// Equal checks if s == that.
	Equal(Scalar) bool
	// IsZero checks if s == 0.
	IsZero() bool
	// Set sets s = that, returning s.
	Set(Scalar) Scalar
	// SetNat sets s = x mod n, returning s.
	SetNat(*saferith.Nat) Scalar
	// Act computes s•P, returning a new point.
	Act(Point) Point
	// ActOnBase computes s•G, returning a new point.
	ActOnBase() Point
}

// Point represents an element of the curve.
//
// Unlike Scalar, arithmetic on points never modifies the receiver.
type Point interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Curve() Curve
	Add(Point) Point
	Sub(Point) Point
	Negate() Point
	Set(Point) Point
	Equal(Point) bool
	IsIdentity() bool
	// XScalar returns the x coordinate reduced modulo the group order.
	XScalar() Scalar
	// XBytes returns the 32 byte big-endian x coordinate.
	XBytes() []byte
	// HasEvenY returns true if the affine y coordinate is even.
	HasEvenY() bool
}

// FromHash converts a hash value to a Scalar.
//
// There is some disagreement about how this should be done.
// [NSA] suggests that this is done in the obvious
// manner, but [SECG] truncates the hash to the bit-length of the curve order
// first. We follow [SECG] because that's what OpenSSL does. Additionally,
// OpenSSL right shifts excess bits from the number if the hash is too large
// and we mirror that too.
//
// Taken from crypto/ecdsa.
func FromHash(group Curve, h []byte) Scalar {
	order := group.Order()
	orderBits := order.BitLen()
	orderBytes := (orderBits + 7) / 8
	if len(h) > orderBytes {
		h = h[:orderBytes]
	}
	s := new(saferith.Nat).SetBytes(h)
	excess := len(h)*8 - orderBits
	if excess > 0 {
		s.Rsh(s, uint(excess), -1)
	}
	return group.NewScalar().SetNat(s)
}
