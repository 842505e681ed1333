package curve_test

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/sample"
)

var group = curve.Secp256k1{}

func TestScalarArithmetic(t *testing.T) {
	a := sample.Scalar(rand.Reader, group)
	b := sample.Scalar(rand.Reader, group)

	sum := group.NewScalar().Set(a).Add(b)
	assert.True(t, sum.Sub(b).Equal(a), "a + b - b != a")

	inv := group.NewScalar().Set(a).Invert()
	one := group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
	assert.True(t, inv.Mul(a).Equal(one), "a * 1/a != 1")

	neg := group.NewScalar().Set(a).Negate()
	assert.True(t, neg.Add(a).IsZero(), "a + -a != 0")
}

func TestPointArithmetic(t *testing.T) {
	a := sample.Scalar(rand.Reader, group)
	b := sample.Scalar(rand.Reader, group)

	A, B := a.ActOnBase(), b.ActOnBase()
	sum := group.NewScalar().Set(a).Add(b).ActOnBase()
	assert.True(t, A.Add(B).Equal(sum), "aG + bG != (a+b)G")
	assert.True(t, A.Sub(A).IsIdentity(), "A - A != 0")
	assert.True(t, A.Add(A.Negate()).IsIdentity(), "A + -A != 0")
	assert.True(t, b.Act(A).Equal(a.Act(B)), "b(aG) != a(bG)")
	assert.False(t, A.Equal(group.NewPoint()))
}

func TestPointMarshal(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	X := x.ActOnBase()

	data, err := X.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 33)

	Y := group.NewPoint()
	require.NoError(t, Y.UnmarshalBinary(data))
	assert.True(t, X.Equal(Y))

	_, err = group.NewPoint().MarshalBinary()
	assert.Error(t, err, "identity should not marshal")

	data[0] = 0x04
	assert.Error(t, group.NewPoint().UnmarshalBinary(data))
}

func TestScalarMarshal(t *testing.T) {
	x := sample.Scalar(rand.Reader, group)
	data, err := x.MarshalBinary()
	require.NoError(t, err)
	y := group.NewScalar()
	require.NoError(t, y.UnmarshalBinary(data))
	assert.True(t, x.Equal(y))

	overflow := make([]byte, 32)
	for i := range overflow {
		overflow[i] = 0xFF
	}
	assert.Error(t, group.NewScalar().UnmarshalBinary(overflow))
}

func TestLiftX(t *testing.T) {
	for i := 0; i < 16; i++ {
		X := sample.Scalar(rand.Reader, group).ActOnBase()
		lifted, err := group.LiftX(X.XBytes())
		require.NoError(t, err)
		assert.True(t, lifted.HasEvenY())
		if X.HasEvenY() {
			assert.True(t, lifted.Equal(X))
		} else {
			assert.True(t, lifted.Equal(X.Negate()))
		}
	}

	G := group.NewBasePoint()
	assert.Equal(t, "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", hex.EncodeToString(G.XBytes()))

	_, err := group.LiftX(make([]byte, 31))
	assert.Error(t, err)
}
