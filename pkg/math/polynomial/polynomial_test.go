package polynomial

import (
	"crypto/rand"
	mrand "math/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/sample"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

func scalarUint64(group curve.Curve, x uint64) curve.Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetUint64(x))
}

func TestPolynomial_Constant(t *testing.T) {
	group := curve.Secp256k1{}
	deg := 10
	secret := sample.Scalar(rand.Reader, group)
	poly := NewPolynomial(group, deg, secret, rand.Reader)
	require.True(t, poly.Constant().Equal(secret))
	require.EqualValues(t, deg, poly.Degree())
}

func TestPolynomial_Evaluate(t *testing.T) {
	group := curve.Secp256k1{}
	// f(X) = 1 + X²
	polynomial := &Polynomial{group, []curve.Scalar{
		scalarUint64(group, 1),
		scalarUint64(group, 0),
		scalarUint64(group, 1),
	}}

	for index := 0; index < 100; index++ {
		x := uint64(mrand.Uint32())
		computedResult := polynomial.Evaluate(scalarUint64(group, x))
		expectedResult := scalarUint64(group, x*x+1)
		assert.True(t, expectedResult.Equal(computedResult))
	}
}

func TestPolynomial_EvaluateZeroPanics(t *testing.T) {
	group := curve.Secp256k1{}
	poly := NewPolynomial(group, 2, nil, rand.Reader)
	assert.Panics(t, func() { poly.Evaluate(group.NewScalar()) })
}

func TestPolynomial_Zeroize(t *testing.T) {
	group := curve.Secp256k1{}
	poly := NewPolynomial(group, 2, nil, rand.Reader)
	coefficients := poly.coefficients
	poly.Zeroize()
	for _, c := range coefficients {
		assert.True(t, c.IsZero())
	}
}

func TestExponent_Evaluate(t *testing.T) {
	group := curve.Secp256k1{}
	for x := 0; x < 5; x++ {
		var secret curve.Scalar
		if x%2 == 0 {
			secret = sample.Scalar(rand.Reader, group)
		}
		poly := NewPolynomial(group, 20, secret, rand.Reader)
		polyExp := NewPolynomialExponent(poly)

		randomIndex := sample.Scalar(rand.Reader, group)

		lhs := poly.Evaluate(randomIndex).ActOnBase()
		rhs := polyExp.Evaluate(randomIndex)
		assert.True(t, lhs.Equal(rhs), "base eval differs from exponent eval")
	}
}

func TestExponent_Marshal(t *testing.T) {
	group := curve.Secp256k1{}
	polyExp := NewPolynomialExponent(NewPolynomial(group, 3, nil, rand.Reader))

	data, err := polyExp.MarshalBinary()
	require.NoError(t, err)

	decoded := EmptyExponent(group)
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, polyExp.Equal(decoded))

	assert.Error(t, EmptyExponent(group).UnmarshalBinary(data[:len(data)-1]))
}

func TestSum(t *testing.T) {
	group := curve.Secp256k1{}
	N := 20
	Deg := 10

	randomIndex := sample.Scalar(rand.Reader, group)

	// compute f1(x) + f2(x) + …
	evaluationScalar := group.NewScalar()
	// compute F1(x) + F2(x) + …
	evaluationPartial := group.NewPoint()

	polysExp := make([]*Exponent, N)
	for i := range polysExp {
		poly := NewPolynomial(group, Deg, nil, rand.Reader)
		polysExp[i] = NewPolynomialExponent(poly)

		evaluationScalar.Add(poly.Evaluate(randomIndex))
		evaluationPartial = evaluationPartial.Add(polysExp[i].Evaluate(randomIndex))
	}

	// compute (F1 + F2 + …)(x)
	summedExp, err := Sum(polysExp)
	require.NoError(t, err)
	evaluationSum := summedExp.Evaluate(randomIndex)

	assert.True(t, evaluationSum.Equal(evaluationScalar.ActOnBase()))
	assert.True(t, evaluationSum.Equal(evaluationPartial))
}

func TestLagrange(t *testing.T) {
	group := curve.Secp256k1{}
	N := 10
	allIDs := make([]party.ID, N)
	for i := range allIDs {
		allIDs[i] = party.ID(3 * i)
	}
	one := scalarUint64(group, 1)
	for _, ids := range [][]party.ID{allIDs, allIDs[:N-1]} {
		sum := group.NewScalar()
		for _, c := range Lagrange(group, ids) {
			sum.Add(c)
		}
		assert.True(t, sum.Equal(one))
	}
}

func TestLagrangeInterpolation(t *testing.T) {
	group := curve.Secp256k1{}
	secret := sample.Scalar(rand.Reader, group)
	poly := NewPolynomial(group, 2, secret, rand.Reader)

	ids := []party.ID{0, 2, 5}
	coefficients := Lagrange(group, ids)
	recovered := group.NewScalar()
	for _, id := range ids {
		share := poly.Evaluate(id.Scalar(group))
		recovered.Add(share.Mul(coefficients[id]))
	}
	assert.True(t, recovered.Equal(secret))
}
