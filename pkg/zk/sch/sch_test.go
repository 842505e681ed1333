package zksch

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/hash"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/sample"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

func TestSchPass(t *testing.T) {
	group := curve.Secp256k1{}

	a := NewRandomness(rand.Reader, group)
	x, X := sample.ScalarPointPair(rand.Reader, group)

	proof := a.Prove(hash.New(), X, x)
	assert.True(t, proof.Verify(hash.New(), X, a.Commitment()), "failed passing test")
	assert.True(t, proof.Verify(hash.New(), X, a.Commitment()), "failed passing test")
}

func TestSchFail(t *testing.T) {
	group := curve.Secp256k1{}

	a := NewRandomness(rand.Reader, group)
	x, X := group.NewScalar(), group.NewPoint()

	proof := a.Prove(hash.New(), X, x)
	assert.Nil(t, proof, "proof should not accept identity point")
	assert.False(t, proof.Verify(hash.New(), X, a.Commitment()))
}

func TestProofBoundToContext(t *testing.T) {
	group := curve.Secp256k1{}
	x, X := sample.ScalarPointPair(rand.Reader, group)

	proof := NewProof(hash.New(party.ID(1)), X, x, rand.Reader)
	assert.True(t, proof.Verify(hash.New(party.ID(1)), X))
	assert.False(t, proof.Verify(hash.New(party.ID(2)), X), "proof must be bound to the prover id")

	_, Y := sample.ScalarPointPair(rand.Reader, group)
	assert.False(t, proof.Verify(hash.New(party.ID(1)), Y))
}

func TestProofMarshal(t *testing.T) {
	group := curve.Secp256k1{}
	x, X := sample.ScalarPointPair(rand.Reader, group)
	proof := NewProof(hash.New(), X, x, rand.Reader)

	data, err := proof.MarshalBinary()
	require.NoError(t, err)
	decoded := EmptyProof(group)
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, decoded.Verify(hash.New(), X))

	assert.Error(t, EmptyProof(group).UnmarshalBinary(data[1:]))
}
