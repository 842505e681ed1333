package party_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

func TestNewIDSlice(t *testing.T) {
	ids := party.NewIDSlice([]party.ID{3, 0, 2})
	assert.Equal(t, party.IDSlice{0, 2, 3}, ids)
	assert.True(t, ids.Valid())
	assert.True(t, ids.Contains(0, 3))
	assert.False(t, ids.Contains(1))
	assert.Equal(t, party.IDSlice{0, 3}, ids.Remove(2))

	dup := party.IDSlice{1, 1, 2}
	assert.False(t, dup.Valid())
}

func TestIDScalar(t *testing.T) {
	group := curve.Secp256k1{}
	one := party.ID(0).Scalar(group)
	data, err := one.MarshalBinary()
	require.NoError(t, err)
	expected := make([]byte, 32)
	expected[31] = 1
	assert.Equal(t, expected, data, "party 0 must evaluate at x = 1")
}

func TestIDSliceWriteTo(t *testing.T) {
	var a, b bytes.Buffer
	_, err := party.IDSlice{0, 1}.WriteTo(&a)
	require.NoError(t, err)
	_, err = party.IDSlice{0, 2}.WriteTo(&b)
	require.NoError(t, err)
	assert.NotEqual(t, a.Bytes(), b.Bytes())
	assert.Len(t, a.Bytes(), 4+2*party.ByteSize)
}
