package repair_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/internal/test"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/protocols/frost/repair"
)

func TestRepair(t *testing.T) {
	dkg := test.FrostKeygen(t, 4, 3, test.Rand(21))
	agg, err := frost.NewAggregator(4, 3, dkg.Commitments)
	require.NoError(t, err)

	lost := party.ID(3)
	helpers := []party.ID{0, 1, 2}

	// received[j][i] is the delta helper i sent to helper j
	received := make(map[party.ID]map[party.ID]curve.Scalar)
	for _, j := range helpers {
		received[j] = make(map[party.ID]curve.Scalar)
	}
	for _, i := range helpers {
		share, err := dkg.Parties[i].PrivateShare()
		require.NoError(t, err)
		deltas, err := repair.Deltas(helpers, lost, i, share, test.Rand(uint64(i)))
		require.NoError(t, err)
		require.Len(t, deltas, len(helpers))
		for j, delta := range deltas {
			received[j][i] = delta
		}
	}

	sigmas := make(map[party.ID]curve.Scalar)
	for _, j := range helpers {
		sigmas[j], err = repair.Sigma(helpers, received[j])
		require.NoError(t, err)
	}

	recovered, err := repair.Recover(helpers, sigmas, agg.PublicShare(lost))
	require.NoError(t, err)
	original, err := dkg.Parties[lost].PrivateShare()
	require.NoError(t, err)
	assert.True(t, recovered.Equal(original))

	// a missing sigma is reported, a wrong one is caught by the public share
	delete(sigmas, 2)
	_, err = repair.Recover(helpers, sigmas, agg.PublicShare(lost))
	assert.Error(t, err)
	sigmas[2] = party.ID(5).Scalar(curve.Secp256k1{})
	_, err = repair.Recover(helpers, sigmas, agg.PublicShare(lost))
	assert.ErrorIs(t, err, repair.ErrShareMismatch)
}

func TestRepairParameters(t *testing.T) {
	share := party.ID(1).Scalar(curve.Secp256k1{})
	_, err := repair.Deltas([]party.ID{0}, 3, 0, share, test.Rand(1))
	assert.Error(t, err, "one helper")
	_, err = repair.Deltas([]party.ID{0, 3}, 3, 0, share, test.Rand(1))
	assert.Error(t, err, "lost party helps")
	_, err = repair.Deltas([]party.ID{0, 1}, 3, 2, share, test.Rand(1))
	assert.Error(t, err, "self is not a helper")
	_, err = repair.Deltas([]party.ID{0, 1}, 3, 0, nil, test.Rand(1))
	assert.Error(t, err, "no share")
}
