package test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

// DKG is the in-memory output of FrostKeygen.
type DKG struct {
	Parties     map[party.ID]*frost.Party
	Commitments []*frost.PolyCommitment
}

// FrostKeygen runs a DKG between n parties without any network,
// and fails the test if any party rejects the result.
func FrostKeygen(t testing.TB, n, threshold uint32, rand io.Reader) *DKG {
	parties := make(map[party.ID]*frost.Party, n)
	commitments := make(map[party.ID]*frost.PolyCommitment, n)
	shares := make(map[party.ID]map[party.ID]curve.Scalar, n)
	for i := uint32(0); i < n; i++ {
		id := party.ID(i)
		p, err := frost.NewParty(id, n, threshold, rand)
		require.NoError(t, err)
		parties[id] = p
		commitments[id], err = p.Commitment(rand)
		require.NoError(t, err)
		shares[id], err = p.Shares()
		require.NoError(t, err)
	}

	out := &DKG{Parties: parties}
	for _, id := range PartyIDs(int(n)) {
		received := make(map[party.ID]curve.Scalar, n)
		for from := range parties {
			received[from] = shares[from][id]
		}
		require.NoError(t, parties[id].ComputeSecret(nil, received, commitments))
		out.Commitments = append(out.Commitments, commitments[id])
	}
	return out
}

// FrostSign has the given parties sign m with fresh nonces, and aggregates
// their shares.
func FrostSign(t testing.TB, dkg *DKG, signers []party.ID, m []byte, rand io.Reader) *frost.Signature {
	n := uint32(len(dkg.Parties))
	agg, err := frost.NewAggregator(n, dkg.Parties[signers[0]].Threshold(), dkg.Commitments)
	require.NoError(t, err)

	nonces := make(map[party.ID]*frost.Nonce, len(signers))
	public := make(map[party.ID]*frost.PublicNonce, len(signers))
	for _, id := range signers {
		nonces[id] = dkg.Parties[id].GenNonce(rand)
		public[id] = nonces[id].Public()
	}
	shares := make([]*frost.SignatureShare, 0, len(signers))
	for _, id := range signers {
		share, err := dkg.Parties[id].Sign(m, public, nonces[id])
		require.NoError(t, err)
		shares = append(shares, share)
	}
	sig, err := agg.Sign(m, public, shares)
	require.NoError(t, err)
	return sig
}
