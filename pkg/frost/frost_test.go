package frost_test

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/internal/test"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/polynomial"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/pool"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var group = curve.Secp256k1{}

func steak(i byte) []byte {
	h := sha256.Sum256([]byte{0xDE, 0xAD, 0xBE, 0xEF, i})
	return h[:]
}

func sign(t *testing.T, dkg *test.DKG, signers []party.ID, m []byte) (map[party.ID]*frost.PublicNonce, []*frost.SignatureShare) {
	nonces := make(map[party.ID]*frost.Nonce, len(signers))
	public := make(map[party.ID]*frost.PublicNonce, len(signers))
	for _, id := range signers {
		nonces[id] = dkg.Parties[id].GenNonce(rand.Reader)
		public[id] = nonces[id].Public()
	}
	shares := make([]*frost.SignatureShare, 0, len(signers))
	for _, id := range signers {
		share, err := dkg.Parties[id].Sign(m, public, nonces[id])
		require.NoError(t, err)
		shares = append(shares, share)
	}
	return public, shares
}

func TestDKG(t *testing.T) {
	N, T := uint32(5), uint32(3)
	dkg := test.FrostKeygen(t, N, T, test.Rand(1))

	Y := group.NewPoint()
	for _, c := range dkg.Commitments {
		Y = Y.Add(c.Poly.Constant())
	}
	if !Y.HasEvenY() {
		Y = Y.Negate()
	}

	for id, p := range dkg.Parties {
		require.True(t, p.GroupKey().Equal(Y), "party %s has a different group key", id)
		s, err := p.PrivateShare()
		require.NoError(t, err)
		require.True(t, s.ActOnBase().Equal(p.PublicShare()))
	}

	// any T shares interpolate to the group secret
	for _, subset := range [][]party.ID{{0, 1, 2}, {1, 3, 4}, {0, 2, 4}} {
		lambda := polynomial.Lagrange(group, subset)
		secret := group.NewScalar()
		for _, id := range subset {
			s, err := dkg.Parties[id].PrivateShare()
			require.NoError(t, err)
			secret.Add(s.Mul(lambda[id]))
		}
		assert.True(t, secret.ActOnBase().Equal(Y))
	}

	agg, err := frost.NewAggregator(N, T, dkg.Commitments)
	require.NoError(t, err)
	assert.True(t, agg.GroupKey().Equal(Y))
	for id, p := range dkg.Parties {
		assert.True(t, agg.PublicShare(id).Equal(p.PublicShare()))
	}
}

func TestPrivateShareBeforeDKG(t *testing.T) {
	p, err := frost.NewParty(0, 3, 2, rand.Reader)
	require.NoError(t, err)
	_, err = p.PrivateShare()
	assert.ErrorIs(t, err, frost.ErrSecretNotComputed)
}

func TestNewPartyParameters(t *testing.T) {
	_, err := frost.NewParty(0, 3, 0, rand.Reader)
	assert.Error(t, err)
	_, err = frost.NewParty(0, 3, 4, rand.Reader)
	assert.Error(t, err)
	_, err = frost.NewParty(3, 3, 2, rand.Reader)
	assert.Error(t, err)
}

func TestSharesErasePolynomial(t *testing.T) {
	p, err := frost.NewParty(0, 3, 2, rand.Reader)
	require.NoError(t, err)
	_, err = p.Shares()
	require.NoError(t, err)
	_, err = p.Shares()
	assert.ErrorIs(t, err, frost.ErrPolynomialErased)
	_, err = p.Commitment(rand.Reader)
	assert.ErrorIs(t, err, frost.ErrPolynomialErased)
}

func TestCommitmentTamper(t *testing.T) {
	p, err := frost.NewParty(2, 4, 3, rand.Reader)
	require.NoError(t, err)
	c, err := p.Commitment(rand.Reader)
	require.NoError(t, err)
	require.True(t, c.Verify())

	data, err := c.MarshalBinary()
	require.NoError(t, err)
	decoded := frost.EmptyPolyCommitment()
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, decoded.Verify())

	decoded.ID = 1
	assert.False(t, decoded.Verify(), "proof is bound to the party id")

	other, err := frost.NewParty(2, 4, 3, rand.Reader)
	require.NoError(t, err)
	otherCommitment, err := other.Commitment(rand.Reader)
	require.NoError(t, err)
	forged := &frost.PolyCommitment{ID: 2, Proof: c.Proof, Poly: otherCommitment.Poly}
	assert.False(t, forged.Verify())
}

func TestComputeSecretNamesCheater(t *testing.T) {
	N, T := uint32(4), uint32(3)
	parties := make([]*frost.Party, N)
	commitments := make(map[party.ID]*frost.PolyCommitment)
	shares := make(map[party.ID]map[party.ID]curve.Scalar)
	for i := range parties {
		id := party.ID(i)
		p, err := frost.NewParty(id, N, T, rand.Reader)
		require.NoError(t, err)
		parties[i] = p
		commitments[id], err = p.Commitment(rand.Reader)
		require.NoError(t, err)
		shares[id], err = p.Shares()
		require.NoError(t, err)
	}
	// party 3 sends a bad share to party 0
	shares[3][0].Add(party.ID(0).Scalar(group))

	received := make(map[party.ID]curve.Scalar)
	for from := range shares {
		received[from] = shares[from][0]
	}
	pl := pool.NewPool(0)
	defer pl.TearDown()
	err := parties[0].ComputeSecret(pl, received, commitments)
	var dkgErr *frost.DkgError
	require.True(t, errors.As(err, &dkgErr))
	assert.Equal(t, []party.ID{3}, dkgErr.Culprits())
	assert.ErrorIs(t, dkgErr.Errors[3], frost.ErrInvalidShare)

	// party 1 is unaffected
	received = make(map[party.ID]curve.Scalar)
	for from := range shares {
		received[from] = shares[from][1]
	}
	assert.NoError(t, parties[1].ComputeSecret(pl, received, commitments))
}

func TestSign(t *testing.T) {
	N, T := uint32(4), uint32(3)
	dkg := test.FrostKeygen(t, N, T, test.Rand(2))
	agg, err := frost.NewAggregator(N, T, dkg.Commitments)
	require.NoError(t, err)

	for i, signers := range [][]party.ID{{0, 1, 2}, {1, 2, 3}, {0, 1, 2, 3}} {
		m := steak(byte(i))
		nonces, shares := sign(t, dkg, signers, m)

		sig, err := agg.Sign(m, nonces, shares)
		require.NoError(t, err)
		assert.True(t, sig.Verify(agg.GroupKey(), m))
		assert.False(t, sig.Verify(agg.GroupKey(), steak(0xFF)))

		// cross check with btcd's BIP-340 implementation
		parsedSig, err := schnorr.ParseSignature(sig.Taproot())
		require.NoError(t, err)
		groupKey, err := schnorr.ParsePubKey(agg.GroupKey().XBytes())
		require.NoError(t, err)
		assert.True(t, parsedSig.Verify(m, groupKey))

		decoded, err := frost.ParseSignature(sig.Taproot())
		require.NoError(t, err)
		assert.True(t, decoded.Verify(agg.GroupKey(), m))
	}
}

func TestSignBelowThreshold(t *testing.T) {
	dkg := test.FrostKeygen(t, 4, 3, test.Rand(3))
	m := steak(0)
	nonces := map[party.ID]*frost.Nonce{
		0: dkg.Parties[0].GenNonce(rand.Reader),
		1: dkg.Parties[1].GenNonce(rand.Reader),
	}
	public := map[party.ID]*frost.PublicNonce{0: nonces[0].Public(), 1: nonces[1].Public()}
	_, err := dkg.Parties[0].Sign(m, public, nonces[0])
	assert.Error(t, err)
}

func TestNonceReuse(t *testing.T) {
	dkg := test.FrostKeygen(t, 4, 3, test.Rand(4))
	signers := []party.ID{0, 1, 2}
	nonces := make(map[party.ID]*frost.Nonce)
	public := make(map[party.ID]*frost.PublicNonce)
	for _, id := range signers {
		nonces[id] = dkg.Parties[id].GenNonce(rand.Reader)
		public[id] = nonces[id].Public()
	}

	_, err := dkg.Parties[0].Sign(steak(1), public, nonces[0])
	require.NoError(t, err)
	assert.True(t, nonces[0].Used())

	_, err = dkg.Parties[0].Sign(steak(2), public, nonces[0])
	assert.ErrorIs(t, err, frost.ErrNonceReused)
}

func TestAggregatorNamesCheater(t *testing.T) {
	N, T := uint32(4), uint32(3)
	dkg := test.FrostKeygen(t, N, T, test.Rand(5))
	agg, err := frost.NewAggregator(N, T, dkg.Commitments)
	require.NoError(t, err)

	m := steak(7)
	nonces, shares := sign(t, dkg, []party.ID{0, 2, 3}, m)
	for _, share := range shares {
		if share.ID == 2 {
			share.Z.Add(party.ID(0).Scalar(group))
		}
	}

	sig, err := agg.Sign(m, nonces, shares)
	assert.Nil(t, sig)
	var cryptoErr *protocol.CryptoError
	require.True(t, errors.As(err, &cryptoErr))
	assert.Equal(t, []party.ID{2}, cryptoErr.Culprits)
	assert.ErrorIs(t, err, frost.ErrInvalidSignatureShare)
}

func TestAggregatorMissingShare(t *testing.T) {
	N, T := uint32(4), uint32(3)
	dkg := test.FrostKeygen(t, N, T, test.Rand(6))
	agg, err := frost.NewAggregator(N, T, dkg.Commitments)
	require.NoError(t, err)

	m := steak(8)
	nonces, shares := sign(t, dkg, []party.ID{0, 1, 2}, m)
	_, err = agg.Sign(m, nonces, shares[:2])
	var validationErr *protocol.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestRestoreParty(t *testing.T) {
	N, T := uint32(4), uint32(3)
	dkg := test.FrostKeygen(t, N, T, test.Rand(7))
	agg, err := frost.NewAggregator(N, T, dkg.Commitments)
	require.NoError(t, err)

	s, err := dkg.Parties[1].PrivateShare()
	require.NoError(t, err)
	restored, err := frost.RestoreParty(1, N, T, s, agg.GroupKey())
	require.NoError(t, err)
	dkg.Parties[1] = restored

	m := steak(9)
	nonces, shares := sign(t, dkg, []party.ID{0, 1, 3}, m)
	sig, err := agg.Sign(m, nonces, shares)
	require.NoError(t, err)
	assert.True(t, sig.Verify(agg.GroupKey(), m))
}

func TestWireEncodings(t *testing.T) {
	p, err := frost.NewParty(0, 2, 2, rand.Reader)
	require.NoError(t, err)
	nonce := p.GenNonce(rand.Reader)
	data, err := nonce.Public().MarshalBinary()
	require.NoError(t, err)
	var decoded frost.PublicNonce
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.True(t, decoded.Equal(nonce.Public()))

	share := &frost.SignatureShare{ID: 7, Z: party.ID(4).Scalar(group)}
	data, err = share.MarshalBinary()
	require.NoError(t, err)
	var decodedShare frost.SignatureShare
	require.NoError(t, decodedShare.UnmarshalBinary(data))
	assert.Equal(t, party.ID(7), decodedShare.ID)
	assert.True(t, decodedShare.Z.Equal(share.Z))
}
