package messages_test

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/internal/test"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

type keys struct {
	roster      *protocol.Roster
	coordinator *secp256k1.PrivateKey
	signers     map[party.SignerID]*secp256k1.PrivateKey
}

func newKeys(t *testing.T) *keys {
	k := &keys{
		roster: &protocol.Roster{
			Signers: make(map[party.SignerID]*secp256k1.PublicKey),
			Parties: test.Layout(),
		},
		signers: make(map[party.SignerID]*secp256k1.PrivateKey),
	}
	var err error
	k.coordinator, err = secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	k.roster.Coordinator = k.coordinator.PubKey()
	for id := range k.roster.Parties {
		k.signers[id], err = secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		k.roster.Signers[id] = k.signers[id].PubKey()
	}
	require.NoError(t, k.roster.Validate())
	return k
}

func TestDkgPrivateShares(t *testing.T) {
	k := newKeys(t)
	p, err := frost.NewParty(2, 4, 3, rand.Reader)
	require.NoError(t, err)
	commitment, err := p.Commitment(rand.Reader)
	require.NoError(t, err)
	scalars, err := p.Shares()
	require.NoError(t, err)

	msg := &messages.DkgPrivateShares{
		Signer:     2,
		Party:      2,
		Commitment: commitment,
		Shares:     make(map[party.ID]*frost.SecretShare),
	}
	msg.DkgID[0] = 7
	for id, s := range scalars {
		msg.Shares[id] = &frost.SecretShare{Value: s}
	}

	env, err := messages.Seal(msg, k.signers[2])
	require.NoError(t, err)
	opened, err := messages.Open(env, k.roster)
	require.NoError(t, err)

	decoded, ok := opened.(*messages.DkgPrivateShares)
	require.True(t, ok)
	assert.Equal(t, msg.DkgID, decoded.DkgID)
	assert.Equal(t, party.ID(2), decoded.Party)
	assert.True(t, decoded.Commitment.Verify())
	require.Len(t, decoded.Shares, 4)
	for id, s := range scalars {
		assert.True(t, decoded.Shares[id].Value.Equal(s))
	}

	// canonical encoding is deterministic
	a, err := messages.Marshal(msg)
	require.NoError(t, err)
	b, err := messages.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOpenRejectsImpersonation(t *testing.T) {
	k := newKeys(t)

	// signer 3 claims to speak for party 2
	msg := &messages.DkgEnd{Signer: 3, Status: messages.DkgSuccess, Held: []party.ID{2}}
	env, err := messages.Seal(msg, k.signers[3])
	require.NoError(t, err)
	_, err = messages.Open(env, k.roster)
	assert.ErrorIs(t, err, protocol.ErrWrongParty)
	var cryptoErr *protocol.CryptoError
	assert.True(t, errors.As(err, &cryptoErr))

	// signer 3 claims to be signer 2
	msg = &messages.DkgEnd{Signer: 2, Status: messages.DkgSuccess, Held: []party.ID{2}}
	env, err = messages.Seal(msg, k.signers[3])
	require.NoError(t, err)
	_, err = messages.Open(env, k.roster)
	assert.ErrorIs(t, err, protocol.ErrBadSignature)

	// a signer cannot issue coordinator requests
	env, err = messages.Seal(&messages.DkgQuery{}, k.signers[1])
	require.NoError(t, err)
	_, err = messages.Open(env, k.roster)
	assert.ErrorIs(t, err, protocol.ErrBadSignature)

	env, err = messages.Seal(&messages.DkgQuery{}, k.coordinator)
	require.NoError(t, err)
	_, err = messages.Open(env, k.roster)
	assert.NoError(t, err)
}

func TestSigningMessages(t *testing.T) {
	k := newKeys(t)
	dkg := test.FrostKeygen(t, 4, 3, test.Rand(11))

	nonces := make(map[party.ID]*frost.Nonce)
	public := make(map[party.ID]*frost.PublicNonce)
	for _, id := range []party.ID{0, 1, 2} {
		nonces[id] = dkg.Parties[id].GenNonce(rand.Reader)
		public[id] = nonces[id].Public()
	}

	request := &messages.SignShareRequest{Message: []byte("sighash"), Nonces: public}
	env, err := messages.Seal(request, k.coordinator)
	require.NoError(t, err)
	opened, err := messages.Open(env, k.roster)
	require.NoError(t, err)
	decodedRequest := opened.(*messages.SignShareRequest)
	require.Len(t, decodedRequest.Nonces, 3)
	for id, nonce := range public {
		assert.True(t, decodedRequest.Nonces[id].Equal(nonce))
	}

	response := &messages.SignShareResponse{Signer: 1}
	for _, id := range []party.ID{0, 1} {
		share, err := dkg.Parties[id].Sign(decodedRequest.Message, decodedRequest.Nonces, nonces[id])
		require.NoError(t, err)
		response.Shares = append(response.Shares, share)
	}
	env, err = messages.Seal(response, k.signers[1])
	require.NoError(t, err)
	opened, err = messages.Open(env, k.roster)
	require.NoError(t, err)
	decodedResponse := opened.(*messages.SignShareResponse)
	require.Len(t, decodedResponse.Shares, 2)
	assert.True(t, decodedResponse.Shares[1].Z.Equal(response.Shares[1].Z))
}

func TestDecodeErrors(t *testing.T) {
	k := newKeys(t)
	env, err := protocol.Seal(protocol.KindNonceRequest, []byte{0xFF, 0x00}, k.coordinator)
	require.NoError(t, err)
	_, err = messages.Decode(env)
	var validationErr *protocol.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = messages.Decode(&protocol.Envelope{Kind: 99})
	assert.ErrorIs(t, err, protocol.ErrUnknownKind)
}
