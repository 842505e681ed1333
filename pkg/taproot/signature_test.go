package taproot

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyMatchesBTCEC(t *testing.T) {
	for i := 0; i < 10; i++ {
		sk, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		pk := PublicKey(schnorr.SerializePubKey(sk.PubKey()))
		digest := sha256.Sum256([]byte{0xDE, 0xAD, 0xBE, 0xEF, byte(i)})

		sig, err := schnorr.Sign(sk, digest[:])
		require.NoError(t, err)
		assert.True(t, pk.Verify(sig.Serialize(), digest[:]))

		digest[0] ^= 1
		assert.False(t, pk.Verify(sig.Serialize(), digest[:]))
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pk := PublicKey(schnorr.SerializePubKey(sk.PubKey()))
	digest := sha256.Sum256([]byte("malformed"))
	sig, err := schnorr.Sign(sk, digest[:])
	require.NoError(t, err)
	raw := sig.Serialize()

	assert.False(t, pk.Verify(raw[:63], digest[:]))
	assert.False(t, pk[:31].Verify(raw, digest[:]))
	for i := range raw[32:] {
		raw[32+i] = 0xff
	}
	assert.False(t, pk.Verify(raw, digest[:]), "z above the group order")
}

func TestPublicKeyPoint(t *testing.T) {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pk := PublicKey(schnorr.SerializePubKey(sk.PubKey()))
	P, err := pk.Point()
	require.NoError(t, err)
	assert.True(t, P.HasEvenY())
	assert.Equal(t, []byte(pk), []byte(PublicKeyFromPoint(P.Negate())))

	parsed, err := pk.BTCEC()
	require.NoError(t, err)
	assert.Equal(t, []byte(pk), schnorr.SerializePubKey(parsed))
}
