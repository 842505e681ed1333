package test

import (
	"io"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
)

// Keygen runs a DKG for the signers of Layout, delivering every message
// directly, and returns the result of each signer.
func Keygen(t testing.TB, id protocol.DkgID, threshold uint32) map[party.SignerID]*keygen.Result {
	cfg := &keygen.Config{ID: id, Threshold: threshold, Signers: Layout()}
	sessions := make(map[party.SignerID]*keygen.Session, len(cfg.Signers))
	var sent []*messages.DkgPrivateShares
	for signer := range cfg.Signers {
		s, out, err := keygen.Begin(cfg, signer, Rand(uint64(signer)), nil, time.Now())
		require.NoError(t, err)
		sessions[signer] = s
		sent = append(sent, out...)
	}
	for _, msg := range sent {
		for signer, s := range sessions {
			if signer != msg.Signer {
				require.NoError(t, s.ReceiveShares(msg))
			}
		}
	}
	results := make(map[party.SignerID]*keygen.Result, len(sessions))
	for signer, s := range sessions {
		r, err := s.Result()
		require.NoError(t, err)
		results[signer] = r
	}
	return results
}

// Keys holds the network keys of a test deployment.
type Keys struct {
	Coordinator *secp256k1.PrivateKey
	Signers     map[party.SignerID]*secp256k1.PrivateKey
}

// NetworkKey derives a secp256k1 key from rand.
func NetworkKey(t testing.TB, rand io.Reader) *secp256k1.PrivateKey {
	var buf [32]byte
	_, err := io.ReadFull(rand, buf[:])
	require.NoError(t, err)
	return secp256k1.PrivKeyFromBytes(buf[:])
}

// Roster returns the roster of Layout, and the matching private keys.
func Roster(t testing.TB, rand io.Reader) (*protocol.Roster, *Keys) {
	layout := Layout()
	keys := &Keys{
		Coordinator: NetworkKey(t, rand),
		Signers:     make(map[party.SignerID]*secp256k1.PrivateKey, len(layout)),
	}
	roster := &protocol.Roster{
		Coordinator: keys.Coordinator.PubKey(),
		Signers:     make(map[party.SignerID]*secp256k1.PublicKey, len(layout)),
		Parties:     layout,
	}
	for _, signer := range []party.SignerID{1, 2, 3} {
		keys.Signers[signer] = NetworkKey(t, rand)
		roster.Signers[signer] = keys.Signers[signer].PubKey()
	}
	require.NoError(t, roster.Validate())
	return roster, keys
}
