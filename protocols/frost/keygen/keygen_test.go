package keygen_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/internal/test"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/polynomial"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/pool"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
)

var group = curve.Secp256k1{}

func newConfig(policy keygen.Policy) *keygen.Config {
	cfg := &keygen.Config{
		Threshold: 3,
		Signers:   test.Layout(),
		Policy:    policy,
		Timeout:   time.Minute,
	}
	cfg.ID[0] = 0x42
	return cfg
}

// run starts a session per signer and delivers every message to every other
// signer, after passing it through tamper.
func run(t *testing.T, cfg *keygen.Config, tamper func(*messages.DkgPrivateShares)) map[party.SignerID]*keygen.Session {
	pl := pool.NewPool(0)
	t.Cleanup(pl.TearDown)

	now := time.Now()
	sessions := make(map[party.SignerID]*keygen.Session)
	var sent []*messages.DkgPrivateShares
	for signer := range cfg.Signers {
		s, out, err := keygen.Begin(cfg, signer, test.Rand(uint64(signer)), pl, now)
		require.NoError(t, err)
		assert.Equal(t, keygen.AwaitingShares, s.State())
		sessions[signer] = s
		sent = append(sent, out...)
	}
	for _, msg := range sent {
		if tamper != nil {
			tamper(msg)
		}
		for signer, s := range sessions {
			if signer == msg.Signer {
				continue
			}
			require.NoError(t, s.ReceiveShares(msg))
		}
	}
	return sessions
}

func TestKeygen(t *testing.T) {
	cfg := newConfig(keygen.FailWholeRound)
	sessions := run(t, cfg, nil)

	var groupKey curve.Point
	shares := make(map[party.ID]curve.Scalar)
	for signer, s := range sessions {
		require.Equal(t, keygen.Complete, s.State(), "signer %s", signer)
		result, err := s.Result()
		require.NoError(t, err)
		assert.Len(t, result.Commitments, 4)
		assert.Empty(t, result.Excluded)
		if groupKey == nil {
			groupKey = result.GroupKey
		}
		require.True(t, groupKey.Equal(result.GroupKey))
		for id, p := range result.Parties {
			shares[id], err = p.PrivateShare()
			require.NoError(t, err)
		}

		agg, err := result.Aggregator()
		require.NoError(t, err)
		for id, share := range shares {
			assert.True(t, agg.PublicShare(id).Equal(share.ActOnBase()))
		}
	}
	require.Len(t, shares, 4)

	// the group key is the sum of the constant terms, up to BIP-340 parity
	result, err := sessions[1].Result()
	require.NoError(t, err)
	sum := group.NewPoint()
	for _, c := range result.Commitments {
		sum = sum.Add(c.Poly.Constant())
	}
	assert.True(t, sum.Equal(groupKey) || sum.Negate().Equal(groupKey))
	assert.True(t, groupKey.HasEvenY())

	subset := []party.ID{0, 2, 3}
	lambda := polynomial.Lagrange(group, subset)
	secret := group.NewScalar()
	for _, id := range subset {
		secret.Add(group.NewScalar().Set(shares[id]).Mul(lambda[id]))
	}
	assert.True(t, secret.ActOnBase().Equal(groupKey))
}

func TestKeygenSingleSigner(t *testing.T) {
	cfg := &keygen.Config{Threshold: 2, Signers: map[party.SignerID]party.IDSlice{7: {0, 1, 2}}}
	s, out, err := keygen.Begin(cfg, 7, test.Rand(3), nil, time.Now())
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, keygen.Complete, s.State())
	result, err := s.Result()
	require.NoError(t, err)
	assert.Len(t, result.Parties, 3)
}

func TestKeygenNamesCheater(t *testing.T) {
	for _, policy := range []keygen.Policy{keygen.FailWholeRound, keygen.ExcludeFaulty} {
		sessions := run(t, newConfig(policy), func(msg *messages.DkgPrivateShares) {
			// party 3 sends a bad share to party 2
			if msg.Party == 3 {
				msg.Shares[2].Value.Add(party.ID(0).Scalar(group))
			}
		})

		s := sessions[2]
		require.Equal(t, keygen.Failed, s.State(), "policy %s", policy)
		_, err := s.Result()
		var cryptoErr *protocol.CryptoError
		require.True(t, errors.As(err, &cryptoErr))
		assert.Equal(t, []party.ID{3}, cryptoErr.Culprits)
		assert.ErrorIs(t, err, frost.ErrInvalidShare)
		require.Contains(t, s.Failures(), party.ID(3))

		// the other signers only see valid shares
		assert.Equal(t, keygen.Complete, sessions[1].State())
		assert.Equal(t, keygen.Complete, sessions[3].State())
	}
}

func TestKeygenExcludeFaulty(t *testing.T) {
	forge := func(msg *messages.DkgPrivateShares) {
		// party 2 publishes a commitment with someone else's proof
		if msg.Party == 2 {
			other, err := frost.NewParty(2, 4, 3, test.Rand(99))
			if err != nil {
				panic(err)
			}
			c, err := other.Commitment(test.Rand(100))
			if err != nil {
				panic(err)
			}
			msg.Commitment = &frost.PolyCommitment{ID: 2, Proof: c.Proof, Poly: msg.Commitment.Poly}
		}
	}

	t.Run("fail", func(t *testing.T) {
		sessions := run(t, newConfig(keygen.FailWholeRound), forge)
		for signer, s := range sessions {
			if signer == 2 {
				continue
			}
			assert.Equal(t, keygen.Failed, s.State())
			_, err := s.Result()
			var cryptoErr *protocol.CryptoError
			require.True(t, errors.As(err, &cryptoErr))
			assert.Equal(t, []party.ID{2}, cryptoErr.Culprits)
			assert.ErrorIs(t, err, frost.ErrInvalidCommitment)
			assert.Contains(t, s.Failures(), party.ID(2))
		}
	})

	t.Run("exclude", func(t *testing.T) {
		sessions := run(t, newConfig(keygen.ExcludeFaulty), forge)
		var groupKey curve.Point
		for signer, s := range sessions {
			if signer == 2 {
				continue
			}
			require.Equal(t, keygen.Complete, s.State())
			result, err := s.Result()
			require.NoError(t, err)
			assert.Equal(t, party.IDSlice{2}, result.Excluded)
			assert.Len(t, result.Commitments, 3)
			if groupKey == nil {
				groupKey = result.GroupKey
			}
			assert.True(t, groupKey.Equal(result.GroupKey))
		}
	})
}

func TestKeygenRejects(t *testing.T) {
	cfg := newConfig(keygen.FailWholeRound)
	s1, _, err := keygen.Begin(cfg, 1, test.Rand(1), nil, time.Now())
	require.NoError(t, err)
	_, out2, err := keygen.Begin(cfg, 2, test.Rand(2), nil, time.Now())
	require.NoError(t, err)

	require.NoError(t, s1.ReceiveShares(out2[0]))
	assert.ErrorIs(t, s1.ReceiveShares(out2[0]), keygen.ErrDuplicateShares)

	// signer 2 does not hold party 3
	impersonated := *out2[0]
	impersonated.Party = 3
	assert.ErrorIs(t, s1.ReceiveShares(&impersonated), protocol.ErrWrongParty)

	other := *out2[0]
	other.DkgID[0] ^= 1
	var validationErr *protocol.ValidationError
	assert.True(t, errors.As(s1.ReceiveShares(&other), &validationErr))

	assert.Equal(t, party.IDSlice{3}, s1.Missing())
	assert.Equal(t, 1, s1.Remaining())
	_, err = s1.Finalize()
	assert.ErrorIs(t, err, keygen.ErrWrongState)
}

func TestKeygenExpire(t *testing.T) {
	cfg := newConfig(keygen.FailWholeRound)
	now := time.Now()
	s, _, err := keygen.Begin(cfg, 1, test.Rand(1), nil, now)
	require.NoError(t, err)

	assert.False(t, s.Expire(now.Add(time.Second)))
	assert.Equal(t, keygen.AwaitingShares, s.State())
	assert.True(t, s.Expire(now.Add(2*time.Minute)))
	assert.Equal(t, keygen.Failed, s.State())
	_, err = s.Result()
	assert.ErrorIs(t, err, keygen.ErrTimeout)
	assert.False(t, s.Expire(now.Add(3*time.Minute)))
}

func TestConfig(t *testing.T) {
	cfg := newConfig(keygen.FailWholeRound)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(4), cfg.N())
	require.NoError(t, cfg.Check(newConfig(keygen.ExcludeFaulty)))

	changed := newConfig(keygen.FailWholeRound)
	changed.Threshold = 2
	assert.ErrorIs(t, cfg.Check(changed), keygen.ErrConfigMismatch)

	changed = newConfig(keygen.FailWholeRound)
	changed.Signers[2], changed.Signers[3] = changed.Signers[3], changed.Signers[2]
	assert.ErrorIs(t, cfg.Check(changed), keygen.ErrConfigMismatch)

	bad := newConfig(keygen.FailWholeRound)
	bad.Signers[3] = party.IDSlice{2}
	assert.ErrorIs(t, bad.Validate(), keygen.ErrInconsistentMap)

	bad = newConfig(keygen.FailWholeRound)
	bad.Signers[3] = party.IDSlice{5}
	assert.ErrorIs(t, bad.Validate(), keygen.ErrInconsistentMap)

	bad = newConfig(keygen.FailWholeRound)
	bad.Threshold = 5
	assert.Error(t, bad.Validate())

	_, _, err := keygen.Begin(cfg, 9, test.Rand(1), nil, time.Now())
	assert.ErrorIs(t, err, keygen.ErrNoLocalParties)

	for _, p := range []keygen.Policy{keygen.FailWholeRound, keygen.ExcludeFaulty} {
		parsed, err := keygen.ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
}

func TestResultMarshal(t *testing.T) {
	sessions := run(t, newConfig(keygen.FailWholeRound), nil)
	result, err := sessions[1].Result()
	require.NoError(t, err)

	data, err := result.MarshalBinary()
	require.NoError(t, err)
	var decoded keygen.Result
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.Equal(t, result.ID, decoded.ID)
	assert.True(t, result.GroupKey.Equal(decoded.GroupKey))
	assert.Equal(t, result.PublicKey(), decoded.PublicKey())
	require.Len(t, decoded.Parties, 2)
	for id, p := range result.Parties {
		want, err := p.PrivateShare()
		require.NoError(t, err)
		got, err := decoded.Parties[id].PrivateShare()
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}
	_, err = decoded.Aggregator()
	assert.NoError(t, err)
}
