package config_test

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/internal/test"
	"github.com/taurusgroup/frost-peg/pkg/config"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
)

func document(t *testing.T, extra string) string {
	_, keys := test.Roster(t, test.Rand(1))
	pub := func(signer party.SignerID) string {
		return hex.EncodeToString(keys.Signers[signer].PubKey().SerializeCompressed())
	}
	return fmt.Sprintf(`
network = "regtest"
relay_url = "http://127.0.0.1:9776"
threshold = 3
coordinator_key = "%s"
%s

[timeouts]
dkg = "1m"

[[signers]]
id = 1
key = "%s"
parties = [1, 0]

[[signers]]
id = 2
key = "%s"
parties = [2]

[[signers]]
id = 3
key = "%s"
parties = [3]
`, hex.EncodeToString(keys.Coordinator.PubKey().SerializeCompressed()), extra, pub(1), pub(2), pub(3))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.toml")
	require.NoError(t, os.WriteFile(path, []byte(document(t, `policy = "exclude"`)), 0o600))

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), c.Threshold)
	assert.Equal(t, "http://127.0.0.1:9776", c.RelayURL)
	assert.Equal(t, time.Minute, time.Duration(c.Timeouts.Dkg))
	assert.Equal(t, 10*time.Second, time.Duration(c.Timeouts.Sign), "defaults are kept")

	params, err := c.Params()
	require.NoError(t, err)
	assert.Equal(t, chaincfg.RegressionNetParams.Name, params.Name)

	roster, err := c.Roster()
	require.NoError(t, err)
	assert.Equal(t, 4, roster.N())
	assert.Equal(t, party.IDSlice{0, 1}, roster.Parties[1])

	var id protocol.DkgID
	kc, err := c.KeygenConfig(id)
	require.NoError(t, err)
	assert.Equal(t, keygen.ExcludeFaulty, kc.Policy)
	assert.NoError(t, kc.Validate())

	data, err := c.Marshal()
	require.NoError(t, err)
	again, err := config.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, c, again)
}

func TestParseRejects(t *testing.T) {
	var validationErr *protocol.ValidationError
	for name, edit := range map[string]func(string) string{
		"network": func(doc string) string {
			return strings.Replace(doc, `network = "regtest"`, `network = "moonnet"`, 1)
		},
		"threshold": func(doc string) string {
			return strings.Replace(doc, `threshold = 3`, `threshold = 5`, 1)
		},
		"relay url": func(doc string) string {
			return strings.Replace(doc, `"http://127.0.0.1:9776"`, `"127.0.0.1:9776"`, 1)
		},
		"policy":  func(doc string) string { return `policy = "maybe"` + doc },
		"unknown": func(doc string) string { return `color = "blue"` + doc },
		"duplicate party": func(doc string) string {
			return strings.Replace(doc, `parties = [3]`, `parties = [2]`, 1)
		},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(edit(document(t, ""))))
			assert.Error(t, err)
			assert.True(t, errors.As(err, &validationErr))
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRelayURLOptional(t *testing.T) {
	doc := strings.Replace(document(t, ""), `relay_url = "http://127.0.0.1:9776"`, "", 1)
	c, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, c.RelayURL)
}

func TestParsePrivateKey(t *testing.T) {
	key := test.NetworkKey(t, test.Rand(2))
	parsed, err := config.ParsePrivateKey(hex.EncodeToString(key.Serialize()))
	require.NoError(t, err)
	assert.True(t, key.PubKey().IsEqual(parsed.PubKey()))

	_, err = config.ParsePrivateKey("abcd")
	assert.Error(t, err)
}
