// Package config loads the TOML configuration shared by the signers and the
// coordinator of a deployment.
//
//	network = "testnet"
//	relay_url = "http://127.0.0.1:9776"
//	threshold = 3
//	coordinator_key = "02…"
//	policy = "fail"
//
//	[timeouts]
//	dkg = "30s"
//	sign = "10s"
//	send = "5s"
//
//	[[signers]]
//	id = 1
//	key = "03…"
//	parties = [0, 1]
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pelletier/go-toml/v2"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
)

const (
	defaultDkgTimeout  = 30 * time.Second
	defaultSignTimeout = 10 * time.Second
	defaultSendTimeout = 5 * time.Second
)

// Duration is a time.Duration written as a string, such as "1m30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Timeouts struct {
	// Dkg bounds the wait for shares and for every signer's DkgEnd.
	Dkg Duration `toml:"dkg"`
	// Sign bounds a signing round; it is also how long unused nonces are kept.
	Sign Duration `toml:"sign"`
	// Send bounds the retries of a single send.
	Send Duration `toml:"send"`
}

type Signer struct {
	ID party.SignerID `toml:"id"`
	// Key is the hex encoded compressed network public key.
	Key     string     `toml:"key"`
	Parties []party.ID `toml:"parties"`
}

type Config struct {
	Network        string   `toml:"network"`
	// RelayURL is the http(s) address of the external relay, for the client
	// that connects a deployment to it. It may be empty when the relay runs
	// in process, as net.Hub does.
	RelayURL       string   `toml:"relay_url"`
	Threshold      uint32   `toml:"threshold"`
	CoordinatorKey string   `toml:"coordinator_key"`
	Policy         string   `toml:"policy"`
	StateDir       string   `toml:"state_dir"`
	Timeouts       Timeouts `toml:"timeouts"`
	Signers        []Signer `toml:"signers"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML document. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{
		Timeouts: Timeouts{
			Dkg:  Duration(defaultDkgTimeout),
			Sign: Duration(defaultSignTimeout),
			Send: Duration(defaultSendTimeout),
		},
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return nil, &protocol.ValidationError{Op: "config.Parse", Err: err}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Marshal encodes c back to TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks every field that can be checked without the network.
func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	if _, err := c.FailurePolicy(); err != nil {
		return &protocol.ValidationError{Op: "config", Err: err}
	}
	if c.RelayURL != "" {
		u, err := url.Parse(c.RelayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &protocol.ValidationError{Op: "config", Err: fmt.Errorf("invalid relay url %q", c.RelayURL)}
		}
	}
	if c.Timeouts.Dkg < 0 || c.Timeouts.Sign < 0 || c.Timeouts.Send < 0 {
		return &protocol.ValidationError{Op: "config", Err: errors.New("negative timeout")}
	}
	roster, err := c.Roster()
	if err != nil {
		return err
	}
	if c.Threshold == 0 || int(c.Threshold) > roster.N() {
		return &protocol.ValidationError{Op: "config", Err: fmt.Errorf("threshold %d out of range for %d parties", c.Threshold, roster.N())}
	}
	return nil
}

// Params returns the bitcoin network the commit addresses are derived on.
func (c *Config) Params() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, &protocol.ValidationError{Op: "config", Err: fmt.Errorf("unknown network %q", c.Network)}
	}
}

func (c *Config) FailurePolicy() (keygen.Policy, error) {
	return keygen.ParsePolicy(c.Policy)
}

// Roster decodes the network keys and the party assignment.
func (c *Config) Roster() (*protocol.Roster, error) {
	coordinator, err := parseKey(c.CoordinatorKey)
	if err != nil {
		return nil, &protocol.ValidationError{Op: "config", Err: fmt.Errorf("coordinator key: %w", err)}
	}
	r := &protocol.Roster{
		Coordinator: coordinator,
		Signers:     make(map[party.SignerID]*secp256k1.PublicKey, len(c.Signers)),
		Parties:     make(map[party.SignerID]party.IDSlice, len(c.Signers)),
	}
	for _, s := range c.Signers {
		if _, ok := r.Signers[s.ID]; ok {
			return nil, &protocol.ValidationError{Op: "config", Err: fmt.Errorf("signer %s listed twice", s.ID)}
		}
		key, err := parseKey(s.Key)
		if err != nil {
			return nil, &protocol.ValidationError{Op: "config", Err: fmt.Errorf("signer %s key: %w", s.ID, err)}
		}
		ids := party.NewIDSlice(s.Parties)
		if len(ids) == 0 || !ids.Valid() {
			return nil, &protocol.ValidationError{Op: "config", Err: fmt.Errorf("signer %s has parties %v", s.ID, s.Parties)}
		}
		r.Signers[s.ID] = key
		r.Parties[s.ID] = ids
	}
	if len(r.Signers) == 0 {
		return nil, &protocol.ValidationError{Op: "config", Err: errors.New("no signers")}
	}
	if err = r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// KeygenConfig returns the configuration of DKG id, as the coordinator will
// announce it.
func (c *Config) KeygenConfig(id protocol.DkgID) (*keygen.Config, error) {
	roster, err := c.Roster()
	if err != nil {
		return nil, err
	}
	policy, err := c.FailurePolicy()
	if err != nil {
		return nil, err
	}
	return &keygen.Config{
		ID:        id,
		Threshold: c.Threshold,
		Signers:   roster.Parties,
		Policy:    policy,
		Timeout:   time.Duration(c.Timeouts.Dkg),
	}, nil
}

func parseKey(s string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return secp256k1.ParsePubKey(raw)
}

// ParsePrivateKey decodes a hex encoded network private key.
func ParsePrivateKey(s string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("config: private key: %w", err)
	}
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("config: private key: %d bytes", len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}
