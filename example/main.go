// Command example runs a 3-of-4 FROST deployment in one process: three
// signers holding parties {0,1}, {2} and {3} talk to a coordinator through an
// in-memory relay. After the DKG, the group key reveals a peg-in commit.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-peg/internal/metrics"
	"github.com/taurusgroup/frost-peg/pkg/commitreveal"
	"github.com/taurusgroup/frost-peg/pkg/config"
	"github.com/taurusgroup/frost-peg/pkg/coordinator"
	"github.com/taurusgroup/frost-peg/pkg/net"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/pool"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/pkg/signer"
	"github.com/taurusgroup/frost-peg/pkg/store"
	"golang.org/x/sync/errgroup"
)

var layout = map[party.SignerID][]party.ID{1: {0, 1}, 2: {2}, 3: {3}}

// deployment generates fresh network keys and the matching configuration.
func deployment(stateDir string) (*config.Config, *secp256k1.PrivateKey, map[party.SignerID]*secp256k1.PrivateKey, error) {
	coordinatorKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := &config.Config{
		Network:        "regtest",
		Threshold:      3,
		CoordinatorKey: hex.EncodeToString(coordinatorKey.PubKey().SerializeCompressed()),
		Policy:         "fail",
		StateDir:       stateDir,
		Timeouts: config.Timeouts{
			Dkg:  config.Duration(10 * time.Second),
			Sign: config.Duration(5 * time.Second),
			Send: config.Duration(time.Second),
		},
	}
	keys := make(map[party.SignerID]*secp256k1.PrivateKey, len(layout))
	for _, id := range []party.SignerID{1, 2, 3} {
		if keys[id], err = secp256k1.GeneratePrivateKey(); err != nil {
			return nil, nil, nil, err
		}
		cfg.Signers = append(cfg.Signers, config.Signer{
			ID:      id,
			Key:     hex.EncodeToString(keys[id].PubKey().SerializeCompressed()),
			Parties: layout[id],
		})
	}
	if err = cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	return cfg, coordinatorKey, keys, nil
}

func run(ctx context.Context, log zerolog.Logger, stateDir string) error {
	cfg, coordinatorKey, keys, err := deployment(stateDir)
	if err != nil {
		return err
	}
	doc, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", doc)

	roster, err := cfg.Roster()
	if err != nil {
		return err
	}
	policy, err := cfg.FailurePolicy()
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	pl := pool.NewPool(0)
	defer pl.TearDown()

	hub := net.NewHub()
	if cfg.RelayURL != "" {
		log.Warn().Str("relay_url", cfg.RelayURL).Msg("using the in-process relay instead")
	}
	nodeCtx, stop := context.WithCancel(ctx)
	defer stop()
	nodes, nodeCtx := errgroup.WithContext(nodeCtx)
	for id, key := range keys {
		st, err := store.NewFile(filepath.Join(cfg.StateDir, id.String()))
		if err != nil {
			return err
		}
		s, err := signer.New(signer.Config{
			ID:         id,
			Key:        key,
			Roster:     roster,
			Policy:     policy,
			DkgTimeout: time.Duration(cfg.Timeouts.Dkg),
			NonceTTL:   time.Duration(cfg.Timeouts.Sign),
		}, st, pl, m, log)
		if err != nil {
			return err
		}
		endpoint := net.NewRetryNet(hub.Endpoint(), time.Duration(cfg.Timeouts.Send), log, m)
		node := signer.NewNode(s, endpoint, "signer-"+id.String(), log)
		nodes.Go(func() error { return node.Run(nodeCtx) })
	}

	c, err := coordinator.New(coordinator.Config{
		Key:          coordinatorKey,
		Roster:       roster,
		Threshold:    cfg.Threshold,
		RelayID:      "coordinator",
		DkgTimeout:   time.Duration(cfg.Timeouts.Dkg),
		SignTimeout:  time.Duration(cfg.Timeouts.Sign),
		PollInterval: 5 * time.Millisecond,
	}, net.NewRetryNet(hub.Endpoint(), time.Duration(cfg.Timeouts.Send), log, m), m, log)
	if err != nil {
		return err
	}

	var dkgID protocol.DkgID
	if _, err = rand.Read(dkgID[:]); err != nil {
		return err
	}
	agg, err := c.RunDKG(ctx, dkgID)
	if err != nil {
		return err
	}
	groupKey, err := schnorr.ParsePubKey(agg.GroupKey().XBytes())
	if err != nil {
		return err
	}
	log.Info().Hex("group_key", agg.GroupKey().XBytes()).Msg("dkg done")

	reveal, err := pegIn(ctx, c, dkgID, params, groupKey)
	if err != nil {
		return err
	}
	fmt.Printf("reveal %s\n", reveal)

	stop()
	if err = nodes.Wait(); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if metric.GetCounter() != nil {
				log.Debug().Str("metric", f.GetName()).Float64("value", metric.GetCounter().GetValue()).Msg("counter")
			}
		}
	}
	return nil
}

// pegIn builds a peg-in commit to the group key, and has parties 0, 1 and 2
// sign its reveal.
func pegIn(ctx context.Context, c *coordinator.Coordinator, dkgID protocol.DkgID, params *chaincfg.Params, groupKey *btcec.PublicKey) (chainhash.Hash, error) {
	builder, err := commitreveal.NewBuilder(params)
	if err != nil {
		return chainhash.Hash{}, err
	}
	depositor, err := btcec.NewPrivateKey()
	if err != nil {
		return chainhash.Hash{}, err
	}
	data := &commitreveal.PegInData{
		Address:   commitreveal.NewStacksAddress(26, depositor.PubKey()),
		RevealFee: 2_000,
	}
	in := &commitreveal.RevealInputs{
		Magic:     [2]byte{'i', 'd'},
		Revealer:  groupKey,
		Reclaimer: depositor.PubKey(),
	}
	commit, err := builder.PegInCommit(data, in)
	if err != nil {
		return chainhash.Hash{}, err
	}
	fmt.Printf("commit address %s\n", commit.EncodeAddress())

	// Pretend the depositor paid the commit address in the first output of
	// some transaction.
	const amount = 100_000
	in.CommitOutput = wire.OutPoint{Hash: chainhash.HashH(commit.ScriptAddress()), Index: 0}
	pegWallet, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(groupKey), params)
	if err != nil {
		return chainhash.Hash{}, err
	}
	tx, err := builder.PegInReveal(data, in, amount, pegWallet)
	if err != nil {
		return chainhash.Hash{}, err
	}
	payload, err := data.MarshalBinary()
	if err != nil {
		return chainhash.Hash{}, err
	}
	info, err := builder.SpendInfo(payload, in.Revealer, in.Reclaimer)
	if err != nil {
		return chainhash.Hash{}, err
	}
	sighash, err := builder.RevealSigHash(tx, info, amount)
	if err != nil {
		return chainhash.Hash{}, err
	}

	var sigID protocol.SignatureID
	copy(sigID[:], sighash)
	sig, err := c.Sign(ctx, dkgID, sigID, sighash, []party.ID{0, 1, 2})
	if err != nil {
		return chainhash.Hash{}, err
	}
	if err = commitreveal.AttachSignature(tx, sig.Taproot()); err != nil {
		return chainhash.Hash{}, err
	}
	return tx.TxHash(), nil
}

func main() {
	stateDir := flag.String("state", "", "directory for the signers' key shares (default: a temporary directory)")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if *stateDir == "" {
		dir, err := os.MkdirTemp("", "frost-peg")
		if err != nil {
			log.Fatal().Err(err).Msg("state directory")
		}
		*stateDir = dir
		defer os.RemoveAll(dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err := run(ctx, log, *stateDir)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("example failed")
	}
}
