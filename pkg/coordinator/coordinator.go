// Package coordinator drives DKG and signing rounds over the relay, and
// aggregates the signers' answers.
//
// The coordinator holds no secret key material. It can stall a round, but it
// cannot forge a signature or learn a share.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-peg/internal/metrics"
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/net"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

const filterSize = 4096

var (
	ErrDkgFailed   = errors.New("coordinator: dkg failed")
	ErrKeyMismatch = errors.New("coordinator: signers report different group keys")
	ErrUnknownDkg  = errors.New("coordinator: unknown dkg")
	ErrTimeout     = errors.New("coordinator: timed out")

	// ErrCommitmentMismatch is returned when signers relay different DKG commitments.
	ErrCommitmentMismatch = errors.New("coordinator: signers report different commitments")
)

type Config struct {
	Key       *secp256k1.PrivateKey
	Roster    *protocol.Roster
	Threshold uint32
	// RelayID is the id the coordinator polls the relay with.
	RelayID     string
	DkgTimeout  time.Duration
	SignTimeout time.Duration
	// PollInterval is the wait between polls of an empty relay.
	PollInterval time.Duration
}

// Coordinator runs one round at a time.
type Coordinator struct {
	cfg     Config
	net     net.Net
	filter  *protocol.Filter
	metrics *metrics.Metrics
	log     zerolog.Logger

	// round serializes rounds, since they share the relay cursor.
	round sync.Mutex

	mtx         sync.Mutex
	aggregators map[protocol.DkgID]*frost.Aggregator
}

func New(cfg Config, n net.Net, m *metrics.Metrics, log zerolog.Logger) (*Coordinator, error) {
	if cfg.Key == nil || cfg.Roster == nil {
		return nil, &protocol.ValidationError{Op: "coordinator.New", Err: errors.New("missing key or roster")}
	}
	if err := cfg.Roster.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Roster.Coordinator.IsEqual(cfg.Key.PubKey()) {
		return nil, &protocol.ValidationError{Op: "coordinator.New", Err: errors.New("key does not match the roster")}
	}
	if cfg.Threshold == 0 || int(cfg.Threshold) > cfg.Roster.N() {
		return nil, &protocol.ValidationError{Op: "coordinator.New", Err: fmt.Errorf("threshold %d out of range for %d parties", cfg.Threshold, cfg.Roster.N())}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	filter, err := protocol.NewFilter(filterSize)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:         cfg,
		net:         n,
		filter:      filter,
		metrics:     m,
		log:         log.With().Str("role", "coordinator").Logger(),
		aggregators: make(map[protocol.DkgID]*frost.Aggregator),
	}, nil
}

// Aggregator returns the aggregator of a DKG this coordinator ran.
func (c *Coordinator) Aggregator(id protocol.DkgID) (*frost.Aggregator, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	agg, ok := c.aggregators[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDkg, id)
	}
	return agg, nil
}

func (c *Coordinator) send(ctx context.Context, msg messages.Message) error {
	env, err := messages.Seal(msg, c.cfg.Key)
	if err != nil {
		return err
	}
	if err = c.net.Send(ctx, env); err != nil {
		return err
	}
	return nil
}

// await feeds every authenticated signer message to handle, until handle
// returns true or an error, or ctx is done.
//
// Coordinator messages, including the echo of our own, are skipped.
func (c *Coordinator) await(ctx context.Context, handle func(messages.Message) (bool, error)) error {
	for {
		env, ok := c.net.Next()
		if !ok {
			err := c.net.Poll(ctx, c.cfg.RelayID)
			switch {
			case err == nil:
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, net.ErrEmpty):
			case errors.Is(err, net.ErrClosed):
				return err
			default:
				c.log.Debug().Err(err).Msg("poll failed")
			}
			if err = wait(ctx, c.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		if env.Kind.FromCoordinator() {
			continue
		}
		kind := env.Kind.String()
		msg, err := messages.Open(env, c.cfg.Roster)
		if err != nil {
			c.metrics.Rejected(kind, metrics.ReasonAuth)
			c.log.Warn().Err(err).Str("kind", kind).Msg("envelope rejected")
			continue
		}
		if err = c.filter.Admit(env); err != nil {
			c.metrics.Rejected(kind, metrics.ReasonReplay)
			continue
		}
		c.metrics.Admitted(kind)
		done, err := handle(msg)
		if err != nil || done {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
