package signer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-peg/pkg/net"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 10 * time.Millisecond
	defaultTickInterval = time.Second
)

// Node connects a Signer to the relay.
type Node struct {
	signer *Signer
	net    net.Net
	// relayID is the id the node polls the relay with.
	relayID string
	log     zerolog.Logger

	PollInterval time.Duration
	TickInterval time.Duration
}

func NewNode(s *Signer, n net.Net, relayID string, log zerolog.Logger) *Node {
	return &Node{
		signer:       s,
		net:          n,
		relayID:      relayID,
		log:          log.With().Stringer("signer", s.ID()).Logger(),
		PollInterval: defaultPollInterval,
		TickInterval: defaultTickInterval,
	}
}

// Run polls the relay and processes envelopes until ctx is done or a send fails.
//
// Polling and processing run in separate goroutines, so a slow DKG
// finalization does not stall the relay connection.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	inbox := make(chan *protocol.Envelope, 64)

	g.Go(func() error {
		defer close(inbox)
		return n.poll(ctx, inbox)
	})
	g.Go(func() error {
		return n.process(ctx, inbox)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Node) poll(ctx context.Context, inbox chan<- *protocol.Envelope) error {
	for {
		err := n.net.Poll(ctx, n.relayID)
		switch {
		case err == nil:
		case errors.Is(err, net.ErrEmpty):
			if err = sleep(ctx, n.PollInterval); err != nil {
				return err
			}
		case errors.Is(err, net.ErrClosed), ctx.Err() != nil:
			return err
		default:
			// RetryNet already logged it
			if err = sleep(ctx, n.PollInterval); err != nil {
				return err
			}
		}
		for {
			env, ok := n.net.Next()
			if !ok {
				break
			}
			select {
			case inbox <- env:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (n *Node) process(ctx context.Context, inbox <-chan *protocol.Envelope) error {
	ticker := time.NewTicker(n.TickInterval)
	defer ticker.Stop()
	for {
		var (
			out []*protocol.Envelope
			err error
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			out, err = n.signer.Tick()
		case env, ok := <-inbox:
			if !ok {
				return nil
			}
			out, err = n.signer.Process(env)
			if err != nil {
				n.log.Warn().Err(err).Stringer("kind", env.Kind).Msg("envelope rejected")
				err = nil
			}
		}
		if err != nil {
			return err
		}
		for _, env := range out {
			if err = n.net.Send(ctx, env); err != nil {
				n.log.Error().Err(err).Stringer("kind", env.Kind).Msg("send failed")
				return err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
