// Package net defines the transport the signers and the coordinator talk over.
//
// The transport is a relay: every envelope sent is delivered to every
// participant, the sender included, and each participant pulls its messages
// with Poll. Authentication is not the transport's business; envelopes are
// signed, and receivers check them with messages.Open.
package net

import (
	"context"
	"errors"

	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var (
	// ErrEmpty is returned by Poll when no message is waiting.
	ErrEmpty = errors.New("net: no message waiting")
	// ErrClosed is returned once an endpoint has left the network.
	ErrClosed = errors.New("net: endpoint closed")
)

// Net is a connection to the relay.
type Net interface {
	// Send hands env to the relay for delivery to every participant.
	Send(ctx context.Context, env *protocol.Envelope) error
	// Poll fetches the next message addressed to id, and buffers it for Next.
	// It returns ErrEmpty if nothing is waiting.
	Poll(ctx context.Context, id string) error
	// Next pops the oldest buffered message.
	Next() (*protocol.Envelope, bool)
}

// Drain polls id until the relay is empty, and returns every buffered message.
func Drain(ctx context.Context, n Net, id string) ([]*protocol.Envelope, error) {
	for {
		err := n.Poll(ctx, id)
		if errors.Is(err, ErrEmpty) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	var out []*protocol.Envelope
	for {
		env, ok := n.Next()
		if !ok {
			return out, nil
		}
		out = append(out, env)
	}
}
