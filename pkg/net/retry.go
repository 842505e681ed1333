package net

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-peg/internal/metrics"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

const (
	retryInitialInterval = 2 * time.Millisecond
	retryMaxInterval     = 128 * time.Millisecond
)

// RetryNet retries failed sends with exponential backoff, and turns every
// failure of the wrapped Net into a *protocol.TransportError.
//
// Retrying happens here only; protocol code treats a failed Send as final.
type RetryNet struct {
	inner Net
	// maxElapsed bounds the time spent retrying a single send. Zero retries
	// until the context is done.
	maxElapsed time.Duration
	log        zerolog.Logger
	metrics    *metrics.Metrics
	connected  atomic.Bool
}

func NewRetryNet(inner Net, maxElapsed time.Duration, log zerolog.Logger, m *metrics.Metrics) *RetryNet {
	r := &RetryNet{
		inner:      inner,
		maxElapsed: maxElapsed,
		log:        log,
		metrics:    m,
	}
	r.connected.Store(true)
	return r
}

func (r *RetryNet) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = r.maxElapsed
	return backoff.WithContext(b, ctx)
}

func (r *RetryNet) Send(ctx context.Context, env *protocol.Envelope) error {
	op := func() error {
		err := r.inner.Send(ctx, env)
		if errors.Is(err, ErrClosed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		r.metrics.Retried()
		r.log.Debug().Err(err).Stringer("kind", env.Kind).Dur("retry_in", next).Msg("send failed")
	}
	if err := backoff.RetryNotify(op, r.newBackOff(ctx), notify); err != nil {
		return &protocol.TransportError{Op: "net.Send", Err: err}
	}
	return nil
}

// Poll makes a single attempt; the caller's loop provides the retries.
// A lost connection is logged once, as is its recovery.
func (r *RetryNet) Poll(ctx context.Context, id string) error {
	err := r.inner.Poll(ctx, id)
	switch {
	case err == nil, errors.Is(err, ErrEmpty):
		if !r.connected.Swap(true) {
			r.log.Info().Str("id", id).Msg("relay reachable again")
		}
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		if r.connected.Swap(false) {
			r.log.Warn().Err(err).Str("id", id).Msg("relay unreachable")
		}
		return &protocol.TransportError{Op: "net.Poll", Err: err}
	}
}

func (r *RetryNet) Next() (*protocol.Envelope, bool) {
	return r.inner.Next()
}
