package net_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/frost-peg/pkg/net"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

func envelope(b byte) *protocol.Envelope {
	return &protocol.Envelope{Kind: protocol.KindDkgQuery, Payload: []byte{b}}
}

func TestHub(t *testing.T) {
	ctx := context.Background()
	hub := net.NewHub()
	a, b := hub.Endpoint(), hub.Endpoint()

	require.NoError(t, a.Send(ctx, envelope(1)))
	require.NoError(t, b.Send(ctx, envelope(2)))
	assert.Equal(t, 2, hub.Len())

	// everyone sees every envelope, the sender included, in order
	for _, id := range []string{"a", "b"} {
		e := a
		if id == "b" {
			e = b
		}
		got, err := net.Drain(ctx, e, id)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, []byte{1}, got[0].Payload)
		assert.Equal(t, []byte{2}, got[1].Payload)
		assert.ErrorIs(t, e.Poll(ctx, id), net.ErrEmpty)
	}

	_, ok := a.Next()
	assert.False(t, ok)

	hub.Quit("a")
	assert.ErrorIs(t, a.Poll(ctx, "a"), net.ErrClosed)
	assert.ErrorIs(t, b.Poll(ctx, "b"), net.ErrEmpty)
}

func TestHubIntercept(t *testing.T) {
	ctx := context.Background()
	hub := net.NewHub()
	hub.Intercept(func(env *protocol.Envelope) bool { return env.Payload[0] != 2 })
	e := hub.Endpoint()
	for i := byte(1); i <= 3; i++ {
		require.NoError(t, e.Send(ctx, envelope(i)))
	}
	got, err := net.Drain(ctx, e, "x")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte{3}, got[1].Payload)
}

func TestHubCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := net.NewHub().Endpoint()
	assert.ErrorIs(t, e.Send(ctx, envelope(1)), context.Canceled)
	assert.ErrorIs(t, e.Poll(ctx, "x"), context.Canceled)
}

// flaky fails the first failures sends.
type flaky struct {
	net.Net
	mtx      sync.Mutex
	failures int
	attempts int
	pollErr  error
}

var errDown = errors.New("relay down")

func (f *flaky) Send(ctx context.Context, env *protocol.Envelope) error {
	f.mtx.Lock()
	f.attempts++
	fail := f.attempts <= f.failures
	f.mtx.Unlock()
	if fail {
		return errDown
	}
	return f.Net.Send(ctx, env)
}

func (f *flaky) Poll(ctx context.Context, id string) error {
	if f.pollErr != nil {
		return f.pollErr
	}
	return f.Net.Poll(ctx, id)
}

func TestRetryNet(t *testing.T) {
	ctx := context.Background()
	hub := net.NewHub()
	inner := &flaky{Net: hub.Endpoint(), failures: 3}
	r := net.NewRetryNet(inner, time.Second, zerolog.Nop(), nil)

	require.NoError(t, r.Send(ctx, envelope(1)))
	assert.Equal(t, 4, inner.attempts)
	assert.Equal(t, 1, hub.Len())

	require.NoError(t, r.Poll(ctx, "x"))
	env, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, env.Payload)
	assert.ErrorIs(t, r.Poll(ctx, "x"), net.ErrEmpty, "empty is not a transport error")

	inner.pollErr = errDown
	err := r.Poll(ctx, "x")
	var transportErr *protocol.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.ErrorIs(t, err, errDown)
}

func TestRetryNetGivesUp(t *testing.T) {
	inner := &flaky{Net: net.NewHub().Endpoint(), failures: 1 << 30}
	r := net.NewRetryNet(inner, 20*time.Millisecond, zerolog.Nop(), nil)

	err := r.Send(context.Background(), envelope(1))
	var transportErr *protocol.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.ErrorIs(t, err, errDown)
	assert.Greater(t, inner.attempts, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	r = net.NewRetryNet(inner, 0, zerolog.Nop(), nil)
	err = r.Send(ctx, envelope(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryNetClosed(t *testing.T) {
	hub := net.NewHub()
	inner := &flaky{Net: hub.Endpoint(), pollErr: net.ErrClosed}
	r := net.NewRetryNet(inner, time.Second, zerolog.Nop(), nil)
	assert.ErrorIs(t, r.Poll(context.Background(), "x"), net.ErrClosed)
}
