package net

import (
	"context"
	"sync"

	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

// Hub is an in-memory relay.
//
// It keeps every envelope it was sent, and a read cursor per participant id,
// so each participant sees the full history in order.
type Hub struct {
	mtx     sync.Mutex
	log     []*protocol.Envelope
	cursors map[string]int
	closed  map[string]bool
	// deliver decides whether an envelope reaches the relay at all.
	deliver func(*protocol.Envelope) bool
}

func NewHub() *Hub {
	return &Hub{
		cursors: make(map[string]int),
		closed:  make(map[string]bool),
	}
}

// Intercept installs f as a gate in front of the relay. Envelopes for which
// f returns false are silently dropped, which simulates a lossy network.
func (h *Hub) Intercept(f func(*protocol.Envelope) bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.deliver = f
}

// Quit removes id from the network; later polls for id return ErrClosed.
func (h *Hub) Quit(id string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.closed[id] = true
}

// Len returns the number of envelopes the relay holds.
func (h *Hub) Len() int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.log)
}

func (h *Hub) post(env *protocol.Envelope) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.deliver != nil && !h.deliver(env) {
		return
	}
	h.log = append(h.log, env)
}

func (h *Hub) get(id string) (*protocol.Envelope, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed[id] {
		return nil, ErrClosed
	}
	i := h.cursors[id]
	if i >= len(h.log) {
		return nil, ErrEmpty
	}
	h.cursors[id] = i + 1
	return h.log[i], nil
}

// Endpoint returns a new connection to the hub.
func (h *Hub) Endpoint() *Endpoint {
	return &Endpoint{hub: h}
}

// Endpoint is a Net backed by a Hub.
type Endpoint struct {
	hub   *Hub
	mtx   sync.Mutex
	inbox []*protocol.Envelope
}

func (e *Endpoint) Send(ctx context.Context, env *protocol.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.hub.post(env)
	return nil
}

func (e *Endpoint) Poll(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := e.hub.get(id)
	if err != nil {
		return err
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.inbox = append(e.inbox, env)
	return nil
}

func (e *Endpoint) Next() (*protocol.Envelope, bool) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if len(e.inbox) == 0 {
		return nil, false
	}
	env := e.inbox[0]
	e.inbox[0] = nil
	e.inbox = e.inbox[1:]
	return env, true
}
