package protocol

import (
	"errors"
	"sync"
)

var ErrQueueFull = errors.New("protocol: queue is full")

// Queue buffers messages that arrive before the session they belong to exists.
type Queue[K comparable, M any] struct {
	pending map[K][]M
	size    int
	mtx     sync.Mutex
}

// NewQueue creates a Queue holding at most size messages per key.
func NewQueue[K comparable, M any](size int) *Queue[K, M] {
	return &Queue[K, M]{
		pending: make(map[K][]M),
		size:    size,
	}
}

// Store appends msg to the messages waiting for key.
func (q *Queue[K, M]) Store(key K, msg M) error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if len(q.pending[key]) >= q.size {
		return ErrQueueFull
	}
	q.pending[key] = append(q.pending[key], msg)
	return nil
}

// Take removes and returns every message waiting for key, in arrival order.
func (q *Queue[K, M]) Take(key K) []M {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	msgs := q.pending[key]
	delete(q.pending, key)
	return msgs
}

// Len returns the number of messages waiting for key.
func (q *Queue[K, M]) Len(key K) int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.pending[key])
}
