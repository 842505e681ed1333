package protocol

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Filter rejects envelopes that were already admitted.
//
// It remembers the most recent envelopes only, so it bounds memory rather than
// guaranteeing uniqueness forever.
type Filter struct {
	seen *lru.Cache[[32]byte, struct{}]
}

// NewFilter returns a Filter remembering up to size envelopes.
func NewFilter(size int) (*Filter, error) {
	cache, err := lru.New[[32]byte, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("protocol.NewFilter: %w", err)
	}
	return &Filter{seen: cache}, nil
}

// Admit records env, returning ErrReplay if it was already recorded.
func (f *Filter) Admit(env *Envelope) error {
	if ok, _ := f.seen.ContainsOrAdd(env.ID(), struct{}{}); ok {
		return ErrReplay
	}
	return nil
}
