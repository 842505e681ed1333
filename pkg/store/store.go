// Package store persists the output of completed DKGs.
package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
)

var (
	ErrNotFound = errors.New("store: dkg not found")
	ErrExists   = errors.New("store: dkg already stored")
)

// Store holds DKG results by id. Results are written once.
type Store interface {
	Put(r *keygen.Result) error
	Get(id protocol.DkgID) (*keygen.Result, error)
	List() ([]protocol.DkgID, error)
}

// Memory is a Store that forgets everything when the process exits.
type Memory struct {
	mtx     sync.RWMutex
	results map[protocol.DkgID]*keygen.Result
}

func NewMemory() *Memory {
	return &Memory{results: make(map[protocol.DkgID]*keygen.Result)}
}

func (m *Memory) Put(r *keygen.Result) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if _, ok := m.results[r.ID]; ok {
		return ErrExists
	}
	m.results[r.ID] = r
	return nil
}

func (m *Memory) Get(id protocol.DkgID) (*keygen.Result, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *Memory) List() ([]protocol.DkgID, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	ids := make([]protocol.DkgID, 0, len(m.results))
	for id := range m.results {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids, nil
}

func sortIDs(ids []protocol.DkgID) {
	sort.Slice(ids, func(i, j int) bool {
		for k := range ids[i] {
			if ids[i][k] != ids[j][k] {
				return ids[i][k] < ids[j][k]
			}
		}
		return false
	})
}
