package sign

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var (
	ErrNoncesExist  = errors.New("sign: nonces already generated for this signature")
	ErrUnknownNonce = errors.New("sign: no nonce for this signature")
)

type nonceEntry struct {
	created time.Time
	nonces  map[party.ID]*frost.Nonce
}

// NonceStore holds the secret nonces of a signer's parties, per signature id.
//
// Nonces leave the store when they are taken, so that each one signs at most
// once. Requesting nonces twice for the same signature id is refused, since
// that would let a coordinator collect two shares with different nonces.
type NonceStore struct {
	mtx     sync.Mutex
	entries map[protocol.SignatureID]*nonceEntry
	// used remembers signature ids whose nonces were generated, until swept.
	used map[protocol.SignatureID]time.Time
}

func NewNonceStore() *NonceStore {
	return &NonceStore{
		entries: make(map[protocol.SignatureID]*nonceEntry),
		used:    make(map[protocol.SignatureID]time.Time),
	}
}

// Generate creates one nonce for each party in ids.
func (s *NonceStore) Generate(sigID protocol.SignatureID, parties map[party.ID]*frost.Party, ids []party.ID, rand io.Reader, now time.Time) (map[party.ID]*frost.PublicNonce, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.used[sigID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrNoncesExist, sigID)
	}
	entry := &nonceEntry{created: now, nonces: make(map[party.ID]*frost.Nonce, len(ids))}
	public := make(map[party.ID]*frost.PublicNonce, len(ids))
	for _, id := range ids {
		p, ok := parties[id]
		if !ok {
			return nil, fmt.Errorf("sign: party %s is not held here", id)
		}
		nonce := p.GenNonce(rand)
		entry.nonces[id] = nonce
		public[id] = nonce.Public()
	}
	s.entries[sigID] = entry
	s.used[sigID] = now
	return public, nil
}

// Take removes and returns the nonce of party id for sigID.
func (s *NonceStore) Take(sigID protocol.SignatureID, id party.ID) (*frost.Nonce, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	entry, ok := s.entries[sigID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNonce, sigID)
	}
	nonce, ok := entry.nonces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s, party %s", ErrUnknownNonce, sigID, id)
	}
	delete(entry.nonces, id)
	if len(entry.nonces) == 0 {
		delete(s.entries, sigID)
	}
	return nonce, nil
}

// Len returns the number of signatures with unused nonces.
func (s *NonceStore) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.entries)
}

// Sweep drops the nonces generated before now - ttl, and returns how many
// signatures were dropped.
//
// Used signature ids are remembered for twice as long, so that a late
// duplicate request is still refused.
func (s *NonceStore) Sweep(now time.Time, ttl time.Duration) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	dropped := 0
	for id, entry := range s.entries {
		if now.Sub(entry.created) > ttl {
			delete(s.entries, id)
			dropped++
		}
	}
	for id, created := range s.used {
		if now.Sub(created) > 2*ttl {
			delete(s.used, id)
		}
	}
	return dropped
}

// RespondNonces answers a NonceRequest for the nominated parties held by self.
//
// It returns nil if self holds none of them.
func RespondNonces(req *messages.NonceRequest, self party.SignerID, parties map[party.ID]*frost.Party, store *NonceStore, rand io.Reader, now time.Time) (*messages.NonceResponse, error) {
	ids := localSigners(req.Signers, parties)
	if len(ids) == 0 {
		return nil, nil
	}
	nonces, err := store.Generate(req.SignatureID, parties, ids, rand, now)
	if err != nil {
		return nil, err
	}
	return &messages.NonceResponse{
		DkgID:       req.DkgID,
		SignatureID: req.SignatureID,
		Signer:      self,
		Nonces:      nonces,
	}, nil
}

// RespondShares answers a SignShareRequest for the nominated parties held by self.
//
// Every local nonce is taken from the store before anything else is checked,
// so a rejected request still burns the nonces. It returns nil if self holds
// none of the nominated parties.
func RespondShares(req *messages.SignShareRequest, self party.SignerID, parties map[party.ID]*frost.Party, store *NonceStore) (*messages.SignShareResponse, error) {
	signers := make([]party.ID, 0, len(req.Nonces))
	for id := range req.Nonces {
		signers = append(signers, id)
	}
	ids := localSigners(signers, parties)
	if len(ids) == 0 {
		return nil, nil
	}

	nonces := make(map[party.ID]*frost.Nonce, len(ids))
	for _, id := range ids {
		nonce, err := store.Take(req.SignatureID, id)
		if err != nil {
			return nil, err
		}
		nonces[id] = nonce
	}

	resp := &messages.SignShareResponse{
		DkgID:       req.DkgID,
		SignatureID: req.SignatureID,
		Signer:      self,
		Shares:      make([]*frost.SignatureShare, 0, len(ids)),
	}
	for _, id := range ids {
		share, err := parties[id].Sign(req.Message, req.Nonces, nonces[id])
		if err != nil {
			return nil, fmt.Errorf("sign: party %s: %w", id, err)
		}
		resp.Shares = append(resp.Shares, share)
	}
	return resp, nil
}

func localSigners(signers []party.ID, parties map[party.ID]*frost.Party) party.IDSlice {
	ids := make([]party.ID, 0, len(parties))
	for _, id := range signers {
		if _, ok := parties[id]; ok {
			ids = append(ids, id)
		}
	}
	return party.NewIDSlice(ids)
}
