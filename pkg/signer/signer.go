// Package signer implements the signer side of the protocol: it answers the
// coordinator's DKG and signing requests for the parties it holds.
package signer

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/frost-peg/internal/metrics"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/pool"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/pkg/store"
	"github.com/taurusgroup/frost-peg/protocols/frost/keygen"
	"github.com/taurusgroup/frost-peg/protocols/frost/sign"
)

const (
	filterSize = 4096
	// queueSize bounds the shares buffered for a DKG that has not begun here.
	queueSize = 64
)

var ErrRosterMismatch = errors.New("signer: dkg parties do not match the roster")

type Config struct {
	ID     party.SignerID
	Key    *secp256k1.PrivateKey
	Roster *protocol.Roster
	Policy keygen.Policy
	// DkgTimeout bounds the wait for shares.
	DkgTimeout time.Duration
	// NonceTTL is how long unused nonces are kept.
	NonceTTL time.Duration
	// Rand defaults to crypto/rand.
	Rand io.Reader
}

// Signer handles the envelopes addressed to one signer.
// It is safe for concurrent use; calls to Process are serialized.
type Signer struct {
	mtx      sync.Mutex
	cfg      Config
	store    store.Store
	pool     *pool.Pool
	filter   *protocol.Filter
	queue    *protocol.Queue[protocol.DkgID, *messages.DkgPrivateShares]
	sessions map[protocol.DkgID]*keygen.Session
	nonces   *sign.NonceStore
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// New returns a Signer; pl and m may be nil.
func New(cfg Config, st store.Store, pl *pool.Pool, m *metrics.Metrics, log zerolog.Logger) (*Signer, error) {
	if cfg.Key == nil || cfg.Roster == nil {
		return nil, &protocol.ValidationError{Op: "signer.New", Err: errors.New("missing key or roster")}
	}
	if err := cfg.Roster.Validate(); err != nil {
		return nil, err
	}
	if _, ok := cfg.Roster.Parties[cfg.ID]; !ok {
		return nil, &protocol.ValidationError{Op: "signer.New", Err: fmt.Errorf("signer %s not in roster", cfg.ID)}
	}
	if !cfg.Roster.Signers[cfg.ID].IsEqual(cfg.Key.PubKey()) {
		return nil, &protocol.ValidationError{Op: "signer.New", Err: fmt.Errorf("key does not match roster entry of signer %s", cfg.ID)}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}
	filter, err := protocol.NewFilter(filterSize)
	if err != nil {
		return nil, err
	}
	return &Signer{
		cfg:      cfg,
		store:    st,
		pool:     pl,
		filter:   filter,
		queue:    protocol.NewQueue[protocol.DkgID, *messages.DkgPrivateShares](queueSize),
		sessions: make(map[protocol.DkgID]*keygen.Session),
		nonces:   sign.NewNonceStore(),
		metrics:  m,
		log:      log.With().Stringer("signer", cfg.ID).Logger(),
		now:      time.Now,
	}, nil
}

func (s *Signer) ID() party.SignerID { return s.cfg.ID }

// Process authenticates env and advances the matching session.
// It returns the envelopes to send in response.
//
// Envelopes meant for the coordinator, and our own, are ignored.
func (s *Signer) Process(env *protocol.Envelope) ([]*protocol.Envelope, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	kind := env.Kind.String()
	msg, err := messages.Open(env, s.cfg.Roster)
	if err != nil {
		var validationErr *protocol.ValidationError
		if errors.As(err, &validationErr) || errors.Is(err, protocol.ErrUnknownKind) {
			s.metrics.Rejected(kind, metrics.ReasonDecode)
		} else {
			s.metrics.Rejected(kind, metrics.ReasonAuth)
		}
		return nil, err
	}
	// only authenticated envelopes take a slot in the filter
	if err = s.filter.Admit(env); err != nil {
		s.metrics.Rejected(kind, metrics.ReasonReplay)
		return nil, err
	}
	s.metrics.Admitted(kind)

	var out []messages.Message
	switch m := msg.(type) {
	case *messages.DkgBegin:
		out, err = s.dkgBegin(m)
	case *messages.DkgPrivateShares:
		if m.Signer == s.cfg.ID {
			return nil, nil
		}
		out, err = s.dkgShares(m)
	case *messages.DkgQuery:
		out, err = s.dkgQuery(m)
	case *messages.NonceRequest:
		out, err = s.nonceRequest(m)
	case *messages.SignShareRequest:
		out, err = s.signShareRequest(m)
	default:
		return nil, nil
	}
	if err != nil {
		s.metrics.Rejected(kind, metrics.ReasonState)
		return nil, err
	}
	return s.seal(out)
}

func (s *Signer) seal(msgs []messages.Message) ([]*protocol.Envelope, error) {
	envs := make([]*protocol.Envelope, 0, len(msgs))
	for _, msg := range msgs {
		env, err := messages.Seal(msg, s.cfg.Key)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func (s *Signer) dkgBegin(m *messages.DkgBegin) ([]messages.Message, error) {
	cfg := &keygen.Config{
		ID:        m.DkgID,
		Threshold: m.Threshold,
		Signers:   m.Signers,
		Policy:    s.cfg.Policy,
		Timeout:   s.cfg.DkgTimeout,
	}
	log := s.log.With().Stringer("dkg_id", m.DkgID).Logger()

	// the coordinator may not reassign parties
	roster := &keygen.Config{ID: m.DkgID, Threshold: m.Threshold, Signers: s.cfg.Roster.Parties}
	if err := roster.Check(cfg); err != nil {
		return nil, &protocol.ValidationError{Op: "signer.DkgBegin", Err: fmt.Errorf("%w: %v", ErrRosterMismatch, err)}
	}
	if existing, ok := s.sessions[m.DkgID]; ok {
		if err := existing.Config().Check(cfg); err != nil {
			return nil, err
		}
		log.Debug().Msg("dkg already started")
		return nil, nil
	}
	if result, err := s.store.Get(m.DkgID); err == nil {
		done := &keygen.Config{ID: result.ID, Threshold: result.Threshold, Signers: result.Signers}
		if err = done.Check(cfg); err != nil {
			return nil, err
		}
		log.Debug().Msg("dkg already complete")
		return nil, nil
	}

	session, shares, err := keygen.Begin(cfg, s.cfg.ID, s.cfg.Rand, s.pool, s.now())
	if err != nil {
		return nil, err
	}
	s.sessions[m.DkgID] = session
	log.Info().Uint32("threshold", cfg.Threshold).Uint32("n", cfg.N()).Msg("dkg started")

	out := make([]messages.Message, 0, len(shares)+1)
	for _, msg := range shares {
		out = append(out, msg)
	}
	for _, early := range s.queue.Take(m.DkgID) {
		if err = session.ReceiveShares(early); err != nil {
			log.Warn().Err(err).Stringer("party", early.Party).Msg("dropping buffered shares")
		}
	}
	if end := s.dkgEnd(session); end != nil {
		out = append(out, end)
	}
	return out, nil
}

func (s *Signer) dkgShares(m *messages.DkgPrivateShares) ([]messages.Message, error) {
	session, ok := s.sessions[m.DkgID]
	if !ok {
		if _, err := s.store.Get(m.DkgID); err == nil {
			return nil, nil
		}
		return nil, s.queue.Store(m.DkgID, m)
	}
	if err := session.ReceiveShares(m); err != nil {
		return nil, err
	}
	if end := s.dkgEnd(session); end != nil {
		return []messages.Message{end}, nil
	}
	return nil, nil
}

// dkgEnd reports the outcome of a finished session, and drops it.
// It returns nil while the session is running.
func (s *Signer) dkgEnd(session *keygen.Session) *messages.DkgEnd {
	if !session.State().Done() {
		return nil
	}
	delete(s.sessions, session.ID())
	log := s.log.With().Stringer("dkg_id", session.ID()).Logger()
	end := &messages.DkgEnd{
		DkgID:  session.ID(),
		Signer: s.cfg.ID,
		Held:   session.Local(),
	}

	result, err := session.Result()
	if err == nil {
		err = s.store.Put(result)
	}
	if err != nil {
		end.Status = messages.DkgFailure
		end.Failures = make(map[party.ID]string)
		for id, fault := range session.Failures() {
			end.Failures[id] = fault.Error()
		}
		if errors.Is(err, keygen.ErrTimeout) {
			for _, id := range session.Missing() {
				end.Failures[id] = "no shares received"
			}
			s.metrics.DkgEnded("timeout")
		} else {
			s.metrics.DkgEnded("failure")
		}
		log.Error().Err(err).Msg("dkg failed")
		return end
	}

	key := result.PublicKey()
	end.Status = messages.DkgSuccess
	end.GroupKey = key[:]
	end.Excluded = result.Excluded
	s.metrics.DkgEnded("success")
	log.Info().Hex("group_key", end.GroupKey).Msg("dkg complete")
	return end
}

func (s *Signer) dkgQuery(m *messages.DkgQuery) ([]messages.Message, error) {
	result, err := s.store.Get(m.DkgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []messages.Message{&messages.DkgQueryResponse{
		DkgID:       m.DkgID,
		Signer:      s.cfg.ID,
		Threshold:   result.Threshold,
		N:           result.N,
		Commitments: result.Commitments,
	}}, nil
}

func (s *Signer) nonceRequest(m *messages.NonceRequest) ([]messages.Message, error) {
	result, err := s.store.Get(m.DkgID)
	if err != nil {
		return nil, fmt.Errorf("signer.NonceRequest: dkg %s: %w", m.DkgID, err)
	}
	resp, err := sign.RespondNonces(m, s.cfg.ID, result.Parties, s.nonces, s.cfg.Rand, s.now())
	if err != nil || resp == nil {
		return nil, err
	}
	s.log.Debug().Stringer("signature_id", m.SignatureID).Int("nonces", len(resp.Nonces)).Msg("nonces sent")
	return []messages.Message{resp}, nil
}

func (s *Signer) signShareRequest(m *messages.SignShareRequest) ([]messages.Message, error) {
	result, err := s.store.Get(m.DkgID)
	if err != nil {
		return nil, fmt.Errorf("signer.SignShareRequest: dkg %s: %w", m.DkgID, err)
	}
	resp, err := sign.RespondShares(m, s.cfg.ID, result.Parties, s.nonces)
	if err != nil {
		s.metrics.SignEnded("failure")
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	s.metrics.SignEnded("success")
	s.log.Info().Stringer("signature_id", m.SignatureID).Int("shares", len(resp.Shares)).Msg("signature shares sent")
	return []messages.Message{resp}, nil
}

// Tick expires DKG sessions past their deadline, and drops stale nonces.
// It returns the DkgEnd reports of expired sessions.
func (s *Signer) Tick() ([]*protocol.Envelope, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := s.now()
	var out []messages.Message
	for _, session := range s.sessions {
		if session.Expire(now) {
			out = append(out, s.dkgEnd(session))
		}
	}
	if s.cfg.NonceTTL > 0 {
		if n := s.nonces.Sweep(now, s.cfg.NonceTTL); n > 0 {
			s.log.Debug().Int("signatures", n).Msg("dropped unused nonces")
		}
	}
	return s.seal(out)
}

// Pending returns the number of DKG sessions in progress.
func (s *Signer) Pending() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.sessions)
}
