package keygen

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/pool"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var (
	ErrWrongState      = errors.New("keygen: message not expected in this state")
	ErrDuplicateShares = errors.New("keygen: shares already received from party")
	ErrTimeout         = errors.New("keygen: timed out waiting for shares")
	ErrNoLocalParties  = errors.New("keygen: signer holds no parties")
)

// State is the position of a Session in the DKG.
type State uint8

const (
	Idle State = iota
	AwaitingShares
	Finalizing
	Complete
	Failed
)

var stateNames = [...]string{"idle", "awaiting shares", "finalizing", "complete", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Done returns true for the terminal states.
func (s State) Done() bool {
	return s == Complete || s == Failed
}

// Session runs the DKG for every party held by one signer.
//
// A Session is not safe for concurrent use; the owner serializes calls.
type Session struct {
	cfg      *Config
	self     party.SignerID
	pool     *pool.Pool
	state    State
	deadline time.Time

	local party.IDSlice
	// parties are the local parties, until the DKG ends.
	parties map[party.ID]*frost.Party
	// commitments[l] is the commitment published by party l.
	commitments map[party.ID]*frost.PolyCommitment
	// shares[i][l] is fₗ(i+1), sent by party l to local party i.
	shares map[party.ID]map[party.ID]curve.Scalar
	// faults records structural problems with a sender's message.
	faults map[party.ID]error
	// remaining counts the parties we still need shares from.
	remaining int

	result *Result
	err    error
}

// Begin starts a DKG for the parties held by self.
//
// It returns the session, and one DkgPrivateShares per local party, which must
// be delivered to the other signers. The local parties' own shares are already
// recorded, so a signer holding every party completes immediately.
func Begin(cfg *Config, self party.SignerID, rand io.Reader, pl *pool.Pool, now time.Time) (*Session, []*messages.DkgPrivateShares, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	local, ok := cfg.Signers[self]
	if !ok || len(local) == 0 {
		return nil, nil, &protocol.ValidationError{Op: "keygen.Begin", Err: fmt.Errorf("%w: signer %s", ErrNoLocalParties, self)}
	}

	n, t := cfg.N(), cfg.Threshold
	s := &Session{
		cfg:         cfg,
		self:        self,
		pool:        pl,
		state:       AwaitingShares,
		local:       local,
		parties:     make(map[party.ID]*frost.Party, len(local)),
		commitments: make(map[party.ID]*frost.PolyCommitment, n),
		shares:      make(map[party.ID]map[party.ID]curve.Scalar, len(local)),
		faults:      make(map[party.ID]error),
		remaining:   int(n),
	}
	if cfg.Timeout > 0 {
		s.deadline = now.Add(cfg.Timeout)
	}

	out := make([]*messages.DkgPrivateShares, 0, len(local))
	for _, id := range local {
		p, err := frost.NewParty(id, n, t, rand)
		if err != nil {
			return nil, nil, &protocol.ValidationError{Op: "keygen.Begin", Err: err}
		}
		s.parties[id] = p
		s.shares[id] = make(map[party.ID]curve.Scalar, n)
	}
	for _, id := range local {
		p := s.parties[id]
		commitment, err := p.Commitment(rand)
		if err != nil {
			return nil, nil, fmt.Errorf("keygen.Begin: %w", err)
		}
		scalars, err := p.Shares()
		if err != nil {
			return nil, nil, fmt.Errorf("keygen.Begin: %w", err)
		}
		msg := &messages.DkgPrivateShares{
			DkgID:      cfg.ID,
			Signer:     self,
			Party:      id,
			Commitment: commitment,
			Shares:     make(map[party.ID]*frost.SecretShare, len(scalars)-1),
		}
		for to, share := range scalars {
			if to == id {
				continue
			}
			msg.Shares[to] = &frost.SecretShare{Value: share}
		}
		out = append(out, msg)

		s.commitments[id] = commitment
		for _, to := range local {
			s.shares[to][id] = group.NewScalar().Set(scalars[to])
		}
		s.remaining--
	}

	if s.remaining == 0 {
		_, _ = s.Finalize()
	}
	return s, out, nil
}

// ID returns the DKG id.
func (s *Session) ID() protocol.DkgID { return s.cfg.ID }

// Config returns the configuration the session was started with.
func (s *Session) Config() *Config { return s.cfg }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Local returns the parties held by this signer.
func (s *Session) Local() party.IDSlice { return s.local }

// Remaining returns the number of parties whose shares are still missing.
func (s *Session) Remaining() int { return s.remaining }

// Result returns the output of a completed DKG, or the error that ended it.
func (s *Session) Result() (*Result, error) {
	switch s.state {
	case Complete:
		return s.result, nil
	case Failed:
		return nil, s.err
	default:
		return nil, fmt.Errorf("keygen: dkg %s is %s", s.cfg.ID, s.state)
	}
}

// Missing returns the parties whose shares have not arrived.
func (s *Session) Missing() party.IDSlice {
	var missing []party.ID
	for i := uint32(0); i < s.cfg.N(); i++ {
		id := party.ID(i)
		_, committed := s.commitments[id]
		_, faulty := s.faults[id]
		if !committed && !faulty {
			missing = append(missing, id)
		}
	}
	return party.NewIDSlice(missing)
}

// ReceiveShares records the commitment of msg.Party, and the shares it sent to
// our local parties. Once every party has been heard from, the session is
// finalized.
//
// Structural problems with the message are attributed to the sender and reported
// by Finalize; errors are only returned for messages that cannot be counted.
func (s *Session) ReceiveShares(msg *messages.DkgPrivateShares) error {
	if s.state != AwaitingShares {
		return fmt.Errorf("%w: dkg %s is %s", ErrWrongState, s.cfg.ID, s.state)
	}
	if msg.DkgID != s.cfg.ID {
		return &protocol.ValidationError{Op: "keygen.ReceiveShares", Err: fmt.Errorf("dkg id %s, expected %s", msg.DkgID, s.cfg.ID)}
	}
	from := msg.Party
	if owner, ok := s.cfg.Owner(from); !ok || owner != msg.Signer {
		return &protocol.CryptoError{Op: "keygen.ReceiveShares", Culprits: []party.ID{from}, Err: protocol.ErrWrongParty}
	}
	if _, ok := s.commitments[from]; ok {
		return fmt.Errorf("%w: party %s", ErrDuplicateShares, from)
	}
	if _, ok := s.faults[from]; ok {
		return fmt.Errorf("%w: party %s", ErrDuplicateShares, from)
	}

	switch {
	case msg.Commitment == nil:
		s.faults[from] = fmt.Errorf("%w: missing", frost.ErrInvalidCommitment)
	case msg.Commitment.ID != from:
		s.faults[from] = fmt.Errorf("%w: commitment for party %s", frost.ErrInvalidCommitment, msg.Commitment.ID)
	default:
		s.commitments[from] = msg.Commitment
		for _, to := range s.local {
			if share, ok := msg.Shares[to]; ok && share != nil && share.Value != nil {
				s.shares[to][from] = share.Value
			}
		}
	}
	s.remaining--

	if s.remaining == 0 {
		// the outcome is read back with Result
		_, _ = s.Finalize()
	}
	return nil
}

// Finalize computes the private share of every local party.
//
// Commitment proofs are checked first. Under FailWholeRound any invalid proof
// fails the DKG; under ExcludeFaulty the offending parties are left out of the
// group key. Each local party then checks the shares it received against the
// accepted commitments; any mismatch fails the DKG.
//
// On failure the error is a *protocol.CryptoError wrapping a *frost.DkgError,
// which maps every culprit to its fault.
func (s *Session) Finalize() (*Result, error) {
	if s.state.Done() {
		return s.Result()
	}
	if s.remaining > 0 {
		return nil, fmt.Errorf("%w: waiting for %d parties", ErrWrongState, s.remaining)
	}
	s.state = Finalizing

	faults := make(map[party.ID]error, len(s.faults))
	for id, err := range s.faults {
		faults[id] = err
	}
	senders := make([]party.ID, 0, len(s.commitments))
	for id := range s.commitments {
		senders = append(senders, id)
	}
	senders = party.NewIDSlice(senders)
	degree := int(s.cfg.Threshold) - 1
	invalid := s.pool.Errors(len(senders), func(i int) error {
		c := s.commitments[senders[i]]
		if c.Poly == nil || c.Poly.Degree() != degree {
			return fmt.Errorf("%w: wrong degree", frost.ErrInvalidCommitment)
		}
		if !c.Verify() {
			return frost.ErrInvalidCommitment
		}
		return nil
	})
	for i, err := range invalid {
		faults[senders[i]] = err
	}

	accepted := make(map[party.ID]*frost.PolyCommitment, len(s.commitments))
	for id, c := range s.commitments {
		if _, bad := faults[id]; !bad {
			accepted[id] = c
		}
	}

	var excluded party.IDSlice
	if len(faults) > 0 {
		if s.cfg.Policy != ExcludeFaulty {
			return nil, s.fail(faults)
		}
		if uint32(len(accepted)) < s.cfg.Threshold {
			return nil, s.fail(faults)
		}
		excluded = make(party.IDSlice, 0, len(faults))
		for id := range faults {
			excluded = append(excluded, id)
		}
		excluded = party.NewIDSlice(excluded)
	}

	shareFaults := make(map[party.ID]error)
	for _, id := range s.local {
		err := s.parties[id].ComputeSecret(s.pool, s.shares[id], accepted)
		if err == nil {
			continue
		}
		var dkgErr *frost.DkgError
		if !errors.As(err, &dkgErr) {
			s.state = Failed
			s.err = fmt.Errorf("keygen.Finalize: party %s: %w", id, err)
			s.erase()
			return nil, s.err
		}
		for culprit, e := range dkgErr.Errors {
			shareFaults[culprit] = fmt.Errorf("to party %s: %w", id, e)
		}
	}
	if len(shareFaults) > 0 {
		for id, err := range faults {
			shareFaults[id] = err
		}
		return nil, s.fail(shareFaults)
	}

	result, err := newResult(s.cfg, s.parties, accepted, excluded)
	if err != nil {
		s.state = Failed
		s.err = err
		s.erase()
		return nil, err
	}
	s.state = Complete
	s.result = result
	s.erase()
	return result, nil
}

// Expire fails the session if its deadline passed before every share arrived.
// It returns true if the session was expired by this call.
func (s *Session) Expire(now time.Time) bool {
	if s.state != AwaitingShares || s.deadline.IsZero() || now.Before(s.deadline) {
		return false
	}
	s.state = Failed
	s.err = fmt.Errorf("%w: dkg %s, missing parties %v", ErrTimeout, s.cfg.ID, s.Missing())
	s.erase()
	return true
}

// Failures returns the culprits of a failed DKG, mapped to their fault.
func (s *Session) Failures() map[party.ID]error {
	var dkgErr *frost.DkgError
	if s.state != Failed || !errors.As(s.err, &dkgErr) {
		return nil
	}
	return dkgErr.Errors
}

func (s *Session) fail(faults map[party.ID]error) error {
	dkgErr := &frost.DkgError{Errors: faults}
	s.state = Failed
	s.err = &protocol.CryptoError{Op: "keygen.Finalize", Culprits: dkgErr.Culprits(), Err: dkgErr}
	s.erase()
	return s.err
}

// erase drops the received shares, which are no longer needed.
func (s *Session) erase() {
	for _, received := range s.shares {
		for _, share := range received {
			share.Set(group.NewScalar())
		}
	}
	s.shares = nil
	if s.state != Complete {
		s.parties = nil
	}
}
