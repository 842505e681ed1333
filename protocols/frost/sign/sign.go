package sign

import (
	"errors"
	"fmt"
	"time"

	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var (
	ErrWrongState = errors.New("sign: message not expected in this state")
	ErrDuplicate  = errors.New("sign: party already answered")
	ErrTimeout    = errors.New("sign: timed out waiting for signers")
)

// State is the position of a Session in the signing round.
type State uint8

const (
	Idle State = iota
	NonceExchange
	ShareCollection
	Aggregating
	Signed
	Failed
)

var stateNames = [...]string{"idle", "nonce exchange", "share collection", "aggregating", "signed", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Done returns true for the terminal states.
func (s State) Done() bool {
	return s == Signed || s == Failed
}

// Config describes a single signature.
type Config struct {
	DkgID       protocol.DkgID
	SignatureID protocol.SignatureID
	// Message is the 32 byte digest to sign, typically a transaction sighash.
	Message []byte
	// Signers are the nominated parties, in the order supplied by the caller.
	Signers []party.ID
	// Timeout bounds the whole round. Zero means no timeout.
	Timeout time.Duration
}

// Session is the coordinator side of a signing round.
//
// It collects one public nonce per nominated party, hands the full set back to
// the signers, collects their signature shares, and aggregates them.
// A Session is not safe for concurrent use.
type Session struct {
	cfg      *Config
	agg      *frost.Aggregator
	signers  party.IDSlice
	state    State
	deadline time.Time

	nonces map[party.ID]*frost.PublicNonce
	shares map[party.ID]*frost.SignatureShare

	signature *frost.Signature
	err       error
}

// NewSession validates cfg against the key described by agg.
func NewSession(cfg *Config, agg *frost.Aggregator, now time.Time) (*Session, error) {
	if len(cfg.Message) == 0 {
		return nil, &protocol.ValidationError{Op: "sign.NewSession", Err: errors.New("empty message")}
	}
	signers := party.NewIDSlice(cfg.Signers)
	if !signers.Valid() {
		return nil, &protocol.ValidationError{Op: "sign.NewSession", Err: fmt.Errorf("duplicate signers in %v", cfg.Signers)}
	}
	if uint32(len(signers)) < agg.Threshold() {
		return nil, &protocol.ValidationError{Op: "sign.NewSession", Err: fmt.Errorf("%d signers is below the threshold %d", len(signers), agg.Threshold())}
	}
	for _, id := range signers {
		if uint32(id) >= agg.N() {
			return nil, &protocol.ValidationError{Op: "sign.NewSession", Err: fmt.Errorf("party %s out of range", id)}
		}
	}
	s := &Session{
		cfg:     cfg,
		agg:     agg,
		signers: signers,
		nonces:  make(map[party.ID]*frost.PublicNonce, len(signers)),
		shares:  make(map[party.ID]*frost.SignatureShare, len(signers)),
	}
	if cfg.Timeout > 0 {
		s.deadline = now.Add(cfg.Timeout)
	}
	return s, nil
}

// ID returns the signature id.
func (s *Session) ID() protocol.SignatureID { return s.cfg.SignatureID }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Signers returns the nominated parties in caller order.
func (s *Session) Signers() []party.ID { return s.cfg.Signers }

// Start moves the session to NonceExchange and returns the request to broadcast.
func (s *Session) Start() (*messages.NonceRequest, error) {
	if s.state != Idle {
		return nil, fmt.Errorf("%w: signature %s is %s", ErrWrongState, s.cfg.SignatureID, s.state)
	}
	s.state = NonceExchange
	return &messages.NonceRequest{
		DkgID:       s.cfg.DkgID,
		SignatureID: s.cfg.SignatureID,
		Signers:     s.cfg.Signers,
	}, nil
}

// AddNonces records the public nonces in msg.
//
// Once every nominated party has answered, the session moves to
// ShareCollection and the returned request is non-nil.
func (s *Session) AddNonces(msg *messages.NonceResponse) (*messages.SignShareRequest, error) {
	if s.state != NonceExchange {
		return nil, fmt.Errorf("%w: signature %s is %s", ErrWrongState, s.cfg.SignatureID, s.state)
	}
	if err := s.check(msg.DkgID, msg.SignatureID); err != nil {
		return nil, err
	}
	for id, nonce := range msg.Nonces {
		if !s.signers.Contains(id) {
			return nil, &protocol.ValidationError{Op: "sign.AddNonces", Err: fmt.Errorf("%w: party %s", frost.ErrNotSigner, id)}
		}
		if _, ok := s.nonces[id]; ok {
			return nil, fmt.Errorf("%w: party %s", ErrDuplicate, id)
		}
		if !nonce.IsValid() {
			return nil, &protocol.CryptoError{Op: "sign.AddNonces", Culprits: []party.ID{id}, Err: frost.ErrInvalidNonce}
		}
	}
	for id, nonce := range msg.Nonces {
		s.nonces[id] = nonce
	}
	if len(s.nonces) < len(s.signers) {
		return nil, nil
	}
	s.state = ShareCollection
	return &messages.SignShareRequest{
		DkgID:       s.cfg.DkgID,
		SignatureID: s.cfg.SignatureID,
		Message:     s.cfg.Message,
		Nonces:      s.nonces,
	}, nil
}

// AddShares records the signature shares in msg.
//
// Once every nominated party has answered, the shares are aggregated and the
// session ends. The returned signature is non-nil on success.
func (s *Session) AddShares(msg *messages.SignShareResponse) (*frost.Signature, error) {
	if s.state != ShareCollection {
		return nil, fmt.Errorf("%w: signature %s is %s", ErrWrongState, s.cfg.SignatureID, s.state)
	}
	if err := s.check(msg.DkgID, msg.SignatureID); err != nil {
		return nil, err
	}
	for _, share := range msg.Shares {
		if share == nil || share.Z == nil {
			return nil, &protocol.ValidationError{Op: "sign.AddShares", Err: frost.ErrInvalidSignatureShare}
		}
		if !s.signers.Contains(share.ID) {
			return nil, &protocol.ValidationError{Op: "sign.AddShares", Err: fmt.Errorf("%w: party %s", frost.ErrNotSigner, share.ID)}
		}
		if _, ok := s.shares[share.ID]; ok {
			return nil, fmt.Errorf("%w: party %s", ErrDuplicate, share.ID)
		}
	}
	for _, share := range msg.Shares {
		s.shares[share.ID] = share
	}
	if len(s.shares) < len(s.signers) {
		return nil, nil
	}
	return s.aggregate()
}

func (s *Session) aggregate() (*frost.Signature, error) {
	s.state = Aggregating
	shares := make([]*frost.SignatureShare, 0, len(s.shares))
	for _, id := range s.signers {
		shares = append(shares, s.shares[id])
	}
	sig, err := s.agg.Sign(s.cfg.Message, s.nonces, shares)
	if err != nil {
		s.state = Failed
		s.err = err
		return nil, err
	}
	s.state = Signed
	s.signature = sig
	return sig, nil
}

// Expire fails the session if its deadline passed before it ended.
// It returns true if the session was expired by this call.
func (s *Session) Expire(now time.Time) bool {
	if s.state.Done() || s.deadline.IsZero() || now.Before(s.deadline) {
		return false
	}
	s.state = Failed
	s.err = fmt.Errorf("%w: signature %s, waiting for parties %v", ErrTimeout, s.cfg.SignatureID, s.Pending())
	return true
}

// Pending returns the nominated parties that have not answered the current request.
func (s *Session) Pending() party.IDSlice {
	var pending []party.ID
	for _, id := range s.signers {
		switch s.state {
		case Idle, NonceExchange:
			if _, ok := s.nonces[id]; !ok {
				pending = append(pending, id)
			}
		default:
			if _, ok := s.shares[id]; !ok {
				pending = append(pending, id)
			}
		}
	}
	return pending
}

// Signature returns the aggregated signature, or the error that ended the round.
func (s *Session) Signature() (*frost.Signature, error) {
	switch s.state {
	case Signed:
		return s.signature, nil
	case Failed:
		return nil, s.err
	default:
		return nil, fmt.Errorf("sign: signature %s is %s", s.cfg.SignatureID, s.state)
	}
}

func (s *Session) check(dkgID protocol.DkgID, sigID protocol.SignatureID) error {
	if dkgID != s.cfg.DkgID || sigID != s.cfg.SignatureID {
		return &protocol.ValidationError{Op: "sign.Session", Err: fmt.Errorf("message for dkg %s signature %s", dkgID, sigID)}
	}
	return nil
}
