package messages

import (
	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

// Message is implemented by every payload carried inside a protocol.Envelope.
type Message interface {
	Kind() protocol.Kind
}

// SignerMessage is a Message sent by a signer on behalf of some of its parties.
type SignerMessage interface {
	Message
	// From returns the signer that sent the message.
	From() party.SignerID
	// Parties returns the parties the message speaks for.
	Parties() []party.ID
}

// DkgBegin asks every signer to start a new DKG.
type DkgBegin struct {
	DkgID     protocol.DkgID                   `cbor:"1,keyasint"`
	Threshold uint32                           `cbor:"2,keyasint"`
	Signers   map[party.SignerID]party.IDSlice `cbor:"3,keyasint"`
}

// DkgPrivateShares carries one party's polynomial commitment, and the
// evaluations of its polynomial for every party.
//
// Shares are sent in the clear: confidentiality is left to the transport.
type DkgPrivateShares struct {
	DkgID      protocol.DkgID                  `cbor:"1,keyasint"`
	Signer     party.SignerID                  `cbor:"2,keyasint"`
	Party      party.ID                        `cbor:"3,keyasint"`
	Commitment *frost.PolyCommitment           `cbor:"4,keyasint"`
	Shares     map[party.ID]*frost.SecretShare `cbor:"5,keyasint"`
}

// DkgStatus is the outcome a signer reports in DkgEnd.
type DkgStatus uint8

const (
	DkgSuccess DkgStatus = iota + 1
	DkgFailure
)

func (s DkgStatus) String() string {
	switch s {
	case DkgSuccess:
		return "success"
	case DkgFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// DkgEnd reports the outcome of a DKG for all of a signer's parties.
type DkgEnd struct {
	DkgID  protocol.DkgID `cbor:"1,keyasint"`
	Signer party.SignerID `cbor:"2,keyasint"`
	Status DkgStatus      `cbor:"3,keyasint"`
	// GroupKey is the x-only group key, set on success.
	GroupKey []byte `cbor:"4,keyasint,omitempty"`
	// Failures maps misbehaving parties to the reason they were rejected.
	Failures map[party.ID]string `cbor:"5,keyasint,omitempty"`
	// Held lists the parties this signer holds.
	Held []party.ID `cbor:"6,keyasint"`
	// Excluded lists the parties left out of the group key.
	Excluded []party.ID `cbor:"7,keyasint,omitempty"`
}

// DkgQuery asks signers for the public output of a finished DKG.
type DkgQuery struct {
	DkgID protocol.DkgID `cbor:"1,keyasint"`
}

// DkgQueryResponse returns the commitments a signer accepted in a DKG.
type DkgQueryResponse struct {
	DkgID       protocol.DkgID          `cbor:"1,keyasint"`
	Signer      party.SignerID          `cbor:"2,keyasint"`
	Threshold   uint32                  `cbor:"3,keyasint"`
	N           uint32                  `cbor:"4,keyasint"`
	Commitments []*frost.PolyCommitment `cbor:"5,keyasint"`
}

// NonceRequest asks the nominated parties for fresh signing nonces.
type NonceRequest struct {
	DkgID       protocol.DkgID       `cbor:"1,keyasint"`
	SignatureID protocol.SignatureID `cbor:"2,keyasint"`
	Signers     []party.ID           `cbor:"3,keyasint"`
}

// NonceResponse carries the public nonces of a signer's nominated parties.
type NonceResponse struct {
	DkgID       protocol.DkgID                  `cbor:"1,keyasint"`
	SignatureID protocol.SignatureID            `cbor:"2,keyasint"`
	Signer      party.SignerID                  `cbor:"3,keyasint"`
	Nonces      map[party.ID]*frost.PublicNonce `cbor:"4,keyasint"`
}

// SignShareRequest asks the nominated parties to sign Message, given the
// public nonces of every nominated party.
type SignShareRequest struct {
	DkgID       protocol.DkgID                  `cbor:"1,keyasint"`
	SignatureID protocol.SignatureID            `cbor:"2,keyasint"`
	Message     []byte                          `cbor:"3,keyasint"`
	Nonces      map[party.ID]*frost.PublicNonce `cbor:"4,keyasint"`
}

// SignShareResponse carries the signature shares of a signer's nominated parties.
type SignShareResponse struct {
	DkgID       protocol.DkgID          `cbor:"1,keyasint"`
	SignatureID protocol.SignatureID    `cbor:"2,keyasint"`
	Signer      party.SignerID          `cbor:"3,keyasint"`
	Shares      []*frost.SignatureShare `cbor:"4,keyasint"`
}

func (*DkgBegin) Kind() protocol.Kind          { return protocol.KindDkgBegin }
func (*DkgPrivateShares) Kind() protocol.Kind  { return protocol.KindDkgPrivateShares }
func (*DkgEnd) Kind() protocol.Kind            { return protocol.KindDkgEnd }
func (*DkgQuery) Kind() protocol.Kind          { return protocol.KindDkgQuery }
func (*DkgQueryResponse) Kind() protocol.Kind  { return protocol.KindDkgQueryResponse }
func (*NonceRequest) Kind() protocol.Kind      { return protocol.KindNonceRequest }
func (*NonceResponse) Kind() protocol.Kind     { return protocol.KindNonceResponse }
func (*SignShareRequest) Kind() protocol.Kind  { return protocol.KindSignShareRequest }
func (*SignShareResponse) Kind() protocol.Kind { return protocol.KindSignShareResponse }

func (m *DkgPrivateShares) From() party.SignerID  { return m.Signer }
func (m *DkgEnd) From() party.SignerID            { return m.Signer }
func (m *DkgQueryResponse) From() party.SignerID  { return m.Signer }
func (m *NonceResponse) From() party.SignerID     { return m.Signer }
func (m *SignShareResponse) From() party.SignerID { return m.Signer }

func (m *DkgPrivateShares) Parties() []party.ID { return []party.ID{m.Party} }
func (m *DkgEnd) Parties() []party.ID           { return m.Held }

// Parties is empty: a signer relays every commitment it accepted, not only its own.
func (m *DkgQueryResponse) Parties() []party.ID { return nil }

func (m *NonceResponse) Parties() []party.ID {
	ids := make([]party.ID, 0, len(m.Nonces))
	for id := range m.Nonces {
		ids = append(ids, id)
	}
	return ids
}

func (m *SignShareResponse) Parties() []party.ID {
	ids := make([]party.ID, 0, len(m.Shares))
	for _, share := range m.Shares {
		if share != nil {
			ids = append(ids, share.ID)
		}
	}
	return ids
}
