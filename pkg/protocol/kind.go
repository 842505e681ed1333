package protocol

import (
	"encoding/hex"
	"fmt"
)

// Kind identifies the payload carried by an Envelope.
type Kind uint8

const (
	KindDkgBegin Kind = iota + 1
	KindDkgPrivateShares
	KindDkgEnd
	KindDkgQuery
	KindDkgQueryResponse
	KindNonceRequest
	KindNonceResponse
	KindSignShareRequest
	KindSignShareResponse
)

var kindNames = map[Kind]string{
	KindDkgBegin:          "DkgBegin",
	KindDkgPrivateShares:  "DkgPrivateShares",
	KindDkgEnd:            "DkgEnd",
	KindDkgQuery:          "DkgQuery",
	KindDkgQueryResponse:  "DkgQueryResponse",
	KindNonceRequest:      "NonceRequest",
	KindNonceResponse:     "NonceResponse",
	KindSignShareRequest:  "SignShareRequest",
	KindSignShareResponse: "SignShareResponse",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid returns true if k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// FromCoordinator returns true for kinds only the coordinator may send.
func (k Kind) FromCoordinator() bool {
	switch k {
	case KindDkgBegin, KindDkgQuery, KindNonceRequest, KindSignShareRequest:
		return true
	default:
		return false
	}
}

// DkgID identifies a DKG round.
type DkgID [32]byte

// SignatureID identifies a signing round.
type SignatureID [32]byte

func (id DkgID) String() string       { return hex.EncodeToString(id[:8]) }
func (id SignatureID) String() string { return hex.EncodeToString(id[:8]) }

func (id DkgID) MarshalBinary() ([]byte, error)       { return id[:], nil }
func (id SignatureID) MarshalBinary() ([]byte, error) { return id[:], nil }

func (id *DkgID) UnmarshalBinary(data []byte) error {
	return unmarshalID(id[:], data)
}

func (id *SignatureID) UnmarshalBinary(data []byte) error {
	return unmarshalID(id[:], data)
}

func unmarshalID(dst, data []byte) error {
	if len(data) != len(dst) {
		return fmt.Errorf("protocol: invalid id length %d", len(data))
	}
	copy(dst, data)
	return nil
}
