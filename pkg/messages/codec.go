package messages

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(fmt.Sprintf("messages: cbor encoder: %v", err))
	}
	if decMode, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(fmt.Sprintf("messages: cbor decoder: %v", err))
	}
}

// Marshal returns the canonical encoding of msg.
func Marshal(msg Message) ([]byte, error) {
	data, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("messages.Marshal %s: %w", msg.Kind(), err)
	}
	return data, nil
}

// Seal encodes msg and signs it with the sender's network key.
func Seal(msg Message, key *secp256k1.PrivateKey) (*protocol.Envelope, error) {
	payload, err := Marshal(msg)
	if err != nil {
		return nil, err
	}
	return protocol.Seal(msg.Kind(), payload, key)
}

func newMessage(kind protocol.Kind) (Message, error) {
	switch kind {
	case protocol.KindDkgBegin:
		return &DkgBegin{}, nil
	case protocol.KindDkgPrivateShares:
		return &DkgPrivateShares{}, nil
	case protocol.KindDkgEnd:
		return &DkgEnd{}, nil
	case protocol.KindDkgQuery:
		return &DkgQuery{}, nil
	case protocol.KindDkgQueryResponse:
		return &DkgQueryResponse{}, nil
	case protocol.KindNonceRequest:
		return &NonceRequest{}, nil
	case protocol.KindNonceResponse:
		return &NonceResponse{}, nil
	case protocol.KindSignShareRequest:
		return &SignShareRequest{}, nil
	case protocol.KindSignShareResponse:
		return &SignShareResponse{}, nil
	default:
		return nil, protocol.ErrUnknownKind
	}
}

// Decode parses the payload of env without checking who sent it.
func Decode(env *protocol.Envelope) (Message, error) {
	msg, err := newMessage(env.Kind)
	if err != nil {
		return nil, err
	}
	if err = decMode.Unmarshal(env.Payload, msg); err != nil {
		return nil, &protocol.ValidationError{Op: "messages.Decode " + env.Kind.String(), Err: err}
	}
	return msg, nil
}

// Open decodes env and authenticates it against roster.
//
// Coordinator messages must be signed by the coordinator key. Signer messages
// must be signed by the key of the signer they claim to come from, and may only
// speak for parties held by that signer.
func Open(env *protocol.Envelope, roster *protocol.Roster) (Message, error) {
	msg, err := Decode(env)
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case SignerMessage:
		err = roster.VerifySigner(env, m.From(), m.Parties()...)
	default:
		err = roster.VerifyCoordinator(env)
	}
	if err != nil {
		return nil, &protocol.CryptoError{Op: "messages.Open " + env.Kind.String(), Err: err}
	}
	return msg, nil
}
