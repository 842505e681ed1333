package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
	"github.com/taurusgroup/frost-peg/protocols/frost/sign"
)

// Sign has the nominated parties sign message, typically a 32 byte sighash,
// under the key of DKG dkgID.
//
// Answers that cannot be counted, such as duplicates, are logged and dropped.
// A nonce or share that fails verification ends the round with a
// *protocol.CryptoError naming the party.
func (c *Coordinator) Sign(ctx context.Context, dkgID protocol.DkgID, sigID protocol.SignatureID, message []byte, signers []party.ID) (*frost.Signature, error) {
	agg, err := c.Aggregator(dkgID)
	if err != nil {
		return nil, err
	}

	c.round.Lock()
	defer c.round.Unlock()

	log := c.log.With().Stringer("dkg_id", dkgID).Stringer("signature_id", sigID).Logger()
	cfg := &sign.Config{
		DkgID:       dkgID,
		SignatureID: sigID,
		Message:     message,
		Signers:     signers,
		Timeout:     c.cfg.SignTimeout,
	}
	session, err := sign.NewSession(cfg, agg, time.Now())
	if err != nil {
		return nil, err
	}
	if c.cfg.SignTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SignTimeout)
		defer cancel()
	}

	nonceReq, err := session.Start()
	if err != nil {
		return nil, err
	}
	if err = c.send(ctx, nonceReq); err != nil {
		return nil, err
	}
	log.Info().Interface("signers", signers).Msg("signing started")

	var shareReq *messages.SignShareRequest
	err = c.await(ctx, func(msg messages.Message) (bool, error) {
		resp, ok := msg.(*messages.NonceResponse)
		if !ok || resp.SignatureID != sigID {
			return false, nil
		}
		req, err := session.AddNonces(resp)
		if err = c.tolerate(err, resp.Signer); err != nil || req == nil {
			return false, err
		}
		shareReq = req
		return true, nil
	})
	if err != nil {
		return nil, c.signFailed(session, err)
	}
	if err = c.send(ctx, shareReq); err != nil {
		return nil, err
	}

	var sig *frost.Signature
	err = c.await(ctx, func(msg messages.Message) (bool, error) {
		resp, ok := msg.(*messages.SignShareResponse)
		if !ok || resp.SignatureID != sigID {
			return false, nil
		}
		out, err := session.AddShares(resp)
		if err = c.tolerate(err, resp.Signer); err != nil || out == nil {
			return false, err
		}
		sig = out
		return true, nil
	})
	if err != nil {
		return nil, c.signFailed(session, err)
	}

	c.metrics.SignEnded("success")
	log.Info().Msg("signature aggregated")
	return sig, nil
}

// tolerate drops the errors a misrouted or repeated answer causes.
func (c *Coordinator) tolerate(err error, from party.SignerID) error {
	var validationErr *protocol.ValidationError
	if errors.Is(err, sign.ErrDuplicate) || errors.As(err, &validationErr) {
		c.log.Warn().Err(err).Stringer("from", from).Msg("ignoring answer")
		return nil
	}
	return err
}

func (c *Coordinator) signFailed(session *sign.Session, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && session.Expire(time.Now()) {
		_, err = session.Signature()
		c.metrics.SignEnded("timeout")
	} else {
		c.metrics.SignEnded("failure")
	}
	c.log.Error().Err(err).Stringer("signature_id", session.ID()).Msg("signing failed")
	return err
}
