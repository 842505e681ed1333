package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/taurusgroup/frost-peg/pkg/frost"
	"github.com/taurusgroup/frost-peg/pkg/messages"
	"github.com/taurusgroup/frost-peg/pkg/party"
	"github.com/taurusgroup/frost-peg/pkg/protocol"
)

// RunDKG asks every signer to run DKG id, and waits for all of them to report.
//
// On success it returns the aggregator for the new key, built from the
// commitment each party's owner signed in its DkgPrivateShares. If any signer
// reports a failure, the error is a *protocol.CryptoError naming every party
// some signer blamed.
func (c *Coordinator) RunDKG(ctx context.Context, id protocol.DkgID) (*frost.Aggregator, error) {
	c.round.Lock()
	defer c.round.Unlock()

	log := c.log.With().Stringer("dkg_id", id).Logger()
	if c.cfg.DkgTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DkgTimeout)
		defer cancel()
	}

	begin := &messages.DkgBegin{DkgID: id, Threshold: c.cfg.Threshold, Signers: c.cfg.Roster.Parties}
	if err := c.send(ctx, begin); err != nil {
		return nil, err
	}
	log.Info().Uint32("threshold", c.cfg.Threshold).Int("signers", len(begin.Signers)).Msg("dkg started")

	ends := make(map[party.SignerID]*messages.DkgEnd, len(c.cfg.Roster.Parties))
	owned := make(map[party.ID]*frost.PolyCommitment, c.cfg.Roster.N())
	err := c.await(ctx, func(msg messages.Message) (bool, error) {
		switch m := msg.(type) {
		case *messages.DkgPrivateShares:
			// Open has checked that m.Signer holds m.Party
			if m.DkgID == id && m.Commitment != nil && m.Commitment.ID == m.Party {
				if _, dup := owned[m.Party]; !dup {
					owned[m.Party] = m.Commitment
				}
			}
		case *messages.DkgEnd:
			if m.DkgID != id {
				break
			}
			if _, dup := ends[m.Signer]; !dup {
				ends[m.Signer] = m
			}
			return len(ends) == len(c.cfg.Roster.Parties), nil
		}
		return false, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.metrics.DkgEnded("timeout")
			return nil, fmt.Errorf("%w: dkg %s, waiting for signers %v", ErrTimeout, id, c.silent(ends))
		}
		return nil, err
	}

	groupKey, excluded, err := c.outcome(id, ends)
	if err != nil {
		c.metrics.DkgEnded("failure")
		log.Error().Err(err).Msg("dkg failed")
		return nil, err
	}

	commitments, missing := c.accepted(owned, excluded)
	if len(missing) > 0 {
		log.Warn().Interface("missing", missing).Msg("querying signers for commitments")
		if commitments, err = c.query(ctx, id, owned, excluded); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				c.metrics.DkgEnded("timeout")
				return nil, fmt.Errorf("%w: dkg %s, waiting for commitments", ErrTimeout, id)
			}
			c.metrics.DkgEnded("failure")
			log.Error().Err(err).Msg("dkg commitments rejected")
			return nil, err
		}
	}

	agg, err := frost.NewAggregator(uint32(c.cfg.Roster.N()), c.cfg.Threshold, commitments)
	if err == nil && !bytes.Equal(agg.GroupKey().XBytes(), groupKey) {
		err = fmt.Errorf("%w: dkg %s, commitments do not add up to the reported key", ErrKeyMismatch, id)
	}
	if err != nil {
		c.metrics.DkgEnded("failure")
		log.Error().Err(err).Msg("dkg commitments rejected")
		return nil, err
	}

	c.mtx.Lock()
	c.aggregators[id] = agg
	c.mtx.Unlock()
	c.metrics.DkgEnded("success")
	log.Info().Hex("group_key", groupKey).Msg("dkg complete")
	return agg, nil
}

// accepted returns the owner-signed commitments of every party that was not
// excluded, and the parties whose commitment never reached us.
func (c *Coordinator) accepted(owned map[party.ID]*frost.PolyCommitment, excluded party.IDSlice) ([]*frost.PolyCommitment, party.IDSlice) {
	var (
		out     []*frost.PolyCommitment
		missing []party.ID
	)
	for _, ids := range c.cfg.Roster.Parties {
		for _, id := range ids {
			if excluded.Contains(id) {
				continue
			}
			if commitment, ok := owned[id]; ok {
				out = append(out, commitment)
			} else {
				missing = append(missing, id)
			}
		}
	}
	return out, party.NewIDSlice(missing)
}

// query fetches the accepted commitments from every signer.
//
// A signer speaks for its own parties only, so its copies of the others'
// commitments are trusted only when every signer sends the same set, and that
// set agrees with the commitments we did see signed by their owners.
func (c *Coordinator) query(ctx context.Context, id protocol.DkgID, owned map[party.ID]*frost.PolyCommitment, excluded party.IDSlice) ([]*frost.PolyCommitment, error) {
	if err := c.send(ctx, &messages.DkgQuery{DkgID: id}); err != nil {
		return nil, err
	}
	responses := make(map[party.SignerID]*messages.DkgQueryResponse, len(c.cfg.Roster.Parties))
	err := c.await(ctx, func(msg messages.Message) (bool, error) {
		resp, ok := msg.(*messages.DkgQueryResponse)
		if !ok || resp.DkgID != id {
			return false, nil
		}
		if _, dup := responses[resp.Signer]; !dup {
			responses[resp.Signer] = resp
		}
		return len(responses) == len(c.cfg.Roster.Parties), nil
	})
	if err != nil {
		return nil, err
	}

	var reference map[party.ID][]byte
	for _, signer := range sortedSigners(responses) {
		resp := responses[signer]
		if resp.N != uint32(c.cfg.Roster.N()) || resp.Threshold != c.cfg.Threshold {
			return nil, fmt.Errorf("%w: dkg %s, signer %s reports %d-of-%d", ErrCommitmentMismatch, id, signer, resp.Threshold, resp.N)
		}
		encoded, err := encodeCommitments(resp.Commitments)
		if err != nil {
			return nil, fmt.Errorf("%w: dkg %s, signer %s: %v", ErrCommitmentMismatch, id, signer, err)
		}
		for pid, commitment := range owned {
			if excluded.Contains(pid) {
				continue
			}
			mine, err := commitment.MarshalBinary()
			if err != nil || !bytes.Equal(mine, encoded[pid]) {
				return nil, fmt.Errorf("%w: dkg %s, signer %s, party %s", ErrCommitmentMismatch, id, signer, pid)
			}
		}
		if reference == nil {
			reference = encoded
			continue
		}
		if !sameCommitments(reference, encoded) {
			return nil, fmt.Errorf("%w: dkg %s, signer %s", ErrCommitmentMismatch, id, signer)
		}
	}
	return responses[sortedSigners(responses)[0]].Commitments, nil
}

func encodeCommitments(commitments []*frost.PolyCommitment) (map[party.ID][]byte, error) {
	out := make(map[party.ID][]byte, len(commitments))
	for _, commitment := range commitments {
		if commitment == nil {
			return nil, errors.New("nil commitment")
		}
		if _, dup := out[commitment.ID]; dup {
			return nil, fmt.Errorf("duplicate commitment for party %s", commitment.ID)
		}
		data, err := commitment.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[commitment.ID] = data
	}
	return out, nil
}

func sameCommitments(a, b map[party.ID][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for id, data := range a {
		if !bytes.Equal(data, b[id]) {
			return false
		}
	}
	return true
}

// outcome checks that every signer succeeded with the same key, and returns
// it with the parties left out of it.
func (c *Coordinator) outcome(id protocol.DkgID, ends map[party.SignerID]*messages.DkgEnd) ([]byte, party.IDSlice, error) {
	var (
		groupKey []byte
		excluded party.IDSlice
		culprits []party.ID
		reasons  []string
	)
	blamed := make(map[party.ID]bool)
	for _, signer := range sortedSigners(ends) {
		end := ends[signer]
		if end.Status != messages.DkgSuccess {
			reasons = append(reasons, fmt.Sprintf("signer %s reports %d faults", signer, len(end.Failures)))
			for culprit := range end.Failures {
				if !blamed[culprit] {
					blamed[culprit] = true
					culprits = append(culprits, culprit)
				}
			}
			continue
		}
		if groupKey == nil {
			groupKey = end.GroupKey
			excluded = party.NewIDSlice(end.Excluded)
		} else if !bytes.Equal(groupKey, end.GroupKey) {
			return nil, nil, fmt.Errorf("%w: dkg %s, signer %s", ErrKeyMismatch, id, signer)
		}
	}
	if len(reasons) > 0 {
		return nil, nil, &protocol.CryptoError{
			Op:       "coordinator.RunDKG",
			Culprits: party.NewIDSlice(culprits),
			Err:      fmt.Errorf("%w: %s", ErrDkgFailed, strings.Join(reasons, "; ")),
		}
	}
	return groupKey, excluded, nil
}

// silent returns the signers that have not reported.
func (c *Coordinator) silent(ends map[party.SignerID]*messages.DkgEnd) []party.SignerID {
	var out []party.SignerID
	for signer := range c.cfg.Roster.Parties {
		if _, ok := ends[signer]; !ok {
			out = append(out, signer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedSigners[M any](m map[party.SignerID]M) []party.SignerID {
	out := make([]party.SignerID, 0, len(m))
	for signer := range m {
		out = append(out, signer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
