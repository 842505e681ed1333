// Package repair lets a set of helpers rebuild the key share of a party that
// lost it, without any of them learning it.
//
// Each helper i splits ζᵢ·sᵢ into random additive deltas, one per helper, where
// ζᵢ is its Lagrange coefficient evaluated at the lost party's point. Every
// helper sums the deltas it received into σⱼ and sends it to the lost party,
// whose share is ∑ⱼ σⱼ.
//
// The construction follows the repairable threshold scheme of
// https://github.com/ZcashFoundation/frost and https://github.com/siv2r/frost-enrollment.
// Transport of deltas and sigmas is left to the caller; they are secret and
// must travel over confidential channels.
package repair

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/sample"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

var group = curve.Secp256k1{}

var ErrShareMismatch = errors.New("repair: recovered share does not match the public share")

func validate(helpers party.IDSlice, lost party.ID) error {
	if len(helpers) < 2 {
		return fmt.Errorf("repair: not enough helpers (wanted 2+), have %d", len(helpers))
	}
	if !helpers.Valid() {
		return fmt.Errorf("repair: duplicate helpers in %v", helpers)
	}
	if helpers.Contains(lost) {
		return fmt.Errorf("repair: lost party %s is one of the helpers", lost)
	}
	return nil
}

// Deltas is run by helper self. It returns the delta to hand to every helper,
// self included.
//
// helpers must contain at least threshold parties for the repair to succeed.
func Deltas(helpers []party.ID, lost, self party.ID, share curve.Scalar, rand io.Reader) (map[party.ID]curve.Scalar, error) {
	sorted := party.NewIDSlice(helpers)
	if err := validate(sorted, lost); err != nil {
		return nil, err
	}
	if !sorted.Contains(self) {
		return nil, fmt.Errorf("repair: party %s is not a helper", self)
	}
	if share == nil || share.IsZero() {
		return nil, errors.New("repair: helper has no share")
	}

	zeta := coefficient(sorted, lost, self)
	rest := group.NewScalar().Set(zeta).Mul(share)
	deltas := make(map[party.ID]curve.Scalar, len(sorted))
	for _, id := range sorted[:len(sorted)-1] {
		deltas[id] = sample.Scalar(rand, group)
		rest.Sub(deltas[id])
	}
	deltas[sorted[len(sorted)-1]] = rest
	return deltas, nil
}

// Sigma sums the deltas a helper received from every helper, its own included.
func Sigma(helpers []party.ID, deltas map[party.ID]curve.Scalar) (curve.Scalar, error) {
	sigma := group.NewScalar()
	for _, id := range helpers {
		delta, ok := deltas[id]
		if !ok || delta == nil {
			return nil, fmt.Errorf("repair: missing delta from party %s", id)
		}
		sigma.Add(delta)
	}
	return sigma, nil
}

// Recover is run by the lost party. It sums the sigma of every helper, and
// checks the result against its public share, which anyone can compute from
// the DKG commitments.
func Recover(helpers []party.ID, sigmas map[party.ID]curve.Scalar, public curve.Point) (curve.Scalar, error) {
	share, err := Sigma(helpers, sigmas)
	if err != nil {
		return nil, err
	}
	if public != nil && !share.ActOnBase().Equal(public) {
		return nil, ErrShareMismatch
	}
	return share, nil
}

// coefficient returns ζ = ∏ⱼ (x - xⱼ)/(xᵢ - xⱼ), the Lagrange coefficient of
// helper self evaluated at x, the lost party's point.
func coefficient(helpers party.IDSlice, lost, self party.ID) curve.Scalar {
	one := new(saferith.Nat).SetUint64(1)
	num := group.NewScalar().SetNat(one)
	den := group.NewScalar().SetNat(one)
	x := lost.Scalar(group)
	xi := self.Scalar(group)
	for _, id := range helpers {
		if id == self {
			continue
		}
		xj := id.Scalar(group)
		num.Mul(group.NewScalar().Set(x).Sub(xj))
		den.Mul(group.NewScalar().Set(xi).Sub(xj))
	}
	return num.Mul(den.Invert())
}
