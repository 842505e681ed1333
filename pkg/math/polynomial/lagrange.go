package polynomial

import (
	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/party"
)

// Lagrange returns, for each party j of signers, the coefficient λⱼ such that
//
//	f(0) = ∑ⱼ λⱼ⋅f(xⱼ)
//
// for any polynomial f of degree < len(signers). Each xⱼ is j+1.
//
//	λⱼ = ∏_{i ≠ j} xᵢ / (xᵢ - xⱼ)
//
// The product of the denominators is inverted once per party.
func Lagrange(group curve.Curve, signers []party.ID) map[party.ID]curve.Scalar {
	xs := make(map[party.ID]curve.Scalar, len(signers))
	for _, id := range signers {
		xs[id] = id.Scalar(group)
	}

	coefficients := make(map[party.ID]curve.Scalar, len(signers))
	diff := group.NewScalar()
	for j, xJ := range xs {
		num := one(group)
		den := one(group)
		for i, xI := range xs {
			if i == j {
				continue
			}
			num.Mul(xI)
			// xᵢ - xⱼ
			diff.Set(xJ).Negate().Add(xI)
			den.Mul(diff)
		}
		coefficients[j] = den.Invert().Mul(num)
	}
	return coefficients
}

func one(group curve.Curve) curve.Scalar {
	return group.NewScalar().SetNat(new(saferith.Nat).SetUint64(1))
}
