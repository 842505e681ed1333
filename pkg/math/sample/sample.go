// Package sample draws uniform scalars from a source of randomness.
package sample

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
)

// attempts bounds both reader retries and rejections of zero.
const attempts = 128

// Scalar returns a uniform non-zero scalar read from rand.
//
// It reads SafeScalarBytes so that the reduction bias is negligible, and
// panics if rand keeps failing: nothing sensible can be done without
// randomness.
func Scalar(rand io.Reader, group curve.Curve) curve.Scalar {
	buf := make([]byte, group.SafeScalarBytes())
	var lastErr error
	for i := 0; i < attempts; i++ {
		if _, lastErr = io.ReadFull(rand, buf); lastErr != nil {
			continue
		}
		s := group.NewScalar().SetNat(new(saferith.Nat).SetBytes(buf))
		if !s.IsZero() {
			return s
		}
	}
	panic(fmt.Sprintf("sample: no scalar after %d attempts (last read error: %v)", attempts, lastErr))
}

// ScalarPointPair returns x and X = x⋅G.
func ScalarPointPair(rand io.Reader, group curve.Curve) (curve.Scalar, curve.Point) {
	x := Scalar(rand, group)
	return x, x.ActOnBase()
}
