package polynomial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/frost-peg/pkg/math/curve"
)

// pointSize is the length of a compressed secp256k1 point.
const pointSize = 33

// Exponent represents a polynomial whose coefficients are points on an elliptic curve.
type Exponent struct {
	group        curve.Curve
	coefficients []curve.Point
}

// NewPolynomialExponent generates an Exponent polynomial F(X) = [secret + a₁•X + … + aₜ•Xᵗ]•G,
// with coefficients in 𝔾, and degree t.
func NewPolynomialExponent(polynomial *Polynomial) *Exponent {
	p := &Exponent{
		group:        polynomial.group,
		coefficients: make([]curve.Point, len(polynomial.coefficients)),
	}

	for i, c := range polynomial.coefficients {
		p.coefficients[i] = c.ActOnBase()
	}

	return p
}

// Evaluate returns F(x) = [f(x)]•G.
func (p *Exponent) Evaluate(x curve.Scalar) curve.Point {
	result := p.group.NewPoint()

	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// Bₙ₋₁ = [x]Bₙ  + Aₙ₋₁
		result = x.Act(result).Add(p.coefficients[i])
	}
	return result
}

// Degree returns the degree t of the polynomial.
func (p *Exponent) Degree() int {
	return len(p.coefficients) - 1
}

// Constant returns the constant coefficient of the polynomial 'in the exponent'.
func (p *Exponent) Constant() curve.Point {
	return p.coefficients[0]
}

// Coefficients returns the points A₀, …, Aₜ.
func (p *Exponent) Coefficients() []curve.Point {
	return p.coefficients
}

// Equal returns true if both polynomials have the same coefficients.
func (p *Exponent) Equal(other *Exponent) bool {
	if len(p.coefficients) != len(other.coefficients) {
		return false
	}
	for i := range p.coefficients {
		if !p.coefficients[i].Equal(other.coefficients[i]) {
			return false
		}
	}
	return true
}

// Sum creates a new Polynomial in the Exponent, by summing a slice of existing ones.
func Sum(polynomials []*Exponent) (*Exponent, error) {
	if len(polynomials) == 0 {
		return nil, errors.New("polynomial.Sum: no polynomials")
	}
	summed := &Exponent{
		group:        polynomials[0].group,
		coefficients: make([]curve.Point, len(polynomials[0].coefficients)),
	}
	copy(summed.coefficients, polynomials[0].coefficients)

	for j := 1; j < len(polynomials); j++ {
		if len(polynomials[j].coefficients) != len(summed.coefficients) {
			return nil, errors.New("polynomial.Sum: degrees differ")
		}
		for i, c := range polynomials[j].coefficients {
			summed.coefficients[i] = summed.coefficients[i].Add(c)
		}
	}
	return summed, nil
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (p *Exponent) WriteTo(w io.Writer) (int64, error) {
	data, err := p.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Domain implements hash.Domained.
func (*Exponent) Domain() string {
	return "Exponent"
}

// EmptyExponent returns an Exponent ready to be unmarshalled into.
func EmptyExponent(group curve.Curve) *Exponent {
	return &Exponent{group: group}
}

// MarshalBinary encodes the number of coefficients as a big-endian uint32,
// followed by each compressed coefficient.
func (p *Exponent) MarshalBinary() ([]byte, error) {
	out := make([]byte, 4, 4+pointSize*len(p.coefficients))
	binary.BigEndian.PutUint32(out, uint32(len(p.coefficients)))
	for _, c := range p.coefficients {
		data, err := c.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("polynomial.Exponent: %w", err)
		}
		out = append(out, data...)
	}
	return out, nil
}

func (p *Exponent) UnmarshalBinary(data []byte) error {
	if p.group == nil {
		return errors.New("polynomial.Exponent: unmarshal into uninitialized Exponent")
	}
	if len(data) < 4 {
		return io.ErrUnexpectedEOF
	}
	count := binary.BigEndian.Uint32(data)
	data = data[4:]
	if count == 0 || uint64(len(data)) != uint64(count)*pointSize {
		return fmt.Errorf("polynomial.Exponent: invalid length %d for %d coefficients", len(data), count)
	}
	p.coefficients = make([]curve.Point, count)
	for i := range p.coefficients {
		p.coefficients[i] = p.group.NewPoint()
		if err := p.coefficients[i].UnmarshalBinary(data[i*pointSize : (i+1)*pointSize]); err != nil {
			return fmt.Errorf("polynomial.Exponent: coefficient %d: %w", i, err)
		}
	}
	return nil
}
