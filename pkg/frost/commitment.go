package frost

import (
	"encoding/binary"
	"fmt"

	"github.com/taurusgroup/frost-peg/internal/params"
	"github.com/taurusgroup/frost-peg/pkg/hash"
	"github.com/taurusgroup/frost-peg/pkg/math/curve"
	"github.com/taurusgroup/frost-peg/pkg/math/polynomial"
	"github.com/taurusgroup/frost-peg/pkg/party"
	zksch "github.com/taurusgroup/frost-peg/pkg/zk/sch"
)

const proofSize = params.BytesPoint + params.BytesScalar

// PolyCommitment is the public commitment to a party's secret polynomial.
//
// Poly holds Aₖ = aₖ•G for every coefficient, and Proof is a Schnorr proof
// of knowledge of a₀ bound to ID.
type PolyCommitment struct {
	ID    party.ID
	Proof *zksch.Proof
	Poly  *polynomial.Exponent
}

// proofHash returns the transcript a commitment proof is bound to.
func proofHash(id party.ID) *hash.Hash {
	return hash.New(hash.Tagged{Tag: "FROST DKG", Data: []byte("proof of knowledge")}, id)
}

// Verify returns true if the proof of knowledge of the constant term is valid.
func (c *PolyCommitment) Verify() bool {
	if c == nil || c.Proof == nil || c.Poly == nil || len(c.Poly.Coefficients()) == 0 {
		return false
	}
	return c.Proof.Verify(proofHash(c.ID), c.Poly.Constant())
}

// EmptyPolyCommitment returns a PolyCommitment ready to be unmarshalled into.
func EmptyPolyCommitment() *PolyCommitment {
	return &PolyCommitment{
		Proof: zksch.EmptyProof(group),
		Poly:  polynomial.EmptyExponent(group),
	}
}

// MarshalBinary encodes the commitment as ID ‖ proof ‖ polynomial.
func (c *PolyCommitment) MarshalBinary() ([]byte, error) {
	proof, err := c.Proof.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("frost.PolyCommitment: %w", err)
	}
	poly, err := c.Poly.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("frost.PolyCommitment: %w", err)
	}
	out := make([]byte, party.ByteSize, party.ByteSize+len(proof)+len(poly))
	binary.BigEndian.PutUint32(out, uint32(c.ID))
	out = append(out, proof...)
	return append(out, poly...), nil
}

func (c *PolyCommitment) UnmarshalBinary(data []byte) error {
	if len(data) < party.ByteSize+proofSize {
		return fmt.Errorf("frost.PolyCommitment: data too short (%d bytes)", len(data))
	}
	if c.Proof == nil || c.Poly == nil {
		*c = *EmptyPolyCommitment()
	}
	c.ID = party.ID(binary.BigEndian.Uint32(data))
	data = data[party.ByteSize:]
	if err := c.Proof.UnmarshalBinary(data[:proofSize]); err != nil {
		return fmt.Errorf("frost.PolyCommitment: %w", err)
	}
	if err := c.Poly.UnmarshalBinary(data[proofSize:]); err != nil {
		return fmt.Errorf("frost.PolyCommitment: %w", err)
	}
	return nil
}

// SecretShare is fᵢ(l), the evaluation of party i's polynomial sent to party l.
type SecretShare struct {
	Value curve.Scalar
}

func (s *SecretShare) MarshalBinary() ([]byte, error) {
	if s.Value == nil {
		return nil, fmt.Errorf("frost.SecretShare: nil value")
	}
	return s.Value.MarshalBinary()
}

func (s *SecretShare) UnmarshalBinary(data []byte) error {
	value := group.NewScalar()
	if err := value.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("frost.SecretShare: %w", err)
	}
	s.Value = value
	return nil
}
