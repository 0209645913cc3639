// Package oprf implements the client-side blind/unblind/finalize primitives
// of the oblivious pseudo-random function: F_k(x) = H(x, x'*k).
package oprf

import (
	"errors"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
)

// ErrZeroBlindingFactor is returned when a blinding factor of zero is
// supplied or sampled; zero has no inverse and would leak the query point
// unblinded.
var ErrZeroBlindingFactor = errors.New("oprf: blinding factor must not be zero")

// BlindedOprfRequest is the client's blinded query point, sent to each node.
type BlindedOprfRequest struct {
	Point curve.Point
}

// BlindedOprfResponse is a node's evaluation of the blinded query under its
// share of the key (after distributed combination).
type BlindedOprfResponse struct {
	Point curve.Point
}

// BlindingFactor is the client-chosen scalar used to blind a query.
type BlindingFactor struct {
	scalar curve.Fr
}

// PreparedBlindingFactor is the multiplicative inverse of a BlindingFactor,
// used once to unblind a response.
type PreparedBlindingFactor struct {
	inv curve.Fr
}

// NewBlindingFactor samples a fresh, non-zero blinding factor.
func NewBlindingFactor() (BlindingFactor, error) {
	s, err := curve.RandomFr()
	if err != nil {
		return BlindingFactor{}, err
	}
	return BlindingFactor{scalar: s}, nil
}

// BlindingFactorFromScalar wraps an explicit scalar, rejecting zero.
func BlindingFactorFromScalar(s curve.Fr) (BlindingFactor, error) {
	if s.IsZero() {
		return BlindingFactor{}, ErrZeroBlindingFactor
	}
	return BlindingFactor{scalar: s}, nil
}

// Prepare computes the inverse of the blinding factor, to be used exactly
// once when unblinding the corresponding response.
func (b BlindingFactor) Prepare() (PreparedBlindingFactor, error) {
	inv, ok := b.scalar.Inverse()
	if !ok {
		return PreparedBlindingFactor{}, ErrZeroBlindingFactor
	}
	return PreparedBlindingFactor{inv: inv}, nil
}

// Blind hashes the client's input onto the curve and blinds it with b,
// returning both the request to send and the point that was hashed (needed
// again at Finalize time).
func Blind(input []byte, b BlindingFactor) (BlindedOprfRequest, curve.Point) {
	query := curve.HashToCurve("OPRF_QUERY", input)
	blinded := query.ScalarMul(b.scalar)
	return BlindedOprfRequest{Point: blinded}, query
}

// Unblind removes the blinding factor from a combined response, yielding
// the unblinded evaluation point query*k (the hashed query point from Blind
// times the key).
func Unblind(resp BlindedOprfResponse, prepared PreparedBlindingFactor) curve.Point {
	return resp.Point.ScalarMul(prepared.inv)
}

// Finalize computes H(domainSeparator, query, unblinded) using the width-4
// Poseidon-style sponge, returning the second state element exactly as the
// reference design does.
func Finalize(domainSeparator curve.Fq, query curve.Point, unblinded curve.Point) curve.Fq {
	state := [4]curve.Fq{domainSeparator, query.X(), unblinded.X(), unblinded.Y()}
	out := curve.PermuteT4(state)
	return out[1]
}
