// Package dlogeq implements a (non-distributed) Chaum-Pedersen
// discrete-log-equality proof: given G, Y=G*x, A=blinded_query, B=A*x, prove
// knowledge of x without revealing it.
package dlogeq

import (
	"errors"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
)

// ErrInvalidProof is returned by Verify when the proof does not check out.
var ErrInvalidProof = errors.New("dlogeq: proof does not verify")

// Proof is a non-interactive Chaum-Pedersen proof that log_G(publicKey) ==
// log_blindedQuery(response).
type Proof struct {
	R1 curve.Point // nonce commitment under G
	R2 curve.Point // nonce commitment under blindedQuery
	S  curve.Fr     // response scalar
}

// challengeHash recomputes the Fiat-Shamir challenge from the full proof
// transcript: (publicKey, blindedQuery, response, G, R1, R2). Six elements
// don't fit the width-4 sponge's three rate slots in one call, so they are
// absorbed over two permutations, carrying the state forward as the
// capacity between them.
func challengeHash(publicKey, blindedQuery, response, r1, r2 curve.Point) curve.Fr {
	state := [4]curve.Fq{curve.FqZero(), publicKey.X(), blindedQuery.X(), response.X()}
	state = curve.PermuteT4(state)
	state[1] = curve.Base().X()
	state[2] = r1.X()
	state[3] = r2.X()
	state = curve.PermuteT4(state)
	return curve.ConvertBaseToScalar(state[1])
}

// Prove constructs a proof that response = blindedQuery^secret and
// publicKey = G^secret, for the given secret scalar.
func Prove(secret curve.Fr, publicKey, blindedQuery, response curve.Point) (Proof, error) {
	nonce, err := curve.RandomFr()
	if err != nil {
		return Proof{}, err
	}
	r1 := curve.Base().ScalarMul(nonce)
	r2 := blindedQuery.ScalarMul(nonce)

	e := challengeHash(publicKey, blindedQuery, response, r1, r2)
	s := nonce.Add(e.Mul(secret))

	return Proof{R1: r1, R2: r2, S: s}, nil
}

// Verify checks that proof attests to publicKey = G^x and response =
// blindedQuery^x for the same x, without learning x.
func Verify(publicKey, blindedQuery, response curve.Point, proof Proof) error {
	e := challengeHash(publicKey, blindedQuery, response, proof.R1, proof.R2)

	lhs1 := curve.Base().ScalarMul(proof.S)
	rhs1 := proof.R1.Add(publicKey.ScalarMul(e))
	if !lhs1.Equal(rhs1) {
		return ErrInvalidProof
	}

	lhs2 := blindedQuery.ScalarMul(proof.S)
	rhs2 := proof.R2.Add(response.ScalarMul(e))
	if !lhs2.Equal(rhs2) {
		return ErrInvalidProof
	}
	return nil
}
