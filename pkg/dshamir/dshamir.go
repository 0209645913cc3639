// Package dshamir implements the distributed (Shamir) variant of the
// Chaum-Pedersen discrete-log-equality proof: t-of-n nodes, each holding a
// Shamir share of the OPRF key, jointly produce one proof that their
// combined response is the correct evaluation under the shared key, without
// any node learning another's share.
package dshamir

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/lagrange"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

// frostNonceCombinerLabel is the domain-separation label for the two-nonce
// combiner transcript hash.
const frostNonceCombinerLabel = "FROST_2_NONCE_COMBINER"

var (
	// ErrInvalidProof is returned when a combined proof fails verification.
	ErrInvalidProof = errors.New("dshamir: proof does not verify")
	// ErrContributingPartiesNotNormalized is returned when a set of
	// contributing parties is not sorted and deduplicated.
	ErrContributingPartiesNotNormalized = errors.New("dshamir: contributing parties must be sorted and deduplicated")
	// ErrContributingPartiesMismatch is returned when commitments from a
	// different party set are combined together.
	ErrContributingPartiesMismatch = errors.New("dshamir: commitment contributing-parties sets do not match")
	// ErrUnknownParty is returned when a share is supplied for a party not
	// present in the combined contributing-parties set.
	ErrUnknownParty = errors.New("dshamir: party not in contributing set")
)

// PartialCommitments is a single node's first-round output: its share of
// the Chaum-Pedersen nonce commitments.
type PartialCommitments struct {
	C  curve.Point // blindedQuery * xShare
	D1 curve.Point // G * dShare
	D2 curve.Point // blindedQuery * dShare
	E1 curve.Point // G * eShare
	E2 curve.Point // blindedQuery * eShare
}

// Commitments is the combination of every contributing node's
// PartialCommitments: C is Lagrange-weighted (it reconstructs the actual
// response point), the nonce commitments are plain sums (FROST2 style).
type Commitments struct {
	C                   curve.Point
	D1, D2, E1, E2      curve.Point
	ContributingParties party.Set
}

// Session holds one node's ephemeral nonces for a single evaluation. It is
// move-only: Challenge consumes it and it must not be reused. Callers must
// call Zeroize on every exit path that does not reach Challenge (timeout,
// abort, error).
type Session struct {
	d, e         curve.Fr
	blindedQuery curve.Point
	consumed     bool
}

// NewSession samples a fresh pair of per-evaluation nonces for blindedQuery.
// xShare is this node's Shamir share of the secret key.
func NewSession(blindedQuery curve.Point, xShare curve.Fr) (Session, PartialCommitments, error) {
	d, err := curve.RandomFr()
	if err != nil {
		return Session{}, PartialCommitments{}, err
	}
	e, err := curve.RandomFr()
	if err != nil {
		return Session{}, PartialCommitments{}, err
	}

	pc := PartialCommitments{
		C:  blindedQuery.ScalarMul(xShare),
		D1: curve.Base().ScalarMul(d),
		D2: blindedQuery.ScalarMul(d),
		E1: curve.Base().ScalarMul(e),
		E2: blindedQuery.ScalarMul(e),
	}
	return Session{d: d, e: e, blindedQuery: blindedQuery}, pc, nil
}

// Zeroize drops the session's nonces. Safe to call more than once.
func (s *Session) Zeroize() {
	s.d = curve.FrZero()
	s.e = curve.FrZero()
	s.consumed = true
}

// CombineCommitments merges every contributing party's PartialCommitments
// into one Commitments value. contributingParties must already be sorted
// and deduplicated, and must have exactly one entry per supplied partial.
func CombineCommitments(partials map[party.ID]PartialCommitments, contributingParties party.Set) (Commitments, error) {
	if !contributingParties.IsSorted() {
		return Commitments{}, ErrContributingPartiesNotNormalized
	}
	if len(partials) != len(contributingParties) {
		return Commitments{}, fmt.Errorf("dshamir: expected %d partial commitments, got %d", len(contributingParties), len(partials))
	}
	for _, id := range contributingParties {
		if _, ok := partials[id]; !ok {
			return Commitments{}, fmt.Errorf("dshamir: %w: party %d", ErrUnknownParty, id)
		}
	}

	coeffs := lagrange.FromParties(contributingParties)

	c := curve.Identity()
	d1 := curve.Identity()
	d2 := curve.Identity()
	e1 := curve.Identity()
	e2 := curve.Identity()
	for _, id := range contributingParties {
		p := partials[id]
		c = c.Add(p.C.ScalarMul(coeffs[id]))
		d1 = d1.Add(p.D1)
		d2 = d2.Add(p.D2)
		e1 = e1.Add(p.E1)
		e2 = e2.Add(p.E2)
	}

	return Commitments{C: c, D1: d1, D2: d2, E1: e1, E2: e2, ContributingParties: contributingParties}, nil
}

// combineTwoNonceRandomness implements the FROST2 two-nonce combiner: it
// hashes the session transcript (session id, contributing parties, public
// key, and all combined commitments) with a 64-byte BLAKE3 XOF output,
// reduces it modulo |Fr|, and derives (r1, r2, b).
func combineTwoNonceRandomness(sessionID uuid.UUID, publicKey curve.Point, combined Commitments) (r1, r2 curve.Point, b curve.Fr) {
	h := blake3.New()
	h.Write([]byte(frostNonceCombinerLabel))
	sidBytes, _ := sessionID.MarshalBinary()
	h.Write(sidBytes)
	for _, id := range combined.ContributingParties {
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(id))
		h.Write(buf[:])
	}
	h.Write(publicKey.Bytes())
	h.Write(combined.C.Bytes())
	h.Write(combined.D1.Bytes())
	h.Write(combined.D2.Bytes())
	h.Write(combined.E1.Bytes())
	h.Write(combined.E2.Bytes())

	digest := h.Digest()
	var wide [64]byte
	if _, err := digest.Read(wide[:]); err != nil {
		panic("dshamir: blake3 digest read failed: " + err.Error())
	}
	b = curve.FrFromBytes(wide[:])

	r1 = combined.D1.Add(combined.E1.ScalarMul(b))
	r2 = combined.D2.Add(combined.E2.ScalarMul(b))
	return r1, r2, b
}

// challengeHash recomputes the Fiat-Shamir challenge over the full
// transcript, exactly as the non-distributed proof does, but over the
// combined commitments: (publicKey, blindedQuery, response, G, R1, R2),
// absorbed over two width-4 permutations since six elements don't fit the
// sponge's three rate slots at once.
func challengeHash(publicKey, blindedQuery, response, r1, r2 curve.Point) curve.Fq {
	state := [4]curve.Fq{curve.FqZero(), publicKey.X(), blindedQuery.X(), response.X()}
	state = curve.PermuteT4(state)
	state[1] = curve.Base().X()
	state[2] = r1.X()
	state[3] = r2.X()
	state = curve.PermuteT4(state)
	return state[1]
}

// Challenge consumes the session and returns this node's partial proof
// share. It must be called at most once per session; the session's nonces
// are zeroized on return (success or error).
func Challenge(session *Session, sessionID uuid.UUID, publicKey curve.Point, combined Commitments, xShare curve.Fr, myID party.ID) (curve.Fr, error) {
	defer session.Zeroize()
	if session.consumed {
		return curve.Fr{}, errors.New("dshamir: session already consumed")
	}
	if !combined.ContributingParties.Contains(myID) {
		return curve.Fr{}, fmt.Errorf("dshamir: %w: %d", ErrUnknownParty, myID)
	}

	r1, r2, b := combineTwoNonceRandomness(sessionID, publicKey, combined)
	e := challengeHash(publicKey, session.blindedQuery, combined.C, r1, r2)
	eScalar := curve.ConvertBaseToScalar(e)

	lagrangeCoeff := lagrange.Single(myID, combined.ContributingParties)

	share := session.d.Add(b.Mul(session.e)).Add(eScalar.Mul(lagrangeCoeff).Mul(xShare))
	return share, nil
}

// CombineProofShares sums per-party proof shares into the final scalar s
// of a Chaum-Pedersen proof, and verifies it against the combined
// commitments. The error does not reveal which party's share was wrong, as
// is appropriate for a distributed signature scheme.
func CombineProofShares(shares map[party.ID]curve.Fr, contributingParties party.Set, sessionID uuid.UUID, publicKey, blindedQuery, response curve.Point, combined Commitments) (curve.Fr, error) {
	if !contributingParties.IsSorted() {
		return curve.Fr{}, ErrContributingPartiesNotNormalized
	}
	s := curve.FrZero()
	for _, id := range contributingParties {
		share, ok := shares[id]
		if !ok {
			return curve.Fr{}, fmt.Errorf("dshamir: %w: %d", ErrUnknownParty, id)
		}
		s = s.Add(share)
	}

	r1, r2, _ := combineTwoNonceRandomness(sessionID, publicKey, combined)
	e := challengeHash(publicKey, blindedQuery, response, r1, r2)
	eScalar := curve.ConvertBaseToScalar(e)

	lhs1 := curve.Base().ScalarMul(s)
	rhs1 := r1.Add(publicKey.ScalarMul(eScalar))
	if !lhs1.Equal(rhs1) {
		return curve.Fr{}, ErrInvalidProof
	}

	lhs2 := blindedQuery.ScalarMul(s)
	rhs2 := r2.Add(response.ScalarMul(eScalar))
	if !lhs2.Equal(rhs2) {
		return curve.Fr{}, ErrInvalidProof
	}

	return s, nil
}
