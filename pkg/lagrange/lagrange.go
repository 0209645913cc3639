// Package lagrange computes Lagrange interpolation coefficients at x=0 for
// the Shamir secret-sharing scheme used throughout the protocol. Shared by
// pkg/dshamir and pkg/keygen so both combine shares with exactly the same
// coefficients.
package lagrange

import (
	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

// FromParties computes the Lagrange coefficient at x=0 for every party in
// parties, evaluated against the full set parties (i.e. each party's
// coefficient assuming exactly this set of parties contributes).
func FromParties(parties party.Set) map[party.ID]curve.Fr {
	out := make(map[party.ID]curve.Fr, len(parties))
	for _, id := range parties {
		out[id] = Single(id, parties)
	}
	return out
}

// Single computes the Lagrange coefficient at x=0 for a single party id,
// given the full set of contributing parties.
func Single(id party.ID, parties party.Set) curve.Fr {
	xi := curve.FrFromUint64(id.EvalPoint())
	num := curve.FrOne()
	den := curve.FrOne()
	for _, other := range parties {
		if other == id {
			continue
		}
		xj := curve.FrFromUint64(other.EvalPoint())
		num = num.Mul(xj.Neg())
		den = den.Mul(xi.Sub(xj))
	}
	denInv, ok := den.Inverse()
	if !ok {
		// Only possible if parties contains a duplicate evaluation point,
		// which callers must never construct.
		panic("lagrange: duplicate evaluation point in party set")
	}
	return num.Mul(denInv)
}
