package lagrange_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/lagrange"
	"github.com/TaceoLabs/oprf-service-sub000/pkg/party"
)

func partyIDs(n int) party.Set {
	out := make(party.Set, n)
	for i := 0; i < n; i++ {
		out[i] = party.ID(i)
	}
	return out
}

// TestLagrangeCoefficientsSumToOne mirrors the teacher's lagrange_test.go:
// coefficients for x=0 interpolation always sum to one, for any subset
// size, since they reconstruct f(0) from the constant polynomial 1.
func TestLagrangeCoefficientsSumToOne(t *testing.T) {
	full := partyIDs(10)
	partial := full[:7]

	sumFull := curve.FrZero()
	for _, c := range lagrange.FromParties(full) {
		sumFull = sumFull.Add(c)
	}
	sumPartial := curve.FrZero()
	for _, c := range lagrange.FromParties(partial) {
		sumPartial = sumPartial.Add(c)
	}

	assert.True(t, sumFull.Equal(curve.FrOne()))
	assert.True(t, sumPartial.Equal(curve.FrOne()))
}

func TestSingleMatchesFromParties(t *testing.T) {
	ids := partyIDs(5)
	all := lagrange.FromParties(ids)
	for _, id := range ids {
		assert.True(t, all[id].Equal(lagrange.Single(id, ids)))
	}
}
