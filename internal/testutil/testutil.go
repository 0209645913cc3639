// Package testutil provides small helpers shared by package tests, mirrored
// after the teacher's internal/test party-id generator.
package testutil

import "github.com/TaceoLabs/oprf-service-sub000/pkg/party"

// PartyIDs returns n sequential party IDs starting at 0.
func PartyIDs(n int) party.Set {
	out := make(party.Set, n)
	for i := 0; i < n; i++ {
		out[i] = party.ID(i)
	}
	return out
}
