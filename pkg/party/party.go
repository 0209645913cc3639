// Package party defines the identifiers used to address nodes taking part
// in the threshold protocol.
package party

import "sort"

// ID identifies a single node. IDs are dense and 0-indexed at the transport
// and storage layer; Shamir evaluation always uses ID+1 so that no party
// is ever evaluated at x=0, which would leak the secret.
type ID uint16

// EvalPoint returns the Shamir polynomial evaluation point for this party:
// its ID shifted by one so x=0 is never assigned to a participant.
func (id ID) EvalPoint() uint64 { return uint64(id) + 1 }

// Set is a small helper over a slice of IDs used as the contributing-parties
// set in distributed proofs: it must always be deduplicated and sorted
// before being hashed into a challenge, since the challenge, the
// Lagrange-coefficient computation, and the wire encoding all depend on a
// single canonical ordering.
type Set []ID

// Normalize returns a new, sorted, deduplicated copy of s.
func (s Set) Normalize() Set {
	cp := make(Set, len(s))
	copy(cp, s)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	out := cp[:0]
	var last ID
	haveLast := false
	for _, id := range cp {
		if haveLast && id == last {
			continue
		}
		out = append(out, id)
		last = id
		haveLast = true
	}
	return out
}

// IsSorted reports whether s is strictly increasing (sorted with no
// duplicates) — the canonical form required before it may be trusted as a
// contributing-parties set.
func (s Set) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			return false
		}
	}
	return true
}

// Contains reports whether id appears in s.
func (s Set) Contains(id ID) bool {
	for _, x := range s {
		if x == id {
			return true
		}
	}
	return false
}

// IndexOf returns the position of id within s, or -1 if absent.
func (s Set) IndexOf(id ID) int {
	for i, x := range s {
		if x == id {
			return i
		}
	}
	return -1
}
