package test

import (
	"github.com/taurusgroup/frost-peg/pkg/party"
)

// PartyIDs returns a party.IDSlice (sorted) with IDs 0, …, n-1.
func PartyIDs(n int) party.IDSlice {
	ids := make(party.IDSlice, n)
	for i := range ids {
		ids[i] = party.ID(i)
	}
	return ids
}

// Layout returns the signer → parties assignment used across tests:
// signer 1 holds parties {0, 1}, signer 2 holds {2}, and signer 3 holds {3}.
func Layout() map[party.SignerID]party.IDSlice {
	return map[party.SignerID]party.IDSlice{
		1: {0, 1},
		2: {2},
		3: {3},
	}
}
