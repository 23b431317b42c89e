// Package harness runs pxflux scenarios end to end.
//
// A scenario seeds a tree, then performs a sequence of steps (client writes,
// auth lifecycle events and callable invocations). After every step the
// emulator settles the trigger cascade the step started. Assertions are
// evaluated against the final tree and the fake auth backend.
//
// # Scenario Format
//
//	name: pin_issuance
//	description: "A new pin is exchanged for a player token"
//	options:
//	  keep_pin_account_id: false
//	identities: [u1]
//	seed:
//	  accounts:
//	    A1: { title: Team, users: { u1: { displayName: Ann } } }
//	steps:
//	  - write: { op: set, path: player-pins/1234, value: { accountId: A1 } }
//	  - verify_pin: "1234"
//	  - switch_account: { uid: u1, account_id: A2 }
//	    expect_error: not a member
//	assertions:
//	  - type: equals
//	    path: accounts/A1/players/player-1/pin
//	    value: "1234"
//	  - type: absent
//	    path: player-pins/1234
//
// # Assertion Types
//
//   - equals: the value at path equals value (canonical JSON equality)
//   - absent: nothing is stored at path
//   - fields: the node at path carries at least the given fields
//   - claims: the custom claims last set for uid equal claims
//   - blobs_deleted: exactly these storage URIs were deleted, in any order
//
// # Deterministic Execution
//
// Every scenario runs against a fresh in-memory SQLite store with a frozen
// clock (1700000000000 ms), account keys acct-1, acct-2, ... and player ids
// player-1, player-2, ... Tokens come from testutil.FakeAuth, so the final
// tree is reproducible and can be compared against a golden file.
package harness
