// Package store provides the SQLite-backed tree store.
//
// The tree is stored flattened: one row per leaf, keyed by its full path,
// holding the canonical JSON of the scalar. Interior nodes are implicit,
// so an empty map never exists and removing the last leaf of a subtree
// removes the subtree.
//
// Every mutation runs in its own transaction:
//   - Write replaces a subtree and clears scalar ancestors in its way.
//   - Merge writes each field relative to a path.
//   - Update writes several unrelated paths atomically.
//   - ConsumePin reads and deletes a pin record in one transaction.
//
// Each applied mutation is appended to an operation log (History), which
// the CLI exposes for audit.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite allows one writer
package store
