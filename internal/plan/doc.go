// Package plan computes the fan-out of a single entity change.
//
// Every function here is pure: it takes before/after snapshots plus the path
// parameters of the event and returns a Plan, the list of store operations
// that bring derived data (public mirrors, back-references, membership
// copies) back in line with the source of truth under accounts/{id}.
//
// Operations within a Plan target distinct paths and carry no ordering.
// Executing them in any order, concurrently, or more than once converges to
// the same tree.
package plan
