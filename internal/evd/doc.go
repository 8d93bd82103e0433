// Package evd provides the evar map: the state threaded through
// unification.
//
// A Map records every evar's context, expected type and optional
// definition, plus the universe constraints collected so far. Maps are
// persistent. Define, NewEvar and the universe operations return a new
// Map and leave the receiver untouched, so a strategy that fails simply
// drops the Map it was working on and nothing it did is visible to the
// caller.
//
// Every Map carries a stamp unique to the process; two maps with the
// same stamp hold the same assignments.
package evd
