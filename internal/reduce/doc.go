// Package reduce provides the reduction oracle the unifier consumes:
// transparency policies, the evar-aware weak-head normalizer Apprec,
// delta unfolding and a conversion check for terms without undefined
// evars.
//
// Every loop is bounded by a step budget. A budget that runs out stops
// reduction where it is, which keeps pathological signatures from hanging
// the caller; it never produces a wrong answer, only a less reduced one
// (or, for Conv, a negative one).
package reduce
