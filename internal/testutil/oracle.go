package testutil

import (
	"sync"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/term"
)

// CountingOracle wraps a reduce.Oracle and counts calls per method.
// Conv calls are also counted per (left, right) pair and Unfold calls per
// head, so tests can check that a sub-problem is only ever derived once.
type CountingOracle struct {
	Inner reduce.Oracle

	mu      sync.Mutex
	calls   map[string]int
	perPair map[[2]uint64]int
	perHead map[uint64]int
}

// NewCountingOracle wraps inner; a nil inner wraps a fresh reduce.Machine.
func NewCountingOracle(inner reduce.Oracle) *CountingOracle {
	if inner == nil {
		inner = reduce.NewMachine()
	}
	return &CountingOracle{
		Inner:   inner,
		calls:   map[string]int{},
		perPair: map[[2]uint64]int{},
		perHead: map[uint64]int{},
	}
}

func (o *CountingOracle) bump(method string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[method]++
}

// Calls returns how many times method was called.
func (o *CountingOracle) Calls(method string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[method]
}

// ConvCalls returns how many times Conv was asked about exactly (t1, t2).
func (o *CountingOracle) ConvCalls(t1, t2 term.Term) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.perPair[[2]uint64{term.Hash(t1), term.Hash(t2)}]
}

// UnfoldCalls returns how many times Unfold was asked about head.
func (o *CountingOracle) UnfoldCalls(head term.Term) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.perHead[term.Hash(head)]
}

// Apprec implements reduce.Oracle.
func (o *CountingOracle) Apprec(ts reduce.Transparency, e *env.Env, sigma *evd.Map, head term.Term, args []term.Term) (term.Term, []term.Term) {
	o.bump("Apprec")
	return o.Inner.Apprec(ts, e, sigma, head, args)
}

// Unfold implements reduce.Oracle.
func (o *CountingOracle) Unfold(ts reduce.Transparency, e *env.Env, sigma *evd.Map, head term.Term) (term.Term, bool) {
	o.bump("Unfold")
	o.mu.Lock()
	o.perHead[term.Hash(head)]++
	o.mu.Unlock()
	return o.Inner.Unfold(ts, e, sigma, head)
}

// Whnf implements reduce.Oracle.
func (o *CountingOracle) Whnf(ts reduce.Transparency, e *env.Env, sigma *evd.Map, t term.Term) term.Term {
	o.bump("Whnf")
	return o.Inner.Whnf(ts, e, sigma, t)
}

// Conv implements reduce.Oracle.
func (o *CountingOracle) Conv(ts reduce.Transparency, e *env.Env, sigma *evd.Map, t1, t2 term.Term, leq bool) (*evd.Map, bool) {
	o.bump("Conv")
	o.mu.Lock()
	o.perPair[[2]uint64{term.Hash(t1), term.Hash(t2)}]++
	o.mu.Unlock()
	return o.Inner.Conv(ts, e, sigma, t1, t2, leq)
}
