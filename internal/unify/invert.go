package unify

import (
	"slices"

	set "github.com/hashicorp/go-set/v3"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// inverter rewrites a term living in env into the scope of an evar whose
// occurrence is ?self[inst] extra.
//
// A variable occurring exactly once among inst becomes the matching
// context name; one occurring once among extra becomes a reference to the
// abstraction that will bind it. Any other variable fails, unless it is
// let-bound, in which case its body is inverted instead.
type inverter struct {
	s     *session
	env   *env.Env
	sigma *evd.Map
	self  int
	ctx   term.Context
	inst  []term.Term
	extra []term.Term

	// schedule is set while a failing position of a nested evar may be
	// recorded for pruning instead of failing the inversion.
	schedule bool
	pending  map[int]*set.Set[int]
	order    []int
	failed   bool
	// aborted is set by a failure below the first nesting level. It is
	// never cleared by an enclosing evar.
	aborted bool
}

func (s *session) newInverter(e *env.Env, self int, ctx term.Context, inst, extra []term.Term) *inverter {
	return &inverter{s: s, env: e, self: self, ctx: ctx, inst: inst, extra: extra}
}

// invert returns t in the evar's scope. Nested evars blocking the
// inversion are pruned first, then the inversion is redone without
// scheduling.
func (inv *inverter) invert(sigma *evd.Map, t term.Term) (*evd.Map, term.Term, bool) {
	t = sigma.NfEvar(t)
	if term.OccursEvar(inv.self, t) {
		return nil, nil, false
	}
	r, ok := inv.run(sigma, t, true)
	if !ok {
		return nil, nil, false
	}
	if len(inv.order) == 0 {
		return sigma, r, true
	}

	for _, id := range inv.order {
		positions := inv.pending[id].Slice()
		slices.Sort(positions)
		var err error
		if sigma, err = inv.s.prune(inv.env.Signature(), sigma, id, positions); err != nil {
			return nil, nil, false
		}
	}
	if r, ok = inv.run(sigma, sigma.NfEvar(t), false); !ok {
		return nil, nil, false
	}
	return sigma, r, true
}

func (inv *inverter) run(sigma *evd.Map, t term.Term, schedule bool) (term.Term, bool) {
	inv.sigma = sigma
	inv.schedule = schedule
	inv.pending = make(map[int]*set.Set[int])
	inv.order = nil
	inv.failed = false
	inv.aborted = false
	r := inv.walk(t, 0)
	return r, !inv.failed
}

func (inv *inverter) walk(t term.Term, depth int) term.Term {
	if inv.failed {
		return t
	}
	switch t := t.(type) {
	case term.Rel:
		if t.Index < depth {
			return t
		}
		return inv.variable(term.Rel{Index: t.Index - depth}, depth)
	case term.Var:
		return inv.variable(t, depth)
	case term.Evar:
		return inv.evar(t, depth)
	}
	return term.Map(t, depth, inv.walk)
}

// variable inverts v, a variable of env, under depth local binders.
func (inv *inverter) variable(v term.Term, depth int) term.Term {
	inv.s.checkVar(inv.env, v)
	found, count := -1, 0
	for i, a := range term.Concat(inv.inst, inv.extra) {
		if term.Equal(a, v) {
			found = i
			count++
		}
	}
	switch {
	case count == 1 && found < len(inv.inst):
		return term.Var{Name: inv.ctx[found].Name}
	case count == 1:
		j := found - len(inv.inst)
		return term.Rel{Index: len(inv.extra) - 1 - j + depth}
	case count == 0:
		if body, ok := inv.env.BodyOf(v); ok {
			return term.Lift(depth, 0, inv.walk(body, 0))
		}
	}
	inv.failed = true
	return v
}

// evar inverts the instance of a nested evar. At the first nesting level a
// failing position is scheduled for pruning; deeper down the whole
// inversion aborts.
func (inv *inverter) evar(ev term.Evar, depth int) term.Term {
	if ev.ID == inv.self {
		inv.failed = true
		return ev
	}
	inv.s.evarInfo(inv.sigma, ev)

	schedule := inv.schedule
	inv.schedule = false
	defer func() { inv.schedule = schedule }()

	args := make([]term.Term, len(ev.Args))
	for i, a := range ev.Args {
		r := inv.walk(a, depth)
		if inv.failed {
			if !schedule || inv.aborted {
				inv.aborted = true
				return ev
			}
			inv.failed = false
			inv.mark(ev.ID, i)
			r = a
		}
		args[i] = r
	}
	return term.Evar{ID: ev.ID, Args: args}
}

func (inv *inverter) mark(id, position int) {
	positions, ok := inv.pending[id]
	if !ok {
		positions = set.New[int](1)
		inv.pending[id] = positions
		inv.order = append(inv.order, id)
	}
	positions.Insert(position)
}
