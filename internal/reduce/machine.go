package reduce

import (
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// DefaultMaxSteps bounds every reduction loop.
const DefaultMaxSteps = 10000

// Oracle is the reduction and conversion interface the unifier consumes.
type Oracle interface {
	// Apprec weak-head normalizes (head, args) with defined-evar expansion,
	// beta, iota and zeta. Delta is only used to expose constructors to iota.
	Apprec(ts Transparency, e *env.Env, sigma *evd.Map, head term.Term, args []term.Term) (term.Term, []term.Term)

	// Unfold performs one delta step on a head constant or let-bound variable.
	Unfold(ts Transparency, e *env.Env, sigma *evd.Map, head term.Term) (term.Term, bool)

	// Whnf weak-head normalizes t, unfolding definitions as needed.
	Whnf(ts Transparency, e *env.Env, sigma *evd.Map, t term.Term) term.Term

	// Conv decides t1 = t2 (or t1 <= t2 when leq) for terms without
	// undefined evars, recording universe constraints in the returned map.
	Conv(ts Transparency, e *env.Env, sigma *evd.Map, t1, t2 term.Term, leq bool) (*evd.Map, bool)
}

// Machine is the default Oracle.
type Machine struct {
	// MaxSteps bounds each reduction or conversion call. Zero means DefaultMaxSteps.
	MaxSteps int
}

// NewMachine creates a Machine with the default step budget.
func NewMachine() *Machine {
	return &Machine{MaxSteps: DefaultMaxSteps}
}

func (m *Machine) budget() int {
	if m.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return m.MaxSteps
}

// Apprec implements Oracle.
func (m *Machine) Apprec(ts Transparency, e *env.Env, sigma *evd.Map, head term.Term, args []term.Term) (term.Term, []term.Term) {
	fuel := m.budget()
	return m.apprec(ts, e, sigma, head, args, &fuel)
}

func (m *Machine) apprec(ts Transparency, e *env.Env, sigma *evd.Map, head term.Term, args []term.Term, fuel *int) (term.Term, []term.Term) {
	for *fuel > 0 {
		*fuel--
		switch h := head.(type) {
		case term.App:
			inner, innerArgs := term.Decompose(h)
			head, args = inner, term.Concat(innerArgs, args)
			continue
		case term.Evar:
			body, ok := sigma.Instantiate(h)
			if !ok {
				return head, args
			}
			head, args = reflatten(body, args)
			continue
		case term.Lambda:
			if len(args) == 0 {
				return head, args
			}
			head, args = reflatten(term.Subst1(args[0], h.Body), args[1:])
			continue
		case term.LetIn:
			head, args = reflatten(term.Subst1(h.Value, h.Body), args)
			continue
		case term.Case:
			next, ok := m.iotaCase(ts, e, sigma, h, fuel)
			if !ok {
				return head, args
			}
			head, args = reflatten(next, args)
			continue
		case term.Fix:
			next, nextArgs, ok := m.iotaFix(ts, e, sigma, h, args, fuel)
			if !ok {
				return head, args
			}
			head, args = reflatten(next, nextArgs)
			continue
		}
		return head, args
	}
	return head, args
}

func reflatten(t term.Term, args []term.Term) (term.Term, []term.Term) {
	head, inner := term.Decompose(t)
	if len(inner) == 0 {
		return head, args
	}
	return head, term.Concat(inner, args)
}

// iotaCase reduces a match whose scrutinee reduces to a constructor or
// a cofixpoint.
func (m *Machine) iotaCase(ts Transparency, e *env.Env, sigma *evd.Map, c term.Case, fuel *int) (term.Term, bool) {
	sh, sargs := m.whnfForIota(ts, e, sigma, c.Scrutinee, fuel)
	switch sh := sh.(type) {
	case term.Construct:
		if sh.Ind != c.Ind || sh.Index >= len(c.Branches) || len(sargs) < c.NParams {
			return nil, false
		}
		return term.MkApp(c.Branches[sh.Index], sargs[c.NParams:]...), true
	case term.CoFix:
		unfolded := term.MkApp(unfoldCoFix(sh), sargs...)
		return term.Case{Ind: c.Ind, NParams: c.NParams, Return: c.Return, Scrutinee: unfolded, Branches: c.Branches}, true
	}
	return nil, false
}

// iotaFix unfolds a fixpoint whose recursive argument reduces to a constructor.
func (m *Machine) iotaFix(ts Transparency, e *env.Env, sigma *evd.Map, f term.Fix, args []term.Term, fuel *int) (term.Term, []term.Term, bool) {
	if f.Index >= len(f.RecArgs) {
		return nil, nil, false
	}
	rec := f.RecArgs[f.Index]
	if rec >= len(args) {
		return nil, nil, false
	}
	rh, rargs := m.whnfForIota(ts, e, sigma, args[rec], fuel)
	if _, ok := rh.(term.Construct); !ok {
		return nil, nil, false
	}
	next := make([]term.Term, len(args))
	copy(next, args)
	next[rec] = term.MkApp(rh, rargs...)
	return unfoldFix(f), next, true
}

// whnfForIota reduces t until its head is a constructor or stuck,
// unfolding definitions along the way.
func (m *Machine) whnfForIota(ts Transparency, e *env.Env, sigma *evd.Map, t term.Term, fuel *int) (term.Term, []term.Term) {
	head, args := term.Decompose(t)
	for *fuel > 0 {
		head, args = m.apprec(ts, e, sigma, head, args, fuel)
		unfolded, ok := m.unfold(ts, e, head)
		if !ok {
			break
		}
		head, args = reflatten(unfolded, args)
	}
	return head, args
}

func unfoldFix(f term.Fix) term.Term {
	n := len(f.Bodies)
	subs := make([]term.Term, n)
	for k := range subs {
		subs[k] = term.Fix{Index: n - 1 - k, RecArgs: f.RecArgs, Names: f.Names, Types: f.Types, Bodies: f.Bodies}
	}
	return term.Substl(subs, f.Bodies[f.Index])
}

func unfoldCoFix(f term.CoFix) term.Term {
	n := len(f.Bodies)
	subs := make([]term.Term, n)
	for k := range subs {
		subs[k] = term.CoFix{Index: n - 1 - k, Names: f.Names, Types: f.Types, Bodies: f.Bodies}
	}
	return term.Substl(subs, f.Bodies[f.Index])
}

// Unfold implements Oracle.
func (m *Machine) Unfold(ts Transparency, e *env.Env, sigma *evd.Map, head term.Term) (term.Term, bool) {
	return m.unfold(ts, e, head)
}

func (m *Machine) unfold(ts Transparency, e *env.Env, head term.Term) (term.Term, bool) {
	switch h := head.(type) {
	case term.Const:
		if !ts.Const(h.Name) {
			return nil, false
		}
		c, ok := e.Signature().Constant(h.Name)
		if !ok || c.Body == nil {
			return nil, false
		}
		return c.Body, true
	case term.Var, term.Rel:
		if !ts.LetVars() {
			return nil, false
		}
		return e.BodyOf(h)
	}
	return nil, false
}

// Whnf implements Oracle.
func (m *Machine) Whnf(ts Transparency, e *env.Env, sigma *evd.Map, t term.Term) term.Term {
	fuel := m.budget()
	head, args := m.whnfForIota(ts, e, sigma, t, &fuel)
	return term.MkApp(head, args...)
}

// Nf fully normalizes t under ts. Used for printing solutions.
func (m *Machine) Nf(ts Transparency, e *env.Env, sigma *evd.Map, t term.Term) term.Term {
	fuel := m.budget()
	return m.nf(ts, e, sigma, t, &fuel)
}

func (m *Machine) nf(ts Transparency, e *env.Env, sigma *evd.Map, t term.Term, fuel *int) term.Term {
	head, args := m.whnfForIota(ts, e, sigma, t, fuel)
	nargs := make([]term.Term, len(args))
	for i, a := range args {
		nargs[i] = m.nf(ts, e, sigma, a, fuel)
	}
	var nhead term.Term
	switch h := head.(type) {
	case term.Lambda:
		nhead = term.Lambda{Name: h.Name, Type: m.nf(ts, e, sigma, h.Type, fuel),
			Body: m.nf(ts, e.Push(h.Name, h.Type), sigma, h.Body, fuel)}
	case term.Prod:
		nhead = term.Prod{Name: h.Name, Type: m.nf(ts, e, sigma, h.Type, fuel),
			Body: m.nf(ts, e.Push(h.Name, h.Type), sigma, h.Body, fuel)}
	case term.Evar:
		eargs := make([]term.Term, len(h.Args))
		for i, a := range h.Args {
			eargs[i] = m.nf(ts, e, sigma, a, fuel)
		}
		nhead = term.Evar{ID: h.ID, Args: eargs}
	default:
		nhead = head
	}
	return term.MkApp(nhead, nargs...)
}
