// Package legacy provides the first-order solver the unifier falls back to.
//
// It knows nothing about pruning, canonical structures or higher-order
// patterns. An evar is only solved when its instance is made of distinct
// variables and the other side mentions nothing else; everything else is
// compared structurally, with one weak-head normalization as a last try.
package legacy

import (
	"log/slog"

	"github.com/samber/lo"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/term"
)

// Solver is a first-order unifier with occurs check.
// The zero value compares syntactically and never reduces.
type Solver struct {
	oracle reduce.Oracle
	ts     reduce.Transparency
	logger *slog.Logger
}

// Option configures a Solver.
type Option func(*Solver)

// WithOracle enables weak-head normalization when two terms do not match
// structurally.
func WithOracle(o reduce.Oracle, ts reduce.Transparency) Option {
	return func(s *Solver) {
		s.oracle = o
		s.ts = ts
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// New creates a Solver.
func New(opts ...Option) *Solver {
	s := &Solver{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Unify implements unify.Fallback.
func (s *Solver) Unify(e *env.Env, sigma *evd.Map, t1, t2 term.Term) (*evd.Map, bool) {
	out, ok := s.unify(e, sigma, t1, t2, true)
	if s.logger != nil {
		s.logger.Debug("legacy unify", "ok", ok)
	}
	return out, ok
}

func (s *Solver) unify(e *env.Env, sigma *evd.Map, t1, t2 term.Term, whnf bool) (*evd.Map, bool) {
	t1, t2 = sigma.WhdEvar(t1), sigma.WhdEvar(t2)
	if term.Equal(t1, t2) {
		return sigma, true
	}
	if ev, ok := t1.(term.Evar); ok {
		return bind(e, sigma, ev, t2)
	}
	if ev, ok := t2.(term.Evar); ok {
		return bind(e, sigma, ev, t1)
	}
	if out, ok := s.structural(e, sigma, t1, t2); ok {
		return out, true
	}
	if !whnf || s.oracle == nil {
		return nil, false
	}
	w1 := s.oracle.Whnf(s.ts, e, sigma, t1)
	w2 := s.oracle.Whnf(s.ts, e, sigma, t2)
	if term.Equal(w1, t1) && term.Equal(w2, t2) {
		return nil, false
	}
	return s.unify(e, sigma, w1, w2, false)
}

func (s *Solver) list(e *env.Env, sigma *evd.Map, as, bs []term.Term) (*evd.Map, bool) {
	if len(as) != len(bs) {
		return nil, false
	}
	for i := range as {
		var ok bool
		if sigma, ok = s.unify(e, sigma, as[i], bs[i], true); !ok {
			return nil, false
		}
	}
	return sigma, true
}

// structural compares terms of the same shape subterm by subterm.
func (s *Solver) structural(e *env.Env, sigma *evd.Map, t1, t2 term.Term) (*evd.Map, bool) {
	switch a := t1.(type) {
	case term.App:
		b, ok := t2.(term.App)
		if !ok || len(a.Args) != len(b.Args) {
			return nil, false
		}
		return s.list(e, sigma, append([]term.Term{a.Fn}, a.Args...), append([]term.Term{b.Fn}, b.Args...))

	case term.Lambda:
		b, ok := t2.(term.Lambda)
		if !ok {
			return nil, false
		}
		return s.binder(e, sigma, a.Name, a.Type, a.Body, b.Type, b.Body)

	case term.Prod:
		b, ok := t2.(term.Prod)
		if !ok {
			return nil, false
		}
		return s.binder(e, sigma, a.Name, a.Type, a.Body, b.Type, b.Body)

	case term.LetIn:
		b, ok := t2.(term.LetIn)
		if !ok {
			return nil, false
		}
		sigma, ok = s.list(e, sigma, []term.Term{a.Type, a.Value}, []term.Term{b.Type, b.Value})
		if !ok {
			return nil, false
		}
		return s.unify(e.PushLet(a.Name, a.Value, a.Type), sigma, a.Body, b.Body, true)

	case term.Sort:
		b, ok := t2.(term.Sort)
		if !ok {
			return nil, false
		}
		return sigma.SortEq(a, b)

	case term.Case:
		b, ok := t2.(term.Case)
		if !ok || a.Ind != b.Ind || a.NParams != b.NParams {
			return nil, false
		}
		return s.list(e, sigma,
			append([]term.Term{a.Return, a.Scrutinee}, a.Branches...),
			append([]term.Term{b.Return, b.Scrutinee}, b.Branches...))

	case term.Fix, term.CoFix:
		// Blocks are only compared up to evar instantiation.
		return sigma, term.Equal(sigma.NfEvar(t1), sigma.NfEvar(t2))
	}
	return nil, false
}

func (s *Solver) binder(e *env.Env, sigma *evd.Map, name string, ty1, b1, ty2, b2 term.Term) (*evd.Map, bool) {
	sigma, ok := s.unify(e, sigma, ty1, ty2, true)
	if !ok {
		return nil, false
	}
	return s.unify(e.Push(name, ty1), sigma, b1, b2, true)
}

// bind solves ?e[args] := t when args are distinct variables and every
// free variable of t is one of them.
func bind(e *env.Env, sigma *evd.Map, ev term.Evar, t term.Term) (*evd.Map, bool) {
	info, ok := sigma.Info(ev.ID)
	if !ok || info.Defined() || len(info.Ctx) != len(ev.Args) {
		return nil, false
	}
	if !lo.EveryBy(ev.Args, term.IsVariable) || len(lo.UniqBy(ev.Args, term.Hash)) != len(ev.Args) {
		return nil, false
	}
	t = sigma.NfEvar(t)
	if term.OccursEvar(ev.ID, t) {
		return nil, false
	}

	failed := false
	rename := func(v term.Term) term.Term {
		_, i, found := lo.FindIndexOf(ev.Args, func(a term.Term) bool { return term.Equal(a, v) })
		if !found {
			failed = true
			return v
		}
		return term.Var{Name: info.Ctx[i].Name}
	}
	var walk func(term.Term, int) term.Term
	walk = func(u term.Term, depth int) term.Term {
		switch u := u.(type) {
		case term.Rel:
			if u.Index < depth {
				return u
			}
			return rename(term.Rel{Index: u.Index - depth})
		case term.Var:
			return rename(u)
		}
		return term.Map(u, depth, walk)
	}
	body := walk(t, 0)
	if failed {
		return nil, false
	}
	out, err := sigma.Define(ev.ID, body)
	if err != nil {
		return nil, false
	}
	return out, true
}
