package unify

import (
	"fmt"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/term"
)

// unify is the recursive entry point. It fails with (nil, false).
func (s *session) unify(e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (*evd.Map, bool) {
	if !s.tick() {
		return nil, false
	}
	s.depth++
	defer func() { s.depth-- }()
	mark := len(s.trace)

	t1, t2 = sigma.WhdEvar(t1), sigma.WhdEvar(t2)
	if sigma.IsGround(t1) && sigma.IsGround(t2) {
		if out, ok := s.ground(e, sigma, t1, t2, conv); ok {
			s.record("ground", describe(t1))
			return out, true
		}
	}

	k := s.key(e, sigma, t1, t2, conv)
	if s.failedBefore(k) {
		return nil, false
	}
	out, ok := s.node(e, sigma, t1, t2, conv)
	if !ok {
		s.trace = s.trace[:mark]
		s.rememberFailure(k)
		return nil, false
	}
	return out, true
}

// ground checks a problem without undefined evars with the oracle. A
// failure is not final: the marker and canonical rules may still apply.
func (s *session) ground(e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (*evd.Map, bool) {
	a, b := sigma.NfEvar(t1), sigma.NfEvar(t2)
	leq := conv.Pb == LessEqual
	if leq && conv.Swapped {
		a, b = b, a
	}
	return s.eng.oracle.Conv(s.eng.ts, e, sigma, a, b, leq)
}

func (s *session) node(e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (*evd.Map, bool) {
	h1, a1 := term.Decompose(t1)
	h2, a2 := term.Decompose(t2)

	ev1, isEv1 := h1.(term.Evar)
	ev2, isEv2 := h2.(term.Evar)
	switch {
	case isEv1 && isEv2:
		s.evarInfo(sigma, ev1)
		s.evarInfo(sigma, ev2)
		if ev1.ID == ev2.ID {
			return s.rule("meta-same", evarName(ev1), func() (*evd.Map, bool) {
				return s.metaSame(e, sigma, ev1, a1, ev2, a2)
			})()
		}
		return s.rule("meta-meta", evarName(ev1)+" "+evarName(ev2), func() (*evd.Map, bool) {
			return s.metaMeta(e, sigma, t1, t2, conv)
		})()
	case isEv1:
		return s.instantiate(sigma, evarProblem{env: e, ev: ev1, args: a1, other: t2, left: true, conv: conv})
	case isEv2:
		return s.instantiate(sigma, evarProblem{env: e, ev: ev2, args: a2, other: t1, left: false, conv: conv})
	}

	return first(
		s.rule("run", describe(h1), func() (*evd.Map, bool) {
			return s.runEffect(e, sigma, h1, a1, t2, conv, true)
		}),
		s.rule("run", describe(h2), func() (*evd.Map, bool) {
			return s.runEffect(e, sigma, h2, a2, t1, conv, false)
		}),
		s.rule("canonical", describe(h1), func() (*evd.Map, bool) {
			return s.canonical(e, sigma, h1, a1, h2, a2)
		}),
		s.rule("canonical", describe(h2), func() (*evd.Map, bool) {
			return s.canonical(e, sigma, h2, a2, h1, a1)
		}),
		s.rule("rigid-fo", describe(h1), func() (*evd.Map, bool) {
			if len(a1) != len(a2) {
				return nil, false
			}
			return s.firstOrder(e, sigma, h1, a1, h2, a2, conv)
		}),
		func() (*evd.Map, bool) {
			return s.step(e, sigma, t1, t2, conv)
		},
	)
}

// firstOrder compares heads then arguments pointwise. The relation only
// reaches the heads when there are no arguments.
func (s *session) firstOrder(e *env.Env, sigma *evd.Map, h1 term.Term, a1 []term.Term, h2 term.Term, a2 []term.Term, conv Conv) (*evd.Map, bool) {
	headConv := conv
	if len(a1) > 0 {
		headConv = conv.Eq()
	}
	return chain(sigma,
		func(sigma *evd.Map) (*evd.Map, bool) { return s.compareHeads(e, sigma, h1, h2, headConv) },
		func(sigma *evd.Map) (*evd.Map, bool) { return s.unifyList(e, sigma, a1, a2, conv.Eq()) },
	)
}

func (s *session) unifyList(e *env.Env, sigma *evd.Map, as, bs []term.Term, conv Conv) (*evd.Map, bool) {
	if len(as) != len(bs) {
		return nil, false
	}
	for i := range as {
		var ok bool
		if sigma, ok = s.unify(e, sigma, as[i], bs[i], conv); !ok {
			return nil, false
		}
	}
	return sigma, true
}

// compareHeads compares two rigid heads of the same shape. A shape
// mismatch is a local failure; the caller falls back to reduction.
func (s *session) compareHeads(e *env.Env, sigma *evd.Map, h1, h2 term.Term, conv Conv) (*evd.Map, bool) {
	switch a := h1.(type) {
	case term.Sort:
		b, ok := h2.(term.Sort)
		if !ok {
			return nil, false
		}
		return sortRel(sigma, a, b, conv)

	case term.Rel:
		b, ok := h2.(term.Rel)
		if a.Index >= e.NRels() {
			violate(CodeUnboundRel, "Rel %d with %d binders in scope", a.Index, e.NRels())
		}
		return sigma, ok && a.Index == b.Index

	case term.Var:
		b, ok := h2.(term.Var)
		return sigma, ok && a.Name == b.Name

	case term.Const:
		b, ok := h2.(term.Const)
		return sigma, ok && a.Name == b.Name

	case term.Ind:
		b, ok := h2.(term.Ind)
		return sigma, ok && a.Name == b.Name

	case term.Construct:
		b, ok := h2.(term.Construct)
		return sigma, ok && a == b

	case term.Lambda:
		b, ok := h2.(term.Lambda)
		if !ok {
			return nil, false
		}
		return chain(sigma,
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, a.Type, b.Type, conv.Eq()) },
			func(sigma *evd.Map) (*evd.Map, bool) {
				return s.unify(e.Push(a.Name, a.Type), sigma, a.Body, b.Body, conv.Eq())
			},
		)

	case term.Prod:
		b, ok := h2.(term.Prod)
		if !ok {
			return nil, false
		}
		return chain(sigma,
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, a.Type, b.Type, conv.Eq()) },
			func(sigma *evd.Map) (*evd.Map, bool) {
				return s.unify(e.Push(a.Name, a.Type), sigma, a.Body, b.Body, conv)
			},
		)

	case term.LetIn:
		b, ok := h2.(term.LetIn)
		if !ok {
			return nil, false
		}
		return chain(sigma,
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, a.Type, b.Type, conv.Eq()) },
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, a.Value, b.Value, conv.Eq()) },
			func(sigma *evd.Map) (*evd.Map, bool) {
				return s.unify(e.PushLet(a.Name, a.Value, a.Type), sigma, a.Body, b.Body, conv)
			},
		)

	case term.Case:
		b, ok := h2.(term.Case)
		if !ok || a.Ind != b.Ind || a.NParams != b.NParams || len(a.Branches) != len(b.Branches) {
			return nil, false
		}
		return chain(sigma,
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, a.Return, b.Return, conv.Eq()) },
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, a.Scrutinee, b.Scrutinee, conv.Eq()) },
			func(sigma *evd.Map) (*evd.Map, bool) { return s.unifyList(e, sigma, a.Branches, b.Branches, conv.Eq()) },
		)

	case term.Fix:
		b, ok := h2.(term.Fix)
		if !ok || a.Index != b.Index || !sameInts(a.RecArgs, b.RecArgs) {
			return nil, false
		}
		return s.compareBlocks(e, sigma, a.Names, a.Types, b.Types, a.Bodies, b.Bodies)

	case term.CoFix:
		b, ok := h2.(term.CoFix)
		if !ok || a.Index != b.Index {
			return nil, false
		}
		return s.compareBlocks(e, sigma, a.Names, a.Types, b.Types, a.Bodies, b.Bodies)
	}
	return nil, false
}

func (s *session) compareBlocks(e *env.Env, sigma *evd.Map, names []string, ty1, ty2, b1, b2 []term.Term) (*evd.Map, bool) {
	if len(ty1) != len(ty2) || len(b1) != len(b2) {
		return nil, false
	}
	return chain(sigma,
		func(sigma *evd.Map) (*evd.Map, bool) { return s.unifyList(e, sigma, ty1, ty2, CONV) },
		func(sigma *evd.Map) (*evd.Map, bool) {
			return s.unifyList(reduce.PushFixBinders(e, names, ty1), sigma, b1, b2, CONV)
		},
	)
}

// sortRel records a = b, or a <= b (b <= a when swapped) for LessEqual.
func sortRel(sigma *evd.Map, a, b term.Sort, conv Conv) (*evd.Map, bool) {
	switch {
	case conv.Pb == Equal:
		return sigma.SortEq(a, b)
	case conv.Swapped:
		return sigma.SortLeq(b, a)
	}
	return sigma.SortLeq(a, b)
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// evarInfo returns the record of ev's evar, checking that the occurrence
// is well formed.
func (s *session) evarInfo(sigma *evd.Map, ev term.Evar) evd.EvarInfo {
	info, ok := sigma.Info(ev.ID)
	if !ok {
		violate(CodeUnknownEvar, "?%d is not declared", ev.ID)
	}
	if len(ev.Args) != len(info.Ctx) {
		violate(CodeArityMismatch, "?%d applied to %d instances, its context has %d entries",
			ev.ID, len(ev.Args), len(info.Ctx))
	}
	return info
}

func evarName(ev term.Evar) string {
	return fmt.Sprintf("?%d", ev.ID)
}

// describe names the head of t for traces.
func describe(t term.Term) string {
	h, _ := term.Decompose(t)
	switch h := h.(type) {
	case term.Rel:
		return fmt.Sprintf("#%d", h.Index)
	case term.Var:
		return h.Name
	case term.Evar:
		return evarName(h)
	case term.Const:
		return h.Name
	case term.Ind:
		return h.Name
	case term.Construct:
		return fmt.Sprintf("%s#%d", h.Ind, h.Index)
	case term.Sort:
		switch h.Kind {
		case term.SortProp:
			return "Prop"
		case term.SortSet:
			return "Set"
		}
		return "Type"
	case term.Lambda:
		return "fun"
	case term.Prod:
		return "forall"
	case term.LetIn:
		return "let"
	case term.Case:
		return "match"
	case term.Fix:
		return "fix"
	case term.CoFix:
		return "cofix"
	}
	return "?"
}
