package reduce

import (
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// Conv implements Oracle.
func (m *Machine) Conv(ts Transparency, e *env.Env, sigma *evd.Map, t1, t2 term.Term, leq bool) (*evd.Map, bool) {
	c := &converter{m: m, ts: ts, fuel: m.budget()}
	return c.conv(e, sigma, t1, t2, leq)
}

type converter struct {
	m    *Machine
	ts   Transparency
	fuel int
}

func (c *converter) conv(e *env.Env, sigma *evd.Map, t1, t2 term.Term, leq bool) (*evd.Map, bool) {
	if term.Equal(t1, t2) {
		return sigma, true
	}
	h1, a1 := term.Decompose(t1)
	h2, a2 := term.Decompose(t2)
	h1, a1 = c.m.apprec(c.ts, e, sigma, h1, a1, &c.fuel)
	h2, a2 = c.m.apprec(c.ts, e, sigma, h2, a2, &c.fuel)

	for c.fuel > 0 {
		c.fuel--
		if len(a1) == len(a2) {
			if s, ok := c.heads(e, sigma, h1, h2, leq); ok {
				if s, ok = c.convList(e, s, a1, a2); ok {
					return s, true
				}
			}
		}
		u1, ok1 := c.m.unfold(c.ts, e, h1)
		u2, ok2 := c.m.unfold(c.ts, e, h2)
		switch {
		case ok1 && ok2:
			h1, a1 = c.m.apprec(c.ts, e, sigma, u1, a1, &c.fuel)
			h2, a2 = c.m.apprec(c.ts, e, sigma, u2, a2, &c.fuel)
		case ok2:
			h2, a2 = c.m.apprec(c.ts, e, sigma, u2, a2, &c.fuel)
		case ok1:
			h1, a1 = c.m.apprec(c.ts, e, sigma, u1, a1, &c.fuel)
		default:
			return c.eta(e, sigma, h1, a1, h2, a2)
		}
	}
	return nil, false
}

// eta compares an unapplied abstraction against any other term by
// applying the latter to a fresh bound variable.
func (c *converter) eta(e *env.Env, sigma *evd.Map, h1 term.Term, a1 []term.Term, h2 term.Term, a2 []term.Term) (*evd.Map, bool) {
	if lam, ok := h1.(term.Lambda); ok && len(a1) == 0 && !term.IsLambda(h2) {
		other := term.MkApp(term.Lift(1, 0, term.MkApp(h2, a2...)), term.Rel{Index: 0})
		return c.conv(e.Push(lam.Name, lam.Type), sigma, lam.Body, other, false)
	}
	if lam, ok := h2.(term.Lambda); ok && len(a2) == 0 && !term.IsLambda(h1) {
		other := term.MkApp(term.Lift(1, 0, term.MkApp(h1, a1...)), term.Rel{Index: 0})
		return c.conv(e.Push(lam.Name, lam.Type), sigma, other, lam.Body, false)
	}
	return nil, false
}

func (c *converter) convList(e *env.Env, sigma *evd.Map, a, b []term.Term) (*evd.Map, bool) {
	for i := range a {
		var ok bool
		if sigma, ok = c.conv(e, sigma, a[i], b[i], false); !ok {
			return nil, false
		}
	}
	return sigma, true
}

// heads compares two weak-head normal heads of the same shape.
func (c *converter) heads(e *env.Env, sigma *evd.Map, h1, h2 term.Term, leq bool) (*evd.Map, bool) {
	switch a := h1.(type) {
	case term.Rel:
		b, ok := h2.(term.Rel)
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
	case term.Sort:
		b, ok := h2.(term.Sort)
		if !ok {
			return nil, false
		}
		if leq {
			return sigma.SortLeq(a, b)
		}
		return sigma.SortEq(a, b)
	case term.Evar:
		b, ok := h2.(term.Evar)
		if !ok || a.ID != b.ID || len(a.Args) != len(b.Args) {
			return nil, false
		}
		return c.convList(e, sigma, a.Args, b.Args)
	case term.Lambda:
		b, ok := h2.(term.Lambda)
		if !ok {
			return nil, false
		}
		s, ok := c.conv(e, sigma, a.Type, b.Type, false)
		if !ok {
			return nil, false
		}
		return c.conv(e.Push(a.Name, a.Type), s, a.Body, b.Body, false)
	case term.Prod:
		b, ok := h2.(term.Prod)
		if !ok {
			return nil, false
		}
		s, ok := c.conv(e, sigma, a.Type, b.Type, false)
		if !ok {
			return nil, false
		}
		return c.conv(e.Push(a.Name, a.Type), s, a.Body, b.Body, leq)
	case term.Case:
		b, ok := h2.(term.Case)
		if !ok || a.Ind != b.Ind || a.NParams != b.NParams || len(a.Branches) != len(b.Branches) {
			return nil, false
		}
		s, ok := c.conv(e, sigma, a.Return, b.Return, false)
		if !ok {
			return nil, false
		}
		if s, ok = c.conv(e, s, a.Scrutinee, b.Scrutinee, false); !ok {
			return nil, false
		}
		return c.convList(e, s, a.Branches, b.Branches)
	case term.Fix:
		b, ok := h2.(term.Fix)
		if !ok || a.Index != b.Index || !sameInts(a.RecArgs, b.RecArgs) || len(a.Bodies) != len(b.Bodies) {
			return nil, false
		}
		return c.convBlock(e, sigma, a.Names, a.Types, b.Types, a.Bodies, b.Bodies)
	case term.CoFix:
		b, ok := h2.(term.CoFix)
		if !ok || a.Index != b.Index || len(a.Bodies) != len(b.Bodies) {
			return nil, false
		}
		return c.convBlock(e, sigma, a.Names, a.Types, b.Types, a.Bodies, b.Bodies)
	}
	return nil, false
}

func (c *converter) convBlock(e *env.Env, sigma *evd.Map, names []string, ty1, ty2, b1, b2 []term.Term) (*evd.Map, bool) {
	s, ok := c.convList(e, sigma, ty1, ty2)
	if !ok {
		return nil, false
	}
	inner := PushFixBinders(e, names, ty1)
	return c.convList(inner, s, b1, b2)
}

// PushFixBinders pushes the function binders of a fixpoint block.
func PushFixBinders(e *env.Env, names []string, types []term.Term) *env.Env {
	for j, ty := range types {
		name := "f"
		if j < len(names) {
			name = names[j]
		}
		e = e.Push(name, term.Lift(j, 0, ty))
	}
	return e
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
