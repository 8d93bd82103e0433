package unify

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// evarProblem is a problem with an undefined evar at the head of one side.
type evarProblem struct {
	env   *env.Env
	ev    term.Evar
	args  []term.Term
	other term.Term
	// left is set when the evar side is the left-hand side.
	left bool
	conv Conv
}

func (p evarProblem) evarSide() term.Term {
	return term.MkApp(p.ev, p.args...)
}

// pair unifies evSide against other in e, restoring the problem's
// orientation.
func (s *session) pair(e *env.Env, sigma *evd.Map, p evarProblem, evSide, other term.Term, conv Conv) (*evd.Map, bool) {
	if p.left {
		return s.unify(e, sigma, evSide, other, conv)
	}
	return s.unify(e, sigma, other, evSide, conv)
}

func (s *session) retry(sigma *evd.Map, p evarProblem, evSide, other term.Term) (*evd.Map, bool) {
	return s.pair(p.env, sigma, p, evSide, other, p.conv)
}

// instantiate runs the evar strategies in order; the first success wins.
func (s *session) instantiate(sigma *evd.Map, p evarProblem) (*evd.Map, bool) {
	info := s.evarInfo(sigma, p.ev)
	name := evarName(p.ev)
	return first(
		s.rule("meta-inst", name, func() (*evd.Map, bool) {
			return s.solvePattern(sigma, p, info, true)
		}),
		s.rule("meta-fo", name, func() (*evd.Map, bool) {
			return s.metaFO(sigma, p)
		}),
		s.rule("meta-prune", name, func() (*evd.Map, bool) {
			return s.metaPrune(sigma, p)
		}),
		s.rule("meta-specialize", name, func() (*evd.Map, bool) {
			return s.specialize(sigma, p, info)
		}),
		s.rule("meta-reduce", name, func() (*evd.Map, bool) {
			return s.metaReduce(sigma, p)
		}),
		s.rule("meta-eta", name, func() (*evd.Map, bool) {
			return s.metaEta(sigma, p)
		}),
	)
}

// isPattern reports whether every instance and argument is a variable,
// pairwise distinct when distinct is set.
func isPattern(inst, args []term.Term, distinct bool) bool {
	all := term.Concat(inst, args)
	for i, a := range all {
		if !term.IsVariable(a) {
			return false
		}
		if distinct && lo.ContainsBy(all[:i], func(b term.Term) bool { return term.Equal(a, b) }) {
			return false
		}
	}
	return true
}

// solvePattern defines the evar as the other side inverted into its scope
// and abstracted over the pending arguments.
func (s *session) solvePattern(sigma *evd.Map, p evarProblem, info evd.EvarInfo, distinct bool) (*evd.Map, bool) {
	if !isPattern(p.ev.Args, p.args, distinct) {
		return nil, false
	}
	m := len(p.args)
	names := make([]string, m)
	types := make([]term.Term, m)
	for j, a := range p.args {
		ty, ok := p.env.TypeOf(a)
		if !ok {
			s.checkVar(p.env, a)
			return nil, false
		}
		names[j] = varName(p.env, a)
		inv := s.newInverter(p.env, p.ev.ID, info.Ctx, p.ev.Args, p.args[:j])
		if sigma, types[j], ok = inv.invert(sigma, ty); !ok {
			return nil, false
		}
	}

	inv := s.newInverter(p.env, p.ev.ID, info.Ctx, p.ev.Args, p.args)
	sigma, body, ok := inv.invert(sigma, p.other)
	if !ok {
		return nil, false
	}
	for j := m - 1; j >= 0; j-- {
		body = term.Lambda{Name: names[j], Type: types[j], Body: body}
	}
	if sigma.IsDefined(p.ev.ID) {
		return nil, false
	}
	out, err := sigma.Define(p.ev.ID, body)
	if err != nil {
		return nil, false
	}
	return out, true
}

// metaFO splits the other side's spine: ?e a1..an = h b1..bk c1..cn becomes
// ?e = h b1..bk and ai = ci.
func (s *session) metaFO(sigma *evd.Map, p evarProblem) (*evd.Map, bool) {
	n := len(p.args)
	if n == 0 {
		return nil, false
	}
	h, oargs := term.Decompose(p.other)
	if len(oargs) < n {
		return nil, false
	}
	k := len(oargs) - n
	return chain(sigma,
		func(sigma *evd.Map) (*evd.Map, bool) {
			return s.pair(p.env, sigma, p, p.ev, term.MkApp(h, oargs[:k]...), p.conv)
		},
		func(sigma *evd.Map) (*evd.Map, bool) {
			for i := range p.args {
				var ok bool
				if sigma, ok = s.pair(p.env, sigma, p, p.args[i], oargs[k+i], p.conv.Eq()); !ok {
					return nil, false
				}
			}
			return sigma, true
		},
	)
}

// metaPrune drops the instance entries that keep the occurrence from being
// a pattern or that the other side does not need: non-variables, repeated
// variables and variables absent from the other side. The smaller problem
// is then retried from the top.
func (s *session) metaPrune(sigma *evd.Map, p evarProblem) (*evd.Map, bool) {
	if !s.eng.aggressive {
		return nil, false
	}
	other := sigma.NfEvar(p.other)
	var positions []int
	for i, a := range p.ev.Args {
		switch {
		case !term.IsVariable(a):
		case countEqual(term.Concat(p.ev.Args, p.args), a) > 1:
		case !term.Occurs(a, other):
		default:
			continue
		}
		positions = append(positions, i)
	}
	if len(positions) == 0 {
		return nil, false
	}
	sigma, err := s.prune(p.env.Signature(), sigma, p.ev.ID, positions)
	if err != nil {
		return nil, false
	}
	return s.retry(sigma, p, p.evarSide(), p.other)
}

// specialize turns ?e a rest into ?e' [inst, a] rest, where ?e' has one
// more context entry and ?e := fun x => ?e' [ctx, x].
func (s *session) specialize(sigma *evd.Map, p evarProblem, info evd.EvarInfo) (*evd.Map, bool) {
	if !s.eng.superAggressive || len(p.args) == 0 {
		return nil, false
	}
	local := env.New(p.env.Signature(), info.Ctx)
	prod, ok := s.eng.oracle.Whnf(s.eng.ts, local, sigma, sigma.NfEvar(info.Type)).(term.Prod)
	if !ok {
		return nil, false
	}
	x := freshIn(info.Ctx, prod.Name)
	ctx := append(append(term.Context(nil), info.Ctx...), term.Decl{Name: x, Type: prod.Type})
	sigma, id := sigma.NewEvar(ctx, term.Subst1(term.Var{Name: x}, prod.Body), fmt.Sprintf("specialize ?%d", p.ev.ID))
	body := term.Lambda{
		Name: prod.Name,
		Type: prod.Type,
		Body: term.AbstractVar(x, term.Evar{ID: id, Args: ctx.Identity()}),
	}
	sigma, err := sigma.Define(p.ev.ID, body)
	if err != nil {
		return nil, false
	}
	ev := term.Evar{ID: id, Args: term.Concat(p.ev.Args, p.args[:1])}
	return s.retry(sigma, p, term.MkApp(ev, p.args[1:]...), p.other)
}

// metaReduce unfolds or weak-head normalizes the other side and retries.
func (s *session) metaReduce(sigma *evd.Map, p evarProblem) (*evd.Map, bool) {
	h, args := term.Decompose(p.other)
	t, ok := s.unfoldHead(p.env, sigma, h, args)
	if !ok {
		nh, nargs := s.eng.oracle.Apprec(s.eng.ts, p.env, sigma, h, args)
		if term.Equal(nh, h) && term.EqualList(nargs, args) {
			return nil, false
		}
		t = term.MkApp(nh, nargs...)
	}
	return s.retry(sigma, p, p.evarSide(), t)
}

// metaEta handles an abstraction on the other side: ?e args = fun x => b
// becomes ?e args x = b under x.
func (s *session) metaEta(sigma *evd.Map, p evarProblem) (*evd.Map, bool) {
	lam, ok := p.other.(term.Lambda)
	if !ok {
		return nil, false
	}
	return s.pair(p.env.Push(lam.Name, lam.Type), sigma, p, etaApply(p.evarSide()), lam.Body, p.conv.Eq())
}

// metaSame unifies two occurrences of the same evar: the instances are
// intersected, the differing positions pruned, then the arguments unified.
func (s *session) metaSame(e *env.Env, sigma *evd.Map, ev1 term.Evar, a1 []term.Term, ev2 term.Evar, a2 []term.Term) (*evd.Map, bool) {
	if len(a1) != len(a2) {
		return nil, false
	}
	norm := func(t term.Term, _ int) term.Term { return sigma.NfEvar(t) }
	positions, ok := intersect(lo.Map(ev1.Args, norm), lo.Map(ev2.Args, norm), s.eng.aggressive)
	if !ok {
		return nil, false
	}
	if len(positions) > 0 {
		var err error
		if sigma, err = s.prune(e.Signature(), sigma, ev1.ID, positions); err != nil {
			return nil, false
		}
	}
	return s.unifyList(e, sigma, a1, a2, CONV)
}

// metaMeta solves ?a = ?b with different evars: the newer evar is
// instantiated first, then the older, then a pattern solver that accepts
// repeated variables is tried both ways.
func (s *session) metaMeta(e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (*evd.Map, bool) {
	h1, a1 := term.Decompose(t1)
	h2, a2 := term.Decompose(t2)
	p1 := evarProblem{env: e, ev: h1.(term.Evar), args: a1, other: t2, left: true, conv: conv}
	p2 := evarProblem{env: e, ev: h2.(term.Evar), args: a2, other: t1, left: false, conv: conv}
	newer, older := p1, p2
	if p2.ev.ID > p1.ev.ID {
		newer, older = p2, p1
	}
	restricted := func(p evarProblem) attempt {
		return s.rule("meta-restricted", evarName(p.ev), func() (*evd.Map, bool) {
			return s.solvePattern(sigma, p, s.evarInfo(sigma, p.ev), false)
		})
	}
	return first(
		func() (*evd.Map, bool) { return s.instantiate(sigma, newer) },
		func() (*evd.Map, bool) { return s.instantiate(sigma, older) },
		restricted(newer),
		restricted(older),
	)
}

func countEqual(ts []term.Term, t term.Term) int {
	return lo.CountBy(ts, func(u term.Term) bool { return term.Equal(u, t) })
}

// varName is the binder name to use when abstracting over variable v.
func varName(e *env.Env, v term.Term) string {
	switch v := v.(type) {
	case term.Rel:
		return e.RelName(v.Index)
	case term.Var:
		return v.Name
	}
	return "_"
}

// checkVar raises an invariant violation for a bound variable outside e.
func (s *session) checkVar(e *env.Env, v term.Term) {
	if r, ok := v.(term.Rel); ok && r.Index >= e.NRels() {
		violate(CodeUnboundRel, "Rel %d with %d binders in scope", r.Index, e.NRels())
	}
}

// freshIn returns a name based on base that ctx does not use.
func freshIn(ctx term.Context, base string) string {
	if base == "" || base == "_" {
		base = "x"
	}
	if ctx.Lookup(base) < 0 {
		return base
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if ctx.Lookup(name) < 0 {
			return name
		}
	}
}
