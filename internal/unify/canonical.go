package unify

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// canonical solves proj params c ts = h l when the registry knows an
// instance for (proj, h). A missing entry is "not applicable".
//
// With the instance's parameters replaced by fresh evars ks, and its field
// for proj being fh us, the rule unifies in order: params with the
// structure parameters of the instance, us with the prefix of l, fh with
// h, c with the instance applied to ks, and ts with the rest of l.
func (s *session) canonical(e *env.Env, sigma *evd.Map, h1 term.Term, a1 []term.Term, h2 term.Term, a2 []term.Term) (*evd.Map, bool) {
	projHead, ok := h1.(term.Const)
	if !ok {
		return nil, false
	}
	proj, ok := e.Signature().Projection(projHead.Name)
	if !ok || len(a1) <= proj.NParams {
		return nil, false
	}
	key, ok := canonical.KeyOf(h2)
	if !ok {
		return nil, false
	}
	inst, ok := s.eng.registry.Lookup(projHead.Name, key)
	if !ok {
		return nil, false
	}
	params1, c1, ts1 := a1[:proj.NParams], a1[proj.NParams], a1[proj.NParams+1:]

	sigma, ks := s.instanceEvars(e, sigma, inst)
	subs := reversed(ks)
	structParams := lo.Map(inst.StructParams, func(t term.Term, _ int) term.Term { return term.Substl(subs, t) })
	fh, us := term.Decompose(term.Substl(subs, inst.Fields[proj.Index]))
	if len(structParams) != len(params1) || len(a2) < len(us) || len(ts1) != len(a2)-len(us) {
		return nil, false
	}

	return chain(sigma,
		func(sigma *evd.Map) (*evd.Map, bool) { return s.unifyList(e, sigma, params1, structParams, CONV) },
		func(sigma *evd.Map) (*evd.Map, bool) { return s.unifyList(e, sigma, us, a2[:len(us)], CONV) },
		func(sigma *evd.Map) (*evd.Map, bool) { return s.unify(e, sigma, fh, h2, CONV) },
		func(sigma *evd.Map) (*evd.Map, bool) {
			return s.unify(e, sigma, c1, term.MkApp(term.Const{Name: inst.Name}, ks...), CONV)
		},
		func(sigma *evd.Map) (*evd.Map, bool) { return s.unifyList(e, sigma, ts1, a2[len(us):], CONV) },
	)
}

// instanceEvars allocates one evar per instance parameter, each typed by
// the parameter type with the earlier evars substituted.
func (s *session) instanceEvars(e *env.Env, sigma *evd.Map, inst canonical.Instance) (*evd.Map, []term.Term) {
	ctx, args := e.EvarContext()
	ks := make([]term.Term, len(inst.ParamTypes))
	named := make([]term.Term, len(inst.ParamTypes))
	for i, pt := range inst.ParamTypes {
		typ := term.Substl(reversed(named[:i]), pt)
		var id int
		sigma, id = sigma.NewEvar(ctx, typ, fmt.Sprintf("canonical %s param %d", inst.Name, i))
		named[i] = term.Evar{ID: id, Args: ctx.Identity()}
		ks[i] = term.Evar{ID: id, Args: args}
	}
	return sigma, ks
}

// reversed returns ts innermost-first, the order Substl expects.
func reversed(ts []term.Term) []term.Term {
	out := slices.Clone(ts)
	slices.Reverse(out)
	return out
}
