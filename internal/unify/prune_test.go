package unify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
	fx "github.com/roach88/evarconv/internal/testutil"
)

// vecCtx is [x : nat, y : vec x].
var vecCtx = term.Context{
	{Name: "x", Type: fx.Nat},
	{Name: "y", Type: term.MkApp(fx.Vec, term.Var{Name: "x"})},
}

func TestClosure_DependencyClosure(t *testing.T) {
	assert.Equal(t, map[int]bool{0: true, 1: true}, closure(vecCtx, []int{0}))
	assert.Equal(t, map[int]bool{1: true}, closure(vecCtx, []int{1}))
}

func TestClosure_LetBodies(t *testing.T) {
	ctx := term.Context{
		{Name: "x", Type: fx.Nat},
		{Name: "z", Type: fx.Nat, Body: term.MkApp(fx.Succ, term.Var{Name: "x"})},
		{Name: "w", Type: fx.Nat},
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, closure(ctx, []int{0}))
}

func TestPrune_RedirectsToNarrowerEvar(t *testing.T) {
	h := newHarness(t)
	s := h.eng.newSession(context.Background())
	sigma, e := evd.New().NewEvar(vecCtx, fx.Nat, "test")

	out, err := s.prune(h.sig, sigma, e, []int{0})
	require.NoError(t, err)
	info, _ := out.Info(e)
	fresh, ok := info.Body.(term.Evar)
	require.True(t, ok)
	freshInfo, _ := out.Info(fresh.ID)
	assert.Empty(t, freshInfo.Ctx)
	assert.Empty(t, fresh.Args)

	out, err = s.prune(h.sig, sigma, e, []int{1})
	require.NoError(t, err)
	info, _ = out.Info(e)
	fresh = info.Body.(term.Evar)
	freshInfo, _ = out.Info(fresh.ID)
	assert.Equal(t, []string{"x"}, freshInfo.Ctx.Names())
	assert.True(t, term.EqualList([]term.Term{term.Var{Name: "x"}}, fresh.Args))
}

func TestPrune_DefinedIsNoop(t *testing.T) {
	h := newHarness(t)
	s := h.eng.newSession(context.Background())
	sigma, e := evd.New().NewEvar(vecCtx, fx.Nat, "test")
	sigma, err := sigma.Define(e, fx.One)
	require.NoError(t, err)

	out, err := s.prune(h.sig, sigma, e, []int{0})
	require.NoError(t, err)
	assert.Same(t, sigma, out)
}

func TestPrune_TypeDependsOnRemoved(t *testing.T) {
	h := newHarness(t)
	s := h.eng.newSession(context.Background())
	sigma, e := evd.New().NewEvar(vecCtx, term.MkApp(fx.Vec, term.Var{Name: "x"}), "test")

	_, err := s.prune(h.sig, sigma, e, []int{0})
	assert.ErrorIs(t, err, ErrCannotPrune)

	_, err = s.prune(h.sig, sigma, e, nil)
	assert.ErrorIs(t, err, ErrCannotPrune)

	out, err := s.prune(h.sig, sigma, e, []int{1})
	require.NoError(t, err)
	assert.True(t, out.IsDefined(e))
}

func TestIntersect(t *testing.T) {
	fxx := term.MkApp(fx.F, vx)
	fy := term.MkApp(fx.F, vy)

	positions, ok := intersect([]term.Term{vx, vy}, []term.Term{vx, vx}, false)
	require.True(t, ok)
	assert.Equal(t, []int{1}, positions)

	_, ok = intersect([]term.Term{vx, fxx}, []term.Term{vx, fy}, false)
	assert.False(t, ok)

	positions, ok = intersect([]term.Term{vx, fxx}, []term.Term{vx, fy}, true)
	require.True(t, ok)
	assert.Equal(t, []int{1}, positions)

	// Right-aligned: the extra leading entry of the longer instance is ignored.
	positions, ok = intersect([]term.Term{fxx, vx, vy}, []term.Term{vx, vx}, false)
	require.True(t, ok)
	assert.Equal(t, []int{2}, positions)
}

func TestUnify_MetaSamePrunesDifferingVariables(t *testing.T) {
	h := newHarness(t)
	sigma, e := h.evar(evd.New(), fx.Nat, "x", "y")

	res, err := h.unify(sigma, occ(e, vx, vy), occ(e, vx, vx), CONV)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta-same"}, rules(res.Trace))

	nf, ok := res.Sigma.NfEvar(occ(e, vx, vy)).(term.Evar)
	require.True(t, ok)
	info, _ := res.Sigma.Info(nf.ID)
	assert.Equal(t, []string{"x"}, info.Ctx.Names())
}

func TestUnify_MetaSameIncompatible(t *testing.T) {
	sigmaFor := func(h *harness) (*evd.Map, int) {
		return h.evar(evd.New(), fx.Nat, "x", "y")
	}
	lhsArgs := []term.Term{vx, term.MkApp(fx.F, vx)}
	rhsArgs := []term.Term{vx, term.MkApp(fx.F, vy)}

	h := newHarness(t, WithAggressive(false))
	sigma, e := sigmaFor(h)
	_, err := h.unify(sigma, occ(e, lhsArgs...), occ(e, rhsArgs...), CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)

	h = newHarness(t)
	sigma, e = sigmaFor(h)
	res, err := h.unify(sigma, occ(e, lhsArgs...), occ(e, rhsArgs...), CONV)
	require.NoError(t, err)
	assert.True(t, res.Sigma.IsDefined(e))
}

func TestUnify_MetaMetaPrunesOlderEvar(t *testing.T) {
	h := newHarness(t)
	sigma, older := h.evar(evd.New(), fx.Nat, "x", "y")
	sigma, newer := h.evar(sigma, fx.Nat, "x")

	res, err := h.unify(sigma, occ(older, vx, vy), occ(newer, vx), CONV)
	require.NoError(t, err)

	// The newer evar is solved; the older one loses its y entry on the way.
	assert.True(t, res.Sigma.IsDefined(newer))
	assert.True(t, res.Sigma.IsDefined(older))
	l := res.Sigma.NfEvar(occ(older, vx, vy))
	r := res.Sigma.NfEvar(occ(newer, vx))
	assert.True(t, term.Equal(l, r))
	assert.Equal(t, []string{"meta-inst", "meta-meta"}, rules(res.Trace))
}

func TestUnify_MetaPruneDropsNonVariables(t *testing.T) {
	h := newHarness(t)
	sigma, e := h.evar(evd.New(), fx.Nat, "x", "y")

	// ?e[x, f y] = g x is not a pattern; dropping f y makes it one.
	res, err := h.unify(sigma, occ(e, vx, term.MkApp(fx.F, vy)), term.MkApp(fx.G, vx), CONV)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta-inst", "meta-prune"}, rules(res.Trace))
	nf := res.Sigma.NfEvar(occ(e, vx, term.MkApp(fx.F, vy)))
	assert.True(t, term.Equal(term.MkApp(fx.G, vx), nf))

	h = newHarness(t, WithAggressive(false))
	sigma, e = h.evar(evd.New(), fx.Nat, "x", "y")
	_, err = h.unify(sigma, occ(e, vx, term.MkApp(fx.F, vy)), term.MkApp(fx.G, vx), CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)
}

func TestUnify_Specialization(t *testing.T) {
	natToNat := term.Arrow(fx.Nat, fx.Nat)

	// ?e[y] (f x) = h y y: splitting the spine leaves f x = y and the
	// instance has nothing to prune, so the argument has to move into the
	// instance before it can be dropped.
	h := newHarness(t, WithSuperAggressive(true))
	sigma, e := h.evar(evd.New(), natToNat, "y")
	lhs := term.MkApp(occ(e, vy), term.MkApp(fx.F, vx))
	res, err := h.unify(sigma, lhs, term.MkApp(fx.H, vy, vy), CONV)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta-inst", "meta-prune", "meta-specialize"}, rules(res.Trace))
	assert.True(t, res.Sigma.IsDefined(e))

	h = newHarness(t)
	sigma, e = h.evar(evd.New(), natToNat, "y")
	_, err = h.unify(sigma, term.MkApp(occ(e, vy), term.MkApp(fx.F, vx)), term.MkApp(fx.H, vy, vy), CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)
}

func TestUnify_InversionPrunesNestedEvar(t *testing.T) {
	h := newHarness(t)
	sigma, a := h.evar(evd.New(), fx.Nat, "x")
	sigma, b := h.evar(sigma, fx.Nat, "x", "y")

	res, err := h.unify(sigma, occ(a, vx), term.MkApp(fx.F, occ(b, vx, vy)), CONV)
	require.NoError(t, err)
	assert.True(t, res.Sigma.IsDefined(b), "y is pruned from ?b")

	got := res.Sigma.NfEvar(occ(a, vx))
	head, args := term.Decompose(got)
	assert.True(t, term.Equal(fx.F, head))
	require.Len(t, args, 1)
	ev, ok := args[0].(term.Evar)
	require.True(t, ok, "got %#v", args[0])
	assert.Equal(t, []term.Term{vx}, ev.Args)
}

func TestUnify_InversionFailsTwoEvarsDeep(t *testing.T) {
	h := newHarness(t)
	sigma, a := h.evar(evd.New(), fx.Nat, "x")
	sigma, c := h.evar(sigma, fx.Nat, "y")
	sigma, d := h.evar(sigma, fx.Nat, "x")

	rhs := term.MkApp(fx.F, occ(d, occ(c, vy)))
	_, err := h.unify(sigma, occ(a, vx), rhs, CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)
	assert.False(t, sigma.IsDefined(a))
	assert.False(t, sigma.IsDefined(d))
}
