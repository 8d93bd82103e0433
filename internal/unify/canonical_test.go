package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/term"
	fx "github.com/roach88/evarconv/internal/testutil"
)

func TestUnify_CanonicalResolvesStructure(t *testing.T) {
	h := newHarness(t)
	sigma, T := h.evar(evd.New(), fx.EqType)

	res, err := h.unify(sigma,
		term.MkApp(fx.EqOp, occ(T), vx, vx),
		term.MkApp(fx.NatEqb, vx, vx), CONV)
	require.NoError(t, err)
	assert.True(t, term.Equal(fx.NatEqT, res.Sigma.NfEvar(occ(T))))
	assert.Equal(t, 1, res.Sigma.Len())
	assert.Equal(t, "canonical", rules(res.Trace)[len(res.Trace)-1])
}

func TestUnify_CanonicalWithInstanceParameters(t *testing.T) {
	h := newHarness(t)
	sigma, T := h.evar(evd.New(), fx.EqType)

	res, err := h.unify(sigma,
		term.MkApp(fx.EqOp, occ(T), va, vb),
		term.MkApp(fx.ListEqb, fx.NatEqT, va, vb), CONV)
	require.NoError(t, err)
	assert.True(t, term.Equal(term.MkApp(fx.ListEqT, fx.NatEqT), res.Sigma.NfEvar(occ(T))))
	// One evar for the parameter of list_eqType.
	assert.Equal(t, 2, res.Sigma.Len())
}

func TestUnify_CanonicalOnTheRight(t *testing.T) {
	h := newHarness(t)
	sigma, T := h.evar(evd.New(), fx.EqType)

	res, err := h.unify(sigma,
		term.MkApp(fx.NatEqb, vx, vy),
		term.MkApp(fx.EqOp, occ(T), vx, vy), CONV)
	require.NoError(t, err)
	assert.True(t, term.Equal(fx.NatEqT, res.Sigma.NfEvar(occ(T))))
}

func TestUnify_CanonicalOnGroundTerms(t *testing.T) {
	// With nat_eqType opaque the oracle cannot see through the projection.
	h := newHarness(t, WithTransparency(reduce.Full().Opaque("nat_eqType")))
	sigma := evd.New()

	res, err := h.unify(sigma,
		term.MkApp(fx.EqOp, fx.NatEqT, vx, vx),
		term.MkApp(fx.NatEqb, vx, vx), CONV)
	require.NoError(t, err)
	assert.Equal(t, "canonical", rules(res.Trace)[len(res.Trace)-1])
	assert.Equal(t, sigma.Len(), res.Sigma.Len())
}

func TestUnify_CanonicalNeedsRegistryEntry(t *testing.T) {
	h := newHarness(t, WithRegistry(canonical.NewRegistry()))
	sigma, T := h.evar(evd.New(), fx.EqType)

	_, err := h.unify(sigma,
		term.MkApp(fx.EqOp, occ(T), vx, vx),
		term.MkApp(fx.NatEqb, vx, vx), CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)
}

// succEffect stands for S x when applied as run nat x _.
type succEffect struct {
	calls int
	ok    bool
}

func (*succEffect) ExpectedType() term.Term { return fx.Nat }

func (s *succEffect) Run(_ *env.Env, sigma *evd.Map, args []term.Term) (*evd.Map, term.Term, bool) {
	s.calls++
	if !s.ok {
		return nil, nil, false
	}
	return sigma, term.MkApp(fx.Succ, args[1]), true
}

func TestUnify_RunMarker(t *testing.T) {
	eff := &succEffect{ok: true}
	h := newHarness(t, WithRunMarker("run", eff))
	sigma, A := h.evar(evd.New(), term.TypeAt("r"))
	marker := term.Const{Name: "run"}

	res, err := h.unify(sigma, term.MkApp(marker, occ(A), fx.One, fx.Zero), fx.Num(2), CONV)
	require.NoError(t, err)
	assert.Equal(t, 1, eff.calls)
	assert.True(t, term.Equal(fx.Nat, res.Sigma.NfEvar(occ(A))))
	assert.Equal(t, []string{"meta-inst", "ground", "run"}, rules(res.Trace))

	// Only applications to exactly three arguments are evaluated.
	sigma, A = h.evar(evd.New(), term.TypeAt("r"))
	_, err = h.unify(sigma, term.MkApp(marker, occ(A), fx.One), fx.Num(2), CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)
	assert.Equal(t, 1, eff.calls)
}

func TestUnify_RunMarkerOnGroundTerms(t *testing.T) {
	eff := &succEffect{ok: true}
	h := newHarness(t, WithRunMarker("run", eff))
	marker := term.Const{Name: "run"}

	res, err := h.unify(evd.New(), term.MkApp(marker, fx.Nat, fx.One, fx.Zero), fx.Num(2), CONV)
	require.NoError(t, err)
	assert.Equal(t, 1, eff.calls)
	assert.Equal(t, []string{"ground", "ground", "run"}, rules(res.Trace))

	res, err = h.unify(evd.New(), fx.Num(2), term.MkApp(marker, fx.Nat, fx.One, fx.Zero), CONV)
	require.NoError(t, err)
	assert.Equal(t, 2, eff.calls)
	assert.Equal(t, "run", rules(res.Trace)[len(res.Trace)-1])
}

func TestUnify_RunMarkerDeclines(t *testing.T) {
	eff := &succEffect{}
	h := newHarness(t, WithRunMarker("run", eff))
	sigma, A := h.evar(evd.New(), term.TypeAt("r"))

	_, err := h.unify(sigma, fx.Num(2), term.MkApp(term.Const{Name: "run"}, occ(A), fx.One, fx.Zero), CONV)
	assert.ErrorIs(t, err, ErrNotUnifiable)
	assert.Equal(t, 1, eff.calls)
}
