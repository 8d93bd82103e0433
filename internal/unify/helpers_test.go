package unify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
	"github.com/roach88/evarconv/internal/testutil"
)

var (
	vx = term.Var{Name: "x"}
	vy = term.Var{Name: "y"}
	va = term.Var{Name: "a"}
	vb = term.Var{Name: "b"}
)

// harness bundles an engine over the shared fixture signature with a
// local context x y : nat, a b : list nat.
type harness struct {
	t   *testing.T
	eng *Engine
	sig *env.Signature
	env *env.Env
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	sig, reg := testutil.Signature()
	base := []Option{
		WithRegistry(reg),
		WithSessionIDs(testutil.NewFixedSessionGenerator("")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	listNat := term.MkApp(testutil.List, testutil.Nat)
	ctx := term.Context{
		{Name: "x", Type: testutil.Nat},
		{Name: "y", Type: testutil.Nat},
		{Name: "a", Type: listNat},
		{Name: "b", Type: listNat},
	}
	return &harness{
		t:   t,
		eng: New(append(base, opts...)...),
		sig: sig,
		env: env.New(sig, ctx),
	}
}

// evar declares an undefined evar over the named entries of ctx.
func (h *harness) evar(sigma *evd.Map, typ term.Term, names ...string) (*evd.Map, int) {
	h.t.Helper()
	ctx := make(term.Context, 0, len(names))
	for _, n := range names {
		d, ok := h.env.Var(n)
		require.True(h.t, ok, "unknown variable %s", n)
		ctx = append(ctx, d)
	}
	return sigma.NewEvar(ctx, typ, "test")
}

func (h *harness) unify(sigma *evd.Map, t1, t2 term.Term, conv Conv) (*Result, error) {
	return h.eng.UnifyTrace(context.Background(), h.env, sigma, t1, t2, conv)
}

func occ(id int, args ...term.Term) term.Evar {
	return term.Evar{ID: id, Args: args}
}

func rules(tr []TraceEvent) []string {
	out := make([]string, len(tr))
	for i, ev := range tr {
		out[i] = ev.Rule
	}
	return out
}
