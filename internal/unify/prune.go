package unify

import (
	"fmt"

	set "github.com/hashicorp/go-set/v3"
	"github.com/samber/lo"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// prune removes the given context positions of evar id, together with
// every position depending on them. The evar is redirected to a fresh evar
// over the surviving context. Pruning a defined evar is a no-op.
func (s *session) prune(sig *env.Signature, sigma *evd.Map, id int, positions []int) (*evd.Map, error) {
	info, ok := sigma.Info(id)
	if !ok {
		violate(CodeUnknownEvar, "prune: ?%d is not declared", id)
	}
	if info.Defined() {
		return sigma, nil
	}
	drop := closure(info.Ctx, positions)
	if len(drop) == 0 {
		return nil, fmt.Errorf("prune ?%d: nothing to remove: %w", id, ErrCannotPrune)
	}
	kept := info.Ctx.Restrict(drop)

	// The type is already over the original names; inverting it with the
	// identity of the survivors checks that it only mentions them and
	// prunes nested evars that do not.
	inv := s.newInverter(env.New(sig, info.Ctx), id, kept, kept.Identity(), nil)
	sigma, typ, ok := inv.invert(sigma, info.Type)
	if !ok {
		return nil, fmt.Errorf("prune ?%d: type depends on removed entries: %w", id, ErrCannotPrune)
	}
	if sigma.IsDefined(id) {
		return sigma, nil
	}

	sigma, fresh := sigma.NewEvar(kept, typ, fmt.Sprintf("prune ?%d", id))
	sigma, err := sigma.Define(id, term.Evar{ID: fresh, Args: kept.Identity()})
	if err != nil {
		return nil, fmt.Errorf("prune ?%d: %w", id, err)
	}
	return sigma, nil
}

// closure extends positions with every entry whose type or body mentions
// a removed entry. Entries only mention earlier ones, so one forward pass
// reaches the fixed point.
func closure(ctx term.Context, positions []int) map[int]bool {
	drop := make(map[int]bool, len(positions))
	removed := set.New[string](len(positions))
	for _, i := range positions {
		if i < 0 || i >= len(ctx) {
			violate(CodeArityMismatch, "prune position %d outside a context of %d entries", i, len(ctx))
		}
		drop[i] = true
		removed.Insert(ctx[i].Name)
	}
	mentions := func(t term.Term) bool {
		return t != nil && lo.SomeBy(term.FreeVars(t).Slice(), removed.Contains)
	}
	for i, d := range ctx {
		if drop[i] {
			continue
		}
		if mentions(d.Type) || mentions(d.Body) {
			drop[i] = true
			removed.Insert(d.Name)
		}
	}
	return drop
}

// intersect compares two instances aligned at their right ends and
// returns the positions of a to prune. Equal entries are kept; differing
// variables are pruned; any other difference makes the instances
// incompatible unless aggressive is set.
func intersect(a, b []term.Term, aggressive bool) ([]int, bool) {
	n := min(len(a), len(b))
	offA, offB := len(a)-n, len(b)-n
	var positions []int
	for i := 0; i < n; i++ {
		x, y := a[offA+i], b[offB+i]
		switch {
		case term.Equal(x, y):
			continue
		case term.IsVariable(x) && term.IsVariable(y), aggressive:
			positions = append(positions, offA+i)
		default:
			return nil, false
		}
	}
	return positions, true
}
