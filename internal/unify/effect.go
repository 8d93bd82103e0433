package unify

import (
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// Effect evaluates applications of the run marker. A marker applied to
// exactly three arguments (A, x, extra) is handed to Run once A has been
// unified with ExpectedType.
type Effect interface {
	ExpectedType() term.Term

	// Run returns the new state and the value the application stands for,
	// or false if it does not apply.
	Run(e *env.Env, sigma *evd.Map, args []term.Term) (*evd.Map, term.Term, bool)
}

// runEffect applies the marker rule with (h, args) on the left when left
// is set, on the right otherwise.
func (s *session) runEffect(e *env.Env, sigma *evd.Map, h term.Term, args []term.Term, other term.Term, conv Conv, left bool) (*evd.Map, bool) {
	c, ok := h.(term.Const)
	if !ok || s.eng.effect == nil || c.Name != s.eng.marker || len(args) != 3 {
		return nil, false
	}
	sigma, ok = s.unify(e, sigma, args[0], s.eng.effect.ExpectedType(), CONV)
	if !ok {
		return nil, false
	}
	sigma, result, ok := s.eng.effect.Run(e, sigma, args)
	if !ok {
		return nil, false
	}
	if left {
		return s.unify(e, sigma, result, other, conv)
	}
	return s.unify(e, sigma, other, result, conv)
}
