package unify

import (
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// stuck records which side is blocked on iota once its head is unfolded.
type stuck int

const (
	stuckNone stuck = iota
	stuckLeft
	stuckRight
)

// reduction is the outcome of trying one head reduction on a side.
type reduction struct {
	t    term.Term
	rule string
	ok   bool
}

// reduceHead tries beta, zeta or iota on (h, args). Delta is left to step.
func (s *session) reduceHead(e *env.Env, sigma *evd.Map, h term.Term, args []term.Term) reduction {
	switch h := h.(type) {
	case term.Lambda:
		if len(args) == 0 {
			return reduction{}
		}
		nh, rest := term.Beta(h, args)
		return reduction{t: term.MkApp(nh, rest...), rule: "beta", ok: true}
	case term.LetIn:
		return reduction{t: term.MkApp(term.Subst1(h.Value, h.Body), args...), rule: "zeta", ok: true}
	case term.Case, term.Fix:
		nh, nargs := s.eng.oracle.Apprec(s.eng.ts, e, sigma, h, args)
		if term.Equal(nh, h) && term.EqualList(nargs, args) {
			return reduction{}
		}
		return reduction{t: term.MkApp(nh, nargs...), rule: "iota", ok: true}
	}
	return reduction{}
}

// unfoldHead performs one delta step on a definable head.
func (s *session) unfoldHead(e *env.Env, sigma *evd.Map, h term.Term, args []term.Term) (term.Term, bool) {
	switch h.(type) {
	case term.Const, term.Var, term.Rel:
	default:
		return nil, false
	}
	body, ok := s.eng.oracle.Unfold(s.eng.ts, e, sigma, h)
	if !ok {
		return nil, false
	}
	return term.MkApp(body, args...), true
}

// blocked reports whether an unfolded side normalizes to a case or
// fixpoint that iota cannot fire on: its scrutinee or recursive argument
// is an evar, a variable or another case or fixpoint.
func (s *session) blocked(e *env.Env, sigma *evd.Map, unfolded term.Term) bool {
	h, args := term.Decompose(unfolded)
	nh, _ := s.eng.oracle.Apprec(s.eng.ts, e, sigma, h, args)
	switch nh.(type) {
	case term.Case, term.Fix:
		return true
	}
	return false
}

// step performs exactly one reduction and recurses. The first rule that
// applies commits: its failure is the failure of the problem.
func (s *session) step(e *env.Env, sigma *evd.Map, t1, t2 term.Term, conv Conv) (*evd.Map, bool) {
	h1, a1 := term.Decompose(t1)
	h2, a2 := term.Decompose(t2)

	if r := s.reduceHead(e, sigma, h2, a2); r.ok {
		return s.rule(r.rule+"-r", describe(h2), func() (*evd.Map, bool) {
			return s.unify(e, sigma, t1, r.t, conv)
		})()
	}
	if r := s.reduceHead(e, sigma, h1, a1); r.ok {
		return s.rule(r.rule+"-l", describe(h1), func() (*evd.Map, bool) {
			return s.unify(e, sigma, r.t, t2, conv)
		})()
	}

	u1, ok1 := s.unfoldHead(e, sigma, h1, a1)
	u2, ok2 := s.unfoldHead(e, sigma, h2, a2)
	st := stuckNone
	if ok1 && ok2 {
		switch {
		case s.blocked(e, sigma, u2):
			st = stuckRight
		case s.blocked(e, sigma, u1):
			st = stuckLeft
		}
	}

	// Unfold the stuck side first, the right one otherwise.
	deltaR := s.rule("delta-r", describe(h2), func() (*evd.Map, bool) {
		return s.unify(e, sigma, t1, u2, conv)
	})
	deltaL := s.rule("delta-l", describe(h1), func() (*evd.Map, bool) {
		return s.unify(e, sigma, u1, t2, conv)
	})
	switch {
	case ok1 && ok2 && st == stuckLeft:
		return deltaL()
	case ok2:
		return deltaR()
	case ok1:
		return deltaL()
	}

	if lam, ok := h1.(term.Lambda); ok && len(a1) == 0 && !term.IsLambda(h2) {
		return s.rule("eta-l", describe(h2), func() (*evd.Map, bool) {
			return s.unify(e.Push(lam.Name, lam.Type), sigma, lam.Body, etaApply(t2), conv.Eq())
		})()
	}
	if lam, ok := h2.(term.Lambda); ok && len(a2) == 0 && !term.IsLambda(h1) {
		return s.rule("eta-r", describe(h1), func() (*evd.Map, bool) {
			return s.unify(e.Push(lam.Name, lam.Type), sigma, etaApply(t1), lam.Body, conv.Eq())
		})()
	}
	return nil, false
}

// etaApply lifts t under a new binder and applies it to that binder.
func etaApply(t term.Term) term.Term {
	return term.MkApp(term.Lift(1, 0, t), term.Rel{Index: 0})
}
