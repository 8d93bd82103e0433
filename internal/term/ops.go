package term

import (
	"github.com/samber/lo"
)

// Decompose splits t into its head and argument spine.
// A term that is not an application has an empty spine.
func Decompose(t Term) (Term, []Term) {
	app, ok := t.(App)
	if !ok {
		return t, nil
	}
	head, args := Decompose(app.Fn)
	if len(args) == 0 {
		return head, app.Args
	}
	return head, Concat(args, app.Args)
}

// MkApp applies f to args, keeping applications flat.
func MkApp(f Term, args ...Term) Term {
	if len(args) == 0 {
		return f
	}
	if app, ok := f.(App); ok {
		all := make([]Term, 0, len(app.Args)+len(args))
		all = append(all, app.Args...)
		all = append(all, args...)
		return App{Fn: app.Fn, Args: all}
	}
	return App{Fn: f, Args: append([]Term(nil), args...)}
}

// IsVariable reports whether t is a bound or free variable.
func IsVariable(t Term) bool {
	switch t.(type) {
	case Rel, Var:
		return true
	}
	return false
}

// IsLambda reports whether t is an abstraction.
func IsLambda(t Term) bool {
	_, ok := t.(Lambda)
	return ok
}

// Map rebuilds t by applying f to each immediate subterm. f receives the
// number of binders between t and the subterm, offset by k.
func Map(t Term, k int, f func(Term, int) Term) Term {
	switch t := t.(type) {
	case Rel, Var, Sort, Const, Ind, Construct:
		return t
	case Evar:
		return Evar{ID: t.ID, Args: mapList(t.Args, k, f)}
	case App:
		return MkApp(f(t.Fn, k), mapList(t.Args, k, f)...)
	case Lambda:
		return Lambda{Name: t.Name, Type: f(t.Type, k), Body: f(t.Body, k+1)}
	case Prod:
		return Prod{Name: t.Name, Type: f(t.Type, k), Body: f(t.Body, k+1)}
	case LetIn:
		return LetIn{Name: t.Name, Value: f(t.Value, k), Type: f(t.Type, k), Body: f(t.Body, k+1)}
	case Case:
		return Case{
			Ind:       t.Ind,
			NParams:   t.NParams,
			Return:    f(t.Return, k),
			Scrutinee: f(t.Scrutinee, k),
			Branches:  mapList(t.Branches, k, f),
		}
	case Fix:
		n := len(t.Bodies)
		return Fix{
			Index:   t.Index,
			RecArgs: t.RecArgs,
			Names:   t.Names,
			Types:   mapList(t.Types, k, f),
			Bodies:  mapList(t.Bodies, k+n, f),
		}
	case CoFix:
		n := len(t.Bodies)
		return CoFix{
			Index:  t.Index,
			Names:  t.Names,
			Types:  mapList(t.Types, k, f),
			Bodies: mapList(t.Bodies, k+n, f),
		}
	}
	panic("term.Map: unknown term")
}

func mapList(ts []Term, k int, f func(Term, int) Term) []Term {
	if ts == nil {
		return nil
	}
	return lo.Map(ts, func(t Term, _ int) Term { return f(t, k) })
}

// Lift adds n to every bound variable of t with index >= k.
func Lift(n, k int, t Term) Term {
	if n == 0 {
		return t
	}
	var lift func(Term, int) Term
	lift = func(t Term, depth int) Term {
		if r, ok := t.(Rel); ok {
			if r.Index >= depth {
				return Rel{Index: r.Index + n}
			}
			return r
		}
		return Map(t, depth, lift)
	}
	return lift(t, k)
}

// Substl substitutes subs for the outermost free bound variables of t:
// subs[0] replaces Rel 0, subs[1] replaces Rel 1, and so on. Remaining free
// bound variables are shifted down by len(subs).
func Substl(subs []Term, t Term) Term {
	if len(subs) == 0 {
		return t
	}
	var subst func(Term, int) Term
	subst = func(t Term, depth int) Term {
		if r, ok := t.(Rel); ok {
			switch {
			case r.Index < depth:
				return r
			case r.Index-depth < len(subs):
				return Lift(depth, 0, subs[r.Index-depth])
			default:
				return Rel{Index: r.Index - len(subs)}
			}
		}
		return Map(t, depth, subst)
	}
	return subst(t, 0)
}

// Subst1 substitutes a for Rel 0 in t.
func Subst1(a, t Term) Term {
	return Substl([]Term{a}, t)
}

// ReplaceVars replaces free variables named in m. Replacements are lifted
// over the binders they are pushed under.
func ReplaceVars(m map[string]Term, t Term) Term {
	if len(m) == 0 {
		return t
	}
	var replace func(Term, int) Term
	replace = func(t Term, depth int) Term {
		if v, ok := t.(Var); ok {
			if u, found := m[v.Name]; found {
				return Lift(depth, 0, u)
			}
			return v
		}
		return Map(t, depth, replace)
	}
	return replace(t, 0)
}

// AbstractVar closes t over the free variable name: the result lives under
// one extra binder and every Var{name} becomes a reference to that binder.
func AbstractVar(name string, t Term) Term {
	var abstract func(Term, int) Term
	abstract = func(t Term, depth int) Term {
		if v, ok := t.(Var); ok && v.Name == name {
			return Rel{Index: depth}
		}
		return Map(t, depth, abstract)
	}
	return abstract(Lift(1, 0, t), 0)
}

// Beta applies a head abstraction to as many arguments as it takes.
func Beta(head Term, args []Term) (Term, []Term) {
	for len(args) > 0 {
		lam, ok := head.(Lambda)
		if !ok {
			break
		}
		head = Subst1(args[0], lam.Body)
		args = args[1:]
	}
	h, inner := Decompose(head)
	if len(inner) == 0 {
		return h, args
	}
	return h, Concat(inner, args)
}

// Concat returns a fresh slice holding a followed by b.
func Concat(a, b []Term) []Term {
	out := make([]Term, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
