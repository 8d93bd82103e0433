package term

import (
	set "github.com/hashicorp/go-set/v3"
)

// Exists reports whether pred holds for t or any of its subterms.
// pred receives the number of binders crossed to reach the subterm.
func Exists(t Term, pred func(Term, int) bool) bool {
	var walk func(Term, int) bool
	walk = func(t Term, depth int) bool {
		if pred(t, depth) {
			return true
		}
		found := false
		Map(t, depth, func(sub Term, d int) Term {
			if !found && walk(sub, d) {
				found = true
			}
			return sub
		})
		return found
	}
	return walk(t, 0)
}

// HasEvar reports whether t mentions any evar occurrence.
func HasEvar(t Term) bool {
	return Exists(t, func(t Term, _ int) bool {
		_, ok := t.(Evar)
		return ok
	})
}

// OccursEvar reports whether evar id occurs syntactically in t.
func OccursEvar(id int, t Term) bool {
	return Exists(t, func(t Term, _ int) bool {
		ev, ok := t.(Evar)
		return ok && ev.ID == id
	})
}

// OccursVar reports whether the free variable name occurs in t.
func OccursVar(name string, t Term) bool {
	return Exists(t, func(t Term, _ int) bool {
		v, ok := t.(Var)
		return ok && v.Name == name
	})
}

// OccursRel reports whether the free bound variable i occurs in t.
func OccursRel(i int, t Term) bool {
	return Exists(t, func(t Term, depth int) bool {
		r, ok := t.(Rel)
		return ok && r.Index == i+depth
	})
}

// Occurs reports whether the variable v (a Rel or a Var) occurs free in t.
func Occurs(v, t Term) bool {
	switch v := v.(type) {
	case Rel:
		return OccursRel(v.Index, t)
	case Var:
		return OccursVar(v.Name, t)
	}
	return false
}

// FreeVars returns the set of free variable names of t.
func FreeVars(t Term) *set.Set[string] {
	names := set.New[string](0)
	Exists(t, func(t Term, _ int) bool {
		if v, ok := t.(Var); ok {
			names.Insert(v.Name)
		}
		return false
	})
	return names
}

// Evars returns the ids of the evar occurrences of t, in first-occurrence order.
func Evars(t Term) []int {
	seen := set.New[int](0)
	var ids []int
	Exists(t, func(t Term, _ int) bool {
		if ev, ok := t.(Evar); ok && seen.Insert(ev.ID) {
			ids = append(ids, ev.ID)
		}
		return false
	})
	return ids
}
