package evd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/evarconv/internal/term"
)

// Universes is a persistent graph of constraints between universe levels.
// An edge u -> v means u <= v, or u < v when strict. The graph is
// consistent as long as no cycle goes through a strict edge.
type Universes struct {
	edges map[string][]edge
}

type edge struct {
	to     string
	strict bool
}

// NewUniverses returns an empty constraint graph.
func NewUniverses() *Universes {
	return &Universes{edges: make(map[string][]edge)}
}

func (u *Universes) with(from string, e edge) *Universes {
	edges := make(map[string][]edge, len(u.edges)+1)
	for k, v := range u.edges {
		edges[k] = v
	}
	out := make([]edge, len(edges[from]), len(edges[from])+1)
	copy(out, edges[from])
	edges[from] = append(out, e)
	return &Universes{edges: edges}
}

// reach reports whether to is reachable from from, and whether some path
// between them crosses a strict edge.
func (u *Universes) reach(from, to string) (reachable, strict bool) {
	type state struct {
		node   string
		strict bool
	}
	seen := map[state]bool{}
	stack := []state{{from, false}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[s] {
			continue
		}
		seen[s] = true
		if s.node == to {
			reachable = true
			if s.strict {
				return true, true
			}
		}
		for _, e := range u.edges[s.node] {
			stack = append(stack, state{e.to, s.strict || e.strict})
		}
	}
	return reachable, false
}

// Leq records a <= b on levels.
func (u *Universes) Leq(a, b string) (*Universes, bool) {
	if a == b {
		return u, true
	}
	if _, strict := u.reach(b, a); strict {
		return nil, false
	}
	if ok, _ := u.reach(a, b); ok {
		return u, true
	}
	return u.with(a, edge{to: b}), true
}

// Lt records a < b on levels.
func (u *Universes) Lt(a, b string) (*Universes, bool) {
	if a == b {
		return nil, false
	}
	if ok, _ := u.reach(b, a); ok {
		return nil, false
	}
	if _, strict := u.reach(a, b); strict {
		return u, true
	}
	return u.with(a, edge{to: b, strict: true}), true
}

// Eq records a = b on levels.
func (u *Universes) Eq(a, b string) (*Universes, bool) {
	u1, ok := u.Leq(a, b)
	if !ok {
		return nil, false
	}
	return u1.Leq(b, a)
}

// Holds reports whether a <= b already follows from the constraints.
func (u *Universes) Holds(a, b string) bool {
	if a == b {
		return true
	}
	ok, _ := u.reach(a, b)
	return ok
}

// SortLeq records a <= b on sorts: Prop <= Set <= Type@u for every u.
func (u *Universes) SortLeq(a, b term.Sort) (*Universes, bool) {
	switch {
	case a.Kind == term.SortProp:
		return u, true
	case a.Kind == term.SortSet:
		return u, b.Kind != term.SortProp
	case b.Kind != term.SortType:
		return nil, false
	}
	return u.Leq(a.Level, b.Level)
}

// SortEq records a = b on sorts.
func (u *Universes) SortEq(a, b term.Sort) (*Universes, bool) {
	if a.Kind != b.Kind {
		return nil, false
	}
	if a.Kind != term.SortType {
		return u, true
	}
	return u.Eq(a.Level, b.Level)
}

// String lists the constraints, sorted.
func (u *Universes) String() string {
	var lines []string
	for from, es := range u.edges {
		for _, e := range es {
			op := "<="
			if e.strict {
				op = "<"
			}
			lines = append(lines, fmt.Sprintf("%s %s %s", from, op, e.to))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, ", ")
}
