package evd

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/roach88/evarconv/internal/term"
)

var (
	// ErrUnknownEvar is returned when an id has never been allocated.
	ErrUnknownEvar = errors.New("unknown evar")

	// ErrAlreadyDefined is returned when defining an evar twice.
	ErrAlreadyDefined = errors.New("evar already defined")

	// ErrOccurs is returned when a definition mentions the evar it defines.
	ErrOccurs = errors.New("evar occurs in its own definition")
)

var stamps atomic.Uint64

// EvarInfo is the record of one evar.
// Type and Body are expressed over the names of Ctx.
type EvarInfo struct {
	ID     int
	Ctx    term.Context
	Type   term.Term
	Body   term.Term
	Origin string
}

// Defined reports whether the evar has a definition.
func (e EvarInfo) Defined() bool { return e.Body != nil }

// Map is a persistent evar map.
type Map struct {
	evars map[int]EvarInfo
	next  int
	univ  *Universes
	stamp uint64
}

// New creates an empty evar map. Fresh ids start at 1.
func New() *Map {
	return &Map{
		evars: make(map[int]EvarInfo),
		next:  1,
		univ:  NewUniverses(),
		stamp: stamps.Add(1),
	}
}

func (m *Map) derive() *Map {
	evars := make(map[int]EvarInfo, len(m.evars)+1)
	for id, info := range m.evars {
		evars[id] = info
	}
	return &Map{evars: evars, next: m.next, univ: m.univ, stamp: stamps.Add(1)}
}

// Stamp identifies this exact state.
func (m *Map) Stamp() uint64 { return m.stamp }

// Len returns the number of allocated evars.
func (m *Map) Len() int { return len(m.evars) }

// NewEvar allocates an undefined evar with the given context and type.
func (m *Map) NewEvar(ctx term.Context, typ term.Term, origin string) (*Map, int) {
	out := m.derive()
	id := out.next
	out.next++
	out.evars[id] = EvarInfo{ID: id, Ctx: ctx, Type: typ, Origin: origin}
	return out, id
}

// Declare allocates an evar with a caller-chosen id. Used when loading
// problems whose ids are fixed in advance.
func (m *Map) Declare(id int, ctx term.Context, typ term.Term, origin string) (*Map, error) {
	if _, ok := m.evars[id]; ok {
		return nil, fmt.Errorf("declare ?%d: id in use", id)
	}
	out := m.derive()
	out.evars[id] = EvarInfo{ID: id, Ctx: ctx, Type: typ, Origin: origin}
	if id >= out.next {
		out.next = id + 1
	}
	return out, nil
}

// Info returns the record of an evar.
func (m *Map) Info(id int) (EvarInfo, bool) {
	info, ok := m.evars[id]
	return info, ok
}

// IsDefined reports whether id is allocated and defined.
func (m *Map) IsDefined(id int) bool {
	info, ok := m.evars[id]
	return ok && info.Body != nil
}

// Define sets the definition of an undefined evar.
// body is expressed over the names of the evar's context.
func (m *Map) Define(id int, body term.Term) (*Map, error) {
	info, ok := m.evars[id]
	if !ok {
		return nil, fmt.Errorf("define ?%d: %w", id, ErrUnknownEvar)
	}
	if info.Body != nil {
		return nil, fmt.Errorf("define ?%d: %w", id, ErrAlreadyDefined)
	}
	if term.OccursEvar(id, m.NfEvar(body)) {
		return nil, fmt.Errorf("define ?%d: %w", id, ErrOccurs)
	}
	out := m.derive()
	info.Body = body
	out.evars[id] = info
	return out, nil
}

// Undefined returns the ids of undefined evars, sorted.
func (m *Map) Undefined() []int {
	return m.ids(func(info EvarInfo) bool { return info.Body == nil })
}

// DefinedIDs returns the ids of defined evars, sorted.
func (m *Map) DefinedIDs() []int {
	return m.ids(func(info EvarInfo) bool { return info.Body != nil })
}

func (m *Map) ids(keep func(EvarInfo) bool) []int {
	var out []int
	for id, info := range m.evars {
		if keep(info) {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// Instantiate returns the definition of ev at this occurrence, or false
// if ev is undefined.
func (m *Map) Instantiate(ev term.Evar) (term.Term, bool) {
	info, ok := m.evars[ev.ID]
	if !ok || info.Body == nil {
		return nil, false
	}
	return info.Ctx.Instantiate(ev.Args, info.Body), true
}

// WhdEvar expands defined evars at the head of t.
func (m *Map) WhdEvar(t term.Term) term.Term {
	for {
		head, args := term.Decompose(t)
		ev, ok := head.(term.Evar)
		if !ok {
			return t
		}
		body, ok := m.Instantiate(ev)
		if !ok {
			return t
		}
		t = term.MkApp(body, args...)
	}
}

// NfEvar replaces every defined evar in t by its definition.
func (m *Map) NfEvar(t term.Term) term.Term {
	var nf func(term.Term, int) term.Term
	nf = func(t term.Term, depth int) term.Term {
		if ev, ok := t.(term.Evar); ok {
			args := make([]term.Term, len(ev.Args))
			for i, a := range ev.Args {
				args[i] = nf(a, depth)
			}
			ev = term.Evar{ID: ev.ID, Args: args}
			if body, ok := m.Instantiate(ev); ok {
				return nf(body, depth)
			}
			return ev
		}
		return term.Map(t, depth, nf)
	}
	return nf(t, 0)
}

// IsGround reports whether t mentions no undefined evar once defined
// evars are expanded.
func (m *Map) IsGround(t term.Term) bool {
	return !term.Exists(t, func(t term.Term, _ int) bool {
		ev, ok := t.(term.Evar)
		if !ok {
			return false
		}
		body, ok := m.Instantiate(ev)
		return !ok || !m.IsGround(body)
	})
}

// Universes returns the universe constraints of this state.
func (m *Map) Universes() *Universes { return m.univ }

// SortLeq records a <= b, returning false if that is inconsistent.
func (m *Map) SortLeq(a, b term.Sort) (*Map, bool) {
	u, ok := m.univ.SortLeq(a, b)
	if !ok {
		return nil, false
	}
	return m.withUniverses(u), true
}

// SortEq records a = b, returning false if that is inconsistent.
func (m *Map) SortEq(a, b term.Sort) (*Map, bool) {
	u, ok := m.univ.SortEq(a, b)
	if !ok {
		return nil, false
	}
	return m.withUniverses(u), true
}

// WithUniverses returns m with its universe constraints replaced.
func (m *Map) WithUniverses(u *Universes) *Map { return m.withUniverses(u) }

func (m *Map) withUniverses(u *Universes) *Map {
	if u == m.univ {
		return m
	}
	out := m.derive()
	out.univ = u
	return out
}
