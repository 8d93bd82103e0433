package env

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/evarconv/internal/term"
)

// RelDecl is a binder pushed while descending under an abstraction.
// Type and Body are relative to the binders pushed before it.
type RelDecl struct {
	Name string
	Body term.Term
	Type term.Term
}

// Env is a local environment: a signature, a named context and a stack of
// bound variables, innermost last.
type Env struct {
	sig   *Signature
	named term.Context
	rels  []RelDecl
	key   uint64
}

// New creates an environment over sig with the given named context.
func New(sig *Signature, named term.Context) *Env {
	if sig == nil {
		sig = NewSignature()
	}
	d := xxhash.New()
	for _, decl := range named {
		_, _ = d.WriteString(decl.Name)
		writeHash(d, decl.Type)
		writeHash(d, decl.Body)
	}
	return &Env{sig: sig, named: named, key: d.Sum64()}
}

func writeHash(d *xxhash.Digest, t term.Term) {
	var buf [8]byte
	if t != nil {
		binary.LittleEndian.PutUint64(buf[:], term.Hash(t))
	}
	_, _ = d.Write(buf[:])
}

// Signature returns the global declarations.
func (e *Env) Signature() *Signature { return e.sig }

// Named returns the named context.
func (e *Env) Named() term.Context { return e.named }

// NRels returns the number of bound variables in scope.
func (e *Env) NRels() int { return len(e.rels) }

// Key is a structural hash of the environment, used in cache keys.
// Binder names do not contribute.
func (e *Env) Key() uint64 { return e.key }

// Push returns e extended with an assumption.
func (e *Env) Push(name string, typ term.Term) *Env {
	return e.push(RelDecl{Name: name, Type: typ})
}

// PushLet returns e extended with a local definition.
func (e *Env) PushLet(name string, body, typ term.Term) *Env {
	return e.push(RelDecl{Name: name, Body: body, Type: typ})
}

func (e *Env) push(decl RelDecl) *Env {
	rels := make([]RelDecl, len(e.rels), len(e.rels)+1)
	copy(rels, e.rels)
	rels = append(rels, decl)

	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], e.key)
	_, _ = d.Write(buf[:])
	writeHash(d, decl.Type)
	writeHash(d, decl.Body)
	return &Env{sig: e.sig, named: e.named, rels: rels, key: d.Sum64()}
}

func (e *Env) rel(i int) (RelDecl, bool) {
	if i < 0 || i >= len(e.rels) {
		return RelDecl{}, false
	}
	return e.rels[len(e.rels)-1-i], true
}

// RelType returns the type of Rel i, lifted into the current scope.
func (e *Env) RelType(i int) (term.Term, bool) {
	d, ok := e.rel(i)
	if !ok {
		return nil, false
	}
	return term.Lift(i+1, 0, d.Type), true
}

// RelBody returns the body of a let-bound Rel i, lifted into the current scope.
func (e *Env) RelBody(i int) (term.Term, bool) {
	d, ok := e.rel(i)
	if !ok || d.Body == nil {
		return nil, false
	}
	return term.Lift(i+1, 0, d.Body), true
}

// RelName returns the binder name of Rel i.
func (e *Env) RelName(i int) string {
	d, _ := e.rel(i)
	return d.Name
}

// Var returns the named declaration of a free variable.
func (e *Env) Var(name string) (term.Decl, bool) {
	i := e.named.Lookup(name)
	if i < 0 {
		return term.Decl{}, false
	}
	return e.named[i], true
}

// TypeOf returns the type of a variable (a Rel or a Var).
func (e *Env) TypeOf(v term.Term) (term.Term, bool) {
	switch v := v.(type) {
	case term.Rel:
		return e.RelType(v.Index)
	case term.Var:
		d, ok := e.Var(v.Name)
		return d.Type, ok
	}
	return nil, false
}

// BodyOf returns the body of a let-bound variable (a Rel or a Var).
func (e *Env) BodyOf(v term.Term) (term.Term, bool) {
	switch v := v.(type) {
	case term.Rel:
		return e.RelBody(v.Index)
	case term.Var:
		d, ok := e.Var(v.Name)
		if !ok || d.Body == nil {
			return nil, false
		}
		return d.Body, true
	}
	return nil, false
}

// EvarContext turns the whole environment into a named context for a new
// evar, together with the instantiation that places the evar back in e.
// Bound variables become named entries with fresh names.
func (e *Env) EvarContext() (term.Context, []term.Term) {
	ctx := make(term.Context, 0, len(e.named)+len(e.rels))
	inst := make([]term.Term, 0, len(e.named)+len(e.rels))
	taken := make(map[string]bool, len(e.named)+len(e.rels))
	for _, d := range e.named {
		ctx = append(ctx, d)
		inst = append(inst, term.Var{Name: d.Name})
		taken[d.Name] = true
	}
	names := make([]term.Term, 0, len(e.rels))
	for i, d := range e.rels {
		name := freshName(d.Name, taken)
		taken[name] = true

		// Rel j inside decl i refers to rels[i-1-j].
		subs := make([]term.Term, i)
		for j := range subs {
			subs[j] = names[i-1-j]
		}
		decl := term.Decl{Name: name, Type: term.Substl(subs, d.Type)}
		if d.Body != nil {
			decl.Body = term.Substl(subs, d.Body)
		}
		ctx = append(ctx, decl)
		names = append(names, term.Var{Name: name})
		inst = append(inst, term.Rel{Index: len(e.rels) - 1 - i})
	}
	return ctx, inst
}

// ToNamed rewrites the bound variables of t, which lives in e, into the
// names EvarContext assigns them.
func (e *Env) ToNamed(ctx term.Context, t term.Term) term.Term {
	n := len(e.rels)
	subs := make([]term.Term, n)
	for j := range subs {
		subs[j] = term.Var{Name: ctx[len(ctx)-1-j].Name}
	}
	return term.Substl(subs, t)
}

func freshName(base string, taken map[string]bool) string {
	if base == "" || base == "_" {
		base = "x"
	}
	if !taken[base] {
		return base
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", base, i)
		if !taken[name] {
			return name
		}
	}
}
