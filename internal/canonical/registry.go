// Package canonical provides the canonical structure registry: for each
// (projection, head shape) pair, the instance that resolves it.
package canonical

import (
	"fmt"
	"sort"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/term"
)

// KeyKind is the shape of a head a canonical instance is indexed by.
type KeyKind int

const (
	KeyConst KeyKind = iota
	KeyInd
	KeyConstruct
	KeyVar
	KeySort
	KeyProd
)

// Key identifies a head shape. Sorts and products are matched by kind only.
type Key struct {
	Kind  KeyKind
	Name  string
	Index int
}

func (k Key) String() string {
	switch k.Kind {
	case KeyConst, KeyInd, KeyVar:
		return k.Name
	case KeyConstruct:
		return fmt.Sprintf("%s#%d", k.Name, k.Index)
	case KeySort:
		return "Sort"
	}
	return "Prod"
}

// KeyOf returns the key of a head, if it has one.
func KeyOf(head term.Term) (Key, bool) {
	switch h := head.(type) {
	case term.Const:
		return Key{Kind: KeyConst, Name: h.Name}, true
	case term.Ind:
		return Key{Kind: KeyInd, Name: h.Name}, true
	case term.Construct:
		return Key{Kind: KeyConstruct, Name: h.Ind, Index: h.Index}, true
	case term.Var:
		return Key{Kind: KeyVar, Name: h.Name}, true
	case term.Sort:
		return Key{Kind: KeySort}, true
	case term.Prod:
		return Key{Kind: KeyProd}, true
	}
	return Key{}, false
}

// Instance is a canonical instance declaration, split into the pieces
// resolution needs. Every term lives under the instance's own
// parameters, Rel 0 being the last one.
type Instance struct {
	Name         string
	Struct       string
	ParamNames   []string
	ParamTypes   []term.Term
	StructParams []term.Term
	Fields       []term.Term
}

// Entry is one registered (projection, key) pair.
type Entry struct {
	Projection string
	Key        Key
	Instance   string
}

type entryKey struct {
	proj string
	key  Key
}

// Registry maps (projection, key) pairs to instances.
type Registry struct {
	instances map[string]Instance
	entries   map[entryKey]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]Instance),
		entries:   make(map[entryKey]string),
	}
}

// Declare registers the constant name as a canonical instance. Its body
// must reduce, under its leading abstractions, to the structure's
// constructor applied to parameters and fields.
func (r *Registry) Declare(sig *env.Signature, name string) error {
	c, ok := sig.Constant(name)
	if !ok || c.Body == nil {
		return fmt.Errorf("canonical %q: not a defined constant", name)
	}
	if _, ok := r.instances[name]; ok {
		return fmt.Errorf("canonical %q: already declared", name)
	}

	inst := Instance{Name: name}
	e := env.New(sig, nil)
	body := c.Body
	for {
		lam, ok := body.(term.Lambda)
		if !ok {
			break
		}
		inst.ParamNames = append(inst.ParamNames, lam.Name)
		inst.ParamTypes = append(inst.ParamTypes, lam.Type)
		e = e.Push(lam.Name, lam.Type)
		body = lam.Body
	}

	head, args := term.Decompose(reduce.NewMachine().Whnf(reduce.Full(), e, evd.New(), body))
	ctor, ok := head.(term.Construct)
	if !ok {
		return fmt.Errorf("canonical %q: body is not a record value", name)
	}
	st, ok := sig.Structure(ctor.Ind)
	if !ok {
		return fmt.Errorf("canonical %q: %s is not a structure", name, ctor.Ind)
	}
	if len(args) != st.NParams+len(st.Projections) {
		return fmt.Errorf("canonical %q: expected %d arguments to the constructor, found %d",
			name, st.NParams+len(st.Projections), len(args))
	}
	inst.Struct = ctor.Ind
	inst.StructParams = args[:st.NParams]
	inst.Fields = args[st.NParams:]

	var added []entryKey
	for j, proj := range st.Projections {
		fh, _ := term.Decompose(inst.Fields[j])
		if _, isRel := fh.(term.Rel); isRel {
			continue
		}
		key, ok := KeyOf(fh)
		if !ok {
			continue
		}
		ek := entryKey{proj: proj, key: key}
		if prev, dup := r.entries[ek]; dup {
			for _, a := range added {
				delete(r.entries, a)
			}
			return fmt.Errorf("canonical %q: %s on %s already resolved by %q", name, proj, key, prev)
		}
		r.entries[ek] = name
		added = append(added, ek)
	}
	r.instances[name] = inst
	return nil
}

// Lookup returns the instance resolving projection proj on heads of shape key.
func (r *Registry) Lookup(proj string, key Key) (Instance, bool) {
	name, ok := r.entries[entryKey{proj: proj, key: key}]
	if !ok {
		return Instance{}, false
	}
	return r.instances[name], true
}

// Entries lists the registered pairs, sorted by projection then key.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for k, name := range r.entries {
		out = append(out, Entry{Projection: k.proj, Key: k.key, Instance: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Projection != out[j].Projection {
			return out[i].Projection < out[j].Projection
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Len returns the number of declared instances.
func (r *Registry) Len() int { return len(r.instances) }
