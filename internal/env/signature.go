package env

import (
	"fmt"
	"sort"

	"github.com/roach88/evarconv/internal/term"
)

// Constant is a global constant. Body is nil for an axiom.
type Constant struct {
	Name string
	Type term.Term
	Body term.Term
}

// Constructor is one constructor of an inductive type.
// Type is the full type, including the inductive's parameters.
type Constructor struct {
	Name string
	Type term.Term
}

// Inductive is an inductive type with its constructors.
type Inductive struct {
	Name         string
	Type         term.Term
	NParams      int
	Constructors []Constructor
}

// Structure is a record: an inductive with a single constructor whose
// fields are named by projections.
type Structure struct {
	Ind         string
	NParams     int
	Projections []string
}

// Projection describes a structure projection constant.
type Projection struct {
	Name    string
	Struct  string
	Index   int
	NParams int
}

// Signature holds the global declarations a problem is checked against.
// It is built once and then only read.
type Signature struct {
	constants   map[string]Constant
	inductives  map[string]Inductive
	ctors       map[string]term.Construct
	structures  map[string]Structure
	projections map[string]Projection
}

// NewSignature creates an empty signature.
func NewSignature() *Signature {
	return &Signature{
		constants:   make(map[string]Constant),
		inductives:  make(map[string]Inductive),
		ctors:       make(map[string]term.Construct),
		structures:  make(map[string]Structure),
		projections: make(map[string]Projection),
	}
}

func (s *Signature) defined(name string) bool {
	if _, ok := s.constants[name]; ok {
		return true
	}
	if _, ok := s.inductives[name]; ok {
		return true
	}
	_, ok := s.ctors[name]
	return ok
}

// AddConstant declares a constant. Names are global and may not be reused.
func (s *Signature) AddConstant(c Constant) error {
	if s.defined(c.Name) {
		return fmt.Errorf("duplicate global %q", c.Name)
	}
	s.constants[c.Name] = c
	return nil
}

// AddInductive declares an inductive type and its constructors.
func (s *Signature) AddInductive(ind Inductive) error {
	if s.defined(ind.Name) {
		return fmt.Errorf("duplicate global %q", ind.Name)
	}
	for _, c := range ind.Constructors {
		if s.defined(c.Name) || c.Name == ind.Name {
			return fmt.Errorf("duplicate global %q", c.Name)
		}
	}
	for i, c := range ind.Constructors {
		s.ctors[c.Name] = term.Construct{Ind: ind.Name, Index: i}
	}
	s.inductives[ind.Name] = ind
	return nil
}

// AddStructure declares a record over an already declared inductive and
// generates one projection constant per field.
func (s *Signature) AddStructure(ind string, projections []string) error {
	decl, ok := s.inductives[ind]
	if !ok {
		return fmt.Errorf("structure %q: unknown inductive", ind)
	}
	if len(decl.Constructors) != 1 {
		return fmt.Errorf("structure %q: expected one constructor, found %d", ind, len(decl.Constructors))
	}
	fieldTypes := peelProds(decl.Constructors[0].Type, decl.NParams+len(projections))
	if len(fieldTypes) != decl.NParams+len(projections) {
		return fmt.Errorf("structure %q: constructor has fewer than %d fields", ind, len(projections))
	}
	paramTypes := peelProds(decl.Type, decl.NParams)
	if len(paramTypes) != decl.NParams {
		return fmt.Errorf("structure %q: type has fewer than %d parameters", ind, decl.NParams)
	}
	for j, name := range projections {
		body := projectionBody(decl, paramTypes, fieldTypes[decl.NParams:], j)
		if err := s.AddConstant(Constant{Name: name, Body: body}); err != nil {
			return fmt.Errorf("structure %q: %w", ind, err)
		}
		s.projections[name] = Projection{Name: name, Struct: ind, Index: j, NParams: decl.NParams}
	}
	s.structures[ind] = Structure{Ind: ind, NParams: decl.NParams, Projections: projections}
	return nil
}

// peelProds returns the binder types of the first n products of t.
// Each type is relative to the binders before it.
func peelProds(t term.Term, n int) []term.Term {
	var out []term.Term
	for len(out) < n {
		p, ok := t.(term.Prod)
		if !ok {
			break
		}
		out = append(out, p.Type)
		t = p.Body
	}
	return out
}

// projectionBody builds
//
//	fun params (s : I params) => match s with Build f0 .. fn => fj end
func projectionBody(ind Inductive, paramTypes, fieldTypes []term.Term, j int) term.Term {
	k, n := ind.NParams, len(fieldTypes)
	params := make([]term.Term, k)
	for i := range params {
		params[i] = term.Rel{Index: k - 1 - i}
	}
	structType := term.MkApp(term.Ind{Name: ind.Name}, params...)

	// Inside the branch, field i sits under s and the previous fields;
	// its constructor type only sees params and previous fields.
	var branch term.Term = term.Rel{Index: n - 1 - j}
	for i := n - 1; i >= 0; i-- {
		branch = term.Lambda{Name: fmt.Sprintf("f%d", i), Type: term.Lift(1, i, fieldTypes[i]), Body: branch}
	}
	match := term.Case{
		Ind:       ind.Name,
		NParams:   k,
		Return:    term.Lambda{Name: "_", Type: term.Lift(1, 0, structType), Body: term.TypeAt("")},
		Scrutinee: term.Rel{Index: 0},
		Branches:  []term.Term{branch},
	}
	var body term.Term = term.Lambda{Name: "s", Type: structType, Body: match}
	for i := k - 1; i >= 0; i-- {
		body = term.Lambda{Name: fmt.Sprintf("p%d", i), Type: paramTypes[i], Body: body}
	}
	return body
}

// Constant returns the declaration of a constant.
func (s *Signature) Constant(name string) (Constant, bool) {
	c, ok := s.constants[name]
	return c, ok
}

// Inductive returns the declaration of an inductive type.
func (s *Signature) Inductive(name string) (Inductive, bool) {
	ind, ok := s.inductives[name]
	return ind, ok
}

// Structure returns the record declared over inductive name.
func (s *Signature) Structure(name string) (Structure, bool) {
	st, ok := s.structures[name]
	return st, ok
}

// Projection returns the projection metadata for a constant name.
func (s *Signature) Projection(name string) (Projection, bool) {
	p, ok := s.projections[name]
	return p, ok
}

// ConstructorName returns the declared name of a constructor.
func (s *Signature) ConstructorName(c term.Construct) (string, bool) {
	ind, ok := s.inductives[c.Ind]
	if !ok || c.Index < 0 || c.Index >= len(ind.Constructors) {
		return "", false
	}
	return ind.Constructors[c.Index].Name, true
}

// Resolve maps a global name to its term.
func (s *Signature) Resolve(name string) (term.Term, bool) {
	if _, ok := s.constants[name]; ok {
		return term.Const{Name: name}, true
	}
	if _, ok := s.inductives[name]; ok {
		return term.Ind{Name: name}, true
	}
	if c, ok := s.ctors[name]; ok {
		return c, true
	}
	return nil, false
}

// ConstantNames returns every constant name, sorted.
func (s *Signature) ConstantNames() []string {
	names := make([]string, 0, len(s.constants))
	for n := range s.constants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// InductiveNames returns every inductive name, sorted.
func (s *Signature) InductiveNames() []string {
	names := make([]string, 0, len(s.inductives))
	for n := range s.inductives {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
