package compiler

import (
	"errors"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/syntax"
	"github.com/roach88/evarconv/internal/term"
)

// Compiled is a signature together with its canonical instances.
type Compiled struct {
	Sig      *env.Signature
	Registry *canonical.Registry
}

// CompileSignature builds a signature from a CUE value of the form
//
//	inductives: nat: {
//		type: "Set"
//		constructors: [{name: "O", type: "nat"}, {name: "S", type: "nat -> nat"}]
//	}
//	structures: eqType: ["sort", "eq_op"]
//	constants: plus: {type: "nat -> nat -> nat", body: "fix plus : ..."}
//	canonical: ["nat_eqType"]
//
// Terms are strings in the concrete syntax. Inductives are declared first,
// then structures, then constants, then canonical instances. Constants may
// refer to each other in any order as long as no definition depends on
// itself.
func CompileSignature(v cue.Value) (*Compiled, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	sig := env.NewSignature()

	if err := compileInductives(sig, v.LookupPath(cue.ParsePath("inductives"))); err != nil {
		return nil, err
	}
	if err := compileStructures(sig, v.LookupPath(cue.ParsePath("structures"))); err != nil {
		return nil, err
	}
	if err := compileConstants(sig, v.LookupPath(cue.ParsePath("constants"))); err != nil {
		return nil, err
	}

	reg := canonical.NewRegistry()
	canonVal := v.LookupPath(cue.ParsePath("canonical"))
	if canonVal.Exists() {
		names, err := stringList(canonVal)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := reg.Declare(sig, name); err != nil {
				return nil, &CompileError{Field: "canonical", Message: err.Error(), Pos: canonVal.Pos()}
			}
		}
	}
	return &Compiled{Sig: sig, Registry: reg}, nil
}

func compileInductives(sig *env.Signature, v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		iv := iter.Value()
		field := "inductives." + name

		ind := env.Inductive{Name: name}
		if ind.Type, err = termField(iv, "type", field, syntax.Scope{Sig: sig}); err != nil {
			return err
		}
		if pv := iv.LookupPath(cue.ParsePath("params")); pv.Exists() {
			n, err := pv.Int64()
			if err != nil {
				return formatCUEError(err)
			}
			if n < 0 {
				return &CompileError{Field: field + ".params", Message: "must not be negative", Pos: pv.Pos()}
			}
			ind.NParams = int(n)
		}

		// Constructor types mention the inductive being declared.
		self := syntax.Scope{Sig: sig, Globals: map[string]term.Term{name: term.Ind{Name: name}}}
		cv := iv.LookupPath(cue.ParsePath("constructors"))
		if cv.Exists() {
			list, err := cv.List()
			if err != nil {
				return formatCUEError(err)
			}
			for list.Next() {
				c := list.Value()
				cname, err := stringField(c, "name", field+".constructors")
				if err != nil {
					return err
				}
				ctype, err := termField(c, "type", field+"."+cname, self)
				if err != nil {
					return err
				}
				ind.Constructors = append(ind.Constructors, env.Constructor{Name: cname, Type: ctype})
			}
		}
		if err := sig.AddInductive(ind); err != nil {
			return &CompileError{Field: field, Message: err.Error(), Pos: iv.Pos()}
		}
	}
	return nil
}

func compileStructures(sig *env.Signature, v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		projections, err := stringList(iter.Value())
		if err != nil {
			return err
		}
		if err := sig.AddStructure(iter.Label(), projections); err != nil {
			return &CompileError{Field: "structures." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
	}
	return nil
}

type constantDecl struct {
	name string
	typ  term.Term
	body term.Term
	pos  token.Pos
}

func compileConstants(sig *env.Signature, v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	type raw struct {
		name string
		val  cue.Value
	}
	var raws []raw
	globals := map[string]term.Term{}
	for iter.Next() {
		raws = append(raws, raw{name: iter.Label(), val: iter.Value()})
		globals[iter.Label()] = term.Const{Name: iter.Label()}
	}

	scope := syntax.Scope{Sig: sig, Globals: globals}
	decls := make([]constantDecl, 0, len(raws))
	for _, r := range raws {
		field := "constants." + r.name
		d := constantDecl{name: r.name, pos: r.val.Pos()}
		if d.typ, err = termField(r.val, "type", field, scope); err != nil {
			return err
		}
		if r.val.LookupPath(cue.ParsePath("body")).Exists() {
			if d.body, err = termField(r.val, "body", field, scope); err != nil {
				return err
			}
		}
		decls = append(decls, d)
	}

	if cycles := AnalyzeCycles(dependencies(decls)); len(cycles) > 0 {
		c := cycles[0]
		pos := token.NoPos
		for _, d := range decls {
			if d.name == c.Path[0] {
				pos = d.pos
			}
		}
		return &CompileError{Field: "constants." + c.Path[0], Message: c.Message, Pos: pos}
	}

	for _, d := range decls {
		if err := sig.AddConstant(env.Constant{Name: d.name, Type: d.typ, Body: d.body}); err != nil {
			return &CompileError{Field: "constants." + d.name, Message: err.Error(), Pos: d.pos}
		}
	}
	return nil
}

// dependencies maps each defined constant to the constants its body and
// type mention, restricted to the constants being declared.
func dependencies(decls []constantDecl) dependencyGraph {
	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.name] = true
	}
	graph := make(dependencyGraph, len(decls))
	for _, d := range decls {
		seen := map[string]bool{}
		collect := func(t term.Term) {
			if t == nil {
				return
			}
			term.Exists(t, func(u term.Term, _ int) bool {
				if c, ok := u.(term.Const); ok && declared[c.Name] {
					seen[c.Name] = true
				}
				return false
			})
		}
		collect(d.typ)
		collect(d.body)
		deps := make([]string, 0, len(seen))
		for n := range seen {
			deps = append(deps, n)
		}
		sort.Strings(deps)
		graph[d.name] = deps
	}
	return graph
}

func termField(v cue.Value, name, field string, scope syntax.Scope) (term.Term, error) {
	src, err := stringField(v, name, field)
	if err != nil {
		return nil, err
	}
	fv := v.LookupPath(cue.ParsePath(name))
	t, err := syntax.Parse(scope, src)
	if err != nil {
		var pe *syntax.ParseError
		if errors.As(err, &pe) {
			return nil, &CompileError{Field: field + "." + name, Message: fmt.Sprintf("%s (at offset %d)", pe.Message, pe.Offset), Pos: fv.Pos()}
		}
		return nil, &CompileError{Field: field + "." + name, Message: err.Error(), Pos: fv.Pos()}
	}
	return t, nil
}

func stringField(v cue.Value, name, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
