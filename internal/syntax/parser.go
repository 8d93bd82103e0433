// Package syntax reads and prints terms in a small concrete syntax.
//
//	term    := "fun" binders "=>" term
//	         | "forall" binders "," term
//	         | "let" ident ":" term ":=" term "in" term
//	         | "fix" fixdecl {"with" fixdecl} ["for" ident]
//	         | "cofix" cofixdecl {"with" cofixdecl} ["for" ident]
//	         | arrow
//	arrow   := app ["->" arrow]
//	app     := atom {atom}
//	atom    := ident | "?" ident ["@[" [term {"," term}] "]"]
//	         | "Prop" | "Set" | "Type" ["@" ident]
//	         | "(" term ")"
//	         | "match" term "in" ident "return" term "with" {"|" term} "end"
//	binders := ident {ident} ":" term | "(" ident {ident} ":" term ")" {...}
//	fixdecl := ident ":" term "{" "struct" number "}" ":=" term
//	cofixdecl := ident ":" term ":=" term
//
// Bound names become de Bruijn indices, names of the local context become
// free variables and the remaining names are looked up in the signature.
package syntax

import (
	"fmt"
	"strconv"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/term"
)

// ParseError reports a syntax or name-resolution error at a byte offset.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

// Scope resolves the names a term may mention.
type Scope struct {
	Sig *env.Signature
	Ctx term.Context
	// Globals resolves names the signature does not declare yet.
	Globals map[string]term.Term

	// Evars maps evar names to ids. An occurrence written without an
	// instance gets the identity instance of the evar's context in Sigma.
	Evars map[string]int
	Sigma *evd.Map
}

var keywords = map[string]bool{
	"fun": true, "forall": true, "let": true, "in": true, "fix": true, "cofix": true,
	"with": true, "for": true, "struct": true, "match": true, "return": true, "end": true,
	"Prop": true, "Set": true, "Type": true,
}

// Parse reads one term.
func Parse(scope Scope, src string) (term.Term, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{scope: scope, toks: toks}
	t, err := p.term()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %s after term", p.peek())
	}
	return t, nil
}

type parser struct {
	scope Scope
	toks  []token
	pos   int
	// bound holds the names of enclosing binders, innermost last.
	bound []string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.peek().pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q, found %s", text, p.peek())
	}
	return nil
}

func (p *parser) ident() (string, error) {
	t := p.peek()
	if t.kind != tokIdent || keywords[t.text] {
		return "", p.errorf("expected identifier, found %s", t)
	}
	p.next()
	return t.text, nil
}

func (p *parser) push(names ...string) { p.bound = append(p.bound, names...) }
func (p *parser) pop(n int)             { p.bound = p.bound[:len(p.bound)-n] }

func (p *parser) term() (term.Term, error) {
	switch {
	case p.accept("fun"):
		return p.binder(true)
	case p.accept("forall"):
		return p.binder(false)
	case p.accept("let"):
		return p.let()
	case p.accept("fix"):
		return p.fix(true)
	case p.accept("cofix"):
		return p.fix(false)
	}
	return p.arrow()
}

type binderGroup struct {
	names []string
	typ   term.Term
}

// binders reads binder groups. Each type is read with the earlier groups
// already bound.
func (p *parser) binders(end string) ([]binderGroup, error) {
	var groups []binderGroup
	pushed := 0
	defer func() { p.pop(pushed) }()
	for {
		paren := p.accept("(")
		var names []string
		for p.peek().kind == tokIdent && !keywords[p.peek().text] {
			names = append(names, p.next().text)
		}
		if len(names) == 0 {
			return nil, p.errorf("expected binder name, found %s", p.peek())
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		// The type of an unparenthesised group extends to the terminator.
		var typ term.Term
		var err error
		if paren {
			typ, err = p.term()
		} else {
			typ, err = p.arrow()
		}
		if err != nil {
			return nil, err
		}
		if paren {
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		groups = append(groups, binderGroup{names: names, typ: typ})
		p.push(names...)
		pushed += len(names)
		if !paren || p.is(end) {
			return groups, nil
		}
	}
}

func (p *parser) binder(lambda bool) (term.Term, error) {
	end := ","
	if lambda {
		end = "=>"
	}
	groups, err := p.binders(end)
	if err != nil {
		return nil, err
	}
	if err := p.expect(end); err != nil {
		return nil, err
	}
	n := 0
	for _, g := range groups {
		p.push(g.names...)
		n += len(g.names)
	}
	body, err := p.term()
	p.pop(n)
	if err != nil {
		return nil, err
	}

	// Rebuild innermost first. Within a group, the k-th copy of the type
	// sits under k binders of the same group.
	for gi := len(groups) - 1; gi >= 0; gi-- {
		g := groups[gi]
		for k := len(g.names) - 1; k >= 0; k-- {
			typ := term.Lift(k, 0, g.typ)
			if lambda {
				body = term.Lambda{Name: g.names[k], Type: typ, Body: body}
			} else {
				body = term.Prod{Name: g.names[k], Type: typ, Body: body}
			}
		}
	}
	return body, nil
}

func (p *parser) let() (term.Term, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	typ, err := p.arrow()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":="); err != nil {
		return nil, err
	}
	value, err := p.term()
	if err != nil {
		return nil, err
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	p.push(name)
	body, err := p.term()
	p.pop(1)
	if err != nil {
		return nil, err
	}
	return term.LetIn{Name: name, Value: value, Type: typ, Body: body}, nil
}

func (p *parser) fix(recursive bool) (term.Term, error) {
	var names []string
	var types []term.Term
	var recArgs []int
	var bodyStarts, bodyEnds []int
	for {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		typ, err := p.arrow()
		if err != nil {
			return nil, err
		}
		if recursive {
			k, err := p.structArg()
			if err != nil {
				return nil, err
			}
			recArgs = append(recArgs, k)
		}
		if err := p.expect(":="); err != nil {
			return nil, err
		}
		names = append(names, name)
		types = append(types, typ)
		// Bodies are parsed once every name is known.
		bodyStarts = append(bodyStarts, p.pos)
		if err := p.skipBody(); err != nil {
			return nil, err
		}
		bodyEnds = append(bodyEnds, p.pos)
		if !p.accept("with") {
			break
		}
	}
	index := 0
	if p.accept("for") {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		index = -1
		for i, n := range names {
			if n == name {
				index = i
			}
		}
		if index < 0 {
			return nil, p.errorf("fix: %s is not defined in this block", name)
		}
	}

	resume := p.pos
	bodies := make([]term.Term, len(names))
	p.push(names...)
	for i, start := range bodyStarts {
		p.pos = start
		b, err := p.term()
		if err == nil && p.pos != bodyEnds[i] {
			err = p.errorf("unexpected %s in fix body", p.peek())
		}
		if err != nil {
			p.pop(len(names))
			return nil, err
		}
		bodies[i] = b
	}
	p.pop(len(names))
	p.pos = resume

	if recursive {
		return term.Fix{Index: index, RecArgs: recArgs, Names: names, Types: types, Bodies: bodies}, nil
	}
	return term.CoFix{Index: index, Names: names, Types: types, Bodies: bodies}, nil
}

func (p *parser) structArg() (int, error) {
	if err := p.expect("{"); err != nil {
		return 0, err
	}
	if err := p.expect("struct"); err != nil {
		return 0, err
	}
	t := p.peek()
	if t.kind != tokNumber {
		return 0, p.errorf("expected argument position, found %s", t)
	}
	p.next()
	k, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, &ParseError{Offset: t.pos, Message: err.Error()}
	}
	if err := p.expect("}"); err != nil {
		return 0, err
	}
	return k, nil
}

// skipBody advances past one fix body: up to a "with" or "for" keyword at
// bracket depth zero, or the end of the enclosing group.
func (p *parser) skipBody() error {
	depth := 0
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			if depth > 0 {
				return p.errorf("unbalanced brackets in fix body")
			}
			return nil
		case depth == 0 && t.kind == tokIdent && (t.text == "with" || t.text == "for"):
			return nil
		case t.kind == tokIdent && t.text == "match":
			depth++
		case t.kind == tokIdent && t.text == "end":
			depth--
		case t.kind == tokPunct && (t.text == "(" || t.text == "@[" || t.text == "{" || t.text == "["):
			depth++
		case t.kind == tokPunct && (t.text == ")" || t.text == "]" || t.text == "}"):
			if depth == 0 {
				return nil
			}
			depth--
		}
		p.next()
	}
}

func (p *parser) arrow() (term.Term, error) {
	from, err := p.app()
	if err != nil {
		return nil, err
	}
	if !p.accept("->") {
		return from, nil
	}
	p.push("_")
	to, err := p.term()
	p.pop(1)
	if err != nil {
		return nil, err
	}
	return term.Prod{Name: "_", Type: from, Body: to}, nil
}

func (p *parser) startsAtom() bool {
	t := p.peek()
	switch t.kind {
	case tokIdent:
		switch t.text {
		case "Prop", "Set", "Type", "match":
			return true
		}
		return !keywords[t.text]
	case tokPunct:
		return t.text == "(" || t.text == "?"
	}
	return false
}

func (p *parser) app() (term.Term, error) {
	head, err := p.atom()
	if err != nil {
		return nil, err
	}
	var args []term.Term
	for p.startsAtom() {
		a, err := p.atom()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return term.MkApp(head, args...), nil
}

func (p *parser) atom() (term.Term, error) {
	t := p.peek()
	switch {
	case p.accept("("):
		inner, err := p.term()
		if err != nil {
			return nil, err
		}
		return inner, p.expect(")")
	case p.accept("?"):
		return p.evar()
	case p.accept("Prop"):
		return term.Prop, nil
	case p.accept("Set"):
		return term.Set, nil
	case p.accept("Type"):
		level := "Type"
		if p.accept("@") {
			name, err := p.ident()
			if err != nil {
				return nil, err
			}
			level = name
		}
		return term.TypeAt(level), nil
	case p.accept("match"):
		return p.match()
	case t.kind == tokIdent && !keywords[t.text]:
		p.next()
		return p.resolve(t)
	}
	return nil, p.errorf("expected term, found %s", t)
}

func (p *parser) resolve(t token) (term.Term, error) {
	for i := len(p.bound) - 1; i >= 0; i-- {
		if p.bound[i] == t.text {
			return term.Rel{Index: len(p.bound) - 1 - i}, nil
		}
	}
	if p.scope.Ctx.Lookup(t.text) >= 0 {
		return term.Var{Name: t.text}, nil
	}
	if g, ok := p.scope.Globals[t.text]; ok {
		return g, nil
	}
	if p.scope.Sig != nil {
		if g, ok := p.scope.Sig.Resolve(t.text); ok {
			return g, nil
		}
	}
	return nil, &ParseError{Offset: t.pos, Message: fmt.Sprintf("unknown name %s", t.text)}
}

func (p *parser) evar() (term.Term, error) {
	start := p.peek().pos
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	id, ok := p.scope.Evars[name]
	if !ok {
		return nil, &ParseError{Offset: start, Message: fmt.Sprintf("unknown evar ?%s", name)}
	}
	if !p.accept("@[") {
		var args []term.Term
		if p.scope.Sigma != nil {
			if info, ok := p.scope.Sigma.Info(id); ok {
				args = info.Ctx.Identity()
			}
		}
		return term.Evar{ID: id, Args: args}, nil
	}
	var args []term.Term
	for !p.is("]") {
		a, err := p.term()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.accept(",") {
			break
		}
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return term.Evar{ID: id, Args: args}, nil
}

func (p *parser) match() (term.Term, error) {
	scrutinee, err := p.term()
	if err != nil {
		return nil, err
	}
	if err := p.expect("in"); err != nil {
		return nil, err
	}
	indTok := p.peek()
	indName, err := p.ident()
	if err != nil {
		return nil, err
	}
	nparams := 0
	if p.scope.Sig != nil {
		ind, ok := p.scope.Sig.Inductive(indName)
		if !ok {
			return nil, &ParseError{Offset: indTok.pos, Message: fmt.Sprintf("unknown inductive %s", indName)}
		}
		nparams = ind.NParams
	}
	if err := p.expect("return"); err != nil {
		return nil, err
	}
	ret, err := p.term()
	if err != nil {
		return nil, err
	}
	if err := p.expect("with"); err != nil {
		return nil, err
	}
	var branches []term.Term
	for p.accept("|") {
		b, err := p.term()
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	if err := p.expect("end"); err != nil {
		return nil, err
	}
	return term.Case{Ind: indName, NParams: nparams, Return: ret, Scrutinee: scrutinee, Branches: branches}, nil
}
