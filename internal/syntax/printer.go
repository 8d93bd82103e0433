package syntax

import (
	"fmt"
	"strings"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/term"
)

// Printer renders terms in the syntax Parse reads.
type Printer struct {
	Sig *env.Signature
	// EvarNames names evars; unnamed evars print as ?e<id>.
	EvarNames map[int]string
	// Taken lists names binders must not shadow, typically the local context.
	Taken []string
}

// Print renders t with the default printer over sig.
func Print(sig *env.Signature, t term.Term) string {
	return Printer{Sig: sig}.Print(t)
}

// Print renders t.
func (pr Printer) Print(t term.Term) string {
	var b strings.Builder
	w := &writer{pr: pr, b: &b}
	w.term(t, precTerm)
	return b.String()
}

const (
	precTerm = iota
	precArrow
	precApp
	precAtom
)

type writer struct {
	pr    Printer
	b     *strings.Builder
	bound []string
}

func (w *writer) write(s string) { w.b.WriteString(s) }

// fresh picks a binder name that does not capture an enclosing one.
func (w *writer) fresh(name string) string {
	if name == "" || name == "_" {
		name = "x"
	}
	used := func(n string) bool {
		for _, b := range w.bound {
			if b == n {
				return true
			}
		}
		for _, t := range w.pr.Taken {
			if t == n {
				return true
			}
		}
		if w.pr.Sig != nil {
			if _, ok := w.pr.Sig.Resolve(n); ok {
				return true
			}
		}
		return keywords[n]
	}
	if !used(name) {
		return name
	}
	for i := 0; ; i++ {
		n := fmt.Sprintf("%s%d", name, i)
		if !used(n) {
			return n
		}
	}
}

func (w *writer) open(prec, need int) func() {
	if prec <= need {
		return func() {}
	}
	w.write("(")
	return func() { w.write(")") }
}

func (w *writer) term(t term.Term, prec int) {
	switch t := t.(type) {
	case term.Rel:
		if t.Index < len(w.bound) {
			w.write(w.bound[len(w.bound)-1-t.Index])
			return
		}
		fmt.Fprintf(w.b, "#%d", t.Index)
	case term.Var:
		w.write(t.Name)
	case term.Evar:
		w.evar(t)
	case term.Sort:
		switch t.Kind {
		case term.SortProp:
			w.write("Prop")
		case term.SortSet:
			w.write("Set")
		default:
			if t.Level == "Type" || t.Level == "" {
				w.write("Type")
			} else {
				w.write("Type@" + t.Level)
			}
		}
	case term.Const:
		w.write(t.Name)
	case term.Ind:
		w.write(t.Name)
	case term.Construct:
		if w.pr.Sig != nil {
			if name, ok := w.pr.Sig.ConstructorName(t); ok {
				w.write(name)
				return
			}
		}
		fmt.Fprintf(w.b, "%s#%d", t.Ind, t.Index)
	case term.App:
		closeParen := w.open(prec, precApp)
		w.term(t.Fn, precApp)
		for _, a := range t.Args {
			w.write(" ")
			w.term(a, precAtom)
		}
		closeParen()
	case term.Lambda:
		closeParen := w.open(prec, precTerm)
		name := w.fresh(t.Name)
		w.write("fun (" + name + " : ")
		w.term(t.Type, precTerm)
		w.write(") => ")
		w.under(t.Body, name)
		closeParen()
	case term.Prod:
		if t.Name == "_" && !term.OccursRel(0, t.Body) {
			closeParen := w.open(prec, precArrow)
			w.term(t.Type, precApp)
			w.write(" -> ")
			w.bound = append(w.bound, "_")
			w.term(t.Body, precArrow)
			w.bound = w.bound[:len(w.bound)-1]
			closeParen()
			return
		}
		closeParen := w.open(prec, precTerm)
		name := w.fresh(t.Name)
		w.write("forall (" + name + " : ")
		w.term(t.Type, precTerm)
		w.write("), ")
		w.under(t.Body, name)
		closeParen()
	case term.LetIn:
		closeParen := w.open(prec, precTerm)
		name := w.fresh(t.Name)
		w.write("let " + name + " : ")
		w.term(t.Type, precArrow)
		w.write(" := ")
		w.term(t.Value, precTerm)
		w.write(" in ")
		w.under(t.Body, name)
		closeParen()
	case term.Case:
		w.write("match ")
		w.term(t.Scrutinee, precTerm)
		w.write(" in " + t.Ind + " return ")
		w.term(t.Return, precTerm)
		w.write(" with")
		for _, br := range t.Branches {
			w.write(" | ")
			w.term(br, precTerm)
		}
		w.write(" end")
	case term.Fix:
		w.block("fix", t.Index, t.Names, t.Types, t.Bodies, t.RecArgs, prec)
	case term.CoFix:
		w.block("cofix", t.Index, t.Names, t.Types, t.Bodies, nil, prec)
	default:
		fmt.Fprintf(w.b, "<%T>", t)
	}
}

func (w *writer) under(body term.Term, name string) {
	w.bound = append(w.bound, name)
	w.term(body, precTerm)
	w.bound = w.bound[:len(w.bound)-1]
}

func (w *writer) evar(ev term.Evar) {
	name, ok := w.pr.EvarNames[ev.ID]
	if !ok {
		name = fmt.Sprintf("e%d", ev.ID)
	}
	w.write("?" + name)
	if len(ev.Args) == 0 {
		return
	}
	w.write("@[")
	for i, a := range ev.Args {
		if i > 0 {
			w.write(", ")
		}
		w.term(a, precTerm)
	}
	w.write("]")
}

func (w *writer) block(kw string, index int, names []string, types, bodies []term.Term, recArgs []int, prec int) {
	closeParen := w.open(prec, precTerm)
	defer closeParen()

	fresh := make([]string, len(names))
	for i, n := range names {
		fresh[i] = w.fresh(n)
	}
	w.write(kw + " ")
	for i := range bodies {
		if i > 0 {
			w.write(" with ")
		}
		w.write(fresh[i] + " : ")
		w.term(types[i], precArrow)
		if recArgs != nil {
			fmt.Fprintf(w.b, " {struct %d}", recArgs[i])
		}
		w.write(" := ")
		w.bound = append(w.bound, fresh...)
		// A body running into the next declaration needs parentheses.
		w.term(bodies[i], precAtom)
		w.bound = w.bound[:len(w.bound)-len(fresh)]
	}
	if len(bodies) > 1 || index != 0 {
		w.write(" for " + fresh[index])
	}
}
