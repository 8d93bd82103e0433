package compiler

import (
	"fmt"

	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/term"
)

// Validation error codes (E100-E199)
const (
	// Declaration errors (E101-E104)
	ErrOpenDeclaration = "E101" // free variable or dangling index
	ErrEvarInSignature = "E102" // declarations must not mention evars
	ErrUnknownGlobal   = "E103" // reference to an undeclared global
	ErrBadConstructor  = "E104" // constructor does not build its inductive

	// Term shape errors (E110-E119)
	ErrCaseShape   = "E110" // branch count or parameter count disagrees with the inductive
	ErrRecArgRange = "E111" // decreasing argument beyond the function's abstractions
)

// ValidationError represents a signature validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a signature for declarations the engine assumes never
// occur. Returns all errors found (does not fail-fast), in name order.
func Validate(sig *env.Signature) []ValidationError {
	var errs []ValidationError

	for _, name := range sig.InductiveNames() {
		ind, _ := sig.Inductive(name)
		field := "inductives." + name
		errs = append(errs, validateTerm(sig, field+".type", ind.Type)...)
		for _, c := range ind.Constructors {
			cfield := field + "." + c.Name
			errs = append(errs, validateTerm(sig, cfield, c.Type)...)
			if !buildsInductive(c.Type, ind) {
				errs = append(errs, ValidationError{
					Field:   cfield,
					Message: fmt.Sprintf("constructor %s must conclude in %s applied to at least %d arguments", c.Name, name, ind.NParams),
					Code:    ErrBadConstructor,
				})
			}
		}
	}

	for _, name := range sig.ConstantNames() {
		c, _ := sig.Constant(name)
		field := "constants." + name
		if c.Type != nil {
			errs = append(errs, validateTerm(sig, field+".type", c.Type)...)
		}
		if c.Body != nil {
			errs = append(errs, validateTerm(sig, field+".body", c.Body)...)
		}
	}
	return errs
}

// validateTerm checks one closed declaration term.
func validateTerm(sig *env.Signature, field string, t term.Term) []ValidationError {
	var errs []ValidationError
	report := func(code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	term.Exists(t, func(u term.Term, depth int) bool {
		switch u := u.(type) {
		case term.Rel:
			if u.Index >= depth {
				report(ErrOpenDeclaration, "dangling index #%d", u.Index-depth)
			}
		case term.Var:
			report(ErrOpenDeclaration, "free variable %s", u.Name)
		case term.Evar:
			report(ErrEvarInSignature, "mentions evar ?%d", u.ID)
		case term.Const:
			if _, ok := sig.Constant(u.Name); !ok {
				report(ErrUnknownGlobal, "unknown constant %s", u.Name)
			}
		case term.Ind:
			if _, ok := sig.Inductive(u.Name); !ok {
				report(ErrUnknownGlobal, "unknown inductive %s", u.Name)
			}
		case term.Construct:
			if _, ok := sig.ConstructorName(u); !ok {
				report(ErrUnknownGlobal, "unknown constructor %s#%d", u.Ind, u.Index)
			}
		case term.Case:
			ind, ok := sig.Inductive(u.Ind)
			if !ok {
				report(ErrUnknownGlobal, "match on unknown inductive %s", u.Ind)
				break
			}
			if len(u.Branches) != len(ind.Constructors) {
				report(ErrCaseShape, "match on %s has %d branches, want %d", u.Ind, len(u.Branches), len(ind.Constructors))
			}
			if u.NParams != ind.NParams {
				report(ErrCaseShape, "match on %s drops %d parameters, want %d", u.Ind, u.NParams, ind.NParams)
			}
		case term.Fix:
			for j, body := range u.Bodies {
				if j < len(u.RecArgs) && u.RecArgs[j] >= countLambdas(body) {
					report(ErrRecArgRange, "%s: decreasing argument %d out of range", u.Names[j], u.RecArgs[j])
				}
			}
		}
		// Keep walking: every offending subterm is reported.
		return false
	})
	return errs
}

func countLambdas(t term.Term) int {
	n := 0
	for {
		lam, ok := t.(term.Lambda)
		if !ok {
			return n
		}
		n++
		t = lam.Body
	}
}

// buildsInductive reports whether the conclusion of a constructor type is
// ind applied to its parameters and indices.
func buildsInductive(t term.Term, ind env.Inductive) bool {
	for {
		p, ok := t.(term.Prod)
		if !ok {
			break
		}
		t = p.Body
	}
	head, args := term.Decompose(t)
	h, ok := head.(term.Ind)
	return ok && h.Name == ind.Name && len(args) >= ind.NParams
}
