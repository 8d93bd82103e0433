package term

// Term is a sealed interface over the term grammar.
// Only the types declared in this file implement it.
type Term interface {
	isTerm() // Sealed
}

// Rel is a bound variable, as a de Bruijn index. Index 0 is the innermost binder.
type Rel struct {
	Index int
}

// Var is a free variable, resolved by name in the named context.
type Var struct {
	Name string
}

// Evar is an occurrence of a metavariable.
// Args is the instantiation: one term per entry of the evar's context.
type Evar struct {
	ID   int
	Args []Term
}

// App is an application. Fn is never itself an App once built with MkApp.
type App struct {
	Fn   Term
	Args []Term
}

// Lambda is an abstraction. Body lives under one extra binder.
type Lambda struct {
	Name string
	Type Term
	Body Term
}

// Prod is a dependent product. Body lives under one extra binder.
type Prod struct {
	Name string
	Type Term
	Body Term
}

// LetIn is a local definition. Body lives under one extra binder bound to Value.
type LetIn struct {
	Name  string
	Value Term
	Type  Term
	Body  Term
}

// SortKind distinguishes the three families of sorts.
type SortKind int

const (
	SortProp SortKind = iota
	SortSet
	SortType
)

// Sort is a universe. Level names a universe variable and is only
// meaningful for SortType.
type Sort struct {
	Kind  SortKind
	Level string
}

// Const is a global constant, possibly with a definition in the signature.
type Const struct {
	Name string
}

// Ind is an inductive type.
type Ind struct {
	Name string
}

// Construct is the Index-th (0-based) constructor of inductive Ind.
type Construct struct {
	Ind   string
	Index int
}

// Case is a pattern match on a value of inductive Ind.
//
// Branches[i] handles constructor i and is applied to the constructor's
// arguments with the NParams parameters dropped. Return is the motive.
type Case struct {
	Ind       string
	NParams   int
	Return    Term
	Scrutinee Term
	Branches  []Term
}

// Fix is a block of mutually recursive functions; the term denotes the
// Index-th one.
//
// Bodies live under len(Bodies) binders, one per function, pushed in order:
// inside a body, function j is Rel(len(Bodies)-1-j). RecArgs[j] is the
// position of the decreasing argument of function j.
type Fix struct {
	Index   int
	RecArgs []int
	Names   []string
	Types   []Term
	Bodies  []Term
}

// CoFix is a block of mutually corecursive definitions, bound like Fix.
type CoFix struct {
	Index  int
	Names  []string
	Types  []Term
	Bodies []Term
}

func (Rel) isTerm()       {}
func (Var) isTerm()       {}
func (Evar) isTerm()      {}
func (App) isTerm()       {}
func (Lambda) isTerm()    {}
func (Prod) isTerm()      {}
func (LetIn) isTerm()     {}
func (Sort) isTerm()      {}
func (Const) isTerm()     {}
func (Ind) isTerm()       {}
func (Construct) isTerm() {}
func (Case) isTerm()      {}
func (Fix) isTerm()       {}
func (CoFix) isTerm()     {}

// Prop, Set and TypeAt build sorts.
var (
	Prop = Sort{Kind: SortProp}
	Set  = Sort{Kind: SortSet}
)

// TypeAt returns the sort Type@{level}.
func TypeAt(level string) Sort {
	return Sort{Kind: SortType, Level: level}
}

// Arrow builds the non-dependent product from -> to.
// to is lifted so that it does not capture the new binder.
func Arrow(from, to Term) Prod {
	return Prod{Name: "_", Type: from, Body: Lift(1, 0, to)}
}
