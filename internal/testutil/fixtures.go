package testutil

import (
	"github.com/roach88/evarconv/internal/canonical"
	"github.com/roach88/evarconv/internal/env"
	"github.com/roach88/evarconv/internal/term"
)

// Common terms of the fixture signature.
var (
	Nat      = term.Ind{Name: "nat"}
	Bool     = term.Ind{Name: "bool"}
	List     = term.Ind{Name: "list"}
	Vec      = term.Ind{Name: "vec"}
	EqType   = term.Ind{Name: "eqType"}
	Zero     = term.Construct{Ind: "nat", Index: 0}
	Succ     = term.Construct{Ind: "nat", Index: 1}
	Sort     = term.Const{Name: "sort"}
	EqOp     = term.Const{Name: "eq_op"}
	NatEqb   = term.Const{Name: "nat_eqb"}
	ListEqb  = term.Const{Name: "list_eqb"}
	NatEqT   = term.Const{Name: "nat_eqType"}
	ListEqT  = term.Const{Name: "list_eqType"}
	F        = term.Const{Name: "f"}
	G        = term.Const{Name: "g"}
	H        = term.Const{Name: "h"}
	Plus     = term.Const{Name: "plus"}
	One      = term.Const{Name: "one"}
	natToNat = term.Arrow(Nat, Nat)
)

// Num builds the unary numeral n.
func Num(n int) term.Term {
	var t term.Term = Zero
	for i := 0; i < n; i++ {
		t = term.MkApp(Succ, t)
	}
	return t
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// PlusFix is fix plus n m {struct n} := match n with O => m | S p => S (plus p m) end.
func PlusFix() term.Fix {
	match := term.Case{
		Ind:       "nat",
		Return:    term.Lambda{Name: "_", Type: Nat, Body: Nat},
		Scrutinee: term.Rel{Index: 1},
		Branches: []term.Term{
			term.Rel{Index: 0},
			term.Lambda{Name: "p", Type: Nat, Body: term.MkApp(Succ, term.MkApp(term.Rel{Index: 3}, term.Rel{Index: 0}, term.Rel{Index: 1}))},
		},
	}
	return term.Fix{
		RecArgs: []int{0},
		Names:   []string{"plus"},
		Types:   []term.Term{term.Arrow(Nat, natToNat)},
		Bodies:  []term.Term{term.Lambda{Name: "n", Type: Nat, Body: term.Lambda{Name: "m", Type: Nat, Body: match}}},
	}
}

// Signature builds a small signature shared by tests:
//
//	nat, bool, list (A : Type), vec (n : nat)
//	plus, one, f g : nat -> nat, h : nat -> nat -> nat
//	structure eqType := Build_eqType { sort : Type; eq_op : sort -> sort -> bool }
//	nat_eqType := Build_eqType nat nat_eqb
//	list_eqType T := Build_eqType (list (sort T)) (list_eqb T)
//
// and a registry declaring nat_eqType and list_eqType canonical.
func Signature() (*env.Signature, *canonical.Registry) {
	sig := env.NewSignature()
	typeL := term.TypeAt("l")

	must(sig.AddInductive(env.Inductive{
		Name: "nat", Type: term.Set,
		Constructors: []env.Constructor{{Name: "O", Type: Nat}, {Name: "S", Type: natToNat}},
	}))
	must(sig.AddInductive(env.Inductive{
		Name: "bool", Type: term.Set,
		Constructors: []env.Constructor{{Name: "true", Type: Bool}, {Name: "false", Type: Bool}},
	}))
	listA := term.MkApp(List, term.Rel{Index: 0})
	must(sig.AddInductive(env.Inductive{
		Name: "list", Type: term.Prod{Name: "A", Type: typeL, Body: typeL}, NParams: 1,
		Constructors: []env.Constructor{
			{Name: "nil", Type: term.Prod{Name: "A", Type: typeL, Body: listA}},
			{Name: "cons", Type: term.Prod{Name: "A", Type: typeL,
				Body: term.Arrow(term.Rel{Index: 0}, term.Arrow(listA, listA))}},
		},
	}))
	must(sig.AddInductive(env.Inductive{
		Name: "vec", Type: term.Prod{Name: "n", Type: Nat, Body: term.Set},
	}))

	must(sig.AddConstant(env.Constant{Name: "plus", Type: term.Arrow(Nat, natToNat), Body: PlusFix()}))
	must(sig.AddConstant(env.Constant{Name: "one", Type: Nat, Body: Num(1)}))
	must(sig.AddConstant(env.Constant{Name: "f", Type: natToNat}))
	must(sig.AddConstant(env.Constant{Name: "g", Type: natToNat}))
	must(sig.AddConstant(env.Constant{Name: "h", Type: term.Arrow(Nat, natToNat)}))

	typeS := term.TypeAt("s")
	eqOpType := term.Arrow(term.Rel{Index: 0}, term.Arrow(term.Rel{Index: 0}, Bool))
	must(sig.AddInductive(env.Inductive{
		Name: "eqType", Type: term.TypeAt("e"),
		Constructors: []env.Constructor{{Name: "Build_eqType",
			Type: term.Prod{Name: "sort", Type: typeS, Body: term.Arrow(eqOpType, EqType)}}},
	}))
	must(sig.AddStructure("eqType", []string{"sort", "eq_op"}))

	build := term.Construct{Ind: "eqType", Index: 0}
	must(sig.AddConstant(env.Constant{Name: "nat_eqb", Type: term.Arrow(Nat, term.Arrow(Nat, Bool))}))
	must(sig.AddConstant(env.Constant{Name: "nat_eqType", Type: EqType,
		Body: term.MkApp(build, Nat, NatEqb)}))

	listSortT := term.MkApp(List, term.MkApp(Sort, term.Rel{Index: 0}))
	must(sig.AddConstant(env.Constant{Name: "list_eqb",
		Type: term.Prod{Name: "T", Type: EqType, Body: term.Arrow(listSortT, term.Arrow(listSortT, Bool))}}))
	must(sig.AddConstant(env.Constant{Name: "list_eqType", Type: term.Arrow(EqType, EqType),
		Body: term.Lambda{Name: "T", Type: EqType,
			Body: term.MkApp(build, listSortT, term.MkApp(ListEqb, term.Rel{Index: 0}))}}))

	reg := canonical.NewRegistry()
	must(reg.Declare(sig, "nat_eqType"))
	must(reg.Declare(sig, "list_eqType"))
	return sig, reg
}
