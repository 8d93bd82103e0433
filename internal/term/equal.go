package term

// Equal reports syntactic equality up to binder names.
func Equal(a, b Term) bool {
	switch a := a.(type) {
	case Rel:
		b, ok := b.(Rel)
		return ok && a.Index == b.Index
	case Var:
		b, ok := b.(Var)
		return ok && a.Name == b.Name
	case Evar:
		b, ok := b.(Evar)
		return ok && a.ID == b.ID && EqualList(a.Args, b.Args)
	case App:
		if _, ok := b.(App); !ok {
			return false
		}
		ha, aa := Decompose(a)
		hb, ab := Decompose(b)
		return Equal(ha, hb) && EqualList(aa, ab)
	case Lambda:
		b, ok := b.(Lambda)
		return ok && Equal(a.Type, b.Type) && Equal(a.Body, b.Body)
	case Prod:
		b, ok := b.(Prod)
		return ok && Equal(a.Type, b.Type) && Equal(a.Body, b.Body)
	case LetIn:
		b, ok := b.(LetIn)
		return ok && Equal(a.Value, b.Value) && Equal(a.Type, b.Type) && Equal(a.Body, b.Body)
	case Sort:
		b, ok := b.(Sort)
		return ok && a.Kind == b.Kind && a.Level == b.Level
	case Const:
		b, ok := b.(Const)
		return ok && a.Name == b.Name
	case Ind:
		b, ok := b.(Ind)
		return ok && a.Name == b.Name
	case Construct:
		b, ok := b.(Construct)
		return ok && a.Ind == b.Ind && a.Index == b.Index
	case Case:
		b, ok := b.(Case)
		return ok && a.Ind == b.Ind && a.NParams == b.NParams &&
			Equal(a.Return, b.Return) && Equal(a.Scrutinee, b.Scrutinee) &&
			EqualList(a.Branches, b.Branches)
	case Fix:
		b, ok := b.(Fix)
		return ok && a.Index == b.Index && equalInts(a.RecArgs, b.RecArgs) &&
			EqualList(a.Types, b.Types) && EqualList(a.Bodies, b.Bodies)
	case CoFix:
		b, ok := b.(CoFix)
		return ok && a.Index == b.Index &&
			EqualList(a.Types, b.Types) && EqualList(a.Bodies, b.Bodies)
	}
	return false
}

// EqualList compares two spines pointwise.
func EqualList(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
