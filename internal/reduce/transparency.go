package reduce

import (
	"sort"

	set "github.com/hashicorp/go-set/v3"
)

// Transparency says which definitions may be unfolded during comparison.
type Transparency struct {
	opaque  *set.Set[string]
	letVars bool
}

// Full unfolds every constant with a body and every let-bound variable.
func Full() Transparency {
	return Transparency{opaque: set.New[string](0), letVars: true}
}

// Opaque returns ts with the given constants made rigid.
func (ts Transparency) Opaque(names ...string) Transparency {
	out := set.New[string](len(names))
	if ts.opaque != nil {
		out.InsertSet(ts.opaque)
	}
	out.InsertSlice(names)
	return Transparency{opaque: out, letVars: ts.letVars}
}

// WithoutLetVars returns ts with let-bound variables kept folded.
func (ts Transparency) WithoutLetVars() Transparency {
	return Transparency{opaque: ts.opaque, letVars: false}
}

// Const reports whether the constant name may be unfolded.
func (ts Transparency) Const(name string) bool {
	return ts.opaque == nil || !ts.opaque.Contains(name)
}

// LetVars reports whether let-bound variables may be unfolded.
func (ts Transparency) LetVars() bool { return ts.letVars }

// OpaqueNames returns the rigid constants, sorted.
func (ts Transparency) OpaqueNames() []string {
	if ts.opaque == nil {
		return nil
	}
	names := ts.opaque.Slice()
	sort.Strings(names)
	return names
}
