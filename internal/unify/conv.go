package unify

// Problem is the relation a call decides.
type Problem int

const (
	// Equal asks for conversion.
	Equal Problem = iota
	// LessEqual asks for cumulativity, left <= right.
	LessEqual
)

func (p Problem) String() string {
	if p == LessEqual {
		return "leq"
	}
	return "eq"
}

// Conv is a Problem with an orientation. Swapped is set while the sides
// are being handled in the reverse order, for instance when the evar is on
// the right; LessEqual then reads right <= left.
type Conv struct {
	Pb      Problem
	Swapped bool
}

// CONV and CUMUL are the two unswapped variances.
var (
	CONV  = Conv{Pb: Equal}
	CUMUL = Conv{Pb: LessEqual}
)

// Flip returns c with the orientation reversed.
func (c Conv) Flip() Conv {
	return Conv{Pb: c.Pb, Swapped: !c.Swapped}
}

// Eq returns the equality problem with c's orientation.
func (c Conv) Eq() Conv {
	return Conv{Pb: Equal, Swapped: c.Swapped}
}

// String renders "eq", "leq" or "geq".
func (c Conv) String() string {
	if c.Pb == LessEqual && c.Swapped {
		return "geq"
	}
	return c.Pb.String()
}

// ParseConv is the inverse of String.
func ParseConv(s string) (Conv, bool) {
	switch s {
	case "eq", "", "=", "==":
		return CONV, true
	case "leq", "<=":
		return CUMUL, true
	case "geq", ">=":
		return Conv{Pb: LessEqual, Swapped: true}, true
	}
	return Conv{}, false
}
