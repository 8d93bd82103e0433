package term

// Decl is one entry of a named context. Body is nil for an assumption.
type Decl struct {
	Name string
	Body Term
	Type Term
}

// Context is an ordered named context, outermost entry first.
// The type and body of an entry may only mention earlier entries.
type Context []Decl

// Lookup returns the position of name, or -1.
func (c Context) Lookup(name string) int {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Name == name {
			return i
		}
	}
	return -1
}

// Names returns the entry names in order.
func (c Context) Names() []string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Name
	}
	return names
}

// Identity returns the instantiation mapping every entry to itself.
func (c Context) Identity() []Term {
	args := make([]Term, len(c))
	for i, d := range c {
		args[i] = Var{Name: d.Name}
	}
	return args
}

// Restrict keeps only the entries whose position is not in drop.
func (c Context) Restrict(drop map[int]bool) Context {
	out := make(Context, 0, len(c))
	for i, d := range c {
		if !drop[i] {
			out = append(out, d)
		}
	}
	return out
}

// Instantiate replaces each context variable in t by the matching entry of args.
func (c Context) Instantiate(args []Term, t Term) Term {
	m := make(map[string]Term, len(c))
	for i, d := range c {
		if i < len(args) {
			m[d.Name] = args[i]
		}
	}
	return ReplaceVars(m, t)
}
