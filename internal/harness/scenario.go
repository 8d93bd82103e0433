package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/evarconv/internal/config"
	"github.com/roach88/evarconv/internal/store"
	"github.com/roach88/evarconv/internal/unify"
)

// Scenario is a sequence of unification problems over one signature.
// Problems run in order; a unified problem's evar map carries over to
// the next one, so later problems see earlier solutions.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Signature is the CUE file or directory declaring the globals.
	// Relative paths are resolved against the scenario file.
	Signature string `yaml:"signature"`

	// Context is the named local context, outermost first.
	Context []Decl `yaml:"context,omitempty"`

	// Evars declares the evars problems may mention, in id order.
	Evars []EvarDecl `yaml:"evars,omitempty"`

	// Options override the engine configuration for this scenario.
	Options Options `yaml:"options,omitempty"`

	Problems []Problem `yaml:"problems"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Decl is one local variable. Body makes it a let-bound variable.
type Decl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Body string `yaml:"body,omitempty"`
}

// EvarDecl declares an undefined evar.
type EvarDecl struct {
	Name string `yaml:"name"`

	// Context lists the local variables the evar may depend on. Omitted
	// means the whole context; an empty list means none.
	Context []string `yaml:"context"`

	Type string `yaml:"type"`
}

// Options are per-scenario engine settings. Unset fields keep the
// configured value.
type Options struct {
	Aggressive      *bool    `yaml:"aggressive,omitempty"`
	SuperAggressive *bool    `yaml:"super_aggressive,omitempty"`
	Memo            *bool    `yaml:"memo,omitempty"`
	Fuel            *int     `yaml:"fuel,omitempty"`
	Legacy          *bool    `yaml:"legacy,omitempty"`
	Opaque          []string `yaml:"opaque,omitempty"`
}

// Problem is one top-level call.
type Problem struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`

	// Conv is eq (default), leq or geq.
	Conv string `yaml:"conv,omitempty"`

	// Expect is the outcome: unified (default), failed, fuel or invariant.
	Expect string `yaml:"expect,omitempty"`

	// Assignments maps evar names to the expected body of the evar after
	// the call, read in the evar's context.
	Assignments map[string]string `yaml:"assignments,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion checks the rule trace of a problem.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, trace_absent.
	Type string `yaml:"type"`

	// Rule is the rule name (trace_contains, trace_count, trace_absent).
	Rule string `yaml:"rule,omitempty"`

	// Rules is the expected relative order (trace_order).
	Rules []string `yaml:"rules,omitempty"`

	// Count is the expected number of firings (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertTraceAbsent   = "trace_absent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Path = path

	if scenario.Signature != "" && !filepath.IsAbs(scenario.Signature) {
		scenario.Signature = filepath.Join(filepath.Dir(path), scenario.Signature)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks a scenario built in code rather than loaded from a file.
func (s *Scenario) Validate() error {
	return validateScenario(s)
}

// validateScenario checks that required fields are present and valid.
// Term syntax is checked later, when the signature is known.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Signature == "" {
		return fmt.Errorf("signature is required")
	}
	if _, err := os.Stat(s.Signature); os.IsNotExist(err) {
		return fmt.Errorf("signature not found: %s", s.Signature)
	}
	if len(s.Problems) == 0 {
		return fmt.Errorf("problems list is required and must be non-empty")
	}

	locals := make(map[string]bool, len(s.Context))
	for i, d := range s.Context {
		if d.Name == "" || d.Type == "" {
			return fmt.Errorf("context[%d]: name and type are required", i)
		}
		if locals[d.Name] {
			return fmt.Errorf("context[%d]: duplicate variable %q", i, d.Name)
		}
		locals[d.Name] = true
	}

	evars := make(map[string]bool, len(s.Evars))
	for i, ev := range s.Evars {
		if ev.Name == "" || ev.Type == "" {
			return fmt.Errorf("evars[%d]: name and type are required", i)
		}
		if evars[ev.Name] {
			return fmt.Errorf("evars[%d]: duplicate evar %q", i, ev.Name)
		}
		evars[ev.Name] = true
		for _, n := range ev.Context {
			if !locals[n] {
				return fmt.Errorf("evars[%d]: unknown variable %q in context", i, n)
			}
		}
	}

	if s.Options.Fuel != nil && *s.Options.Fuel < 0 {
		return fmt.Errorf("options.fuel: must not be negative")
	}

	for i, p := range s.Problems {
		if p.Left == "" || p.Right == "" {
			return fmt.Errorf("problems[%d]: left and right are required", i)
		}
		if _, ok := unify.ParseConv(p.Conv); !ok {
			return fmt.Errorf("problems[%d]: unknown conv %q", i, p.Conv)
		}
		switch p.Expect {
		case "", store.OutcomeUnified, store.OutcomeFailed, store.OutcomeFuel, store.OutcomeInvariant:
		default:
			return fmt.Errorf("problems[%d]: unknown expect %q", i, p.Expect)
		}
		if len(p.Assignments) > 0 && p.expect() != store.OutcomeUnified {
			return fmt.Errorf("problems[%d]: assignments require expect: unified", i)
		}
		for name := range p.Assignments {
			if !evars[name] {
				return fmt.Errorf("problems[%d]: assignment to undeclared evar %q", i, name)
			}
		}
		for j, a := range p.Assertions {
			if err := validateAssertion(i, j, &a); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(problem, index int, a *Assertion) error {
	where := fmt.Sprintf("problems[%d].assertions[%d]", problem, index)
	switch a.Type {
	case "":
		return fmt.Errorf("%s: type is required", where)
	case AssertTraceContains, AssertTraceAbsent:
		if a.Rule == "" {
			return fmt.Errorf("%s: rule is required for %s", where, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Rules) < 2 {
			return fmt.Errorf("%s: rules list needs at least two entries for trace_order", where)
		}
	case AssertTraceCount:
		if a.Rule == "" {
			return fmt.Errorf("%s: rule is required for trace_count", where)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s: count must not be negative", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}

func (p Problem) expect() string {
	if p.Expect == "" {
		return store.OutcomeUnified
	}
	return p.Expect
}

// apply overlays the scenario options onto cfg.
func (o Options) apply(cfg config.Config) config.Config {
	if o.Aggressive != nil {
		cfg.Engine.Aggressive = *o.Aggressive
	}
	if o.SuperAggressive != nil {
		cfg.Engine.SuperAggressive = *o.SuperAggressive
	}
	if o.Memo != nil {
		cfg.Engine.Memo = *o.Memo
	}
	if o.Fuel != nil {
		cfg.Engine.Fuel = *o.Fuel
	}
	if o.Legacy != nil {
		cfg.Engine.Legacy = *o.Legacy
	}
	if len(o.Opaque) > 0 {
		cfg.Engine.Opaque = append(append([]string(nil), cfg.Engine.Opaque...), o.Opaque...)
	}
	return cfg
}
