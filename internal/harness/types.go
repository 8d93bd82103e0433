package harness

import (
	"github.com/roach88/evarconv/internal/evd"
	"github.com/roach88/evarconv/internal/unify"
)

// Result is the outcome of a scenario execution.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true if every problem met its expectation.
	Pass bool `json:"pass"`

	Problems []ProblemResult `json:"problems"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// ProblemResult records one top-level call.
type ProblemResult struct {
	Index   int    `json:"index"`
	Session string `json:"session"`
	// ProblemID is the content-addressed id of the problem.
	ProblemID string `json:"problem_id"`
	Left      string `json:"left"`
	Right     string `json:"right"`
	Conv      string `json:"conv"`
	Outcome   string `json:"outcome"`
	Expected  string `json:"expected"`
	Steps     int    `json:"steps"`
	MemoHits  int    `json:"memo_hits"`
	Fallback  bool   `json:"fallback"`

	// Assignments are the evars this call defined, printed after
	// instantiation, keyed by evar name.
	Assignments map[string]string `json:"assignments,omitempty"`

	Trace []unify.TraceEvent `json:"trace"`

	// Sigma is the evar map after the call; nil unless it unified.
	Sigma *evd.Map `json:"-"`
}

// Rules returns the rule names of the trace in order.
func (p ProblemResult) Rules() []string {
	rules := make([]string, len(p.Trace))
	for i, ev := range p.Trace {
		rules[i] = ev.Rule
	}
	return rules
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Problems: []ProblemResult{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
