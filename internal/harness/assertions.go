package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/evarconv/internal/unify"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Problem  int
	Type     string
	Expected string
	Actual   string
	Trace    []unify.TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "problem %d: assertion failed: %s\n", e.Problem, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s%s", i+1, strings.Repeat("  ", ev.Depth), ev.Rule)
		if ev.Detail != "" {
			fmt.Fprintf(&buf, " %s", ev.Detail)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion of a problem against its trace
// and returns the failure messages.
func EvaluateAssertions(pr ProblemResult, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(pr, a)
		case AssertTraceOrder:
			err = assertTraceOrder(pr, a)
		case AssertTraceCount:
			err = assertTraceCount(pr, a)
		case AssertTraceAbsent:
			err = assertTraceAbsent(pr, a)
		default:
			err = fmt.Errorf("problem %d: unknown assertion type %q", pr.Index, a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

// assertTraceContains checks that the rule fired at least once.
func assertTraceContains(pr ProblemResult, a Assertion) error {
	if countRule(pr.Trace, a.Rule) > 0 {
		return nil
	}
	return &AssertionError{
		Problem:  pr.Index,
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("rule %s in trace", a.Rule),
		Actual:   "not found",
		Trace:    pr.Trace,
	}
}

// assertTraceAbsent checks that the rule never fired.
func assertTraceAbsent(pr ProblemResult, a Assertion) error {
	n := countRule(pr.Trace, a.Rule)
	if n == 0 {
		return nil
	}
	return &AssertionError{
		Problem:  pr.Index,
		Type:     AssertTraceAbsent,
		Expected: fmt.Sprintf("no %s in trace", a.Rule),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    pr.Trace,
	}
}

// assertTraceOrder checks that the first firings of the rules appear in
// the given order. Other rules may interleave.
func assertTraceOrder(pr ProblemResult, a Assertion) error {
	// Step 1: first position of each rule, 1-indexed for readability.
	positions := make(map[string]int, len(a.Rules))
	for i, ev := range pr.Trace {
		if positions[ev.Rule] == 0 {
			positions[ev.Rule] = i + 1
		}
	}

	// Step 2: verify all rules fired.
	for _, rule := range a.Rules {
		if positions[rule] == 0 {
			return &AssertionError{
				Problem:  pr.Index,
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all rules present: %v", a.Rules),
				Actual:   fmt.Sprintf("missing rule: %s", rule),
				Trace:    pr.Trace,
			}
		}
	}

	// Step 3: verify order.
	for i := 1; i < len(a.Rules); i++ {
		prev, curr := a.Rules[i-1], a.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Problem:  pr.Index,
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("rules in order: %v", a.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: pr.Trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the rule fired exactly Count times.
func assertTraceCount(pr ProblemResult, a Assertion) error {
	n := countRule(pr.Trace, a.Rule)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Problem:  pr.Index,
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Rule),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    pr.Trace,
	}
}

func countRule(trace []unify.TraceEvent, rule string) int {
	n := 0
	for _, ev := range trace {
		if ev.Rule == rule {
			n++
		}
	}
	return n
}
