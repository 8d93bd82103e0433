package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/evarconv/internal/unify"
)

func problemWithRules(rules ...string) ProblemResult {
	pr := ProblemResult{Index: 3}
	for i, r := range rules {
		pr.Trace = append(pr.Trace, unify.TraceEvent{Seq: int64(i + 1), Rule: r})
	}
	return pr
}

func TestAssertTraceContains(t *testing.T) {
	pr := problemWithRules("meta-inst", "rigid-fo")
	assert.NoError(t, assertTraceContains(pr, Assertion{Rule: "rigid-fo"}))

	err := assertTraceContains(pr, Assertion{Rule: "eta-l"})
	var ae *AssertionError
	assert.ErrorAs(t, err, &ae)
	assert.Equal(t, 3, ae.Problem)
	assert.Contains(t, err.Error(), "rule eta-l in trace")
	assert.Contains(t, err.Error(), "[2] rigid-fo")
}

func TestAssertTraceAbsent(t *testing.T) {
	pr := problemWithRules("meta-inst", "meta-inst")
	assert.NoError(t, assertTraceAbsent(pr, Assertion{Rule: "ground"}))
	assert.ErrorContains(t, assertTraceAbsent(pr, Assertion{Rule: "meta-inst"}), "2 occurrences")
}

func TestAssertTraceOrder(t *testing.T) {
	pr := problemWithRules("meta-inst", "meta-prune", "meta-inst", "rigid-fo")

	tests := []struct {
		name  string
		rules []string
		want  string
	}{
		{"in order", []string{"meta-inst", "meta-prune", "rigid-fo"}, ""},
		{"interleaved", []string{"meta-inst", "rigid-fo"}, ""},
		{"reversed", []string{"rigid-fo", "meta-inst"}, "should be before"},
		{"missing", []string{"meta-inst", "canonical"}, "missing rule: canonical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(pr, Assertion{Type: AssertTraceOrder, Rules: tt.rules})
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	pr := problemWithRules("meta-inst", "meta-inst", "rigid-fo")
	assert.NoError(t, assertTraceCount(pr, Assertion{Rule: "meta-inst", Count: 2}))
	assert.NoError(t, assertTraceCount(pr, Assertion{Rule: "ground", Count: 0}))
	assert.ErrorContains(t, assertTraceCount(pr, Assertion{Rule: "rigid-fo", Count: 2}), "1 occurrences")
}

func TestEvaluateAssertions(t *testing.T) {
	pr := problemWithRules("ground")
	failures := EvaluateAssertions(pr, []Assertion{
		{Type: AssertTraceContains, Rule: "ground"},
		{Type: AssertTraceCount, Rule: "ground", Count: 2},
		{Type: AssertTraceAbsent, Rule: "ground"},
	})
	assert.Len(t, failures, 2)
	assert.Empty(t, EvaluateAssertions(pr, nil))
}
