package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Patterns(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "patterns"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalSnapshot(t *testing.T) {
	result := &Result{Scenario: "s", Problems: []ProblemResult{
		{Left: "fun (z : nat) => ?k z", Right: "f", Conv: "eq", Outcome: "unified"},
	}}
	data, err := MarshalSnapshot(Snapshot(result))
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, `"left": "fun (z : nat) => ?k z"`, "no HTML escaping")
	assert.Contains(t, out, `"rules": []`)
	assert.NotContains(t, out, "assignments")
	assert.NotContains(t, out, "session")
}
