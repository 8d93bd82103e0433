package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/store"
)

// testScenario is a one-problem scenario over the basic signature.
func testScenario(t *testing.T, name, expect string) string {
	return fmt.Sprintf(`name: %s
description: "f x against g x"
signature: %s
context:
  - {name: x, type: nat}
problems:
  - left: "f x"
    right: "g x"
    expect: %s
`, name, absBasicSig(t), expect)
}

func decodeTestResult(t *testing.T, out string) (string, TestResult) {
	t.Helper()
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp.Status, resp.Data
}

func TestTest_Testdata(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir)
	require.NoError(t, err, out)

	status, result := decodeTestResult(t, out)
	assert.Equal(t, "ok", status)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Passed)

	golden := map[string]string{}
	for _, s := range result.Scenarios {
		golden[s.Name] = s.Golden
		assert.Positive(t, s.Problems, s.Name)
	}
	assert.Equal(t, "match", golden["patterns"])
	assert.Empty(t, golden["fuel"], "no golden file")
}

func TestTest_OrderIsStable(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), "--jobs", "3", scenariosDir)
	require.NoError(t, err)

	_, result := decodeTestResult(t, out)
	var names []string
	for _, s := range result.Scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"canonical", "failures", "fuel", "patterns", "pruning"}, names)
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "--filter", "pat*", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ patterns")
	assert.NotContains(t, out, "pruning")
	assert.Contains(t, out, "All 1 scenario(s) passed")
}

func TestTest_InvalidFilter(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "--filter", "[", scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scenarios/ok.yaml", testScenario(t, "ok", "failed"))
	writeFile(t, dir, "scenarios/wrong.yaml", testScenario(t, "wrong", "unified"))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	status, result := decodeTestResult(t, out)
	assert.Equal(t, "error", status)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 2)
	assert.True(t, result.Scenarios[0].Pass)
	assert.False(t, result.Scenarios[1].Pass)
	assert.Contains(t, result.Scenarios[1].Errors[0], "problem 0: expected unified, got failed")
}

func TestTest_LoadError(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "scenarios/broken.yaml", "name: broken\nproblems: [\n")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), file)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_UpdateGolden(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "scenarios/mismatch.yaml", testScenario(t, "mismatch", "failed"))
	golden := filepath.Join(dir, "golden", "mismatch.golden")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "--update", file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ mismatch (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome": "failed"`)

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "json"}), file)
	require.NoError(t, err)
	_, result := decodeTestResult(t, out)
	assert.Equal(t, "match", result.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), file)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_Journal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	file := filepath.Join(scenariosDir, "patterns.yaml")

	for range 2 {
		_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "--db", db, file)
		require.NoError(t, err)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.ListSessions(t.Context())
	require.NoError(t, err)
	assert.Len(t, sessions, 10)
	for _, s := range sessions {
		assert.Equal(t, "patterns", s.Scenario)
	}
}

func TestTest_Errors(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err, "requires a path")

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_NoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("testdata", "golden", "patterns.golden"),
		goldenFilePath(filepath.Join("testdata", "scenarios", "patterns.yaml")))
}

func TestTest_Metrics(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), "--metrics", "--jobs", "2", scenariosDir)
	require.NoError(t, err, out)

	_, result := decodeTestResult(t, out)
	require.NotNil(t, result.Metrics)
	assert.Positive(t, result.Metrics["evarconv_unify_calls_total"])
	assert.Positive(t, result.Metrics[`evarconv_unify_outcomes_total{outcome="unified"}`])
	assert.Equal(t, 1.0, result.Metrics[`evarconv_unify_outcomes_total{outcome="fuel"}`])
	assert.Equal(t, result.Metrics["evarconv_unify_calls_total"], result.Metrics["evarconv_unify_steps_count"])

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "--metrics", "--filter", "fuel", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Metrics:")
	assert.Contains(t, out, `evarconv_unify_outcomes_total{outcome="fuel"} 1`)

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "--filter", "fuel", scenariosDir)
	require.NoError(t, err)
	assert.NotContains(t, out, "Metrics:")
}
