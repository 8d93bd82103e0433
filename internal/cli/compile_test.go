package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const badConstructorSig = `inductives: {
	nat: {type: "Set", constructors: [{name: "O", type: "nat"}]}
	box: {type: "Set", constructors: [{name: "mk", type: "nat"}]}
}
`

func TestCompile_Text(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), basicSig)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 5 inductive(s)")
	assert.Contains(t, out, "nat : Set  [2 constructor(s)]")
	assert.Contains(t, out, "f : nat -> nat  (axiom)")
	assert.Contains(t, out, "gdef : nat -> nat  (definition)")
	assert.Contains(t, out, "Canonical instances:")
	assert.Contains(t, out, "nat_eqType")
}

func TestCompile_JSON(t *testing.T) {
	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), basicSig)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   SignatureSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	var inductives []string
	for _, ind := range resp.Data.Inductives {
		inductives = append(inductives, ind.Name)
	}
	assert.Equal(t, []string{"bool", "eqType", "list", "nat", "vec"}, inductives)

	require.Len(t, resp.Data.Structures, 1)
	assert.Equal(t, StructureSummary{Name: "eqType", Projections: []string{"sort", "eq_op"}}, resp.Data.Structures[0])

	instances := map[string]bool{}
	for _, e := range resp.Data.Canonical {
		instances[e.Instance] = true
	}
	assert.True(t, instances["nat_eqType"])
	assert.True(t, instances["list_eqType"])
}

func TestCompile_OutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "summary.json")

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), basicSig, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote summary to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var summary SignatureSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.NotEmpty(t, summary.Constants)
}

func TestCompile_ValidationFailure(t *testing.T) {
	sig := writeFile(t, t.TempDir(), "bad.cue", badConstructorSig)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), sig)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[E104] inductives.box.mk")
}

func TestCompile_LoadFailure(t *testing.T) {
	sig := writeFile(t, t.TempDir(), "bad.cue", `constants: a: {type: "foo"}`)

	out, err := execute(t, NewCompileCommand(&RootOptions{Format: "json"}), sig)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConstant, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unknown name foo")
}

func TestCompile_MissingPath(t *testing.T) {
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), "/nonexistent/sig.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompile_RequiresArgument(t *testing.T) {
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
}
