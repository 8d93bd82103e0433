package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), basicSig)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Signature is valid")
}

func TestValidate_ValidJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), basicSig)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
}

func TestValidate_Invalid(t *testing.T) {
	sig := writeFile(t, t.TempDir(), "bad.cue", badConstructorSig)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), sig)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E104", resp.Data.Errors[0].Code)
	assert.Equal(t, "inductives.box.mk", resp.Data.Errors[0].Field)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E104", resp.Error.Code)
}

func TestValidate_VerboseListsFiles(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	errBuf := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{basicSig})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, errBuf.String(), "Validating "+basicSig)
}
