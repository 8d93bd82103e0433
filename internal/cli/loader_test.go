package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSignature_File(t *testing.T) {
	loaded, err := LoadSignature(basicSig)
	require.NoError(t, err)
	assert.Equal(t, []string{basicSig}, loaded.Files)

	_, ok := loaded.Sig.Inductive("nat")
	assert.True(t, ok)
	assert.Positive(t, loaded.Registry.Len())
}

func TestLoadSignature_Directory(t *testing.T) {
	dir := filepath.Dir(basicSig)
	loaded, err := LoadSignature(dir)
	require.NoError(t, err)
	assert.Len(t, loaded.Files, 1)

	_, ok := loaded.Sig.Constant("plus")
	assert.True(t, ok)
}

func TestLoadSignature_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	writeFile(t, empty, "README", "no cue here")

	tests := []struct {
		name string
		path string
		code string
	}{
		{"not found", filepath.Join(dir, "missing.cue"), ErrCodeNotFound},
		{"no files", empty, ErrCodeNoFiles},
		{"cue syntax", writeFile(t, dir, "syntax.cue", "constants: {"), ErrCodeBuildFailed},
		{"unknown name", writeFile(t, dir, "name.cue", `constants: a: {type: "foo"}`), ErrCodeConstant},
		{"bad structure", writeFile(t, dir, "struct.cue", `inductives: u: {type: "Set", constructors: []}`+"\n"+`structures: u: ["p"]`), ErrCodeStructure},
		{"bad inductive", writeFile(t, dir, "ind.cue", `inductives: u: {type: "Set", params: -1}`), ErrCodeInductive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSignature(tt.path)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %v", err)
			assert.Equal(t, tt.code, loadErr.Code)
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeConstant, MapFieldToErrorCode("constants.a.type"))
	assert.Equal(t, ErrCodeCanonical, MapFieldToErrorCode("canonical"))
	assert.Equal(t, ErrCodeBuildFailed, MapFieldToErrorCode("cue"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("elsewhere"))
}

func TestFindCUEFiles_NotRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "")
	writeFile(t, dir, "b.txt", "")
	writeFile(t, dir, "sub/c.cue", "")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue")}, files)
}
