package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	single := filepath.Join(dir, "b.yaml")
	got, err := FindScenarios([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), single}, got)
}

func TestFindScenarios_Missing(t *testing.T) {
	_, err := FindScenarios([]string{"testdata/nope.yaml"})
	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "testdata/nope.yaml", nf.Path)
}

func TestFindScenarios_Testdata(t *testing.T) {
	got, err := FindScenarios([]string{"testdata/scenarios"})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}
