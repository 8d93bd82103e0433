package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"compile", "validate", "unify", "test", "trace", "replay"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, NewRootCommand(), "--format", "xml", "validate", basicSig)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "evarconv.toml", "[engine]\naggressive = false\nsuper_aggressive = true\n")

	_, err := execute(t, NewRootCommand(), "--config", cfg, "validate", basicSig)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRootCommand_ConfigJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "evarconv.toml", "[journal]\npath = \"journal.db\"\n")

	out, err := execute(t, NewRootCommand(), "--config", cfg,
		"unify", "--sig", basicSig, "--var", "x:nat", "--evar", "e:nat", "S ?e", "S (S x)")
	require.NoError(t, err, out)

	_, statErr := os.Stat(filepath.Join(dir, "journal.db"))
	assert.NoError(t, statErr, "journal.path is resolved against the config file")

	out, err = execute(t, NewRootCommand(), "--config", cfg, "trace", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "unified")
}

func TestRootOptions_Defaults(t *testing.T) {
	opts := &RootOptions{}
	assert.NotNil(t, opts.engineConfig())
	assert.NotNil(t, opts.logger())
	assert.Equal(t, "x.db", opts.journalPath("x.db"))
	assert.Empty(t, opts.journalPath(""))
}
