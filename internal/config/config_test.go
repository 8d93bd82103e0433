package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evarconv/internal/unify"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Engine.Aggressive)
	assert.False(t, cfg.Engine.SuperAggressive)
	assert.Equal(t, unify.DefaultFuel, cfg.Engine.Fuel)
	assert.Len(t, cfg.Options(), 5)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[engine]
super_aggressive = true
fuel = 50
opaque = ["plus"]
legacy = true

[journal]
path = "sessions.db"

[log]
level = "debug"
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Engine.Aggressive, "unset keys keep their defaults")
	assert.True(t, cfg.Engine.SuperAggressive)
	assert.Equal(t, 50, cfg.Engine.Fuel)
	assert.Equal(t, filepath.Join(dir, "sessions.db"), cfg.Journal.Path)
	assert.Equal(t, []string{"plus"}, cfg.Transparency().OpaqueNames())
	assert.Len(t, cfg.Options(), 6, "legacy adds the fallback")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"syntax", "[engine\n", "parsing"},
		{"unknown key", "[engine]\nturbo = true\n", "unknown keys engine.turbo"},
		{"negative fuel", "[engine]\nfuel = -1\n", "engine.fuel"},
		{"super without aggressive", "[engine]\naggressive = false\nsuper_aggressive = true\n", "requires engine.aggressive"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad format", "[log]\nformat = \"xml\"\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[engine]\nfuel = 7\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, cfg, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)
	assert.Equal(t, 7, cfg.Engine.Fuel)
}

func TestFind_StopsAtGitBoundary(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	repo := filepath.Join(root, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))

	path, cfg, err := Find(repo)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Nil(t, cfg)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()

	cfg.Logger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	cfg.Logger(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")

	buf.Reset()
	cfg.Log.Format = "json"
	cfg.Logger(&buf, false).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
