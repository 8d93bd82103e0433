// Package config loads evarconv.toml.
//
// A missing file is not an error: every field has a default, and the CLI
// overrides file values with its flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/evarconv/internal/legacy"
	"github.com/roach88/evarconv/internal/reduce"
	"github.com/roach88/evarconv/internal/unify"
)

// FileName is the name Find looks for.
const FileName = "evarconv.toml"

// Config is the whole configuration file.
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Journal JournalConfig `toml:"journal"`
	Log     LogConfig     `toml:"log"`
}

// EngineConfig holds the unifier flags.
type EngineConfig struct {
	Aggressive      bool `toml:"aggressive"`
	SuperAggressive bool `toml:"super_aggressive"`
	Memo            bool `toml:"memo"`
	Fuel            int  `toml:"fuel"`
	// Opaque lists constants that are never unfolded.
	Opaque []string `toml:"opaque,omitempty"`
	// Legacy enables the first-order fallback solver.
	Legacy bool `toml:"legacy"`
}

// JournalConfig locates the session journal. An empty Path disables it.
type JournalConfig struct {
	Path string `toml:"path,omitempty"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error") and
// handler format ("text" or "json").
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Aggressive: true,
			Memo:       true,
			Fuel:       unify.DefaultFuel,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Journal.Path != "" && !filepath.IsAbs(cfg.Journal.Path) {
		cfg.Journal.Path = filepath.Join(filepath.Dir(path), cfg.Journal.Path)
	}
	return cfg, nil
}

// Find searches for evarconv.toml starting from dir and walking up to
// parent directories. Returns ("", nil, nil) if not found.
func Find(dir string) (string, *Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			if err != nil {
				return "", nil, err
			}
			return path, cfg, nil
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges. All problems are joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Fuel < 0 {
		errs = append(errs, fmt.Errorf("engine.fuel: must not be negative, got %d", c.Engine.Fuel))
	}
	if c.Engine.SuperAggressive && !c.Engine.Aggressive {
		errs = append(errs, errors.New("engine.super_aggressive: requires engine.aggressive"))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: must be \"text\" or \"json\", got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Transparency returns the unfolding policy named by Opaque.
func (c *Config) Transparency() reduce.Transparency {
	return reduce.Full().Opaque(c.Engine.Opaque...)
}

// Options translates the engine section into unify options.
func (c *Config) Options() []unify.Option {
	ts := c.Transparency()
	opts := []unify.Option{
		unify.WithAggressive(c.Engine.Aggressive),
		unify.WithSuperAggressive(c.Engine.SuperAggressive),
		unify.WithMemo(c.Engine.Memo),
		unify.WithFuel(c.Engine.Fuel),
		unify.WithTransparency(ts),
	}
	if c.Engine.Legacy {
		opts = append(opts, unify.WithFallback(legacy.New(legacy.WithOracle(reduce.NewMachine(), ts))))
	}
	return opts
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds a logger writing to w. verbose raises the level to Debug.
func (c *Config) Logger(w io.Writer, verbose bool) *slog.Logger {
	lvl, err := c.Log.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
