package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and value ranges.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Default()))
	require.Error(t, Validate(nil))

	cases := map[string]func(*Config){
		"no output dir":     func(c *Config) { c.OutputDir = "" },
		"no author":         func(c *Config) { c.Author = "" },
		"slash in prefix":   func(c *Config) { c.VersionPrefix = "v2/0" },
		"level too high":    func(c *Config) { c.CompressionLevel = 10 },
		"level zero":        func(c *Config) { c.CompressionLevel = 0 },
		"no loader version": func(c *Config) { c.MinLoaderVersion = 0 },
		"bad log level":     func(c *Config) { c.LogLevel = "chatty" },
		"no targets":        func(c *Config) { c.Targets = nil },
		"empty profile":     func(c *Config) { c.Targets = []Target{{APILevel: 29}} },
		"negative api":      func(c *Config) { c.Targets = []Target{{Profile: "v10", APILevel: -1}} },
		"extra no source":   func(c *Config) { c.Extras = []Extra{{Path: "README.md"}} },
	}

	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.Error(t, Validate(cfg), name)
	}
}

// TestDefault reproduces the standard five-module batch.
func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Len(t, cfg.Targets, 5)
	require.Equal(t, Target{Profile: "v10", APILevel: 29}, cfg.Targets[1])
	require.Equal(t, 9, cfg.CompressionLevel)
	require.False(t, cfg.Strict)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.Strict = true
	cfg.PayloadFile = "build/adbd"
	cfg.Extras = []Extra{{Source: "README.md"}, {Source: "docs/tech.md", Path: "TECHNICAL_DOCS.md"}}
	cfg.Targets = []Target{{Profile: "v10", APILevel: 29}}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_PartialFileKeepsDefaults verifies absent keys fall back to defaults.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	contents := "output_dir: out\nstrict: true\ntargets:\n  - profile: v11_12\n    api_level: 31\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "out", cfg.OutputDir)
	require.True(t, cfg.Strict)
	require.Equal(t, []Target{{Profile: "v11_12", APILevel: 31}}, cfg.Targets)
	require.Equal(t, Default().Author, cfg.Author)
	require.Equal(t, 9, cfg.CompressionLevel)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	cfg, err = Load(empty)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestLoad_Rejects covers unknown keys and invalid values.
func TestLoad_Rejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("outptu_dir: typo\n"), 0o600))

	_, err := Load(unknown)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("compression_level: 12\n"), 0o600))

	_, err = Load(invalid)
	require.Error(t, err)
}

// TestLoadOrDefault distinguishes implicit and explicit configuration paths.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(missing, true)
	require.ErrorIs(t, err, os.ErrNotExist)
}
