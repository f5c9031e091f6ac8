package integration

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/config"
	"github.com/oshokin/adbroot-builder/internal/module"
	"github.com/oshokin/adbroot-builder/internal/profile"
	"github.com/oshokin/adbroot-builder/internal/service/packager"
)

// settings is a configuration file covering every profile.
const settings = `output_dir: %s
author: integration
version_prefix: v3.1
strict: true
extras:
  - source: %s
    path: docs/README.md
targets:
  - profile: v9
    api_level: 28
  - profile: v10
    api_level: 29
  - profile: v11_12
    api_level: 31
  - profile: universal
`

// readAll returns every entry of the archive at path keyed by name, plus the entry order.
func readAll(t *testing.T, path string) (map[string]string, []string) {
	t.Helper()

	reader, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = reader.Close()
	}()

	var (
		contents = make(map[string]string, len(reader.File))
		order    = make([]string, 0, len(reader.File))
	)

	for _, file := range reader.File {
		rc, err := file.Open()
		require.NoError(t, err)

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		contents[file.Name] = string(data)
		order = append(order, file.Name)
	}

	return contents, order
}

// TestBuilder_ConfiguredBatch loads a settings file, builds every profile and checks the modules.
func TestBuilder_ConfiguredBatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("# ADB Root\n"), 0o600))

	output := filepath.Join(dir, "dist")
	settingsPath := filepath.Join(dir, config.DefaultConfigFilename)

	contents := strings.Replace(strings.Replace(settings, "%s", output, 1), "%s", readme, 1)
	require.NoError(t, os.WriteFile(settingsPath, []byte(contents), 0o600))

	cfg, err := config.Load(settingsPath)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := packager.Run(ctx, &packager.Options{Config: cfg})
	require.NoError(t, err)
	require.Equal(t, 4, summary.Total)
	require.Equal(t, 4, summary.Succeeded)

	policies := make(map[profile.Identifier]string, len(summary.Reports))

	for _, report := range summary.Reports {
		entries, order := readAll(t, report.Destination)

		require.Equal(t, module.RequiredPaths(), order[:len(module.RequiredPaths())])
		require.Equal(t, module.MarkerContent, entries[module.MarkerPath])
		require.True(t, strings.HasPrefix(entries[module.PolicyPath], profile.BaselinePolicy()))
		require.Contains(t, entries[module.PropPath], "author=integration\n")
		require.Equal(t, "# ADB Root\n", entries["docs/README.md"])

		_, hasPayload := entries[module.PayloadPath]
		require.Equal(t, report.Identifier != profile.V10, hasPayload, report.Identifier)

		listing, listErr := archive.List(report.Destination)
		require.NoError(t, listErr)
		require.Equal(t, report.Result.Entries, listing)

		policies[report.Identifier] = entries[module.PolicyPath]
	}

	v10 := summary.Reports[1]
	require.Equal(t, filepath.Join(output, "adb_root_android10-v3.1-android10.zip"), v10.Destination)

	v10Entries, _ := readAll(t, v10.Destination)
	require.Contains(t, v10Entries[module.PropPath], "id=adb_root_android10\n")
	require.Contains(t, v10Entries[module.PropPath], "versionCode=29\n")

	require.Contains(t, policies[profile.V11And12], "minijail")
	require.NotContains(t, policies[profile.V9], "minijail")
	require.Contains(t, summary.Reports[2].Destination, "android12")
}

// TestBuilder_RebuildIsByteIdentical runs the same batch twice into the same directory.
func TestBuilder_RebuildIsByteIdentical(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	first, err := packager.Run(context.Background(), &packager.Options{Config: cfg})
	require.NoError(t, err)

	digests := make(map[string][]byte, len(first.Reports))

	for _, report := range first.Reports {
		data, readErr := os.ReadFile(report.Destination)
		require.NoError(t, readErr)

		digests[report.Destination] = data
	}

	second, err := packager.Run(context.Background(), &packager.Options{Config: cfg})
	require.NoError(t, err)

	for _, report := range second.Reports {
		data, readErr := os.ReadFile(report.Destination)
		require.NoError(t, readErr)
		require.Equal(t, digests[report.Destination], data, report.Destination)
	}

	leftovers, err := filepath.Glob(filepath.Join(cfg.OutputDir, ".*"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}
