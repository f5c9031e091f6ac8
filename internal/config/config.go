package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/profile"
)

// Config holds the settings of one builder run.
type Config struct {
	// OutputDir is where archives and signatures are written.
	OutputDir string `yaml:"output_dir" validate:"required"`
	// Author is written to module.prop.
	Author string `yaml:"author" validate:"required"`
	// VersionPrefix precedes the release slug in module versions.
	VersionPrefix string `yaml:"version_prefix" validate:"required,excludesall=/"`
	// MinLoaderVersion is the oldest accepted Magisk version code.
	MinLoaderVersion int `yaml:"min_loader_version" validate:"min=1"`
	// Strict aborts an archive when a referenced file is missing instead of skipping it.
	Strict bool `yaml:"strict"`
	// CompressionLevel is the Deflate level, 1 (fastest) to 9 (smallest).
	CompressionLevel int `yaml:"compression_level" validate:"min=1,max=9"`
	// PayloadFile replaces the placeholder adbd payload when set.
	PayloadFile string `yaml:"payload_file,omitempty"`
	// SigningKey is an armored OpenPGP private key; archives are signed when set.
	SigningKey string `yaml:"signing_key,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// Extras are additional files copied into every module.
	Extras []Extra `yaml:"extras,omitempty" validate:"dive"`
	// Targets are the modules to build, in order.
	Targets []Target `yaml:"targets" validate:"required,min=1,dive"`
}

// Extra is an additional file copied into every module.
type Extra struct {
	// Source is the file on disk.
	Source string `yaml:"source" validate:"required"`
	// Path is the in-archive destination; empty means the source base name.
	Path string `yaml:"path,omitempty"`
}

// Target selects one module to build.
type Target struct {
	// Profile is a profile identifier or alias; unknown values build the universal module.
	Profile string `yaml:"profile" validate:"required"`
	// APILevel is the platform API level; zero uses the profile default.
	APILevel int `yaml:"api_level" validate:"min=0,max=99"`
}

const (
	// DefaultConfigFilename is the configuration file read when no path is given.
	DefaultConfigFilename = "adbroot-builder.yaml"
	// DefaultOutputDir is where archives are written by default.
	DefaultOutputDir = "dist"
	// DefaultFilePermissions is the permission of saved configuration files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

//nolint:gochecknoglobals // Validator caches struct metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the settings that reproduce the standard batch:
// Android 9, 10, 11, 12 and the universal module.
func Default() *Config {
	return &Config{
		OutputDir:        DefaultOutputDir,
		Author:           profile.DefaultAuthor,
		VersionPrefix:    profile.DefaultVersionPrefix,
		MinLoaderVersion: profile.DefaultMinLoaderVersion,
		CompressionLevel: archive.DefaultLevel,
		LogLevel:         "info",
		Targets: []Target{
			{Profile: string(profile.V9), APILevel: 28},
			{Profile: string(profile.V10), APILevel: 29},
			{Profile: string(profile.V11And12), APILevel: 30},
			{Profile: string(profile.V11And12), APILevel: 31},
			{Profile: string(profile.Universal), APILevel: 35},
		},
	}
}

// Load reads configuration from path over the defaults and validates it.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	if err = decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists. A missing file yields Default when
// path is the default filename, and an error when the caller named it explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}

	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}

	return nil, err
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings against their struct tags.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	return nil
}
