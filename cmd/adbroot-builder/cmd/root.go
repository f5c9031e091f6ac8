package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/config"
	"github.com/oshokin/adbroot-builder/internal/logger"
	"github.com/oshokin/adbroot-builder/internal/module"
	"github.com/oshokin/adbroot-builder/internal/service/packager"
	"github.com/oshokin/adbroot-builder/internal/signing"
	"github.com/oshokin/adbroot-builder/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// outputDir overrides the configured output directory.
	outputDir string
	// strict fails an archive when a referenced file is missing.
	strict bool
	// payloadFile is the patched adbd binary shipped instead of the placeholder.
	payloadFile string
	// extras are additional files in "source[:dest]" form.
	extras []string
	// compressionLevel overrides the configured Deflate level.
	compressionLevel int
	// signingKey is the armored OpenPGP private key used to sign archives.
	signingKey string
	// logLevel overrides the configured log level.
	logLevel string

	// errInvalidTarget is returned for a malformed profile[:api-level] argument.
	errInvalidTarget = errors.New("invalid target, expected profile[:api-level]")

	// rootCmd represents the base command that builds the module batch.
	rootCmd = &cobra.Command{
		Use:   "adbroot-builder [profile[:api-level]...]",
		Short: "Build ADB root modules for Magisk",
		Long: "Build one installable Magisk module per target. Without arguments the targets " +
			"come from the configuration file, or the standard Android 9 to 12 and universal batch.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := config.LoadOrDefault(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}

			if err = applyFlags(cmd, cfg, args); err != nil {
				return err
			}

			if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
				logger.SetLevel(level)
			}

			options := &packager.Options{
				Config:     cfg,
				Passphrase: []byte(os.Getenv(signing.PassphraseEnv)),
			}

			_, err = packager.Run(ctx, options)

			return err
		},
	}
)

// applyFlags overrides configuration values with explicitly set flags and arguments.
func applyFlags(cmd *cobra.Command, cfg *config.Config, args []string) error {
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}

	if flags.Changed("strict") {
		cfg.Strict = strict
	}

	if flags.Changed("payload") {
		cfg.PayloadFile = payloadFile
	}

	if flags.Changed("level") {
		cfg.CompressionLevel = compressionLevel
	}

	if flags.Changed("sign-key") {
		cfg.SigningKey = signingKey
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	for _, raw := range extras {
		extra := module.ParseExtra(raw)
		cfg.Extras = append(cfg.Extras, config.Extra{Source: extra.Source, Path: extra.Path})
	}

	if len(args) == 0 {
		return nil
	}

	targets := make([]config.Target, 0, len(args))

	for _, arg := range args {
		target, err := parseTarget(arg)
		if err != nil {
			return err
		}

		targets = append(targets, target)
	}

	cfg.Targets = targets

	return nil
}

// parseTarget parses "profile[:api-level]". A missing level selects the profile default.
func parseTarget(arg string) (config.Target, error) {
	name, level, hasLevel := strings.Cut(arg, ":")
	if strings.TrimSpace(name) == "" {
		return config.Target{}, fmt.Errorf("%w: %q", errInvalidTarget, arg)
	}

	target := config.Target{Profile: name}
	if !hasLevel {
		return target, nil
	}

	apiLevel, err := strconv.Atoi(level)
	if err != nil || apiLevel < 0 {
		return config.Target{}, fmt.Errorf("%w: %q", errInvalidTarget, arg)
	}

	target.APILevel = apiLevel

	return target, nil
}

// Execute runs the adbroot-builder CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&outputDir, "output", "o", config.DefaultOutputDir, "directory for generated archives")
	flags.BoolVar(&strict, "strict", false, "fail an archive when a referenced file is missing")
	flags.StringVar(&payloadFile, "payload", "", "patched adbd binary shipped instead of the placeholder")
	flags.StringSliceVar(&extras, "extra", nil, "additional file as source[:dest], repeatable")
	flags.IntVar(&compressionLevel, "level", archive.DefaultLevel, "deflate compression level, 1 to 9")
	flags.StringVar(&signingKey, "sign-key", "", "armored OpenPGP private key; passphrase is read from "+signing.PassphraseEnv)
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.Version = version.Short()

	rootCmd.AddCommand(profilesCmd, inspectCmd, initCmd)
	version.AttachCobraVersionCommand(rootCmd)
}
