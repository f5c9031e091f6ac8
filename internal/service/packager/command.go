package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/config"
	"github.com/oshokin/adbroot-builder/internal/logger"
	"github.com/oshokin/adbroot-builder/internal/module"
	"github.com/oshokin/adbroot-builder/internal/profile"
	"github.com/oshokin/adbroot-builder/internal/repository/release"
	"github.com/oshokin/adbroot-builder/internal/shell"
	"github.com/oshokin/adbroot-builder/internal/signing"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Config holds the validated build settings, including the targets to build.
	Config *config.Config
	// Passphrase unlocks an encrypted signing key.
	Passphrase []byte
}

// packager builds one module archive per target.
// It is unexported; callers should use Run, which encapsulates setup and validation.
type packager struct {
	// cfg holds the build settings.
	cfg *config.Config
	// resolver generates artifact sets with the configured metadata defaults.
	resolver *profile.Resolver
	// assembler writes manifests into archives.
	assembler *archive.Assembler
	// signer signs finished archives; nil when signing is disabled.
	signer *signing.Signer
	// manifestOpts are applied to every manifest.
	manifestOpts []module.ManifestOption
	// releases records successfully built archives.
	releases release.Repository
}

// installerEntryPoint must be invoked by every generated installer.
const installerEntryPoint = "install_module"

var (
	// ErrSomeFailed is returned by Run when at least one target failed.
	ErrSomeFailed = errors.New("some modules failed to build")
	// errOptionsNotSet is returned when Run is called without settings.
	errOptionsNotSet = errors.New("packager options are not set")
)

// Run builds every configured target sequentially and returns the per-target reports.
// A failing target never stops the batch; Run wraps ErrSomeFailed when any target failed.
func Run(ctx context.Context, opts *Options) (*Summary, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "adbroot-builder")

	if opts == nil || opts.Config == nil {
		return nil, errOptionsNotSet
	}

	if err := config.Validate(opts.Config); err != nil {
		return nil, err
	}

	pkg, err := newPackager(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	summary := pkg.Run(ctx)
	pkg.printSummary(ctx, summary)

	if err = pkg.publish(ctx, summary); err != nil {
		return summary, fmt.Errorf("record release index: %w", err)
	}

	if summary.Succeeded < summary.Total {
		return summary, fmt.Errorf("%w: %d of %d", ErrSomeFailed, summary.Total-summary.Succeeded, summary.Total)
	}

	return summary, nil
}

// newPackager wires the resolver, assembler and optional signer from the settings.
func newPackager(ctx context.Context, opts *Options) (*packager, error) {
	cfg := opts.Config

	missing := archive.Lenient
	if cfg.Strict {
		missing = archive.Strict
	}

	pkg := &packager{
		cfg: cfg,
		resolver: profile.NewResolver(
			profile.WithAuthor(cfg.Author),
			profile.WithVersionPrefix(cfg.VersionPrefix),
			profile.WithMinLoaderVersion(cfg.MinLoaderVersion),
		),
		assembler: archive.NewAssembler(
			archive.WithLevel(cfg.CompressionLevel),
			archive.WithMissingPolicy(missing),
		),
		releases: release.NewFileRepository(filepath.Join(cfg.OutputDir, release.IndexFilename)),
	}

	if cfg.PayloadFile != "" {
		pkg.manifestOpts = append(pkg.manifestOpts, module.WithPayloadFile(cfg.PayloadFile))
	}

	for _, extra := range cfg.Extras {
		pkg.manifestOpts = append(pkg.manifestOpts, module.WithExtras(module.Extra{
			Source: extra.Source,
			Path:   extra.Path,
		}))
	}

	if cfg.SigningKey != "" {
		signer, err := signing.LoadSigner(cfg.SigningKey, opts.Passphrase)
		if err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Archives will be signed", "key_id", signer.KeyID())

		pkg.signer = signer
	}

	logger.DebugKV(ctx, "Packager configured",
		"output_dir", cfg.OutputDir,
		"missing_policy", missing.String(),
		"compression_level", cfg.CompressionLevel,
		"targets", len(cfg.Targets))

	return pkg, nil
}

// Run builds each target in order and collects the reports.
func (p *packager) Run(ctx context.Context) *Summary {
	var (
		summary      = new(Summary)
		destinations = make(map[string]struct{}, len(p.cfg.Targets))
	)

	logger.Info(ctx, "Preparing modules")

	for _, target := range p.cfg.Targets {
		report := p.buildTarget(ctx, target, destinations)
		if report == nil {
			continue
		}

		summary.add(report)
	}

	return summary
}

// buildTarget resolves, assembles, checks and signs one module.
// It returns nil when the target duplicates an earlier destination in the batch.
func (p *packager) buildTarget(ctx context.Context, target config.Target, destinations map[string]struct{}) *Report {
	id, known := profile.ParseIdentifier(target.Profile)
	ctx = logger.WithKV(ctx, "profile", id.String(), "api_level", target.APILevel)

	if !known {
		logger.WarnKV(ctx, "Unknown profile, building the universal module", "requested", target.Profile)
	}

	set, warnings := p.resolver.Resolve(id, target.APILevel)
	for _, warning := range warnings {
		logger.WarnKV(ctx, "API level does not match profile", "detail", warning.String())
	}

	report := &Report{
		Target:      target,
		Identifier:  set.Identifier,
		APILevel:    set.APILevel,
		Destination: filepath.Join(p.cfg.OutputDir, module.ArchiveName(set)),
		Warnings:    warnings,
	}

	if _, ok := destinations[report.Destination]; ok {
		logger.WarnKV(ctx, "Destination already built in this run, skipping target", "archive", report.Destination)

		return nil
	}

	destinations[report.Destination] = struct{}{}

	if err := ctx.Err(); err != nil {
		report.Err = err

		return report
	}

	logger.InfoKV(ctx, "Building module", "archive", report.Destination)

	report.Err = p.build(ctx, set, report)

	return report
}

// build performs the fallible steps of one target and fills report on success.
// Every check that can reject the module runs before the archive replaces a previous build.
func (p *packager) build(ctx context.Context, set *profile.ArtifactSet, report *Report) error {
	if err := shell.Validate(module.InstallerPath, set.InstallerScript, installerEntryPoint); err != nil {
		return fmt.Errorf("installer check: %w", err)
	}

	manifest := module.NewManifest(set, p.manifestOpts...)
	if err := module.VerifyManifest(set, manifest); err != nil {
		return err
	}

	var signature []byte

	checks := []archive.Check{
		func(_ string, listing []archive.EntryInfo) error {
			return module.VerifyListing(set, listing)
		},
	}

	if p.signer != nil {
		checks = append(checks, func(stagingPath string, _ []archive.EntryInfo) error {
			var err error

			signature, err = p.signer.Sign(stagingPath)
			if err != nil {
				return fmt.Errorf("sign: %w", err)
			}

			return nil
		})
	}

	result, err := p.assembler.Assemble(ctx, manifest, report.Destination, checks...)
	if err != nil {
		return fmt.Errorf("assemble: %w", err)
	}

	sigPath := result.Path + signing.SignatureExt

	if p.signer == nil {
		// A signature left by an earlier signed build no longer matches.
		p.discard(ctx, sigPath)

		report.Result = result

		return nil
	}

	if report.Signature, err = signing.WriteSignature(result.Path, signature); err != nil {
		p.discard(ctx, result.Path)
		p.discard(ctx, sigPath)

		return fmt.Errorf("write signature: %w", err)
	}

	report.Result = result

	return nil
}

// discard removes an archive or signature that must not be reported as usable.
func (p *packager) discard(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.ErrorKV(ctx, "Failed to remove rejected file", "path", path, "error", err)
	}
}

// publish brings the release index in line with summary: verified archives are
// upserted, and entries of failed targets whose archive is gone are dropped.
// Nothing is written when the index would not change.
func (p *packager) publish(ctx context.Context, summary *Summary) error {
	index, err := p.releases.Load(ctx)
	if errors.Is(err, release.ErrNotFound) {
		index = new(release.Index)
	} else if err != nil {
		return err
	}

	changed := false

	for _, report := range summary.Reports {
		if !report.Succeeded() {
			if _, statErr := os.Stat(report.Destination); errors.Is(statErr, os.ErrNotExist) &&
				index.Remove(filepath.Base(report.Destination)) {
				p.discard(ctx, report.Destination+signing.SignatureExt)
				logger.WarnKV(ctx, "Removed missing archive from release index", "archive", report.Destination)

				changed = true
			}

			continue
		}

		published := release.Module{
			Archive:  filepath.Base(report.Result.Path),
			Profile:  report.Identifier.String(),
			APILevel: report.APILevel,
			Size:     report.Result.Size,
			SHA256:   report.Result.SHA256,
			Entries:  len(report.Result.Entries),
		}

		if report.Signature != "" {
			published.Signature = filepath.Base(report.Signature)
		}

		index.Upsert(published)

		changed = true
	}

	if !changed {
		return nil
	}

	if err = p.releases.Save(ctx, index); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Release index updated", "path", filepath.Join(p.cfg.OutputDir, release.IndexFilename), "modules", len(index.Modules))

	return nil
}

// printSummary logs a pass/fail line per target, the verified listing and the final count.
func (p *packager) printSummary(ctx context.Context, summary *Summary) {
	for _, report := range summary.Reports {
		if !report.Succeeded() {
			logger.ErrorKV(ctx, "FAIL",
				"profile", report.Identifier.String(),
				"archive", report.Destination,
				"error", report.Err)

			continue
		}

		logger.InfoKV(ctx, "OK",
			"profile", report.Identifier.String(),
			"archive", report.Result.Path,
			"bytes", report.Result.Size,
			"sha256", report.Result.SHA256)

		var listing strings.Builder
		for i, entry := range report.Result.Entries {
			if i > 0 {
				listing.WriteString(",\n")
			}

			fmt.Fprintf(&listing, "  %s (%d bytes)", entry.Name, entry.Size)
		}

		logger.Infof(ctx, "Contents of %s:\n%s", filepath.Base(report.Result.Path), listing.String())

		for _, skipped := range report.Result.Skipped {
			logger.WarnKV(ctx, "Entry skipped", "archive", report.Result.Path, "entry", skipped)
		}

		if report.Signature != "" {
			logger.InfoKV(ctx, "Signature written", "path", report.Signature)
		}
	}

	logger.Infof(ctx, "Built %d of %d packages", summary.Succeeded, summary.Total)
}
