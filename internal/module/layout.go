package module

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/oshokin/adbroot-builder/internal/archive"
	"github.com/oshokin/adbroot-builder/internal/profile"
)

// In-archive paths required by the loader. They must match exactly.
const (
	// InstallerPath is the loader entry point.
	InstallerPath = "META-INF/com/google/android/update-binary"
	// MarkerPath holds the marker required by the loader's zip format.
	MarkerPath = "META-INF/com/google/android/updater-script"
	// PropPath is the module descriptor.
	PropPath = "module.prop"
	// PolicyPath holds the access-grant statements.
	PolicyPath = "sepolicy.rule"
	// PayloadPath is the replacement adbd binary.
	PayloadPath = profile.PayloadPath

	// MarkerContent is the literal content of the updater-script marker.
	MarkerContent = "#MAGISK\n"

	// ArchiveExt is the extension of produced modules.
	ArchiveExt = ".zip"
)

// Extra is an additional file copied into the module, such as documentation.
type Extra struct {
	// Source is the file on disk.
	Source string
	// Path is the in-archive destination; empty means the source base name.
	Path string
}

// ParseExtra parses "source[:dest]".
func ParseExtra(s string) Extra {
	source, dest, _ := strings.Cut(s, ":")

	return Extra{Source: source, Path: dest}
}

// dest returns the in-archive destination of e.
func (e Extra) dest() string {
	if e.Path != "" {
		return strings.TrimPrefix(path.Clean(filepath.ToSlash(e.Path)), "/")
	}

	return filepath.Base(e.Source)
}

// ArchiveName returns the file name of the module built from set,
// e.g. adb_root_android10-v2.0-android10.zip.
func ArchiveName(set *profile.ArtifactSet) string {
	return fmt.Sprintf("%s-%s%s", set.Metadata.ID, set.Metadata.Version, ArchiveExt)
}

// RequiredPaths lists the entries every module contains, in archive order.
func RequiredPaths() []string {
	return []string{InstallerPath, MarkerPath, PropPath, PolicyPath}
}

// ManifestOption configures NewManifest.
type ManifestOption func(*manifestOptions)

// manifestOptions holds what NewManifest adds beyond the artifact set.
type manifestOptions struct {
	// payloadFile replaces the placeholder payload content.
	payloadFile string
	// extras are appended after the payload.
	extras []Extra
}

// WithPayloadFile ships the file at path as the replacement binary.
// It has no effect for profiles that ship no payload.
func WithPayloadFile(path string) ManifestOption {
	return func(o *manifestOptions) {
		o.payloadFile = path
	}
}

// WithExtras appends additional files after the payload.
func WithExtras(extras ...Extra) ManifestOption {
	return func(o *manifestOptions) {
		o.extras = append(o.extras, extras...)
	}
}

// NewManifest lays out set in the order the loader expects: installer, marker,
// module.prop, sepolicy.rule, then payload entries and extras.
func NewManifest(set *profile.ArtifactSet, opts ...ManifestOption) *archive.Manifest {
	var o manifestOptions
	for _, opt := range opts {
		opt(&o)
	}

	m := new(archive.Manifest).
		Add(InstallerPath, archive.String(set.InstallerScript), archive.ModeExecutable).
		Add(MarkerPath, archive.String(MarkerContent), archive.ModeFile).
		Add(PropPath, archive.String(set.Metadata.String()), archive.ModeFile).
		Add(PolicyPath, archive.String(set.PolicyRules), archive.ModeFile)

	for _, entry := range set.Payload {
		src := archive.Bytes(entry.Content)
		if o.payloadFile != "" && entry.Path == PayloadPath {
			src = archive.File(o.payloadFile)
		}

		m.Add(entry.Path, src, archive.ModeExecutable)
	}

	for _, extra := range o.extras {
		m.Add(extra.dest(), archive.File(extra.Source), archive.ModeFile)
	}

	return m
}

// VerifyManifest applies the VerifyListing rules to m before anything is written,
// so a module that would be rejected never replaces a previous build.
func VerifyManifest(set *profile.ArtifactSet, m *archive.Manifest) error {
	return verifyNames(set, m.Paths())
}

// VerifyListing checks that listing, read back from a built archive, starts with the
// required entries and carries no payload for profiles that must not ship one.
// A failure wraps archive.ErrVerificationMismatch.
func VerifyListing(set *profile.ArtifactSet, listing []archive.EntryInfo) error {
	names := make([]string, 0, len(listing))
	for _, entry := range listing {
		names = append(names, entry.Name)
	}

	return verifyNames(set, names)
}

// verifyNames implements VerifyManifest and VerifyListing over entry names in archive order.
func verifyNames(set *profile.ArtifactSet, names []string) error {
	required := RequiredPaths()
	if len(names) < len(required) {
		return fmt.Errorf("%w: %d entries, at least %d required",
			archive.ErrVerificationMismatch, len(names), len(required))
	}

	for i, name := range required {
		if names[i] != name {
			return fmt.Errorf("%w: entry %d is %q, expected %q",
				archive.ErrVerificationMismatch, i, names[i], name)
		}
	}

	if profile.Lookup(set.Identifier).Payload != profile.PayloadNone {
		return nil
	}

	if slices.Contains(names, PayloadPath) {
		return fmt.Errorf("%w: %s must not ship %s",
			archive.ErrVerificationMismatch, set.Identifier, PayloadPath)
	}

	return nil
}
