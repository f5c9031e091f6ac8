package profile

import (
	"fmt"
	"strings"
)

const (
	// DefaultAuthor is credited in module.prop when no author is configured.
	DefaultAuthor = "adbroot-builder"
	// DefaultVersionPrefix precedes the release slug in the module version.
	DefaultVersionPrefix = "v2.0"
	// DefaultMinLoaderVersion is the oldest Magisk version code the installers accept (v20.4).
	DefaultMinLoaderVersion = 20400
)

// PayloadEntry is one file shipped in addition to the installer, metadata and policy.
type PayloadEntry struct {
	// Path is the in-archive destination.
	Path string
	// Content is the file body.
	Content []byte
}

// ArtifactSet is everything generated for one identifier and API level.
type ArtifactSet struct {
	// Identifier is the resolved identifier; unknown input is reported as Universal.
	Identifier Identifier
	// APILevel is the level the artifacts were generated for.
	APILevel int
	// Slug is the release name used in ids and file names.
	Slug string
	// InstallerScript is the update-binary text.
	InstallerScript string
	// Metadata is the module descriptor.
	Metadata Metadata
	// PolicyRules is the sepolicy.rule text: baseline first, profile blocks after.
	PolicyRules string
	// Payload is empty exactly when the profile's payload policy is PayloadNone.
	Payload []PayloadEntry
}

// Warning is a non-fatal mismatch between the declared API level and the profile.
type Warning struct {
	// Identifier is the resolved identifier.
	Identifier Identifier
	// APILevel is the level the caller declared.
	APILevel int
	// MinAPI and MaxAPI are the profile's expected bounds; zero means unbounded.
	MinAPI, MaxAPI int
}

// String implements fmt.Stringer.
func (w Warning) String() string {
	return fmt.Sprintf("API level %d is outside the expected range %s of profile %s",
		w.APILevel, formatRange(w.MinAPI, w.MaxAPI), w.Identifier)
}

// options holds metadata defaults applied by a Resolver.
type options struct {
	// author is written to module.prop.
	author string
	// versionPrefix precedes the slug in the module version.
	versionPrefix string
	// minLoader is the minimum loader version code.
	minLoader int
}

// Option configures a Resolver.
type Option func(*options)

// WithAuthor sets the module author.
func WithAuthor(author string) Option {
	return func(o *options) {
		if author = strings.TrimSpace(author); author != "" {
			o.author = author
		}
	}
}

// WithVersionPrefix sets the prefix of the module version string.
func WithVersionPrefix(prefix string) Option {
	return func(o *options) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			o.versionPrefix = prefix
		}
	}
}

// WithMinLoaderVersion sets the minimum loader version code.
func WithMinLoaderVersion(code int) Option {
	return func(o *options) {
		if code > 0 {
			o.minLoader = code
		}
	}
}

// Resolver turns identifiers into artifact sets. It holds no mutable state.
type Resolver struct {
	// opts are the metadata defaults.
	opts options
}

// NewResolver creates a resolver with the given options applied over the defaults.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		opts: options{
			author:        DefaultAuthor,
			versionPrefix: DefaultVersionPrefix,
			minLoader:     DefaultMinLoaderVersion,
		},
	}

	for _, opt := range opts {
		opt(&r.opts)
	}

	return r
}

// Resolve generates the artifact set for id using the default resolver.
func Resolve(id Identifier, apiLevel int) (*ArtifactSet, []Warning) {
	return NewResolver().Resolve(id, apiLevel)
}

// Resolve generates the artifact set for id.
//
// Unknown identifiers produce the Universal set. A non-positive apiLevel selects the
// profile's default level. The API level never changes which profile is used; it only
// feeds generated text and the range check behind the returned warnings.
func (r *Resolver) Resolve(id Identifier, apiLevel int) (*ArtifactSet, []Warning) {
	p := Lookup(id)

	var warnings []Warning

	if apiLevel <= 0 {
		apiLevel = p.DefaultAPI
	} else if !p.ExpectsAPI(apiLevel) {
		warnings = append(warnings, Warning{
			Identifier: p.ID,
			APILevel:   apiLevel,
			MinAPI:     p.MinAPI,
			MaxAPI:     p.MaxAPI,
		})
	}

	slug := p.SlugFor(apiLevel)

	set := &ArtifactSet{
		Identifier:      p.ID,
		APILevel:        apiLevel,
		Slug:            slug,
		InstallerScript: buildInstaller(&p, apiLevel, r.opts.minLoader),
		Metadata:        newMetadata(slug, apiLevel, &r.opts),
		PolicyRules:     composePolicy(p.Policy),
	}

	if p.Payload == PayloadReplace {
		set.Payload = []PayloadEntry{
			{Path: PayloadPath, Content: placeholderPayload(slug)},
		}
	}

	return set, warnings
}

// placeholderPayload is shipped when no patched adbd binary is supplied.
// It logs its presence and exits non-zero so a missing real binary is visible on device.
func placeholderPayload(slug string) []byte {
	label := strings.ToUpper(slug)

	return []byte("#!/system/bin/sh\n" +
		"# Placeholder for " + slug + " enhanced adbd\n" +
		"# Replace with the patched binary before distribution\n" +
		`log -p i -t adbd "ADB Root Enhanced - ` + label + "\"\n" +
		"exit 1\n")
}

// formatRange renders API bounds for messages.
func formatRange(minAPI, maxAPI int) string {
	switch {
	case minAPI > 0 && maxAPI > 0 && minAPI == maxAPI:
		return fmt.Sprintf("[%d]", minAPI)
	case minAPI > 0 && maxAPI > 0:
		return fmt.Sprintf("[%d-%d]", minAPI, maxAPI)
	case minAPI > 0:
		return fmt.Sprintf("[%d+]", minAPI)
	case maxAPI > 0:
		return fmt.Sprintf("[..%d]", maxAPI)
	default:
		return "[any]"
	}
}

// APIRange renders p's expected API range, e.g. "[30-32]".
func (p *Profile) APIRange() string {
	return formatRange(p.MinAPI, p.MaxAPI)
}
