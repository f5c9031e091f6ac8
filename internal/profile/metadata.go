package profile

import (
	"strconv"
	"strings"
)

// Metadata is the module descriptor written to module.prop.
type Metadata struct {
	// ID is the loader-visible module id, e.g. adb_root_android10.
	ID string
	// Name is the human-readable module name.
	Name string
	// Version is the display version, e.g. v2.0-android10.
	Version string
	// VersionCode is the numeric version; the API level the module was built for.
	VersionCode int
	// Author is credited in the loader UI.
	Author string
	// MinLoader is the lowest loader version code the module supports.
	MinLoader int
	// Description is a one-line summary.
	Description string
}

// newMetadata fills the descriptor for a release slug.
func newMetadata(slug string, apiLevel int, opts *options) Metadata {
	label := strings.ToUpper(slug)

	return Metadata{
		ID:          "adb_root_" + slug,
		Name:        "ADB Root Enhanced - " + label,
		Version:     opts.versionPrefix + "-" + slug,
		VersionCode: apiLevel,
		Author:      opts.author,
		MinLoader:   opts.minLoader,
		Description: "ADB Root for " + label +
			` with version-specific optimizations. Allows "adb root" regardless of build configuration.`,
	}
}

// String renders module.prop as key=value lines in the order the loader documents them.
func (m Metadata) String() string {
	pairs := [][2]string{
		{"id", m.ID},
		{"name", m.Name},
		{"version", m.Version},
		{"versionCode", strconv.Itoa(m.VersionCode)},
		{"author", m.Author},
		{"minMagisk", strconv.Itoa(m.MinLoader)},
		{"description", m.Description},
	}

	var b strings.Builder
	for _, pair := range pairs {
		b.WriteString(pair[0])
		b.WriteByte('=')
		b.WriteString(singleLine(pair[1]))
		b.WriteByte('\n')
	}

	return b.String()
}

// singleLine keeps a property value on one line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
