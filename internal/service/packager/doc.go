// Package packager builds the configured set of ADB root modules.
//
// For every target it resolves the version profile, checks the generated
// installer, lays out the manifest, assembles and verifies the archive and
// optionally signs it. Targets are independent: a failure is reported and
// counted, and the remaining targets are still built.
package packager
