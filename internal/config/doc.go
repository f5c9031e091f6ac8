// Package config defines the builder settings and provides helpers to load,
// validate and save them in YAML format.
//
// Settings cover the output directory, module metadata defaults, the
// missing-file policy, compression, optional payload, extras and signing key,
// and the list of targets to build.
package config
