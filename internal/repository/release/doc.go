// Package release persists the index of built modules.
//
// The FileRepository stores the index as YAML next to the archives and exposes a
// Repository interface that the packager depends on.
package release
