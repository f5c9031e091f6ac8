// Package shell statically checks generated installer scripts.
//
// Scripts are parsed with mvdan.cc/sh in POSIX mode; nothing is ever run.
package shell
