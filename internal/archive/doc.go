// Package archive assembles module zip files from an ordered manifest.
//
// Entries are Deflate-compressed at a fixed level with fixed timestamps and
// permissions, so the same manifest always yields the same bytes. Each build
// is staged next to the destination, read back and checked against the
// manifest before it replaces the destination.
package archive
