package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrMissingSource is returned when a file source does not exist on disk.
	ErrMissingSource = errors.New("source file not found")
	// ErrInvalidManifest is returned for empty, unsafe or duplicated in-archive paths.
	ErrInvalidManifest = errors.New("invalid manifest")
)

const (
	// ModeFile is the permission of regular entries.
	ModeFile fs.FileMode = 0o644
	// ModeExecutable is the permission of scripts and binaries.
	ModeExecutable fs.FileMode = 0o755
)

// Source is the content of an entry: either bytes held in memory or a file on disk.
type Source struct {
	// data is the in-memory content.
	data []byte
	// file is the path of an on-disk source; empty for in-memory sources.
	file string
}

// Bytes returns an in-memory source.
func Bytes(data []byte) Source {
	return Source{data: data}
}

// String returns an in-memory source holding s.
func String(s string) Source {
	return Source{data: []byte(s)}
}

// File returns a source that is read from path when the archive is assembled.
func File(path string) Source {
	return Source{file: path}
}

// IsFile reports whether the source refers to a file on disk.
func (s Source) IsFile() bool {
	return s.file != ""
}

// String describes the source for logs.
func (s Source) String() string {
	if s.IsFile() {
		return s.file
	}

	return fmt.Sprintf("<%d bytes in memory>", len(s.data))
}

// load returns the source content. A missing file wraps ErrMissingSource.
func (s Source) load() ([]byte, error) {
	if !s.IsFile() {
		return s.data, nil
	}

	data, err := os.ReadFile(filepath.Clean(s.file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.file, ErrMissingSource)
	}

	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.file, err)
	}

	return data, nil
}

// Entry is one file to realize in the archive.
type Entry struct {
	// Path is the slash-separated destination inside the archive.
	Path string
	// Source provides the content.
	Source Source
	// Mode is the stored permission; zero means ModeFile.
	Mode fs.FileMode
}

// Manifest is the ordered list of entries for one archive. Archive order equals manifest order.
type Manifest struct {
	// Entries are written in this order.
	Entries []Entry
}

// Add appends an entry and returns the manifest for chaining.
func (m *Manifest) Add(dest string, src Source, mode fs.FileMode) *Manifest {
	m.Entries = append(m.Entries, Entry{Path: dest, Source: src, Mode: mode})

	return m
}

// Paths returns the destination paths in order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Entries))
	for _, entry := range m.Entries {
		paths = append(paths, entry.Path)
	}

	return paths
}

// Validate rejects empty manifests and empty, absolute, escaping or duplicated paths.
func (m *Manifest) Validate() error {
	if m == nil || len(m.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidManifest)
	}

	seen := make(map[string]struct{}, len(m.Entries))

	for _, entry := range m.Entries {
		name := entry.Path

		switch {
		case name == "":
			return fmt.Errorf("%w: empty path", ErrInvalidManifest)
		case strings.HasPrefix(name, "/"), strings.Contains(name, `\`):
			return fmt.Errorf("%w: %q is not a relative slash path", ErrInvalidManifest, name)
		case path.Clean(name) != name || name == "." || name == ".." || strings.HasPrefix(name, "../"):
			return fmt.Errorf("%w: %q is not a clean path", ErrInvalidManifest, name)
		}

		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: duplicate path %q", ErrInvalidManifest, name)
		}

		seen[name] = struct{}{}
	}

	return nil
}

// mode returns the entry permission, defaulting to ModeFile.
func (e *Entry) mode() fs.FileMode {
	if e.Mode == 0 {
		return ModeFile
	}

	return e.Mode.Perm()
}
