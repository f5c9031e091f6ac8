package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// IndexFilename is the name of the index file written into the output directory.
const IndexFilename = "adbroot-release.yaml"

// indexMode is the permission of the published index.
const indexMode os.FileMode = 0o644

// Module describes one published archive.
type Module struct {
	// Archive is the archive file name, relative to the index.
	Archive string `yaml:"archive"`
	// Profile is the identifier the module was built from.
	Profile string `yaml:"profile"`
	// APILevel is the platform level the module was generated for.
	APILevel int `yaml:"api_level"`
	// Size is the archive size in bytes.
	Size int64 `yaml:"size"`
	// SHA256 is the hex digest of the archive.
	SHA256 string `yaml:"sha256"`
	// Entries is the number of files in the archive.
	Entries int `yaml:"entries"`
	// Signature is the detached signature file name, if any.
	Signature string `yaml:"signature,omitempty"`
}

// Index lists published modules ordered by archive name.
type Index struct {
	// Modules are the published archives.
	Modules []Module `yaml:"modules"`
}

// Upsert adds m or replaces the module with the same archive name.
func (i *Index) Upsert(m Module) {
	idx := slices.IndexFunc(i.Modules, func(existing Module) bool {
		return existing.Archive == m.Archive
	})

	if idx >= 0 {
		i.Modules[idx] = m
	} else {
		i.Modules = append(i.Modules, m)
	}

	slices.SortFunc(i.Modules, func(a, b Module) int {
		return strings.Compare(a.Archive, b.Archive)
	})
}

// Remove drops the module published under archive and reports whether it was listed.
func (i *Index) Remove(archive string) bool {
	before := len(i.Modules)

	i.Modules = slices.DeleteFunc(i.Modules, func(m Module) bool {
		return m.Archive == archive
	})

	return len(i.Modules) != before
}

// Lookup returns the module published under archive.
func (i *Index) Lookup(archive string) (Module, bool) {
	for _, m := range i.Modules {
		if m.Archive == archive {
			return m, true
		}
	}

	return Module{}, false
}

// Repository defines persistence operations for the release index.
type Repository interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, index *Index) error
}

// FileRepository persists the index to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the index file.
	path string
	// mu protects concurrent access to the index file.
	mu sync.Mutex
}

// ErrNotFound is returned when the index file does not exist yet.
var ErrNotFound = errors.New("release index not found")

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the index location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the index from disk.
func (r *FileRepository) Load(_ context.Context) (*Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read release index: %w", err)
	}

	index := new(Index)

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	if err = decoder.Decode(index); err != nil {
		return nil, fmt.Errorf("decode release index: %w", err)
	}

	return index, nil
}

// Save writes the index next to its final location and renames it into place.
func (r *FileRepository) Save(_ context.Context, index *Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode release index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create release index: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write release index: %w", err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close release index: %w", err)
	}

	if err = os.Chmod(tmpName, indexMode); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("chmod release index: %w", err)
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("move release index into place: %w", err)
	}

	return nil
}
