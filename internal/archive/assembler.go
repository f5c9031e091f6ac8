package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/oshokin/adbroot-builder/internal/logger"
)

// MissingPolicy decides what happens when a file source does not exist.
type MissingPolicy int

const (
	// Lenient skips the entry with a warning and keeps building.
	Lenient MissingPolicy = iota
	// Strict aborts the archive; nothing is written.
	Strict
)

// String implements fmt.Stringer.
func (p MissingPolicy) String() string {
	if p == Strict {
		return "strict"
	}

	return "lenient"
}

const (
	// DefaultLevel is the Deflate level used when none is configured.
	DefaultLevel = flate.BestCompression
	// DefaultArchiveMode is the permission of produced archives.
	DefaultArchiveMode fs.FileMode = 0o644
	// dirMode is used when the destination directory has to be created.
	dirMode fs.FileMode = 0o750
)

// DefaultModTime is stamped on every entry so rebuilds are byte-identical.
//
//nolint:gochecknoglobals // Constant value; time.Time cannot be a const.
var DefaultModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	// ErrVerificationMismatch is returned when the written archive does not list what the manifest declared.
	ErrVerificationMismatch = errors.New("archive verification mismatch")
	// errContentDiffers is returned when a decompressed entry differs from its source.
	errContentDiffers = errors.New("content differs")
)

// Check inspects a staged archive before it replaces the destination.
// stagingPath holds the complete archive and listing its verified entries.
// A non-nil error discards the staged file and leaves the destination untouched.
type Check func(stagingPath string, listing []EntryInfo) error

// EntryInfo describes one entry read back from an archive.
type EntryInfo struct {
	// Name is the in-archive path.
	Name string
	// Size is the uncompressed size in bytes.
	Size uint64
	// CompressedSize is the stored size in bytes.
	CompressedSize uint64
	// CRC32 is the IEEE checksum of the uncompressed content.
	CRC32 uint32
	// Mode is the stored permission.
	Mode fs.FileMode
}

// Result reports a finished archive.
type Result struct {
	// Path is the destination archive.
	Path string
	// Size is the archive size in bytes.
	Size int64
	// SHA256 is the hex digest of the archive bytes.
	SHA256 string
	// Entries is the verified listing of the written archive.
	Entries []EntryInfo
	// Skipped lists manifest paths dropped under the lenient policy.
	Skipped []string
}

// Assembler writes manifests into zip archives.
type Assembler struct {
	// level is the Deflate compression level.
	level int
	// missing is the missing-source policy.
	missing MissingPolicy
	// modTime is stamped on every entry.
	modTime time.Time
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithLevel sets the Deflate level; values outside 1..9 keep the default.
func WithLevel(level int) AssemblerOption {
	return func(a *Assembler) {
		if level >= flate.BestSpeed && level <= flate.BestCompression {
			a.level = level
		}
	}
}

// WithMissingPolicy sets the missing-source policy.
func WithMissingPolicy(policy MissingPolicy) AssemblerOption {
	return func(a *Assembler) {
		a.missing = policy
	}
}

// WithModTime sets the timestamp stamped on entries.
func WithModTime(t time.Time) AssemblerOption {
	return func(a *Assembler) {
		if !t.IsZero() {
			a.modTime = t.UTC()
		}
	}
}

// NewAssembler creates an assembler with best compression, the lenient policy and a fixed timestamp.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		level:   DefaultLevel,
		missing: Lenient,
		modTime: DefaultModTime,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// loadedEntry is a manifest entry with its content in memory.
type loadedEntry struct {
	// path is the in-archive destination.
	path string
	// mode is the stored permission.
	mode fs.FileMode
	// data is the content.
	data []byte
}

// Assemble writes m to dest.
//
// Every source is loaded before anything touches the filesystem, so a strict
// failure leaves dest as it was. The archive is staged in a temporary file next
// to dest, read back and compared with the manifest, passed to checks in order,
// and only then renamed over dest. The temporary file is removed on every failure path.
func (a *Assembler) Assemble(ctx context.Context, m *Manifest, dest string, checks ...Check) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	entries, skipped, err := a.load(ctx, m)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: every entry was skipped", ErrInvalidManifest)
	}

	dest = filepath.Clean(dest)
	if err = os.MkdirAll(filepath.Dir(dest), dirMode); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	stagingPath := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			_ = os.Remove(stagingPath)
		}
	}()

	digest := sha256.New()

	if err = a.write(ctx, io.MultiWriter(tmp, digest), entries); err != nil {
		_ = tmp.Close()

		return nil, fmt.Errorf("write archive: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return nil, fmt.Errorf("sync archive: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	listing, err := verify(stagingPath, entries)
	if err != nil {
		return nil, err
	}

	for _, check := range checks {
		if err = check(stagingPath, listing); err != nil {
			return nil, err
		}
	}

	if err = os.Chmod(stagingPath, DefaultArchiveMode); err != nil {
		return nil, fmt.Errorf("chmod archive: %w", err)
	}

	if err = os.Rename(stagingPath, dest); err != nil {
		return nil, fmt.Errorf("move archive into place: %w", err)
	}

	committed = true

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &Result{
		Path:    dest,
		Size:    info.Size(),
		SHA256:  hex.EncodeToString(digest.Sum(nil)),
		Entries: listing,
		Skipped: skipped,
	}, nil
}

// load reads every source, applying the missing-source policy.
func (a *Assembler) load(ctx context.Context, m *Manifest) ([]loadedEntry, []string, error) {
	var (
		entries = make([]loadedEntry, 0, len(m.Entries))
		skipped []string
	)

	for i := range m.Entries {
		entry := &m.Entries[i]

		data, err := entry.Source.load()

		switch {
		case err == nil:
			entries = append(entries, loadedEntry{path: entry.Path, mode: entry.mode(), data: data})
		case errors.Is(err, ErrMissingSource) && a.missing == Lenient:
			logger.WarnKV(ctx, "Source file not found, skipping entry",
				"entry", entry.Path,
				"source", entry.Source.String())

			skipped = append(skipped, entry.Path)
		default:
			return nil, nil, fmt.Errorf("entry %s: %w", entry.Path, err)
		}
	}

	return entries, skipped, nil
}

// write streams entries into a zip archive in order.
func (a *Assembler) write(ctx context.Context, w io.Writer, entries []loadedEntry) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, a.level)
	})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()

			return err
		}

		//nolint:exhaustruct // Remaining header fields are derived by the writer.
		header := &zip.FileHeader{
			Name:     entry.path,
			Method:   zip.Deflate,
			Modified: a.modTime,
		}
		header.SetMode(entry.mode)

		fw, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()

			return fmt.Errorf("add %s: %w", entry.path, err)
		}

		if _, err = fw.Write(entry.data); err != nil {
			_ = zw.Close()

			return fmt.Errorf("write %s: %w", entry.path, err)
		}

		logger.DebugKV(ctx, "Added entry", "entry", entry.path, "bytes", len(entry.data))
	}

	return zw.Close()
}

// verify reopens the staged archive and checks names, order, sizes and checksums
// against the loaded entries. Each body is decompressed so a truncated stream is caught.
func verify(archivePath string, expected []loadedEntry) ([]EntryInfo, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: reopen: %w", ErrVerificationMismatch, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	if len(reader.File) != len(expected) {
		return nil, fmt.Errorf("%w: %d entries listed, %d expected",
			ErrVerificationMismatch, len(reader.File), len(expected))
	}

	listing := make([]EntryInfo, 0, len(reader.File))

	for i, file := range reader.File {
		want := expected[i]

		switch {
		case file.Name != want.path:
			return nil, fmt.Errorf("%w: entry %d is %q, expected %q",
				ErrVerificationMismatch, i, file.Name, want.path)
		case file.UncompressedSize64 != uint64(len(want.data)):
			return nil, fmt.Errorf("%w: %s has %d bytes, expected %d",
				ErrVerificationMismatch, file.Name, file.UncompressedSize64, len(want.data))
		case file.CRC32 != crc32.ChecksumIEEE(want.data):
			return nil, fmt.Errorf("%w: %s checksum differs", ErrVerificationMismatch, file.Name)
		}

		if err = readBack(file, want.data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrVerificationMismatch, file.Name, err)
		}

		listing = append(listing, infoOf(file))
	}

	return listing, nil
}

// readBack decompresses file and compares it with data.
func readBack(file *zip.File, data []byte) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = rc.Close()
	}()

	got, err := io.ReadAll(rc)
	if err != nil {
		return err
	}

	if !bytes.Equal(got, data) {
		return errContentDiffers
	}

	return nil
}

// List returns the entries of the archive at path in stored order.
func List(path string) ([]EntryInfo, error) {
	reader, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	listing := make([]EntryInfo, 0, len(reader.File))
	for _, file := range reader.File {
		listing = append(listing, infoOf(file))
	}

	return listing, nil
}

// infoOf converts a zip entry into EntryInfo.
func infoOf(file *zip.File) EntryInfo {
	return EntryInfo{
		Name:           file.Name,
		Size:           file.UncompressedSize64,
		CompressedSize: file.CompressedSize64,
		CRC32:          file.CRC32,
		Mode:           file.Mode().Perm(),
	}
}
