package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

// VersionRecord holds the decimal container version when present.
const VersionRecord = "version"

// Zip reads records from a zip container. When every entry sits under one
// top-level directory that directory is stripped and becomes the archive
// name.
type Zip struct {
	name    string
	files   map[string]*zip.File
	closer  io.Closer
	version int
}

var _ Reader = (*Zip)(nil)

// OpenFile opens a zip archive from disk. Close releases the file.
func OpenFile(filename string) (*Zip, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("archive: stat %s: %w", filename, err)
	}
	z, err := newZip(f, info.Size(), strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	z.closer = f
	return z, nil
}

// NewReader buffers an input stream and reads it as a zip archive.
func NewReader(r io.Reader) (*Zip, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("archive: read stream: %w", err)
	}
	return newZip(bytes.NewReader(data), int64(len(data)), "stream")
}

// NewReaderAt reads a zip archive from a random-access reader.
func NewReaderAt(ra io.ReaderAt, size int64) (*Zip, error) {
	return newZip(ra, size, "archive")
}

func newZip(ra io.ReaderAt, size int64, fallbackName string) (*Zip, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("archive: invalid container: %w", err)
	}
	prefix := commonRoot(zr.File)
	name := fallbackName
	if prefix != "" {
		name = strings.TrimSuffix(prefix, "/")
	}
	z := &Zip{name: name, files: make(map[string]*zip.File, len(zr.File))}
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		z.files[strings.TrimPrefix(file.Name, prefix)] = file
	}
	if err := z.checkVersion(); err != nil {
		return nil, err
	}
	return z, nil
}

func commonRoot(files []*zip.File) string {
	root := ""
	for _, file := range files {
		head, _, nested := strings.Cut(file.Name, "/")
		if !nested {
			return ""
		}
		if root == "" {
			root = head
			continue
		}
		if head != root {
			return ""
		}
	}
	if root == "" {
		return ""
	}
	return root + "/"
}

func (z *Zip) checkVersion() error {
	if !z.HasRecord(VersionRecord) {
		return nil
	}
	raw, err := z.GetRecord(VersionRecord)
	if err != nil {
		return err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, strings.TrimSpace(string(raw)))
	}
	if version < 1 || version > MaxSupportedVersion {
		return fmt.Errorf("%w: %d (supported 1-%d)", ErrUnsupportedVersion, version, MaxSupportedVersion)
	}
	z.version = version
	return nil
}

// Version returns the container version or 0 when no version record exists.
func (z *Zip) Version() int {
	return z.version
}

func (z *Zip) Name() string {
	return z.name
}

func (z *Zip) HasRecord(name string) bool {
	_, ok := z.files[name]
	return ok
}

func (z *Zip) GetRecord(name string) ([]byte, error) {
	file, ok := z.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, name)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open record %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: read record %s: %w", name, err)
	}
	if uint64(len(data)) != file.UncompressedSize64 {
		return nil, fmt.Errorf("%w: record %s: got %d of %d bytes", ErrShortRead, name, len(data), file.UncompressedSize64)
	}
	return data, nil
}

func (z *Zip) RecordNames() []string {
	names := make([]string, 0, len(z.files))
	for name := range z.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases the underlying file when the archive was opened from disk.
func (z *Zip) Close() error {
	if z.closer == nil {
		return nil
	}
	err := z.closer.Close()
	z.closer = nil
	return err
}
