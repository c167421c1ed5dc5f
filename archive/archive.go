// Package archive reads named records from a serialized module container.
package archive

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrRecordNotFound     = errors.New("archive: record not found")
	ErrUnsupportedVersion = errors.New("archive: unsupported format version")
	ErrShortRead          = errors.New("archive: short read")
)

// MaxSupportedVersion is the newest container version this reader accepts.
const MaxSupportedVersion = 3

// Reader gives access to the records of one archive.
type Reader interface {
	// Name identifies the archive in errors and logs.
	Name() string
	HasRecord(name string) bool
	// GetRecord returns the whole record; a missing record yields
	// ErrRecordNotFound and an incomplete read fails.
	GetRecord(name string) ([]byte, error)
	// RecordNames lists records sorted alphabetically.
	RecordNames() []string
}

// Memory is an in-memory Reader.
type Memory struct {
	name    string
	records map[string][]byte
}

var _ Reader = (*Memory)(nil)

// NewMemory returns a Reader over records. The map is copied.
func NewMemory(name string, records map[string][]byte) *Memory {
	copied := make(map[string][]byte, len(records))
	for key, value := range records {
		copied[key] = append([]byte(nil), value...)
	}
	return &Memory{name: name, records: copied}
}

func (m *Memory) Name() string {
	return m.name
}

func (m *Memory) HasRecord(name string) bool {
	_, ok := m.records[name]
	return ok
}

func (m *Memory) GetRecord(name string) ([]byte, error) {
	data, ok := m.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) RecordNames() []string {
	names := make([]string, 0, len(m.records))
	for name := range m.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
