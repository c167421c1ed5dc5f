// Package fixture assembles small in-memory archives for tests.
package fixture

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/goliatone/go-scriptload/archive"
	"github.com/goliatone/go-scriptload/stream/cborstream"
)

// Archive collects records keyed by their name inside the archive.
type Archive struct {
	t       testing.TB
	records map[string][]byte
}

// New returns an empty archive builder.
func New(t testing.TB) *Archive {
	t.Helper()
	return &Archive{t: t, records: map[string][]byte{}}
}

// Source stores a class manifest under code/<path>.
func (a *Archive) Source(path, manifest string) *Archive {
	a.records["code/"+path] = []byte(manifest)
	return a
}

// Record stores raw bytes under name.
func (a *Archive) Record(name string, data []byte) *Archive {
	a.records[name] = append([]byte(nil), data...)
	return a
}

// Pickle encodes value as the top-level record <name>.pkl.
func (a *Archive) Pickle(name string, value any) *Archive {
	a.t.Helper()
	data, err := cbor.Marshal(value)
	if err != nil {
		a.t.Fatalf("fixture: encode %s: %v", name, err)
	}
	a.records[name+".pkl"] = data
	return a
}

// Storage stores tensor bytes for key, scoped to the top-level record.
func (a *Archive) Storage(record, key string, data []byte) *Archive {
	a.records[record+"/"+key] = append([]byte(nil), data...)
	return a
}

// Memory returns the records as an archive.Memory reader.
func (a *Archive) Memory(name string) *archive.Memory {
	return archive.NewMemory(name, a.records)
}

// Zip returns the records packed as a zip container under a root directory.
func (a *Archive) Zip(root string) []byte {
	a.t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := make([]string, 0, len(a.records))
	for name := range a.records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(root + "/" + name)
		if err != nil {
			a.t.Fatalf("fixture: zip entry %s: %v", name, err)
		}
		if _, err := w.Write(a.records[name]); err != nil {
			a.t.Fatalf("fixture: zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		a.t.Fatalf("fixture: close zip: %v", err)
	}
	return buf.Bytes()
}

// Object encodes an instance of class with the given state.
func Object(class string, state any) cbor.Tag {
	return cbor.Tag{Number: cborstream.TagObject, Content: []any{class, state}}
}

// Tensor encodes a tensor whose storage lives under key.
func Tensor(dtype string, shape []int, key string) cbor.Tag {
	dims := make([]any, len(shape))
	for i, d := range shape {
		dims[i] = d
	}
	return cbor.Tag{Number: cborstream.TagTensor, Content: map[string]any{
		"dtype": dtype,
		"shape": dims,
		"key":   key,
	}}
}

// Constant references entry index of the constants table.
func Constant(index int) cbor.Tag {
	return cbor.Tag{Number: cborstream.TagConstant, Content: index}
}

// Tuple encodes a fixed-arity tuple.
func Tuple(items ...any) cbor.Tag {
	if items == nil {
		items = []any{}
	}
	return cbor.Tag{Number: cborstream.TagTuple, Content: items}
}
