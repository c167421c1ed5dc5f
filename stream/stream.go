// Package stream defines the contract between the module deserializer and
// the value-stream interpreter that turns a record's bytes into values.
package stream

import (
	"errors"
	"io"

	"github.com/goliatone/go-scriptload/ivalue"
)

// ErrMalformed is matched by decoder errors that describe a record which is
// not a well-formed value stream, as opposed to callback failures.
var ErrMalformed = errors.New("stream: malformed record")

// ClassResolver maps a qualified class name to its resolved type.
type ClassResolver func(name ivalue.QualifiedName) (*ivalue.StrongType, error)

// ObjectLoader builds an instance of t from the decoded raw state.
type ObjectLoader func(t *ivalue.StrongType, raw any) (*ivalue.Object, error)

// RecordReader reads an out-of-band blob scoped to the record being decoded.
type RecordReader func(name string) ([]byte, error)

// ConstantLookup returns the constants table entry at index.
type ConstantLookup func(index int) (*ivalue.Tensor, error)

// Request is one top-level decode. Decoders call back into the resolver,
// loader, record reader and constants whenever the stream needs them and
// must return callback errors unchanged.
type Request struct {
	// Record names the record being decoded, for diagnostics.
	Record string
	// Source yields the record's bytes.
	Source io.Reader

	ResolveClass ClassResolver
	LoadObject   ObjectLoader
	ReadRecord   RecordReader
	Constant     ConstantLookup

	// Device, when set, overrides the device tag of every decoded tensor.
	Device *ivalue.Device
}

// Decoder interprets one value stream.
type Decoder interface {
	Decode(req Request) (any, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(req Request) (any, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(req Request) (any, error) {
	return f(req)
}
