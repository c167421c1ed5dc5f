// Package cborstream decodes module records encoded as a single CBOR data
// item. Class instances, tensors, constants and tuples are carried by
// private tags; everything else maps onto plain CBOR types.
package cborstream

import (
	"fmt"
	"io"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/goliatone/go-scriptload/ivalue"
	"github.com/goliatone/go-scriptload/stream"
)

// Private tag numbers.
const (
	TagObject   uint64 = 49001
	TagTensor   uint64 = 49002
	TagConstant uint64 = 49003
	TagTuple    uint64 = 49004
)

// DefaultMaxDepth bounds nesting of containers and objects.
const DefaultMaxDepth = 256

var dtypeSizes = map[string]int64{
	"bool":     1,
	"uint8":    1,
	"int8":     1,
	"int16":    2,
	"float16":  2,
	"bfloat16": 2,
	"int32":    4,
	"float32":  4,
	"int64":    8,
	"float64":  8,
}

// SyntaxError reports a record that is not a well-formed value stream.
type SyntaxError struct {
	Record string
	Reason string
	Err    error
}

func (e *SyntaxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("cborstream: %s: %s: %v", e.Record, e.Reason, e.Err)
	}
	return fmt.Sprintf("cborstream: %s: %s", e.Record, e.Reason)
}

// Is matches stream.ErrMalformed.
func (e *SyntaxError) Is(target error) bool {
	return target == stream.ErrMalformed
}

func (e *SyntaxError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Option configures a Decoder.
type Option func(*config)

type config struct {
	maxDepth int
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(cfg *config) {
		if depth > 0 {
			cfg.maxDepth = depth
		}
	}
}

// Decoder implements stream.Decoder.
type Decoder struct {
	mode cbor.DecMode
}

var _ stream.Decoder = (*Decoder)(nil)

// New constructs a Decoder.
func New(opts ...Option) (*Decoder, error) {
	cfg := config{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	mode, err := cbor.DecOptions{
		MaxNestedLevels: cfg.maxDepth,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cborstream: decoder options: %w", err)
	}
	return &Decoder{mode: mode}, nil
}

// Default returns a Decoder with default limits.
func Default() *Decoder {
	d, err := New()
	if err != nil {
		panic(err)
	}
	return d
}

// Decode reads the whole source and converts it into values, calling back
// into req for classes, objects, tensor storage and constants.
func (d *Decoder) Decode(req stream.Request) (any, error) {
	if req.Source == nil {
		return nil, &SyntaxError{Record: req.Record, Reason: "no byte source"}
	}
	data, err := io.ReadAll(req.Source)
	if err != nil {
		return nil, fmt.Errorf("cborstream: read %s: %w", req.Record, err)
	}
	if len(data) == 0 {
		return nil, &SyntaxError{Record: req.Record, Reason: "empty record"}
	}
	var raw any
	if err := d.mode.Unmarshal(data, &raw); err != nil {
		return nil, &SyntaxError{Record: req.Record, Reason: "malformed cbor", Err: err}
	}
	c := converter{req: req}
	return c.convert(raw)
}

type converter struct {
	req stream.Request
}

func (c converter) fail(reason string, args ...any) error {
	return &SyntaxError{Record: c.req.Record, Reason: fmt.Sprintf(reason, args...)}
}

func (c converter) convert(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, bool, string, int64, float64:
		return v, nil
	case []byte:
		return append([]byte(nil), v...), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, c.fail("integer %d overflows int64", v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []any:
		list := &ivalue.List{ElemType: ivalue.AnyType, Items: make([]any, len(v))}
		for i, item := range v {
			converted, err := c.convert(item)
			if err != nil {
				return nil, err
			}
			list.Items[i] = converted
		}
		return list, nil
	case map[any]any:
		return c.convertMap(v)
	case cbor.Tag:
		return c.convertTag(v)
	default:
		return nil, c.fail("unsupported value of type %T", raw)
	}
}

func (c converter) convertMap(raw map[any]any) (*ivalue.Dict, error) {
	dict := ivalue.NewDict()
	for key, item := range raw {
		k, err := c.convert(key)
		if err != nil {
			return nil, err
		}
		value, err := c.convert(item)
		if err != nil {
			return nil, err
		}
		if err := dict.Set(k, value); err != nil {
			return nil, c.fail("%v", err)
		}
	}
	dict.SortKeys()
	return dict, nil
}

func (c converter) convertTag(tag cbor.Tag) (any, error) {
	switch tag.Number {
	case TagObject:
		return c.object(tag.Content)
	case TagTensor:
		return c.tensor(tag.Content)
	case TagConstant:
		return c.constant(tag.Content)
	case TagTuple:
		items, ok := tag.Content.([]any)
		if !ok {
			return nil, c.fail("tuple tag content must be an array, got %T", tag.Content)
		}
		tuple := &ivalue.Tuple{Elems: make([]any, len(items))}
		for i, item := range items {
			converted, err := c.convert(item)
			if err != nil {
				return nil, err
			}
			tuple.Elems[i] = converted
		}
		return tuple, nil
	default:
		return nil, c.fail("unknown tag %d", tag.Number)
	}
}

func (c converter) object(content any) (any, error) {
	parts, ok := content.([]any)
	if !ok || len(parts) != 2 {
		return nil, c.fail("object tag content must be [name, state]")
	}
	name, ok := parts[0].(string)
	if !ok || name == "" {
		return nil, c.fail("object tag name must be a non-empty string")
	}
	if c.req.ResolveClass == nil || c.req.LoadObject == nil {
		return nil, fmt.Errorf("cborstream: %s: class %s found but no class callbacks configured", c.req.Record, name)
	}
	typ, err := c.req.ResolveClass(ivalue.QualifiedName(name))
	if err != nil {
		return nil, err
	}
	state, err := c.convert(parts[1])
	if err != nil {
		return nil, err
	}
	obj, err := c.req.LoadObject(typ, state)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (c converter) tensor(content any) (any, error) {
	fields, ok := content.(map[any]any)
	if !ok {
		return nil, c.fail("tensor tag content must be a map, got %T", content)
	}
	dtype, _ := fields["dtype"].(string)
	key, _ := fields["key"].(string)
	if dtype == "" || key == "" {
		return nil, c.fail("tensor requires dtype and key")
	}
	rawShape, ok := fields["shape"].([]any)
	if !ok {
		return nil, c.fail("tensor %s requires a shape array", key)
	}
	shape := make([]int64, len(rawShape))
	for i, dim := range rawShape {
		n, ok := dim.(uint64)
		if !ok || n > math.MaxInt64 {
			return nil, c.fail("tensor %s has invalid dimension %v", key, dim)
		}
		shape[i] = int64(n)
	}

	device := ivalue.CPU
	if rawDevice, ok := fields["device"].(string); ok && rawDevice != "" {
		parsed, err := ivalue.ParseDevice(rawDevice)
		if err != nil {
			return nil, c.fail("tensor %s: %v", key, err)
		}
		device = parsed
	}
	if c.req.Device != nil {
		device = *c.req.Device
	}

	if c.req.ReadRecord == nil {
		return nil, fmt.Errorf("cborstream: %s: tensor %s found but no record reader configured", c.req.Record, key)
	}
	data, err := c.req.ReadRecord(key)
	if err != nil {
		return nil, err
	}
	if size, known := dtypeSizes[dtype]; known {
		need, ok := storageBytes(shape, size)
		if !ok {
			return nil, c.fail("tensor %s shape %v overflows its storage size", key, shape)
		}
		if int64(len(data)) < need {
			return nil, c.fail("tensor %s storage holds %d bytes, need %d", key, len(data), need)
		}
	}
	return &ivalue.Tensor{DType: dtype, Shape: shape, Data: data, Device: device}, nil
}

// storageBytes returns the byte length of a dense tensor, or false when it
// does not fit in an int64.
func storageBytes(shape []int64, size int64) (int64, bool) {
	for _, dim := range shape {
		if dim == 0 {
			return 0, true
		}
	}
	total := size
	for _, dim := range shape {
		if total > math.MaxInt64/dim {
			return 0, false
		}
		total *= dim
	}
	return total, true
}

func (c converter) constant(content any) (any, error) {
	index, ok := content.(uint64)
	if !ok || index > math.MaxInt32 {
		return nil, c.fail("constant tag content must be a small unsigned index, got %v", content)
	}
	if c.req.Constant == nil {
		return nil, fmt.Errorf("cborstream: %s: constant %d referenced but no constants table configured", c.req.Record, index)
	}
	return c.req.Constant(int(index))
}
