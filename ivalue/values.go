package ivalue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Device tags where a tensor is meant to live. No placement happens here.
type Device struct {
	Type  string
	Index int
}

// CPU is the default device.
var CPU = Device{Type: "cpu", Index: -1}

// ParseDevice parses "cpu", "cuda" or "cuda:1".
func ParseDevice(raw string) (Device, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Device{}, fmt.Errorf("ivalue: empty device")
	}
	kind, index, hasIndex := strings.Cut(raw, ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return Device{}, fmt.Errorf("ivalue: invalid device %q", raw)
	}
	device := Device{Type: kind, Index: -1}
	if hasIndex {
		n, err := strconv.Atoi(strings.TrimSpace(index))
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("ivalue: invalid device index in %q", raw)
		}
		device.Index = n
	}
	return device, nil
}

func (d Device) String() string {
	if d.Index < 0 {
		return d.Type
	}
	return fmt.Sprintf("%s:%d", d.Type, d.Index)
}

// Tensor is a typed byte buffer with a shape. Data is the raw storage read
// from the archive.
type Tensor struct {
	DType  string
	Shape  []int64
	Data   []byte
	Device Device
}

// Numel returns the number of elements implied by Shape.
func (t *Tensor) Numel() int64 {
	if t == nil {
		return 0
	}
	n := int64(1)
	for _, dim := range t.Shape {
		n *= dim
	}
	return n
}

func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(<nil>)"
	}
	dims := make([]string, len(t.Shape))
	for i, dim := range t.Shape {
		dims[i] = strconv.FormatInt(dim, 10)
	}
	return fmt.Sprintf("Tensor(dtype=%s, shape=[%s], device=%s)", t.DType, strings.Join(dims, ", "), t.Device)
}

// List is a homogeneous list whose element tag may be refined after decoding.
type List struct {
	ElemType *Type
	Items    []any
}

// NewList returns an Any-tagged list.
func NewList(items ...any) *List {
	return &List{ElemType: AnyType, Items: items}
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Items)
}

// Tuple is a fixed-arity heterogeneous sequence.
type Tuple struct {
	Elems []any
}

// NewTuple returns a tuple of elems.
func NewTuple(elems ...any) *Tuple {
	return &Tuple{Elems: elems}
}

func (t *Tuple) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Elems)
}

// DictEntry is one key/value pair in insertion order.
type DictEntry struct {
	Key   any
	Value any
}

// Dict is an insertion-ordered map with key and value tags. Keys must be
// comparable primitives (string, int64, float64, bool).
type Dict struct {
	KeyType   *Type
	ValueType *Type

	entries []DictEntry
	index   map[any]int
}

// NewDict returns an empty Any-tagged dict.
func NewDict() *Dict {
	return &Dict{KeyType: AnyType, ValueType: AnyType, index: map[any]int{}}
}

// Set inserts or replaces key.
func (d *Dict) Set(key, value any) error {
	switch key.(type) {
	case string, int64, float64, bool:
	default:
		return fmt.Errorf("ivalue: unsupported dict key type %T", key)
	}
	if d.index == nil {
		d.index = map[any]int{}
	}
	if i, ok := d.index[key]; ok {
		d.entries[i].Value = value
		return nil
	}
	d.index[key] = len(d.entries)
	d.entries = append(d.entries, DictEntry{Key: key, Value: value})
	return nil
}

// Get returns the value stored under key.
func (d *Dict) Get(key any) (any, bool) {
	if d == nil || d.index == nil {
		return nil, false
	}
	switch key.(type) {
	case string, int64, float64, bool:
	default:
		return nil, false
	}
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.entries[i].Value, true
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Entries returns a copy of the entries in insertion order.
func (d *Dict) Entries() []DictEntry {
	if d == nil {
		return nil
	}
	return append([]DictEntry(nil), d.entries...)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []any {
	if d == nil {
		return nil
	}
	keys := make([]any, len(d.entries))
	for i, entry := range d.entries {
		keys[i] = entry.Key
	}
	return keys
}

// SortKeys reorders entries by key so decoders without ordered maps produce
// deterministic dicts. Mixed key kinds sort by kind first.
func (d *Dict) SortKeys() {
	if d == nil {
		return
	}
	sort.SliceStable(d.entries, func(i, j int) bool {
		return keyLess(d.entries[i].Key, d.entries[j].Key)
	})
	for i, entry := range d.entries {
		d.index[entry.Key] = i
	}
}

func keyLess(a, b any) bool {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return ra < rb
	}
	switch av := a.(type) {
	case bool:
		return !av && b.(bool)
	case int64:
		return av < b.(int64)
	case float64:
		return av < b.(float64)
	case string:
		return av < b.(string)
	}
	return false
}

func keyRank(key any) int {
	switch key.(type) {
	case bool:
		return 0
	case int64:
		return 1
	case float64:
		return 2
	default:
		return 3
	}
}
