package ivalue

import (
	"strings"
)

// Kind classifies a Type.
type Kind int

const (
	KindAny Kind = iota
	KindNone
	KindTensor
	KindInt
	KindFloat
	KindBool
	KindStr
	KindBytes
	KindDevice
	KindList
	KindDict
	KindTuple
	KindOptional
	KindClass
)

var kindNames = map[Kind]string{
	KindAny:    "Any",
	KindNone:   "NoneType",
	KindTensor: "Tensor",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindStr:    "str",
	KindBytes:  "bytes",
	KindDevice: "Device",
}

// Type is a declared annotation such as Optional[Tensor] or Dict[str, int].
// Container kinds keep their parameters in Elems; class kinds carry Name.
type Type struct {
	Kind  Kind
	Elems []*Type
	Name  string
}

var (
	AnyType    = &Type{Kind: KindAny}
	NoneType   = &Type{Kind: KindNone}
	TensorType = &Type{Kind: KindTensor}
	IntType    = &Type{Kind: KindInt}
	FloatType  = &Type{Kind: KindFloat}
	BoolType   = &Type{Kind: KindBool}
	StrType    = &Type{Kind: KindStr}
	BytesType  = &Type{Kind: KindBytes}
	DeviceType = &Type{Kind: KindDevice}
)

// ListOf returns List[elem].
func ListOf(elem *Type) *Type {
	return &Type{Kind: KindList, Elems: []*Type{orAny(elem)}}
}

// DictOf returns Dict[key, value].
func DictOf(key, value *Type) *Type {
	return &Type{Kind: KindDict, Elems: []*Type{orAny(key), orAny(value)}}
}

// TupleOf returns Tuple[elems...].
func TupleOf(elems ...*Type) *Type {
	out := make([]*Type, len(elems))
	for i, elem := range elems {
		out[i] = orAny(elem)
	}
	return &Type{Kind: KindTuple, Elems: out}
}

// OptionalOf returns Optional[elem].
func OptionalOf(elem *Type) *Type {
	return &Type{Kind: KindOptional, Elems: []*Type{orAny(elem)}}
}

// ClassOf returns the type of instances of the named class.
func ClassOf(name QualifiedName) *Type {
	return &Type{Kind: KindClass, Name: string(name)}
}

func orAny(t *Type) *Type {
	if t == nil {
		return AnyType
	}
	return t
}

// IsOptional reports whether a None value satisfies the type.
func (t *Type) IsOptional() bool {
	if t == nil {
		return false
	}
	return t.Kind == KindOptional || t.Kind == KindNone
}

// Elem returns the i-th parameter or Any when absent.
func (t *Type) Elem(i int) *Type {
	if t == nil || i < 0 || i >= len(t.Elems) {
		return AnyType
	}
	return t.Elems[i]
}

// Equal compares two annotations structurally.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind || t.Name != other.Name || len(t.Elems) != len(other.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	return true
}

// String renders the canonical annotation.
func (t *Type) String() string {
	if t == nil {
		return "Any"
	}
	switch t.Kind {
	case KindList:
		return "List[" + t.Elem(0).String() + "]"
	case KindDict:
		return "Dict[" + t.Elem(0).String() + ", " + t.Elem(1).String() + "]"
	case KindOptional:
		return "Optional[" + t.Elem(0).String() + "]"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, elem := range t.Elems {
			parts[i] = elem.String()
		}
		return "Tuple[" + strings.Join(parts, ", ") + "]"
	case KindClass:
		return t.Name
	default:
		if name, ok := kindNames[t.Kind]; ok {
			return name
		}
		return "Any"
	}
}
