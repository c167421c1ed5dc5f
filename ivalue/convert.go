package ivalue

import (
	"fmt"
	"sort"
)

// ToNative converts tagged containers into plain Go slices and maps so that
// script engines can index them. Tensors and objects are passed through.
// Dicts with only string keys become map[string]any.
func ToNative(value any) any {
	return toNative(value, map[any]struct{}{})
}

func toNative(value any, inProgress map[any]struct{}) any {
	switch v := value.(type) {
	case *List:
		if _, cyclic := inProgress[v]; cyclic {
			return nil
		}
		inProgress[v] = struct{}{}
		defer delete(inProgress, v)
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = toNative(item, inProgress)
		}
		return out
	case *Tuple:
		if _, cyclic := inProgress[v]; cyclic {
			return nil
		}
		inProgress[v] = struct{}{}
		defer delete(inProgress, v)
		out := make([]any, len(v.Elems))
		for i, elem := range v.Elems {
			out[i] = toNative(elem, inProgress)
		}
		return out
	case *Dict:
		if _, cyclic := inProgress[v]; cyclic {
			return nil
		}
		inProgress[v] = struct{}{}
		defer delete(inProgress, v)
		if v.stringKeyed() {
			out := make(map[string]any, v.Len())
			for _, entry := range v.entries {
				out[entry.Key.(string)] = toNative(entry.Value, inProgress)
			}
			return out
		}
		out := make(map[any]any, v.Len())
		for _, entry := range v.entries {
			out[entry.Key] = toNative(entry.Value, inProgress)
		}
		return out
	default:
		return value
	}
}

func (d *Dict) stringKeyed() bool {
	for _, entry := range d.entries {
		if _, ok := entry.Key.(string); !ok {
			return false
		}
	}
	return true
}

// FromNative converts an engine result back into tagged values, using
// declared to pick tuple vs list and container tags.
func FromNative(value any, declared *Type) (any, error) {
	if declared == nil {
		declared = AnyType
	}
	if declared.Kind == KindOptional {
		if value == nil {
			return nil, nil
		}
		return FromNative(value, declared.Elem(0))
	}
	switch v := value.(type) {
	case nil, bool, string, []byte, *Tensor, *Object, *List, *Dict, *Tuple:
		return v, nil
	case int:
		return numeric(int64(v), declared), nil
	case int8:
		return numeric(int64(v), declared), nil
	case int16:
		return numeric(int64(v), declared), nil
	case int32:
		return numeric(int64(v), declared), nil
	case int64:
		return numeric(v, declared), nil
	case uint:
		return numeric(int64(v), declared), nil
	case uint8:
		return numeric(int64(v), declared), nil
	case uint16:
		return numeric(int64(v), declared), nil
	case uint32:
		return numeric(int64(v), declared), nil
	case uint64:
		return numeric(int64(v), declared), nil
	case float32:
		return floating(float64(v), declared), nil
	case float64:
		return floating(v, declared), nil
	case []any:
		return sequenceFromNative(v, declared)
	case map[string]any:
		dict := NewDict()
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := setConverted(dict, key, v[key], declared); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case map[any]any:
		dict := NewDict()
		for key, item := range v {
			normalized, err := FromNative(key, declared.Elem(0))
			if err != nil {
				return nil, err
			}
			if err := setConverted(dict, normalized, item, declared); err != nil {
				return nil, err
			}
		}
		dict.SortKeys()
		return dict, nil
	default:
		return nil, fmt.Errorf("ivalue: cannot convert %T to a value", value)
	}
}

func numeric(n int64, declared *Type) any {
	if declared.Kind == KindFloat {
		return float64(n)
	}
	return n
}

func floating(f float64, declared *Type) any {
	if declared.Kind == KindInt && f == float64(int64(f)) {
		return int64(f)
	}
	return f
}

func sequenceFromNative(items []any, declared *Type) (any, error) {
	if declared.Kind == KindTuple {
		elems := make([]any, len(items))
		for i, item := range items {
			converted, err := FromNative(item, declared.Elem(i))
			if err != nil {
				return nil, err
			}
			elems[i] = converted
		}
		return NewTuple(elems...), nil
	}
	elemType := AnyType
	if declared.Kind == KindList {
		elemType = declared.Elem(0)
	}
	list := &List{ElemType: elemType, Items: make([]any, len(items))}
	for i, item := range items {
		converted, err := FromNative(item, elemType)
		if err != nil {
			return nil, err
		}
		list.Items[i] = converted
	}
	return list, nil
}

func setConverted(dict *Dict, key, item any, declared *Type) error {
	valueType := AnyType
	if declared.Kind == KindDict {
		dict.KeyType = declared.Elem(0)
		dict.ValueType = declared.Elem(1)
		valueType = dict.ValueType
	}
	converted, err := FromNative(item, valueType)
	if err != nil {
		return err
	}
	return dict.Set(key, converted)
}
