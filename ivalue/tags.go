package ivalue

// RestoreTypeTags walks value and replaces the loose container tags left by
// a decoder with the precise ones from declared. Objects are re-tagged from
// their own attribute declarations. Shared and cyclic references are visited
// once.
func RestoreTypeTags(value any, declared *Type) {
	restoreTags(value, declared, map[any]struct{}{})
}

func restoreTags(value any, declared *Type, seen map[any]struct{}) {
	if value == nil || declared == nil {
		return
	}
	if declared.Kind == KindOptional {
		restoreTags(value, declared.Elem(0), seen)
		return
	}
	switch v := value.(type) {
	case *List:
		if visited(seen, v) {
			return
		}
		if declared.Kind != KindList {
			return
		}
		v.ElemType = declared.Elem(0)
		for _, item := range v.Items {
			restoreTags(item, v.ElemType, seen)
		}
	case *Dict:
		if visited(seen, v) {
			return
		}
		if declared.Kind != KindDict {
			return
		}
		v.KeyType = declared.Elem(0)
		v.ValueType = declared.Elem(1)
		for _, entry := range v.entries {
			restoreTags(entry.Value, v.ValueType, seen)
		}
	case *Tuple:
		if visited(seen, v) {
			return
		}
		if declared.Kind != KindTuple {
			return
		}
		for i, elem := range v.Elems {
			restoreTags(elem, declared.Elem(i), seen)
		}
	case *Object:
		if visited(seen, v) {
			return
		}
		cls := v.Class()
		if cls == nil {
			return
		}
		for i, attr := range cls.attributes {
			restoreTags(v.slots[i], attr.Type, seen)
		}
	}
}

func visited(seen map[any]struct{}, ptr any) bool {
	if _, ok := seen[ptr]; ok {
		return true
	}
	seen[ptr] = struct{}{}
	return false
}
