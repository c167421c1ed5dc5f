package scriptload

import "github.com/goliatone/go-scriptload/ivalue"

// ValidateInitialized reports the first non-optional slot of obj, in
// declaration order, that is still empty. Optional attributes may hold None.
func ValidateInitialized(obj *ivalue.Object) error {
	cls := obj.Class()
	if cls == nil {
		return nil
	}
	for i := 0; i < obj.NumSlots(); i++ {
		attr := cls.Attribute(i)
		if obj.Slot(i) != nil || attr.Type.IsOptional() {
			continue
		}
		return &UninitializedFieldError{Class: cls.Name, Field: attr.Name, ExpectedType: attr.Type}
	}
	return nil
}
