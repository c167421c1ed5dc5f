package scriptload

import (
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-scriptload/ivalue"
)

// Strategy names how an object is rebuilt from its decoded state.
type Strategy int

const (
	// StrategyDirectMap copies a field map into the slots.
	StrategyDirectMap Strategy = iota
	// StrategyReplay runs the class's __setstate__ on an empty object.
	StrategyReplay
)

func (s Strategy) String() string {
	if s == StrategyReplay {
		return "replay"
	}
	return "direct_map"
}

// SelectStrategy picks Replay for classes with a get/set-state pair.
func SelectStrategy(cls *ivalue.ClassType) Strategy {
	if cls.HasStateCapability() {
		return StrategyReplay
	}
	return StrategyDirectMap
}

type reconstructor struct {
	exec    *ExecutionState
	archive string
	record  string
	trace   func(LoadEvent)
}

func (r *reconstructor) construct(t *ivalue.StrongType, raw any) (*ivalue.Object, error) {
	if t == nil || t.Class == nil {
		return nil, fmt.Errorf("scriptload: construct: missing class type")
	}
	start := time.Now()
	var (
		obj *ivalue.Object
		err error
	)
	switch SelectStrategy(t.Class) {
	case StrategyReplay:
		obj, err = r.replay(t, raw)
	default:
		obj, err = r.directMap(t, raw)
	}
	if r.trace != nil {
		r.trace(LoadEvent{Stage: StageConstruct, Record: r.record, Class: string(t.Class.Name), Duration: time.Since(start), Err: err})
	}
	return obj, err
}

func (r *reconstructor) replay(t *ivalue.StrongType, raw any) (*ivalue.Object, error) {
	setState, _ := t.Class.Method(ivalue.SetStateMethod)
	if setState.Impl == nil {
		return nil, fmt.Errorf("scriptload: class %s: %s has no implementation", t.Class.Name, ivalue.SetStateMethod)
	}
	obj := ivalue.NewObject(t)
	if err := r.runSetState(obj, setState, raw); err != nil {
		return nil, err
	}
	if err := ValidateInitialized(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// runSetState invokes __setstate__ with optimization disabled, restoring
// the previous flag however the call ends.
func (r *reconstructor) runSetState(obj *ivalue.Object, setState *ivalue.Method, raw any) error {
	restore := r.exec.Override(false)
	defer restore()

	ivalue.RestoreTypeTags(raw, setState.Param)
	result, err := setState.Impl.Call(ivalue.CallContext{Optimize: r.exec.Optimize()}, obj, []any{raw})
	if err != nil {
		return err
	}
	return applyAssignments(obj, result)
}

// applyAssignments stores a script body's result map into obj. A nil result
// means the body assigned nothing.
func applyAssignments(obj *ivalue.Object, result any) error {
	cls := obj.Class()
	var assignments map[string]any
	switch v := result.(type) {
	case nil:
		return nil
	case map[string]any:
		assignments = v
	case *ivalue.Dict:
		assignments = make(map[string]any, v.Len())
		for _, entry := range v.Entries() {
			name, ok := entry.Key.(string)
			if !ok {
				return fmt.Errorf("scriptload: class %s: %s assigned a non-string attribute key %v", cls.Name, ivalue.SetStateMethod, entry.Key)
			}
			assignments[name] = entry.Value
		}
	default:
		return fmt.Errorf("scriptload: class %s: %s must return attribute assignments or null, got %T", cls.Name, ivalue.SetStateMethod, result)
	}
	names := make([]string, 0, len(assignments))
	for name := range assignments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		slot, ok := cls.SlotIndex(name)
		if !ok {
			return fmt.Errorf("scriptload: class %s: %s assigned undeclared attribute %q", cls.Name, ivalue.SetStateMethod, name)
		}
		value, err := ivalue.FromNative(assignments[name], cls.Attribute(slot).Type)
		if err != nil {
			return fmt.Errorf("scriptload: class %s: attribute %s: %w", cls.Name, name, err)
		}
		obj.SetSlot(slot, value)
	}
	return nil
}

func (r *reconstructor) directMap(t *ivalue.StrongType, raw any) (*ivalue.Object, error) {
	dict, ok := raw.(*ivalue.Dict)
	if !ok {
		return nil, &MalformedArchiveError{
			Archive: r.archive,
			Record:  r.record,
			Reason:  fmt.Sprintf("class %s has no __setstate__ and expects a field map, got %s", t.Class.Name, describeValue(raw)),
		}
	}
	obj := ivalue.NewObject(t)
	for i, attr := range t.Class.Attributes() {
		value, ok := dict.Get(attr.Name)
		if !ok {
			return nil, &MissingFieldError{Class: t.Class.Name, Field: attr.Name}
		}
		obj.SetSlot(i, value)
	}
	return obj, nil
}

func describeValue(value any) string {
	switch value.(type) {
	case nil:
		return "None"
	case *ivalue.List:
		return "a list"
	case *ivalue.Tuple:
		return "a tuple"
	case *ivalue.Tensor:
		return "a tensor"
	case *ivalue.Object:
		return "an object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
