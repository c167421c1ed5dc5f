package scriptload

import (
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"

	"github.com/goliatone/go-scriptload/ivalue"
)

// celOpaqueType carries tensors and objects through CEL untouched.
var celOpaqueType = types.NewOpaqueType("scriptload.Opaque")

type celEngine struct {
	cache ProgramCache
}

// NewCELEngine constructs the CEL method engine. Bodies see self, state and
// args as dynamic values; tensors and objects are opaque.
func NewCELEngine(cache ProgramCache) MethodEngine {
	return &celEngine{cache: cache}
}

func (e *celEngine) Name() string { return EngineCEL }

func (e *celEngine) Compile(src MethodSource) (ivalue.Callable, error) {
	if src.Body == "" {
		return nil, emptyBody(src)
	}
	if _, err := e.loadOrCompile(src.Body); err != nil {
		return nil, err
	}
	return &celMethod{engine: e, body: src.Body}, nil
}

func (e *celEngine) loadOrCompile(body string) (celgo.Program, error) {
	key := cacheKey(EngineCEL, body)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	program, err := e.compile(body)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEngine) compile(body string) (celgo.Program, error) {
	env, err := celgo.NewEnv(
		celgo.Variable("self", celgo.DynType),
		celgo.Variable("state", celgo.DynType),
		celgo.Variable("args", celgo.DynType),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(body)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(checked)
}

type celMethod struct {
	engine *celEngine
	body   string
}

func (m *celMethod) Call(ctx ivalue.CallContext, self *ivalue.Object, args []any) (any, error) {
	var (
		program celgo.Program
		err     error
	)
	if ctx.Optimize {
		program, err = m.engine.loadOrCompile(m.body)
	} else {
		program, err = m.engine.compile(m.body)
	}
	if err != nil {
		return nil, err
	}
	bindings := methodBindings(self, args)
	activation := make(map[string]any, 3)
	for _, name := range []string{"self", "state", "args"} {
		activation[name] = celWrap(bindings[name])
	}
	out, _, err := program.Eval(activation)
	if err != nil {
		return nil, err
	}
	return celToNative(out)
}

// celWrap replaces values CEL cannot represent with opaque references.
func celWrap(value any) any {
	switch v := value.(type) {
	case *ivalue.Tensor, *ivalue.Object:
		return celOpaque{value: v}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = celWrap(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = celWrap(item)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for key, item := range v {
			out[key] = celWrap(item)
		}
		return out
	default:
		return value
	}
}

func celToNative(val ref.Val) (any, error) {
	switch v := val.(type) {
	case celOpaque:
		return v.value, nil
	case types.Null:
		return nil, nil
	case traits.Mapper:
		keys := []any{}
		values := []any{}
		stringKeyed := true
		it := v.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			native, err := celToNative(key)
			if err != nil {
				return nil, err
			}
			if _, ok := native.(string); !ok {
				stringKeyed = false
			}
			item, err := celToNative(v.Get(key))
			if err != nil {
				return nil, err
			}
			keys = append(keys, native)
			values = append(values, item)
		}
		if stringKeyed {
			out := make(map[string]any, len(keys))
			for i, key := range keys {
				out[key.(string)] = values[i]
			}
			return out, nil
		}
		out := make(map[any]any, len(keys))
		for i, key := range keys {
			out[key] = values[i]
		}
		return out, nil
	case traits.Lister:
		size, ok := v.Size().(types.Int)
		if !ok {
			return nil, fmt.Errorf("scriptload: cel list has no size")
		}
		out := make([]any, 0, int(size))
		for i := types.Int(0); i < size; i++ {
			item, err := celToNative(v.Get(i))
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	default:
		if types.IsError(val) {
			return nil, fmt.Errorf("scriptload: cel: %v", val)
		}
		return val.Value(), nil
	}
}

type celOpaque struct {
	value any
}

func (o celOpaque) ConvertToNative(typeDesc reflect.Type) (any, error) {
	if reflect.TypeOf(o.value).AssignableTo(typeDesc) {
		return o.value, nil
	}
	return nil, fmt.Errorf("scriptload: cannot convert %T to %v", o.value, typeDesc)
}

func (o celOpaque) ConvertToType(typeVal ref.Type) ref.Val {
	if typeVal == celOpaqueType {
		return o
	}
	if typeVal == types.TypeType {
		return celOpaqueType
	}
	return types.NewErr("scriptload: cannot convert opaque value to %s", typeVal.TypeName())
}

func (o celOpaque) Equal(other ref.Val) ref.Val {
	peer, ok := other.(celOpaque)
	if !ok {
		return types.False
	}
	return types.Bool(peer.value == o.value)
}

func (o celOpaque) Type() ref.Type {
	return celOpaqueType
}

func (o celOpaque) Value() any {
	return o.value
}
