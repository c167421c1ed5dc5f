package scriptload

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-scriptload/ivalue"
)

type nativeEngine struct {
	registry *FunctionRegistry
}

// NewNativeEngine binds method bodies to host functions. The body names a
// registry function, which receives the object followed by the arguments
// exactly as decoded.
func NewNativeEngine(registry *FunctionRegistry) MethodEngine {
	return &nativeEngine{registry: registry}
}

func (e *nativeEngine) Name() string { return EngineNative }

func (e *nativeEngine) Compile(src MethodSource) (ivalue.Callable, error) {
	name := strings.TrimSpace(src.Body)
	if name == "" {
		return nil, emptyBody(src)
	}
	if !e.registry.Has(name) {
		return nil, fmt.Errorf("scriptload: method %s: function %q not registered", src.label(), name)
	}
	return ivalue.CallableFunc(func(_ ivalue.CallContext, self *ivalue.Object, args []any) (any, error) {
		callArgs := make([]any, 0, len(args)+1)
		callArgs = append(callArgs, self)
		callArgs = append(callArgs, args...)
		return e.registry.Call(name, callArgs...)
	}), nil
}
