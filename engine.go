package scriptload

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-scriptload/ivalue"
)

// Engine names accepted in class manifests.
const (
	EngineExpr   = "expr"
	EngineCEL    = "cel"
	EngineJS     = "js"
	EngineNative = "native"
)

// MethodSource is one method body as declared in a class manifest.
type MethodSource struct {
	Class   ivalue.QualifiedName
	Method  string
	Body    string
	Param   *ivalue.Type
	Returns *ivalue.Type
}

func (s MethodSource) label() string {
	return fmt.Sprintf("%s.%s", s.Class, s.Method)
}

// MethodEngine turns method bodies written in one language into callables.
// Compile must reject bodies that do not parse so that a broken class fails
// at import rather than mid-load.
type MethodEngine interface {
	Name() string
	Compile(src MethodSource) (ivalue.Callable, error)
}

// WithMethodEngine registers an additional engine, or replaces a built-in
// one of the same name.
func WithMethodEngine(engine MethodEngine) Option {
	return func(cfg *loadConfig) {
		if engine == nil {
			return
		}
		if cfg.engines == nil {
			cfg.engines = map[string]MethodEngine{}
		}
		cfg.engines[strings.ToLower(engine.Name())] = engine
	}
}

func defaultEngines(cache ProgramCache, registry *FunctionRegistry) map[string]MethodEngine {
	return map[string]MethodEngine{
		EngineExpr:   NewExprEngine(cache, registry),
		EngineCEL:    NewCELEngine(cache),
		EngineJS:     NewJSEngine(cache, registry),
		EngineNative: NewNativeEngine(registry),
	}
}

// methodBindings exposes the receiver and arguments to script bodies as
// plain Go values: self is a map of the current attribute values, args the
// converted arguments and state the first argument.
func methodBindings(self *ivalue.Object, args []any) map[string]any {
	fields := map[string]any{}
	if self != nil {
		for name, value := range self.Fields() {
			fields[name] = ivalue.ToNative(value)
		}
	}
	native := make([]any, len(args))
	for i, arg := range args {
		native[i] = ivalue.ToNative(arg)
	}
	bindings := map[string]any{
		"self": fields,
		"args": native,
	}
	if len(native) > 0 {
		bindings["state"] = native[0]
	}
	return bindings
}

func emptyBody(src MethodSource) error {
	return fmt.Errorf("scriptload: method %s has an empty body", src.label())
}
