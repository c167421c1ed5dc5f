package scriptload

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/goliatone/go-scriptload/ivalue"
)

type jsEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEngine constructs a method engine backed by goja. A body is a single
// JavaScript expression; each call runs in a fresh runtime.
func NewJSEngine(cache ProgramCache, registry *FunctionRegistry) MethodEngine {
	return &jsEngine{cache: cache, registry: registry}
}

func (e *jsEngine) Name() string { return EngineJS }

func (e *jsEngine) Compile(src MethodSource) (ivalue.Callable, error) {
	if src.Body == "" {
		return nil, emptyBody(src)
	}
	if _, err := e.loadOrCompile(src.Body); err != nil {
		return nil, err
	}
	return &jsMethod{engine: e, body: src.Body}, nil
}

func (e *jsEngine) loadOrCompile(body string) (*goja.Program, error) {
	key := cacheKey(EngineJS, body)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapJSBody(body), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func wrapJSBody(body string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", body)
}

type jsMethod struct {
	engine *jsEngine
	body   string
}

func (m *jsMethod) Call(ctx ivalue.CallContext, self *ivalue.Object, args []any) (any, error) {
	vm := goja.New()
	if err := m.engine.inject(vm, self, args); err != nil {
		return nil, err
	}
	var (
		value goja.Value
		err   error
	)
	if ctx.Optimize {
		var program *goja.Program
		program, err = m.engine.loadOrCompile(m.body)
		if err != nil {
			return nil, err
		}
		value, err = vm.RunProgram(program)
	} else {
		value, err = vm.RunString(wrapJSBody(m.body))
	}
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func (e *jsEngine) inject(vm *goja.Runtime, self *ivalue.Object, args []any) error {
	for name, value := range methodBindings(self, args) {
		if err := vm.Set(name, value); err != nil {
			return err
		}
	}
	for _, name := range e.registry.Names() {
		fn := name
		if err := vm.Set(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		}); err != nil {
			return err
		}
	}
	return nil
}
