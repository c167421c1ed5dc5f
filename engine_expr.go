package scriptload

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-scriptload/ivalue"
)

// exprEngine runs method bodies with github.com/expr-lang/expr.
type exprEngine struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEngine constructs the expr method engine. Registry functions are
// callable by name from bodies.
func NewExprEngine(cache ProgramCache, registry *FunctionRegistry) MethodEngine {
	return &exprEngine{cache: cache, registry: registry}
}

func (e *exprEngine) Name() string { return EngineExpr }

func (e *exprEngine) Compile(src MethodSource) (ivalue.Callable, error) {
	if src.Body == "" {
		return nil, emptyBody(src)
	}
	if _, err := e.loadOrCompile(src.Body); err != nil {
		return nil, err
	}
	return &exprMethod{engine: e, body: src.Body}, nil
}

func (e *exprEngine) loadOrCompile(body string) (*exprvm.Program, error) {
	key := cacheKey(EngineExpr, body)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	// Registry functions are bound per call through the environment and
	// never compiled into a cached program.
	program, err := exprlang.Compile(body,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *exprEngine) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

func (e *exprEngine) environment(self *ivalue.Object, args []any) map[string]any {
	env := methodBindings(self, args)
	for _, name := range e.registry.Names() {
		env[name] = e.registryFunction(name)
	}
	return env
}

type exprMethod struct {
	engine *exprEngine
	body   string
}

// Call evaluates the body from source unless optimization is on, in which
// case the compiled program is reused.
func (m *exprMethod) Call(ctx ivalue.CallContext, self *ivalue.Object, args []any) (any, error) {
	env := m.engine.environment(self, args)
	if !ctx.Optimize {
		return exprlang.Eval(m.body, env)
	}
	program, err := m.engine.loadOrCompile(m.body)
	if err != nil {
		return nil, err
	}
	return exprlang.Run(program, env)
}
