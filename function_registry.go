package scriptload

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-scriptload/ivalue"
)

// Function is a host implementation of a method body. Native methods receive
// the object as the first argument followed by the method arguments.
type Function func(args ...any) (any, error)

// FunctionRegistry stores host functions. Lookups ignore case; script
// bodies see each function under the name it was registered with.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]registeredFunction
}

type registeredFunction struct {
	name string
	fn   Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]registeredFunction),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("scriptload: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("scriptload: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]registeredFunction)
	}
	key := strings.ToLower(name)
	if existing, exists := r.functions[key]; exists {
		return fmt.Errorf("scriptload: function %q already registered as %q", name, existing.name)
	}
	r.functions[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// NativeMethod is a host implementation of a method that receives its
// object already typed.
type NativeMethod func(self *ivalue.Object, args ...any) (any, error)

// RegisterMethod stores fn under name for use by native method bodies. The
// call fails when the first argument is not an object.
func (r *FunctionRegistry) RegisterMethod(name string, fn NativeMethod) error {
	if fn == nil {
		return fmt.Errorf("scriptload: method function %q is nil", name)
	}
	return r.Register(name, func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("scriptload: native method %q called without an object", name)
		}
		self, ok := args[0].(*ivalue.Object)
		if !ok {
			return nil, fmt.Errorf("scriptload: native method %q expects an object, got %T", name, args[0])
		}
		return fn(self, args[1:]...)
	})
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[strings.ToLower(name)]
	return ok
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]registeredFunction, len(r.functions)),
	}
	for key, entry := range r.functions {
		clone.functions[key] = entry
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("scriptload: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("scriptload: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns the registered names, as given to Register, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for _, entry := range r.functions {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// WithFunctionRegistry makes the functions of registry available to native
// methods and as helpers inside script bodies.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *loadConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the load. Script bodies call
// it by that exact name; native method bodies may use any casing.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *loadConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
