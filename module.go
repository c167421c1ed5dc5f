package scriptload

import (
	"fmt"

	"github.com/goliatone/go-scriptload/ivalue"
)

// ExtraFiles holds side files requested by key. Keys whose record is absent
// are omitted.
type ExtraFiles map[string][]byte

// Module is the root object of a loaded archive.
type Module struct {
	object    *ivalue.Object
	exec      *ExecutionState
	sessionID string
	archive   string
}

// NewModule wraps obj as a module. Legacy loaders use it to return their
// result.
func NewModule(obj *ivalue.Object) *Module {
	return &Module{object: obj, exec: newExecutionState(true, nil)}
}

// Object returns the root object.
func (m *Module) Object() *ivalue.Object {
	return m.object
}

// Type returns the root object's class.
func (m *Module) Type() *ivalue.ClassType {
	return m.object.Class()
}

// CompilationUnit returns the unit holding every class the load resolved.
func (m *Module) CompilationUnit() *ivalue.CompilationUnit {
	if m.object == nil || m.object.Type == nil {
		return nil
	}
	return m.object.Type.CU
}

// Attr returns a named attribute of the root object.
func (m *Module) Attr(name string) (any, bool) {
	return m.object.Attr(name)
}

// SessionID identifies the load that produced the module.
func (m *Module) SessionID() string {
	return m.sessionID
}

// Archive names the archive the module was loaded from.
func (m *Module) Archive() string {
	return m.archive
}

// Optimize reports whether method calls may reuse compiled programs.
func (m *Module) Optimize() bool {
	return m.exec.Optimize()
}

// Invoke calls a method of the root object. The result is tagged with the
// method's declared return type.
func (m *Module) Invoke(method string, args ...any) (any, error) {
	return Invoke(m.exec, m.object, method, args...)
}

// Invoke calls method on obj under the optimize setting of exec.
func Invoke(exec *ExecutionState, obj *ivalue.Object, method string, args ...any) (any, error) {
	cls := obj.Class()
	if cls == nil {
		return nil, fmt.Errorf("scriptload: invoke %s: object has no class", method)
	}
	m, ok := cls.Method(method)
	if !ok || m.Impl == nil {
		return nil, fmt.Errorf("scriptload: class %s has no method %s", cls.Name, method)
	}
	optimize := true
	if exec != nil {
		optimize = exec.Optimize()
	}
	result, err := m.Impl.Call(ivalue.CallContext{Optimize: optimize}, obj, args)
	if err != nil {
		return nil, err
	}
	return ivalue.FromNative(result, m.Returns)
}
