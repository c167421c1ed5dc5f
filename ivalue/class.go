package ivalue

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Special method names recognised on classes.
const (
	GetStateMethod = "__getstate__"
	SetStateMethod = "__setstate__"
)

// QualifiedName is a dotted class path such as "__torch__.models.Linear".
type QualifiedName string

// Prefix returns the qualifier (everything before the last atom).
func (q QualifiedName) Prefix() string {
	i := strings.LastIndex(string(q), ".")
	if i < 0 {
		return ""
	}
	return string(q)[:i]
}

// Name returns the last atom.
func (q QualifiedName) Name() string {
	i := strings.LastIndex(string(q), ".")
	if i < 0 {
		return string(q)
	}
	return string(q)[i+1:]
}

// Atoms splits the name on dots.
func (q QualifiedName) Atoms() []string {
	if q == "" {
		return nil
	}
	return strings.Split(string(q), ".")
}

func (q QualifiedName) String() string {
	return string(q)
}

// CallContext carries execution settings into a method body.
type CallContext struct {
	// Optimize allows engines to reuse compiled programs. It is off while
	// __setstate__ runs.
	Optimize bool
}

// Callable is the executable part of a method.
type Callable interface {
	Call(ctx CallContext, self *Object, args []any) (any, error)
}

// CallableFunc adapts a function to Callable.
type CallableFunc func(ctx CallContext, self *Object, args []any) (any, error)

// Call implements Callable.
func (f CallableFunc) Call(ctx CallContext, self *Object, args []any) (any, error) {
	if f == nil {
		return nil, fmt.Errorf("ivalue: nil callable")
	}
	return f(ctx, self, args)
}

// Method is a named class method with its declared signature.
type Method struct {
	Name    string
	Param   *Type
	Returns *Type
	Engine  string
	Impl    Callable
}

// Attribute is one declared slot.
type Attribute struct {
	Name string
	Type *Type
}

// ClassType is a resolved class definition.
type ClassType struct {
	Name       QualifiedName
	attributes []Attribute
	slots      map[string]int
	methods    map[string]*Method
}

// NewClassType builds a class with attributes in declaration order.
func NewClassType(name QualifiedName, attributes []Attribute, methods ...*Method) (*ClassType, error) {
	cls := &ClassType{
		Name:    name,
		slots:   make(map[string]int, len(attributes)),
		methods: make(map[string]*Method, len(methods)),
	}
	for _, attr := range attributes {
		if attr.Name == "" {
			return nil, fmt.Errorf("ivalue: class %s declares an unnamed attribute", name)
		}
		if _, dup := cls.slots[attr.Name]; dup {
			return nil, fmt.Errorf("ivalue: class %s declares attribute %q twice", name, attr.Name)
		}
		if attr.Type == nil {
			attr.Type = AnyType
		}
		cls.slots[attr.Name] = len(cls.attributes)
		cls.attributes = append(cls.attributes, attr)
	}
	for _, method := range methods {
		if method == nil {
			continue
		}
		cls.methods[method.Name] = method
	}
	return cls, nil
}

// NumAttributes returns the number of declared slots.
func (c *ClassType) NumAttributes() int {
	return len(c.attributes)
}

// Attribute returns the i-th declared attribute.
func (c *ClassType) Attribute(i int) Attribute {
	return c.attributes[i]
}

// Attributes returns a copy of the declared attributes.
func (c *ClassType) Attributes() []Attribute {
	return append([]Attribute(nil), c.attributes...)
}

// SlotIndex returns the slot of the named attribute.
func (c *ClassType) SlotIndex(name string) (int, bool) {
	i, ok := c.slots[name]
	return i, ok
}

// Method returns the named method.
func (c *ClassType) Method(name string) (*Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// MethodNames returns method names sorted alphabetically.
func (c *ClassType) MethodNames() []string {
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasStateCapability reports whether the class declares both
// __getstate__ and __setstate__.
func (c *ClassType) HasStateCapability() bool {
	if c == nil {
		return false
	}
	_, get := c.methods[GetStateMethod]
	_, set := c.methods[SetStateMethod]
	return get && set
}

// CompilationUnit stores class definitions by qualified name.
type CompilationUnit struct {
	mu      sync.RWMutex
	classes map[QualifiedName]*ClassType
}

// NewCompilationUnit returns an empty unit.
func NewCompilationUnit() *CompilationUnit {
	return &CompilationUnit{classes: make(map[QualifiedName]*ClassType)}
}

// Define registers cls, failing when the name is already taken by a
// different definition.
func (cu *CompilationUnit) Define(cls *ClassType) error {
	if cls == nil {
		return fmt.Errorf("ivalue: cannot define nil class")
	}
	cu.mu.Lock()
	defer cu.mu.Unlock()
	if cu.classes == nil {
		cu.classes = make(map[QualifiedName]*ClassType)
	}
	if existing, ok := cu.classes[cls.Name]; ok && existing != cls {
		return fmt.Errorf("ivalue: class %s already defined", cls.Name)
	}
	cu.classes[cls.Name] = cls
	return nil
}

// Class looks up a defined class.
func (cu *CompilationUnit) Class(name QualifiedName) (*ClassType, bool) {
	cu.mu.RLock()
	defer cu.mu.RUnlock()
	cls, ok := cu.classes[name]
	return cls, ok
}

// Classes returns defined class names sorted alphabetically.
func (cu *CompilationUnit) Classes() []QualifiedName {
	cu.mu.RLock()
	defer cu.mu.RUnlock()
	names := make([]QualifiedName, 0, len(cu.classes))
	for name := range cu.classes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// StrongType pairs a class with the compilation unit that owns it.
type StrongType struct {
	CU    *CompilationUnit
	Class *ClassType
}

// Object is an instance of a StrongType. A nil slot is empty.
type Object struct {
	Type  *StrongType
	slots []any
}

// NewObject allocates an object with every slot empty.
func NewObject(t *StrongType) *Object {
	n := 0
	if t != nil && t.Class != nil {
		n = t.Class.NumAttributes()
	}
	return &Object{Type: t, slots: make([]any, n)}
}

// Class returns the object's class definition.
func (o *Object) Class() *ClassType {
	if o == nil || o.Type == nil {
		return nil
	}
	return o.Type.Class
}

// NumSlots returns the slot count.
func (o *Object) NumSlots() int {
	return len(o.slots)
}

// Slot returns the value in slot i.
func (o *Object) Slot(i int) any {
	return o.slots[i]
}

// SetSlot stores value in slot i.
func (o *Object) SetSlot(i int, value any) {
	o.slots[i] = value
}

// Attr returns a named attribute.
func (o *Object) Attr(name string) (any, bool) {
	cls := o.Class()
	if cls == nil {
		return nil, false
	}
	i, ok := cls.SlotIndex(name)
	if !ok {
		return nil, false
	}
	return o.slots[i], true
}

// SetAttr assigns a declared attribute.
func (o *Object) SetAttr(name string, value any) error {
	cls := o.Class()
	if cls == nil {
		return fmt.Errorf("ivalue: object has no class")
	}
	i, ok := cls.SlotIndex(name)
	if !ok {
		return fmt.Errorf("ivalue: class %s has no attribute %q", cls.Name, name)
	}
	o.slots[i] = value
	return nil
}

// Fields returns attribute values keyed by name.
func (o *Object) Fields() map[string]any {
	cls := o.Class()
	if cls == nil {
		return map[string]any{}
	}
	fields := make(map[string]any, len(o.slots))
	for i, attr := range cls.attributes {
		fields[attr.Name] = o.slots[i]
	}
	return fields
}
