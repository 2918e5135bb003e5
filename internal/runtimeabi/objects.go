package runtimeabi

import "sync"

// objectValue is a class instance's heap representation: a dense slot per
// declared field plus, for dynamically-added properties (object literals
// have no fixed class), a parallel name/value list. This mirrors
// classreg.ClassInfo.FieldIndex's own dense-slot layout rather than
// reinventing a second scheme.
type objectValue struct {
	mu             sync.RWMutex
	className      string
	fields         []int64 // dense, indexed by classreg.ClassInfo.FieldIndex
	propertyNames  []string
	propertyValues []int64
	propertyIndex  map[string]int
	super          int64 // handle of the embedded parent instance, 0 if none
}

type objectTable struct {
	handleTable[*objectValue]
}

func newObjectTable() *objectTable { return &objectTable{} }

// Create backs __object_create: emitNewExpression passes only the
// target class's field count (RDI) — the class name itself is a
// compile-time fact the emitter already resolved via internal/classreg and
// has no runtime representative, so instances here are identified by field
// layout, not a stored name. SetClassName lets a caller (e.g. a debugger
// hook, or tests) attach the name after the fact when it's available.
func (t *objectTable) Create(fieldCount int64) int64 {
	return t.alloc(&objectValue{
		fields:        make([]int64, fieldCount),
		propertyIndex: make(map[string]int),
	})
}

func (t *objectTable) SetClassName(h int64, className string) {
	o, ok := t.get(h)
	if !ok {
		return
	}
	o.mu.Lock()
	o.className = className
	o.mu.Unlock()
}

// CreateLiteral makes an object with no declared class and no fixed fields,
// addressed only by property name. emitObjectLiteral does not call it: it
// emits __object_create with a field count of 0, which yields the same shape.
func (t *objectTable) CreateLiteral() int64 {
	return t.alloc(&objectValue{propertyIndex: make(map[string]int)})
}

func (t *objectTable) GetField(h int64, index int) int64 {
	o, ok := t.get(h)
	if !ok || index < 0 || index >= len(o.fields) {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fields[index]
}

func (t *objectTable) SetField(h int64, index int, v int64) int64 {
	o, ok := t.get(h)
	if !ok || index < 0 || index >= len(o.fields) {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[index] = v
	return 1
}

// GetProperty backs __object_get_property_name: a by-name lookup for object
// literals and for dynamically added properties on class instances.
func (t *objectTable) GetProperty(h int64, name string) int64 {
	o, ok := t.get(h)
	if !ok {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if i, ok := o.propertyIndex[name]; ok {
		return o.propertyValues[i]
	}
	return 0
}

func (t *objectTable) SetProperty(h int64, name string, v int64) int64 {
	o, ok := t.get(h)
	if !ok {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if i, exists := o.propertyIndex[name]; exists {
		o.propertyValues[i] = v
		return 1
	}
	o.propertyIndex[name] = len(o.propertyValues)
	o.propertyNames = append(o.propertyNames, name)
	o.propertyValues = append(o.propertyValues, v)
	return 1
}

// PropertyCount backs __object_property_count: how many named properties
// the instance carries, which is the bound ForEach iteration runs to.
func (t *objectTable) PropertyCount(h int64) int64 {
	o, ok := t.get(h)
	if !ok {
		return 0
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return int64(len(o.propertyValues))
}

// PropertyNameAt returns the name of the idx-th property in declaration
// order; ForEach over an object binds the loop variable to this.
func (t *objectTable) PropertyNameAt(h int64, idx int64) (string, bool) {
	o, ok := t.get(h)
	if !ok {
		return "", false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if idx < 0 || idx >= int64(len(o.propertyNames)) {
		return "", false
	}
	return o.propertyNames[idx], true
}

// Destroy releases an instance's slot content; the handle itself stays
// reserved (handles are never recycled, matching arena/registry's
// append-only-for-process-lifetime shape).
func (t *objectTable) Destroy(h int64) int64 {
	o, ok := t.get(h)
	if !ok {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields = nil
	o.propertyNames = nil
	o.propertyValues = nil
	o.propertyIndex = make(map[string]int)
	return 1
}

// SetSuper records the embedded parent instance created by a SuperCall, so
// a later SuperMethodCall can find it without the emitter threading an
// extra handle through.
func (t *objectTable) SetSuper(h int64, superHandle int64) {
	o, ok := t.get(h)
	if !ok {
		return
	}
	o.mu.Lock()
	o.super = superHandle
	o.mu.Unlock()
}

func (t *objectTable) Super(h int64) (int64, bool) {
	o, ok := t.get(h)
	if !ok || o.super == 0 {
		return 0, false
	}
	return o.super, true
}

// StaticSetProperty / StaticGetProperty back __static_set_property and
// __static_get_property: class-level slots addressed by class-name handle
// plus index, with no instance involved.
func (a *ABI) StaticSetProperty(classHandle, index, v int64) int64 {
	a.staticsMu.Lock()
	a.statics[staticKey{classHandle, index}] = v
	a.staticsMu.Unlock()
	return 1
}

func (a *ABI) StaticGetProperty(classHandle, index int64) int64 {
	a.staticsMu.Lock()
	defer a.staticsMu.Unlock()
	return a.statics[staticKey{classHandle, index}]
}

// RegisterClassInheritance backs __register_class_inheritance: record a
// child->parent edge in the process-wide inheritance map after both names
// have been interned by the compiler.
func (a *ABI) RegisterClassInheritance(childHandle, parentHandle int64) int64 {
	child, okC := a.strings.get(childHandle)
	parent, okP := a.strings.get(parentHandle)
	if !okC || !okP || a.classes == nil {
		return 0
	}
	a.classes.RegisterInheritance(child, parent)
	return 1
}

func (t *objectTable) ClassName(h int64) (string, bool) {
	o, ok := t.get(h)
	if !ok {
		return "", false
	}
	return o.className, true
}
