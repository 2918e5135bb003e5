// Package classreg is the process-wide class-inheritance and operator
// overload registry used by both the function compilation manager (which
// populates it as ClassDecls are discovered) and the AST emitters (which
// query it while lowering PropertyAccess, NewExpression, and ArrayAccess on
// class instances). Splitting it out of internal/compiler avoids a
// compiler<->emit import cycle, since both packages need it.
package classreg

import (
	"fmt"
	"sync"

	"github.com/example/gots/internal/types"
)

// Overload is one declared operator signature for a class, e.g.
// `operator[](i: int64)`.
type Overload struct {
	Token      string
	ParamTypes []types.DataType
	Symbol     string // the mangled call target, e.g. __op_Matrix_index_int64__
	ReturnType types.DataType
}

// ClassInfo mirrors spec.md §3's Class info record.
type ClassInfo struct {
	Name       string
	Parent     string // "" if none
	Fields     []string
	FieldIndex map[string]int
	Methods    map[string]string // method name -> mangled symbol
	Overloads  map[string][]Overload
}

// Registry is the process-wide map of class name -> ClassInfo plus the
// separate child->parent inheritance map spec.md §3 calls out explicitly
// ("Inheritance is by name and stored in a process-wide map child->parent").
type Registry struct {
	mu       sync.RWMutex
	classes  map[string]*ClassInfo
	parentOf map[string]string
}

func New() *Registry {
	return &Registry{
		classes:  make(map[string]*ClassInfo),
		parentOf: make(map[string]string),
	}
}

// Declare registers a class with its field list. Called once per ClassDecl
// during the compilation manager's discovery phase (§4.6 phase 1).
func (r *Registry) Declare(name, parent string, fields []string) *ClassInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	info := &ClassInfo{
		Name:       name,
		Parent:     parent,
		Fields:     fields,
		FieldIndex: idx,
		Methods:    make(map[string]string),
		Overloads:  make(map[string][]Overload),
	}
	r.classes[name] = info
	if parent != "" {
		r.parentOf[name] = parent
	}
	return info
}

func (r *Registry) Lookup(name string) (*ClassInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// RegisterInheritance records a child->parent edge after both classes have
// been declared; used by the runtime's __register_class_inheritance entry
// point, which learns the relationship later than Declare does.
func (r *Registry) RegisterInheritance(child, parent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parentOf[child] = parent
	if c, ok := r.classes[child]; ok {
		c.Parent = parent
	}
}

// Parent returns the registered parent class name, if any.
func (r *Registry) Parent(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parentOf[name]
	return p, ok
}

// RegisterMethod records a class's method symbol.
func (r *Registry) RegisterMethod(class, method, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[class]
	if !ok {
		return fmt.Errorf("classreg: register method on unknown class %q", class)
	}
	c.Methods[method] = symbol
	return nil
}

// RegisterOverload appends an operator overload to class.
func (r *Registry) RegisterOverload(class string, o Overload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[class]
	if !ok {
		return fmt.Errorf("classreg: register overload on unknown class %q", class)
	}
	c.Overloads[o.Token] = append(c.Overloads[o.Token], o)
	return nil
}

// FieldOffset resolves field to its index within class's (own, not
// inherited) field list, matching §4.5 PropertyAccess.
func (c *ClassInfo) FieldOffset(field string) (int, bool) {
	i, ok := c.FieldIndex[field]
	return i, ok
}

// ResolveOverload implements §4.8's four-step resolution: exact signature,
// ANY fallback, slice-form for `[...]` indices containing `:`, else the
// legacy mangled-symbol fallback.
func (c *ClassInfo) ResolveOverload(token string, argTypes []types.DataType, isSlice bool) (Overload, bool) {
	lookupToken := token
	if isSlice {
		lookupToken = "[:]"
	}
	for _, o := range c.Overloads[lookupToken] {
		if signatureMatches(o.ParamTypes, argTypes) {
			return o, true
		}
	}
	for _, o := range c.Overloads[lookupToken] {
		if allAny(o.ParamTypes) {
			return o, true
		}
	}
	if isSlice {
		for _, o := range c.Overloads["[:]"] {
			return o, true
		}
	}
	// Last resort: synthesize the legacy mangled symbol form so the emitter
	// can still call *something* deterministic even with no declared
	// overload matching (spec.md §4.8 step 4).
	sig := mangleSig(argTypes)
	return Overload{
		Token:      token,
		ParamTypes: argTypes,
		Symbol:     fmt.Sprintf("%s::__op_%s_any_%s__", c.Name, mangleToken(token), sig),
		ReturnType: types.ANY,
	}, false
}

func signatureMatches(decl, actual []types.DataType) bool {
	if len(decl) != len(actual) {
		return false
	}
	for i := range decl {
		if decl[i] != actual[i] {
			return false
		}
	}
	return true
}

func allAny(decl []types.DataType) bool {
	for _, t := range decl {
		if t != types.ANY {
			return false
		}
	}
	return len(decl) > 0
}

func mangleToken(tok string) string {
	switch tok {
	case "[]":
		return "index"
	case "[:]":
		return "slice"
	default:
		return tok
	}
}

func mangleSig(argTypes []types.DataType) string {
	if len(argTypes) == 0 {
		return "void"
	}
	out := ""
	for i, t := range argTypes {
		if i > 0 {
			out += "_"
		}
		out += t.String()
	}
	return out
}
