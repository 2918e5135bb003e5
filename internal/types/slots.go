package types

// Variable is the slot allocator's record of one name visible within the
// function currently being compiled: its inferred type, its fixed frame
// offset, and (for CLASS_INSTANCE) the class it was constructed from.
type Variable struct {
	Name      string
	Type      DataType
	Offset    int64 // bytes from RBP; negative = local, positive = stack param
	ClassName string
}

// paramSafetyPadding leaves room below the parameter-spill area before the
// first local is allocated, matching §3's "-(n_params+1)*8-8" starting point.
const paramSafetyPadding = 8

// SlotAllocator is the per-function table described in §4.3: name -> type,
// name -> offset, name -> class name, plus the next free local offset. A
// fresh allocator is built for every function compiled (see
// internal/compiler), so there is never cross-function name bleed.
type SlotAllocator struct {
	types     map[string]DataType
	offsets   map[string]int64
	classes   map[string]string
	nextLocal int64
	order     []string // insertion order, for deterministic stack-size estimates
}

// NewSlotAllocator returns an allocator with no parameters reserved; callers
// compiling a zero-argument function (or the module init body) use this
// directly.
func NewSlotAllocator() *SlotAllocator {
	a := &SlotAllocator{}
	a.ResetForFunction()
	return a
}

// ResetForFunction clears all locals and parameters, matching
// reset_for_function().
func (a *SlotAllocator) ResetForFunction() {
	a.ResetForFunctionWithParams(0)
}

// ResetForFunctionWithParams clears locals and positions the next local
// offset below the parameter spill area, leaving the padding byte described
// in §3: -(n+1)*8-8.
func (a *SlotAllocator) ResetForFunctionWithParams(n int) {
	a.types = make(map[string]DataType)
	a.offsets = make(map[string]int64)
	a.classes = make(map[string]string)
	a.order = nil
	a.nextLocal = -(int64(n)+1)*8 - paramSafetyPadding
}

// BindParam records a parameter's name at its positive stack-passed offset
// (callers compute offsets per the SysV spill discipline in internal/codegen)
// or, for the first six integer parameters, the negative offset they were
// spilled to in the prologue. Either way the slot is fixed once bound.
func (a *SlotAllocator) BindParam(name string, t DataType, offset int64) {
	a.types[name] = t
	a.offsets[name] = offset
	a.order = append(a.order, name)
}

// BindParamClass is BindParam for a CLASS_INSTANCE-typed parameter (`this`
// in a method/constructor/operator body, or any class-typed argument),
// additionally recording the class name so field/method resolution on that
// parameter works for the rest of the function.
func (a *SlotAllocator) BindParamClass(name, className string, offset int64) {
	a.BindParam(name, CLASS_INSTANCE, offset)
	a.classes[name] = className
}

// Allocate implements the allocate(name, type) contract: a name seen before
// keeps its existing offset (only its type is updated, e.g. because later
// code narrowed an UNKNOWN to a concrete type); a new name gets the next
// descending offset.
func (a *SlotAllocator) Allocate(name string, t DataType) int64 {
	if off, ok := a.offsets[name]; ok {
		a.types[name] = t
		return off
	}
	off := a.nextLocal
	a.offsets[name] = off
	a.types[name] = t
	a.order = append(a.order, name)
	a.nextLocal -= 8
	return off
}

// AllocateClass is Allocate for a CLASS_INSTANCE-typed local; it additionally
// records the class name so PropertyAccess emitters can resolve field
// indices later in the same function.
func (a *SlotAllocator) AllocateClass(name, className string) int64 {
	off := a.Allocate(name, CLASS_INSTANCE)
	a.classes[name] = className
	return off
}

// Lookup resolves name to its Variable record, if any. A false second return
// means the name is not local to this function; the emitter then falls back
// to the global/import tables (§4.5 Identifier).
func (a *SlotAllocator) Lookup(name string) (Variable, bool) {
	off, ok := a.offsets[name]
	if !ok {
		return Variable{}, false
	}
	return Variable{Name: name, Type: a.types[name], Offset: off, ClassName: a.classes[name]}, true
}

// Count returns the number of distinct names allocated so far, used by the
// stack-size estimate in §4.5 FunctionDecl.
func (a *SlotAllocator) Count() int { return len(a.order) }

// GetCastType returns the widest of two numeric types by the rank the spec
// fixes in §4.3: STRING absorbs anything, UNKNOWN propagates, float beats
// int, and within each kind the wider rank wins.
func GetCastType(a, b DataType) DataType {
	if a == UNKNOWN || b == UNKNOWN {
		return UNKNOWN
	}
	if a == STRING || b == STRING {
		return STRING
	}
	if a.IsFloat() || b.IsFloat() {
		if a.IsFloat() && b.IsFloat() {
			if floatRank[a] >= floatRank[b] {
				return a
			}
			return b
		}
		if a.IsFloat() {
			return a
		}
		return b
	}
	if a.IsNumeric() && b.IsNumeric() {
		if intRank[a] >= intRank[b] {
			return a
		}
		return b
	}
	return a
}

// NeedsCasting reports whether converting a value already of type from into
// a slot declared as to requires an explicit cast instruction. There is a
// widening path (no cast needed) exactly when to appears at or above from's
// rank in its hierarchy, or when the types are identical.
func NeedsCasting(from, to DataType) bool {
	if from == to {
		return false
	}
	if from.IsFloat() && to.IsFloat() {
		return floatRank[to] < floatRank[from]
	}
	if from.IsNumeric() && to.IsNumeric() && !from.IsFloat() && !to.IsFloat() {
		return intRank[to] < intRank[from]
	}
	if from.IsNumeric() && to.IsFloat() {
		return false
	}
	return true
}
