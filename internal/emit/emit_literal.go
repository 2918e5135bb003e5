package emit

import (
	"math"

	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/types"
)

// runtimeSentinel is the identifier name the parser reserves for
// `runtime.*` access; kept here only as a defensive fallback since
// RuntimeCall nodes should already carry namespace/method directly
// (design-notes §9) — a bare `Identifier{Name:"runtime"}` reaching this far
// means the object was referenced without a following method call, e.g.
// passed as a value, which has no code to emit at all.
const runtimeSentinel = "runtime"

func (e *Emitter) emitNumberLiteral(n *ast.NumberLiteral) error {
	t := n.Declared
	if t == types.UNKNOWN {
		if n.IsInt {
			t = types.INT64
		} else {
			t = types.NUMBER
		}
	}
	if t.IsFloat() {
		bits := math.Float64bits(n.Value)
		e.Gen.MovRegImm(codegen.RAX, int64(bits))
	} else {
		e.Gen.MovRegImm(codegen.RAX, n.IntValue)
	}
	n.SetResultType(t)
	return nil
}

func (e *Emitter) emitBooleanLiteral(n *ast.BooleanLiteral) error {
	v := int64(0)
	if n.Value {
		v = 1
	}
	e.Gen.MovRegImm(codegen.RAX, v)
	n.SetResultType(types.BOOLEAN)
	return nil
}

// emitStringLiteral interns the literal at compile time via byte-exact
// lookup (equal literals share one heap instance, §4.5) and loads the
// resulting handle as an immediate — the arena carries no data segment, so
// the literal's bytes live in the runtime's intern pool from the moment the
// emitter sees them rather than being re-interned on every execution. An
// empty literal uses __string_create_empty rather than the intern path, per
// the boundary behavior spec.md §8 calls out explicitly.
func (e *Emitter) emitStringLiteral(n *ast.StringLiteral) error {
	if n.Value == "" {
		if err := e.EmitCallKnown("__string_create_empty"); err != nil {
			return err
		}
		n.SetResultType(types.STRING)
		return nil
	}
	handle := e.Consts.InternLiteral(n.Value)
	e.Gen.MovRegImm(codegen.RAX, handle)
	n.SetResultType(types.STRING)
	return nil
}

func (e *Emitter) emitRegexLiteral(n *ast.RegexLiteral) error {
	e.Gen.MovRegImm(codegen.RDI, e.Consts.InternLiteral(n.Pattern))
	e.Gen.MovRegImm(codegen.RSI, e.Consts.InternLiteral(n.Flags))
	if err := e.EmitCallKnown("__regex_compile"); err != nil {
		return err
	}
	n.SetResultType(types.REGEX)
	return nil
}

// emitIdentifier resolves in the precedence order §4.5 fixes: imported
// folded constants, then the `runtime` sentinel (no code — see
// design-notes §9, handled instead via RuntimeCall at its use sites), then
// the local slot table.
func (e *Emitter) emitIdentifier(n *ast.Identifier) error {
	if e.Mods != nil {
		if v, ok := e.Mods.ResolveConstant(n.Name); ok {
			e.Gen.MovRegImm(codegen.RAX, v)
			n.SetResultType(types.NUMBER)
			return nil
		}
	}
	if n.Name == runtimeSentinel {
		n.SetResultType(types.RUNTIME_OBJECT)
		return nil
	}
	if slot, ok := e.Slots.Lookup(n.Name); ok {
		e.Gen.MovRegMem(codegen.RAX, int32(slot.Offset))
		n.SetResultType(slot.Type)
		return nil
	}
	// Unresolved identifiers are imported opaque bindings (§4.9): type
	// UNKNOWN, and since the module loader tolerates partial cycles there is
	// no code to emit until the binding resolves — the emitter simply marks
	// the result UNKNOWN rather than failing compilation outright.
	n.SetResultType(types.UNKNOWN)
	return nil
}
