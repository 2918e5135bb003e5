package runtimeabi

import (
	"math"
	"os"
	"time"

	"github.com/example/gots/internal/types"
)

// Pow backs __runtime_pow, which emit_expr.emitBinaryOp calls for every
// `**`. Operates in
// float64 regardless of the operands' static type, then truncates back to
// the int64 register width, matching NUMBER's float64 backing (§3).
func (a *ABI) Pow(base, exp int64) int64 {
	return int64(math.Pow(float64(base), float64(exp)))
}

// Modulo backs __runtime_modulo, which emit_expr.emitBinaryOp calls for
// every `%`. It uses math.Mod on float64 operands, whose result takes the
// dividend's sign as JS's truncating remainder does; a zero divisor
// yields 0.
func (a *ABI) Modulo(lhs, rhs int64) int64 {
	if rhs == 0 {
		return 0
	}
	return int64(math.Mod(float64(lhs), float64(rhs)))
}

// JSEqual backs __runtime_js_equal(lval, ltype, rval, rtype):
// emit_expr.emitComparison's fallback whenever the two operands' static
// types don't already guarantee a direct integer compare is safe (§4.5).
// Coercion rules: same type compares bitwise; BOOLEAN coerces to 0/1
// against numerics; any numeric pair compares by value; a STRING against a
// numeric compares by raw value identity.
func (a *ABI) JSEqual(lval, ltype, rval, rtype int64) int64 {
	lt, rt := types.DataType(ltype), types.DataType(rtype)
	if lt == rt {
		return boolResult(lval == rval)
	}
	ln, lok := coerceNumeric(lval, lt)
	rn, rok := coerceNumeric(rval, rt)
	if lok && rok {
		return boolResult(ln == rn)
	}
	// STRING vs numeric: compared by raw value identity.
	// TODO: parse the string and compare the parsed number instead.
	return boolResult(lval == rval)
}

func boolResult(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// coerceNumeric maps a tagged register value onto the float64 number line
// the == comparison runs on: booleans become 0/1, floats are reinterpreted
// from their bit pattern, integers convert directly.
func coerceNumeric(v int64, t types.DataType) (float64, bool) {
	switch {
	case t == types.BOOLEAN:
		if v != 0 {
			return 1, true
		}
		return 0, true
	case t.IsFloat():
		return math.Float64frombits(uint64(v)), true
	case t.IsNumeric():
		return float64(v), true
	}
	return 0, false
}

func (a *ABI) ProcessPID() int64 {
	return int64(os.Getpid())
}

func (a *ABI) ProcessCwd(strings *stringTable) int64 {
	wd, err := os.Getwd()
	if err != nil {
		return strings.CreateEmpty()
	}
	return strings.Intern(wd)
}

func (a *ABI) TimeNowMillis() int64 {
	return time.Now().UnixMilli()
}

func (a *ABI) TimeNowNanos() int64 {
	return time.Now().UnixNano()
}
