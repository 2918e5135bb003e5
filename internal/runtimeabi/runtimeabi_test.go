package runtimeabi

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/sched"
	"github.com/example/gots/internal/types"
)

func newTestABI(t *testing.T) *ABI {
	t.Helper()
	return New(zerolog.Nop(), nil, nil, classreg.New(), registry.New(), nil)
}

// Intern(s) == Intern(s) as a handle for byte-equal s (spec.md §8 law).
func TestInternDedupesByValue(t *testing.T) {
	abi := newTestABI(t)
	h1 := abi.InternLiteral("hello")
	h2 := abi.InternLiteral("hello")
	h3 := abi.InternLiteral("world")
	if h1 != h2 {
		t.Errorf("equal literals interned to different handles: %d vs %d", h1, h2)
	}
	if h1 == h3 {
		t.Error("distinct literals interned to the same handle")
	}
}

func TestJSEqualCoercions(t *testing.T) {
	abi := newTestABI(t)
	strHandle := abi.InternLiteral("5")
	tests := []struct {
		name                   string
		lval, ltype, rval, rtype int64
		want                   int64
	}{
		{"same type bitwise equal", 7, int64(types.INT64), 7, int64(types.INT64), 1},
		{"same type bitwise unequal", 7, int64(types.INT64), 8, int64(types.INT64), 0},
		{"boolean true vs int 1", 1, int64(types.BOOLEAN), 1, int64(types.INT32), 1},
		{"boolean false vs int 0", 0, int64(types.BOOLEAN), 0, int64(types.INT64), 1},
		{"boolean true vs int 2", 1, int64(types.BOOLEAN), 2, int64(types.INT64), 0},
		{"float bits vs int by value", int64(math.Float64bits(3)), int64(types.FLOAT64), 3, int64(types.INT64), 1},
		{"float bits vs int unequal", int64(math.Float64bits(3.5)), int64(types.FLOAT64), 3, int64(types.INT64), 0},
		{"string vs number by raw value", strHandle, int64(types.STRING), strHandle, int64(types.INT64), 1},
		{"string vs number raw mismatch", strHandle, int64(types.STRING), strHandle + 1, int64(types.INT64), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := abi.JSEqual(tt.lval, tt.ltype, tt.rval, tt.rtype); got != tt.want {
				t.Errorf("JSEqual = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArrayPushPopGetAndSafeDefaults(t *testing.T) {
	abi := newTestABI(t)
	h := abi.arrays.Create(types.INT64)
	abi.arrays.Push(h, 10)
	abi.arrays.Push(h, 20)
	if got := abi.arrays.Size(h); got != 2 {
		t.Errorf("Size = %d, want 2", got)
	}
	if got := abi.arrays.Get(h, 1); got != 20 {
		t.Errorf("Get(1) = %d, want 20", got)
	}
	if got := abi.arrays.Pop(h); got != 20 {
		t.Errorf("Pop = %d, want 20", got)
	}
	// Null/invalid handles return safe defaults, never crash (§7).
	if got := abi.arrays.Size(0); got != 0 {
		t.Errorf("Size(null) = %d, want 0", got)
	}
	if got := abi.arrays.Get(h, 99); got != 0 {
		t.Errorf("out-of-range Get = %d, want 0", got)
	}
}

// ForEach over an object observes properties in declaration order (§8
// scenario 5 rests on propertyNames preserving insertion order).
func TestObjectPropertiesKeepDeclarationOrder(t *testing.T) {
	abi := newTestABI(t)
	h := abi.objects.CreateLiteral()
	for i, k := range []string{"k1", "k2", "k3"} {
		abi.objects.SetProperty(h, k, int64(i+1))
	}
	obj, ok := abi.objects.get(h)
	if !ok {
		t.Fatal("object handle not found")
	}
	want := []string{"k1", "k2", "k3"}
	for i, name := range obj.propertyNames {
		if name != want[i] {
			t.Errorf("property %d = %q, want %q", i, name, want[i])
		}
	}
	if got := abi.objects.GetProperty(h, "k2"); got != 2 {
		t.Errorf("GetProperty(k2) = %d, want 2", got)
	}
	if got := abi.objects.PropertyCount(h); got != 3 {
		t.Errorf("PropertyCount = %d, want 3", got)
	}
	for i, wantName := range want {
		name, ok := abi.objects.PropertyNameAt(h, int64(i))
		if !ok || name != wantName {
			t.Errorf("PropertyNameAt(%d) = (%q, %v), want (%q, true)", i, name, ok, wantName)
		}
	}
	if _, ok := abi.objects.PropertyNameAt(h, 99); ok {
		t.Error("out-of-range PropertyNameAt should report false")
	}
}

func TestStaticProperties(t *testing.T) {
	abi := newTestABI(t)
	class := abi.InternLiteral("Counter")
	abi.StaticSetProperty(class, 0, 41)
	abi.StaticSetProperty(class, 0, 42)
	if got := abi.StaticGetProperty(class, 0); got != 42 {
		t.Errorf("static slot = %d, want 42", got)
	}
	if got := abi.StaticGetProperty(class, 1); got != 0 {
		t.Errorf("unset static slot = %d, want 0", got)
	}
}

func TestPromiseResolveThenAwait(t *testing.T) {
	abi := newTestABI(t)
	h := abi.promises.wrap(sched.NewPromise())
	if got := abi.Resolve(h, 9); got != 1 {
		t.Fatalf("Resolve = %d, want 1", got)
	}
	if got := abi.Await(h); got != 9 {
		t.Errorf("Await = %d, want 9", got)
	}
	// Single assignment: a second resolve is ignored.
	abi.Resolve(h, 100)
	if got := abi.Await(h); got != 9 {
		t.Errorf("Await after second resolve = %d, want the first value 9", got)
	}
}

func TestRegisterClassInheritance(t *testing.T) {
	abi := newTestABI(t)
	abi.classes.Declare("Child", "", []string{"x"})
	abi.classes.Declare("Parent", "", []string{"x"})
	child := abi.InternLiteral("Child")
	parent := abi.InternLiteral("Parent")
	if got := abi.RegisterClassInheritance(child, parent); got != 1 {
		t.Fatalf("RegisterClassInheritance = %d, want 1", got)
	}
	p, ok := abi.classes.Parent("Child")
	if !ok || p != "Parent" {
		t.Errorf("Parent(Child) = (%q, %v), want (Parent, true)", p, ok)
	}
}

func TestStringConcatVariants(t *testing.T) {
	abi := newTestABI(t)
	hello := abi.InternLiteral("hello")
	world := abi.InternLiteral(" world")
	got, _ := abi.strings.get(abi.strings.Concat(hello, world))
	if got != "hello world" {
		t.Errorf("Concat = %q, want %q", got, "hello world")
	}
	mixed, _ := abi.strings.get(abi.strings.ConcatCstr(hello, 42))
	if mixed != "hello42" {
		t.Errorf("ConcatCstr = %q, want %q", mixed, "hello42")
	}
	left, _ := abi.strings.get(abi.strings.ConcatCstrLeft(42, hello))
	if left != "42hello" {
		t.Errorf("ConcatCstrLeft = %q, want %q", left, "42hello")
	}
}
