package classreg

import (
	"testing"

	"github.com/example/gots/internal/types"
)

func TestDeclareAndLookup(t *testing.T) {
	r := New()
	r.Declare("Matrix", "", []string{"rows", "cols"})
	info, ok := r.Lookup("Matrix")
	if !ok {
		t.Fatal("Matrix not found after Declare")
	}
	if idx, ok := info.FieldOffset("cols"); !ok || idx != 1 {
		t.Errorf("FieldOffset(cols) = (%d, %v), want (1, true)", idx, ok)
	}
	if _, ok := info.FieldOffset("nope"); ok {
		t.Error("FieldOffset of unknown field should report false")
	}
}

func TestParentLookup(t *testing.T) {
	r := New()
	r.Declare("Animal", "", nil)
	r.Declare("Dog", "Animal", nil)
	parent, ok := r.Parent("Dog")
	if !ok || parent != "Animal" {
		t.Errorf("Parent(Dog) = (%q, %v), want (Animal, true)", parent, ok)
	}
	if _, ok := r.Parent("Animal"); ok {
		t.Error("Animal has no parent")
	}
}

func TestRegisterMethodUnknownClass(t *testing.T) {
	r := New()
	if err := r.RegisterMethod("Ghost", "speak", "__method_Ghost_speak__"); err == nil {
		t.Error("registering a method on an undeclared class should fail")
	}
}

// Covers spec.md §4.8's four-step operator overload resolution: exact
// signature wins, then an ANY fallback, then the slice-form overload for
// `[...]` indices containing `:`, then a synthesized legacy symbol.
func TestResolveOverload(t *testing.T) {
	r := New()
	r.Declare("Matrix", "", nil)
	info, _ := r.Lookup("Matrix")

	exact := Overload{Token: "[]", ParamTypes: []types.DataType{types.INT64}, Symbol: "__op_Matrix_[]_int64__", ReturnType: types.FLOAT64}
	anyOverload := Overload{Token: "[]", ParamTypes: []types.DataType{types.ANY}, Symbol: "__op_Matrix_[]_any__", ReturnType: types.ANY}
	sliceOverload := Overload{Token: "[:]", ParamTypes: []types.DataType{types.STRING}, Symbol: "__op_Matrix_[:]_string__", ReturnType: types.ARRAY}

	if err := r.RegisterOverload("Matrix", exact); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterOverload("Matrix", anyOverload); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterOverload("Matrix", sliceOverload); err != nil {
		t.Fatal(err)
	}

	t.Run("exact signature wins", func(t *testing.T) {
		o, matched := info.ResolveOverload("[]", []types.DataType{types.INT64}, false)
		if !matched || o.Symbol != exact.Symbol {
			t.Errorf("got (%+v, %v), want exact overload", o, matched)
		}
	})

	t.Run("falls back to ANY overload", func(t *testing.T) {
		o, matched := info.ResolveOverload("[]", []types.DataType{types.STRING}, false)
		if !matched || o.Symbol != anyOverload.Symbol {
			t.Errorf("got (%+v, %v), want ANY fallback", o, matched)
		}
	})

	t.Run("slice form dispatches to [:] overload", func(t *testing.T) {
		o, matched := info.ResolveOverload("[]", []types.DataType{types.STRING}, true)
		if !matched || o.Symbol != sliceOverload.Symbol {
			t.Errorf("got (%+v, %v), want slice overload", o, matched)
		}
	})

	t.Run("no match synthesizes legacy mangled symbol", func(t *testing.T) {
		empty := New()
		empty.Declare("Bare", "", nil)
		bi, _ := empty.Lookup("Bare")
		o, matched := bi.ResolveOverload("[]", []types.DataType{types.INT64}, false)
		if matched {
			t.Error("no overload declared, ResolveOverload should report false")
		}
		want := "Bare::__op_index_any_int64__"
		if o.Symbol != want {
			t.Errorf("synthesized symbol = %q, want %q", o.Symbol, want)
		}
	})
}
