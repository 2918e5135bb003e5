package module

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/ast"
)

func TestExportedConstantResolvesForImporter(t *testing.T) {
	l := New(zerolog.Nop())
	l.ExportConstant("MAX_RETRIES", 5)

	v, ok := l.ResolveConstant("MAX_RETRIES")
	if !ok || v != 5 {
		t.Errorf("ResolveConstant = (%d, %v), want (5, true)", v, ok)
	}

	// An import renaming the binding aliases the folded value.
	l.Import("./config.gts", []ast.ImportBinding{{LocalName: "retries", ExportName: "MAX_RETRIES"}})
	v, ok = l.ResolveConstant("retries")
	if !ok || v != 5 {
		t.Errorf("renamed import = (%d, %v), want (5, true)", v, ok)
	}
}

func TestNonConstantBindingStaysUnresolved(t *testing.T) {
	l := New(zerolog.Nop())
	l.Import("./helpers.gts", []ast.ImportBinding{{LocalName: "helper", ExportName: "helper"}})
	if _, ok := l.ResolveConstant("helper"); ok {
		t.Error("a non-constant binding should not resolve to an immediate")
	}
}

// A module observed mid-load exposes the partial flag; finishing the load
// clears it (§4.9's circular-import tolerance).
func TestPartialFlagDuringCycle(t *testing.T) {
	l := New(zerolog.Nop())
	l.BeginLoad("./a.gts")
	if !l.IsPartial("./a.gts") {
		t.Error("a module mid-load should report partial")
	}
	// The cycle: b imports a while a is still loading. BeginLoad is a no-op
	// for an already-loading path.
	l.BeginLoad("./a.gts")
	if !l.IsPartial("./a.gts") {
		t.Error("re-entering a loading module must not reset its state")
	}
	l.FinishLoad("./a.gts")
	if l.IsPartial("./a.gts") {
		t.Error("a finished module should not report partial")
	}
}

func TestIsPartialUnknownModule(t *testing.T) {
	l := New(zerolog.Nop())
	if l.IsPartial("./never-seen.gts") {
		t.Error("an unknown module is not partial")
	}
}
