// Package compiler implements C6: the function compilation manager. It
// drives the three-phase protocol spec.md §4.6 fixes — discovery, body
// emission, finalize & patch — and is the FuncResolver internal/emit
// queries while lowering FunctionExpression, GoExpression, and plain calls.
package compiler

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/gots/internal/arena"
	"github.com/example/gots/internal/ast"
	"github.com/example/gots/internal/classreg"
	"github.com/example/gots/internal/codegen"
	"github.com/example/gots/internal/emit"
	"github.com/example/gots/internal/module"
	"github.com/example/gots/internal/registry"
	"github.com/example/gots/internal/types"
)

// FuncEntry mirrors spec.md §3's Function entry record.
type FuncEntry struct {
	Name       string
	Params     []ast.Parameter
	ReturnType types.DataType
	StackSize  int64
	Offset     int
	HasOffset  bool
	Addr       uintptr
	HasAddr    bool
	ID         uint16
}

// CompileResult is the summary SPEC_FULL.md §5 adds: logged once by
// cmd/gotsc at Info level, the batch-job analogue of the teacher's
// per-request HTTP logging line.
type CompileResult struct {
	CorrelationID  string
	FunctionCount  int
	BytesEmitted   int
	Duration       time.Duration
	EntryPointAddr uintptr

	// HostSymbols lists every Go-hosted runtime symbol the emitted code
	// calls, sorted and deduplicated. Non-empty means the program cannot be
	// executed until the SysV-to-Go half of the calling boundary exists
	// (see internal/runtimeabi.RegisterAll and DESIGN.md, "The native-call
	// boundary"); the embedder decides whether that is fatal.
	HostSymbols []string
}

// Manager owns the shared code generator, the function table, and the
// process-wide registries every emitted call site resolves against.
type Manager struct {
	log     zerolog.Logger
	gen     *codegen.Generator
	reg     *registry.Registry
	classes *classreg.Registry
	mods    *module.Loader
	arena   *arena.Arena

	consts emit.ConstPool

	funcs     map[string]*FuncEntry
	funcOrder []string
	anonSeq   int
}

func NewManager(log zerolog.Logger, reg *registry.Registry, classes *classreg.Registry, mods *module.Loader, ar *arena.Arena, consts emit.ConstPool) *Manager {
	return &Manager{
		log:     log.With().Str("component", "compiler").Logger(),
		gen:     codegen.New(log),
		reg:     reg,
		classes: classes,
		mods:    mods,
		arena:   ar,
		consts:  consts,
		funcs:   make(map[string]*FuncEntry),
	}
}

// Resolve implements emit.FuncResolver.
func (m *Manager) Resolve(name string) (emit.FuncInfo, bool) {
	fe, ok := m.funcs[name]
	if !ok {
		return emit.FuncInfo{}, false
	}
	return emit.FuncInfo{
		Name:       fe.Name,
		Addr:       fe.Addr,
		HasAddr:    fe.HasAddr,
		Offset:     fe.Offset,
		HasOffset:  fe.HasOffset,
		ID:         fe.ID,
		HasID:      true,
		ReturnType: fe.ReturnType,
	}, true
}

func (m *Manager) register(name string, params []ast.Parameter, ret types.DataType) (*FuncEntry, error) {
	if _, exists := m.funcs[name]; exists {
		return m.funcs[name], nil
	}
	id, err := m.reg.RegisterFast(0, len(params), registry.SysV)
	if err != nil {
		return nil, fmt.Errorf("compiler: discovery of %q: %w", name, err)
	}
	fe := &FuncEntry{Name: name, Params: params, ReturnType: ret, ID: id}
	m.funcs[name] = fe
	m.funcOrder = append(m.funcOrder, name)
	return fe, nil
}

func (m *Manager) nextAnonName() string {
	m.anonSeq++
	return fmt.Sprintf("__anon_%d__", m.anonSeq)
}

// Compile runs all three phases over program and returns a summary.
func (m *Manager) Compile(program *ast.Program) (*CompileResult, error) {
	start := timeNow()
	correlationID := uuid.NewString()
	log := m.log.With().Str("run_id", correlationID).Logger()

	var bodies []*funcBody
	var err error
	if bodies, err = m.discover(program); err != nil {
		return nil, fmt.Errorf("compiler: discovery phase: %w", err)
	}
	log.Info().Int("functions", len(bodies)).Msg("discovery complete")

	mainEntry, err := m.register("__main__", nil, types.VOID)
	if err != nil {
		return nil, err
	}
	mainBody := &funcBody{entry: mainEntry, stmts: topLevelExecutable(program.Body)}
	bodies = append([]*funcBody{mainBody}, bodies...)

	for _, fb := range bodies {
		if err := m.emitFunction(fb); err != nil {
			return nil, fmt.Errorf("compiler: emitting %q: %w", fb.entry.Name, err)
		}
	}
	log.Info().Int("bytes", m.gen.Len()).Msg("body emission complete")

	if err := m.gen.ResolveLabels(); err != nil {
		return nil, fmt.Errorf("compiler: link phase: %w", err)
	}

	// Map first so the final load address is known while the generator's
	// buffer is still the source of truth: every relocation below patches the
	// buffer, then one Write copies the fully-linked bytes into the mapping
	// before it flips executable.
	base, err := m.arena.Map(m.gen.Len())
	if err != nil {
		return nil, fmt.Errorf("compiler: arena map: %w", err)
	}

	for _, fb := range bodies {
		fb.entry.Addr = base + uintptr(fb.entry.Offset)
		fb.entry.HasAddr = true
		m.reg.RegisterName(fb.entry.Name, fb.entry.Addr)
		if err := m.reg.UpdateFastAddr(fb.entry.ID, fb.entry.Addr); err != nil {
			return nil, fmt.Errorf("compiler: patch fast-id for %q: %w", fb.entry.Name, err)
		}
	}

	for _, reloc := range m.gen.PendingRelocs() {
		fe, ok := m.funcs[reloc.Symbol]
		if !ok {
			return nil, fmt.Errorf("compiler: unresolved symbol %q at patch time", reloc.Symbol)
		}
		m.gen.PatchReloc(reloc.Offset, base, fe.Addr)
	}
	hostSeen := make(map[string]struct{})
	for _, abs := range m.gen.PendingAbsCalls() {
		m.gen.PatchReloc(abs.DispOff, base, abs.Target)
		if name, ok := m.reg.HostSymbol(abs.Target); ok {
			hostSeen[name] = struct{}{}
		}
	}
	hostSymbols := make([]string, 0, len(hostSeen))
	for name := range hostSeen {
		hostSymbols = append(hostSymbols, name)
	}
	sort.Strings(hostSymbols)

	if err := m.arena.Write(0, m.gen.Bytes()); err != nil {
		return nil, fmt.Errorf("compiler: arena write: %w", err)
	}
	if _, err := m.arena.Finalize(); err != nil {
		return nil, fmt.Errorf("compiler: finalize: %w", err)
	}

	log.Info().Str("entry", mainEntry.Name).Msg("link phase complete")

	return &CompileResult{
		CorrelationID:  correlationID,
		FunctionCount:  len(bodies),
		BytesEmitted:   m.gen.Len(),
		Duration:       timeNow().Sub(start),
		EntryPointAddr: mainEntry.Addr,
		HostSymbols:    hostSymbols,
	}, nil
}

// funcBody pairs a discovered FuncEntry with the statement list to emit for
// it; declarations hold their own body, while FunctionExpressions captured
// during discovery reuse the same shape. thisClass is non-empty for methods,
// constructors, and operator overloads, where the first SysV argument is
// always the receiver and is always spilled to RBP-8 (§4.5 SuperCall relies
// on that fixed location).
type funcBody struct {
	entry     *FuncEntry
	params    []ast.Parameter
	stmts     []ast.Node
	thisClass string
}

// topLevelExecutable filters declarations out of the program body, leaving
// the statements that belong in the synthesized __main__ entry point.
func topLevelExecutable(body []ast.Node) []ast.Node {
	var out []ast.Node
	for _, n := range body {
		switch n.(type) {
		case *ast.FunctionDecl, *ast.ClassDecl:
			continue
		default:
			out = append(out, n)
		}
	}
	return out
}

func timeNow() time.Time { return time.Now() }
