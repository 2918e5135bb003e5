// Package module implements §4.9: a lazy, cycle-tolerant import resolver.
// A module "mid-load" when another import reaches back to it exposes a
// Partial flag; the importer proceeds with whatever exports are already
// available rather than deadlocking or erroring. Constant exports (literal
// number assignments) are folded into a process-wide constants table so an
// Identifier lookup of an imported name costs nothing at runtime.
package module

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/gots/internal/ast"
)

// Status tracks one module's load progress.
type Status int

const (
	NotLoaded Status = iota
	Loading
	Loaded
)

type moduleState struct {
	status Status
}

// Loader is shared process-wide (one instance per compiled program),
// mirroring the process-wide registries design-notes §9 calls for, but
// passed explicitly rather than reached for as a singleton.
type Loader struct {
	mu      sync.RWMutex
	modules map[string]*moduleState
	// globalConstants is the flat namespace an Identifier lookup checks
	// first (§4.5): imported constant exports, keyed by the *local* binding
	// name the importer chose, not by the exporting module's own name.
	globalConstants map[string]int64
	log             zerolog.Logger
}

func New(log zerolog.Logger) *Loader {
	return &Loader{
		modules:         make(map[string]*moduleState),
		globalConstants: make(map[string]int64),
		log:             log.With().Str("component", "module").Logger(),
	}
}

// BeginLoad marks path as Loading. A second BeginLoad for a path already
// Loading (the cycle case) is a no-op: the caller is expected to check
// IsPartial and proceed with whatever's already exported.
func (l *Loader) BeginLoad(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.modules[path]; !ok {
		l.modules[path] = &moduleState{status: Loading}
	}
}

func (l *Loader) FinishLoad(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.modules[path]; ok {
		m.status = Loaded
	}
}

// IsPartial reports whether path is currently mid-load (a cycle was
// observed reaching back into it).
func (l *Loader) IsPartial(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modules[path]
	return ok && m.status == Loading
}

// Import records that the current module imports bindings from path. Since
// the parser/lexer own actual file resolution (out of scope, §1), this
// records the intent so ResolveConstant can serve identifier lookups; actual
// cross-module constant propagation runs through ExportConstant on the
// exporting side. This call marks path as loading and, for a binding
// imported under a different local name, copies an already-exported
// constant to that local name.
func (l *Loader) Import(path string, bindings []ast.ImportBinding) {
	l.BeginLoad(path)
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range bindings {
		if v, ok := l.globalConstants[b.ExportName]; ok && b.LocalName != b.ExportName {
			l.globalConstants[b.LocalName] = v
		}
		// Non-constant bindings are left unresolved on purpose: they surface
		// as UNKNOWN-typed opaque slots at the Identifier emitter (§4.9).
	}
}

// ExportConstant folds a literal-number export into the flat global lookup
// table, so importers see it as an immediate with no runtime call (§4.9).
// Imports rebinding it under a different local name alias it via Import.
func (l *Loader) ExportConstant(name string, value int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globalConstants[name] = value
}

// ResolveConstant is the fast path the Identifier emitter checks first.
func (l *Loader) ResolveConstant(name string) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.globalConstants[name]
	return v, ok
}
