package compile

import (
	"sync"
	"sync/atomic"

	"ember/internal/diag"
	"ember/internal/program"
	"ember/internal/source"
	"ember/internal/symbols"
)

// Compilation is the whole-program context shared read-mostly by every
// worker. The only cross-worker mutations are the monotonic global
// error flag, the processed-member event queue, and the per-member
// diagnostic cache, each behind its own synchronization.
type Compilation struct {
	Program *program.Program

	errFlag atomic.Bool

	eventMu   sync.Mutex
	processed map[symbols.ID]struct{}
	events    []symbols.ID

	cacheMu sync.RWMutex
	cached  map[symbols.ID][]diag.Diagnostic
}

func NewCompilation(p *program.Program) *Compilation {
	return &Compilation{
		Program:   p,
		processed: make(map[symbols.ID]struct{}),
		cached:    make(map[symbols.ID][]diag.Diagnostic),
	}
}

func (c *Compilation) Table() *symbols.Table { return c.Program.Table }

func (c *Compilation) Files() *source.FileSet { return c.Program.Files }

// SetGlobalError raises the compilation-wide error flag. Writes are
// monotonic; a lost race costs at most some extra safe work, so plain
// atomic stores suffice. Whole-program decisions read the flag only
// after a full join.
func (c *Compilation) SetGlobalError() {
	c.errFlag.Store(true)
}

// GlobalErrorsExist reads the flag. Only meaningful for whole-program
// decisions after WaitForWorkers; never use it to decide whether to
// report an individual member's diagnostics.
func (c *Compilation) GlobalErrorsExist() bool {
	return c.errFlag.Load()
}

// noteProcessed pushes a member-fully-processed event, once per member.
func (c *Compilation) noteProcessed(id symbols.ID) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	if _, ok := c.processed[id]; ok {
		return
	}
	c.processed[id] = struct{}{}
	c.events = append(c.events, id)
}

// ProcessedEvents returns the members processed so far, in event
// order. The order is scheduling-dependent; consumers wanting
// determinism must sort.
func (c *Compilation) ProcessedEvents() []symbols.ID {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	out := make([]symbols.ID, len(c.events))
	copy(out, c.events)
	return out
}

// cacheDiagnostics remembers a member's diagnostic set so later
// diagnostics-only passes replay it without recompiling the body.
func (c *Compilation) cacheDiagnostics(id symbols.ID, items []diag.Diagnostic) {
	cp := make([]diag.Diagnostic, len(items))
	copy(cp, items)
	c.cacheMu.Lock()
	c.cached[id] = cp
	c.cacheMu.Unlock()
}

// cachedDiagnostics returns the cached set and whether one exists.
func (c *Compilation) cachedDiagnostics(id symbols.ID) ([]diag.Diagnostic, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	items, ok := c.cached[id]
	return items, ok
}
