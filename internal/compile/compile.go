package compile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ember/internal/diag"
	"ember/internal/emit"
	"ember/internal/lower"
	"ember/internal/symbols"
)

// orchestrator drives the fork/join compilation of a whole program.
type orchestrator struct {
	c      *Compilation
	opts   Options
	module *emit.ModuleBuilder
	hook   lower.StageHook

	tracker workTracker
	fatal   chan error

	resMu   sync.Mutex
	results map[symbols.ID]*diag.Bag

	synthMu    sync.Mutex
	synthTypes []symbols.ID
}

// CompileBodies compiles every member body of the compilation into
// module, or into diagnostics only when module is nil. Diagnostics
// land in bag; the returned error is cancellation or a fatal internal
// failure, never an ordinary compile error.
//
// The merged diagnostic set is a function of the input symbols alone:
// per-worker bags are keyed by type and merged in symbol order after
// the join, so scheduling never reorders what the caller sees.
func CompileBodies(ctx context.Context, c *Compilation, module *emit.ModuleBuilder, opts Options, bag *diag.Bag) error {
	return compileBodies(ctx, c, module, opts, bag, nil)
}

// compileBodies additionally takes a stage hook for tests.
func compileBodies(ctx context.Context, c *Compilation, module *emit.ModuleBuilder, opts Options, bag *diag.Bag, hook lower.StageHook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := &orchestrator{
		c:       c,
		opts:    opts,
		module:  module,
		hook:    hook,
		fatal:   make(chan error, 1),
		results: make(map[symbols.ID]*diag.Bag),
	}

	// Entry-point work precedes the fan-out: an async main's forwarder
	// must exist as a symbol before ordinary compilation can find it.
	if opts.RequireEntryPoint && module != nil {
		resolveEntryPoint(c, module, bag)
	}

	o.compileNamespace(ctx, c.Table().Root())
	o.tracker.WaitForWorkers()

	// Second phase: types synthesized during fan-out (closure
	// environments, state machines) are registered with the module once
	// every owning worker has joined, then joined again.
	o.registerSynthesizedTypes(ctx)
	o.tracker.WaitForWorkers()

	select {
	case err := <-o.fatal:
		return err
	default:
	}
	if err := ctx.Err(); err != nil {
		// Cancellation discards the run wholesale: no partial
		// diagnostics, no module assembly.
		return err
	}

	o.mergeResults(bag)
	o.assembleGlobal(ctx, bag)
	return nil
}

// spawnOrInline runs fn on a worker when concurrent builds are on,
// inline otherwise. A non-cancellation panic inside a worker is a
// compiler bug: it lands on the fatal channel and aborts the run after
// the join rather than crashing the process.
func (o *orchestrator) spawnOrInline(fn func()) {
	if !o.opts.Concurrent {
		fn()
		return
	}
	o.tracker.Spawn(func() {
		defer func() {
			if r := recover(); r != nil {
				select {
				case o.fatal <- fmt.Errorf("compile: internal failure: %v", r):
				default:
				}
			}
		}()
		fn()
	})
}

func (o *orchestrator) compileNamespace(ctx context.Context, ns symbols.ID) {
	if ctx.Err() != nil {
		return
	}
	sym, ok := o.c.Table().Get(ns)
	if !ok {
		return
	}
	for _, member := range sym.Members {
		m := member
		child, ok := o.c.Table().Get(m)
		if !ok {
			continue
		}
		switch child.Kind {
		case symbols.KindNamespace:
			o.spawnOrInline(func() { o.compileNamespace(ctx, m) })
		case symbols.KindType:
			o.spawnOrInline(func() { o.compileType(ctx, m) })
		}
	}
}

// compileType compiles one type's members on a single logical worker.
// The TypeState stays on this goroutine for the type's whole lifetime.
func (o *orchestrator) compileType(ctx context.Context, t symbols.ID) {
	if ctx.Err() != nil {
		return
	}
	sym, ok := o.c.Table().Get(t)
	if !ok {
		return
	}
	state := newTypeState(t)
	mc := &memberCompiler{c: o.c, opts: o.opts, module: o.module, state: state, hook: o.hook}
	bag := diag.NewBag(0)

	for _, member := range sym.Members {
		if ctx.Err() != nil {
			return
		}
		m := member
		child, ok := o.c.Table().Get(m)
		if !ok {
			continue
		}
		switch child.Kind {
		case symbols.KindMethod:
			if o.opts.accepts(m) {
				mc.compileMethod(ctx, m, bag)
			}
		case symbols.KindType:
			// Nested types are independent units of work.
			o.spawnOrInline(func() { o.compileType(ctx, m) })
		}
	}

	mc.reportCtorCycles(bag)
	mc.compileSynthesized(ctx, bag)

	o.recordSynthesizedTypes(state.SynthesizedTypes())
	o.record(t, bag)
}

func (o *orchestrator) recordSynthesizedTypes(types []symbols.ID) {
	if len(types) == 0 {
		return
	}
	o.synthMu.Lock()
	o.synthTypes = append(o.synthTypes, types...)
	o.synthMu.Unlock()
}

// registerSynthesizedTypes hands the types accumulated per worker to
// the module builder, sorted by symbol ID so the registration order is
// a function of the program, not of scheduling.
func (o *orchestrator) registerSynthesizedTypes(ctx context.Context) {
	if o.module == nil || ctx.Err() != nil {
		return
	}
	o.synthMu.Lock()
	types := append([]symbols.ID(nil), o.synthTypes...)
	o.synthMu.Unlock()
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		id := t
		o.spawnOrInline(func() {
			if err := o.module.RegisterSynthesizedType(id); err != nil {
				o.c.SetGlobalError()
			}
		})
	}
}

func (o *orchestrator) record(t symbols.ID, bag *diag.Bag) {
	if bag.Len() == 0 {
		return
	}
	o.resMu.Lock()
	defer o.resMu.Unlock()
	if existing, ok := o.results[t]; ok {
		existing.Merge(bag)
		return
	}
	o.results[t] = bag
}

// mergeResults folds per-type bags into the caller's bag in symbol-ID
// order, which is declaration order.
func (o *orchestrator) mergeResults(bag *diag.Bag) {
	o.resMu.Lock()
	defer o.resMu.Unlock()
	keys := make([]symbols.ID, 0, len(o.results))
	for t := range o.results {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, t := range keys {
		bag.Merge(o.results[t])
	}
}
