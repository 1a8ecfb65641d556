package emit

import (
	"fmt"
	"sort"
	"sync"

	"ember/internal/bound"
	"ember/internal/program"
	"ember/internal/source"
	"ember/internal/symbols"
)

// DebugInfo carries the per-method debug facts the rewrite stages
// produce: the state machine backing the method, the names of locals
// hoisted onto closures or machines, the import chain the body was
// bound under, and the lexical scopes of synthesized methods.
type DebugInfo struct {
	StateMachineType symbols.ID
	HoistedSlots     []string
	Imports          *program.ImportChain
	LexicalScope     source.Span
}

// methodEntry is one emitted method.
type methodEntry struct {
	body  *bound.Body
	debug DebugInfo
}

// ModuleBuilder accumulates emitted method bodies for one module.
// Method compilers on worker goroutines write to it concurrently;
// entries are keyed by the defining symbol so partial-method bodies
// land on the definition part regardless of which part was compiled.
type ModuleBuilder struct {
	name  string
	table *symbols.Table

	mu         sync.Mutex
	methods    map[symbols.ID]methodEntry
	entry      symbols.ID
	synthTypes []symbols.ID
	frozen     bool

	privateImpl *PrivateImplementationDetails
}

func NewModuleBuilder(name string, table *symbols.Table) *ModuleBuilder {
	return &ModuleBuilder{
		name:        name,
		table:       table,
		methods:     make(map[symbols.ID]methodEntry),
		privateImpl: newPrivateImpl(),
	}
}

func (m *ModuleBuilder) Name() string { return m.name }

// SetMethodBody records the emitted body for a method. The last write
// for a given definition wins; the member compiler guarantees each
// definition is emitted exactly once.
func (m *ModuleBuilder) SetMethodBody(method symbols.ID, body *bound.Body, debug DebugInfo) error {
	def := m.table.Definition(method)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return fmt.Errorf("emit: module %s is frozen, cannot emit %s", m.name, m.table.FullName(def))
	}
	m.methods[def] = methodEntry{body: body, debug: debug}
	return nil
}

// MethodBody returns the emitted body and debug info for a method, or
// false when the method was never emitted.
func (m *ModuleBuilder) MethodBody(method symbols.ID) (*bound.Body, DebugInfo, bool) {
	def := m.table.Definition(method)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.methods[def]
	return e.body, e.debug, ok
}

// Methods returns emitted method symbols in ID order, which is
// declaration order and therefore stable across runs.
func (m *ModuleBuilder) Methods() []symbols.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]symbols.ID, 0, len(m.methods))
	for id := range m.methods {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetEntryPoint links the module entry point. The forwarder synthesized
// for an async main is linked here in place of the user method.
func (m *ModuleBuilder) SetEntryPoint(method symbols.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return fmt.Errorf("emit: module %s is frozen, cannot set entry point", m.name)
	}
	m.entry = method
	return nil
}

// EntryPoint returns the linked entry point, NoID for library modules.
func (m *ModuleBuilder) EntryPoint() symbols.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry
}

// RegisterSynthesizedType records a type synthesized during lowering
// (closure environments, state machines) for the artifact's type table.
func (m *ModuleBuilder) RegisterSynthesizedType(t symbols.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return fmt.Errorf("emit: module %s is frozen, cannot register type %s", m.name, m.table.FullName(t))
	}
	m.synthTypes = append(m.synthTypes, t)
	return nil
}

// SynthesizedTypes returns registered synthesized types in ID order.
func (m *ModuleBuilder) SynthesizedTypes() []symbols.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]symbols.ID(nil), m.synthTypes...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PrivateImplementation returns the module's shared helper container.
func (m *ModuleBuilder) PrivateImplementation() *PrivateImplementationDetails {
	return m.privateImpl
}

// SealHelpers freezes the helper container ahead of the module itself.
// Global assembly seals it at the join point so the helper set is final
// while entry-point linkage and late synthesized members can still
// land.
func (m *ModuleBuilder) SealHelpers() {
	m.privateImpl.freeze()
}

// Freeze seals the builder. Emission after the join point is a bug;
// freezing turns it into an error instead of a silent late write.
func (m *ModuleBuilder) Freeze() {
	m.mu.Lock()
	m.frozen = true
	m.mu.Unlock()
	m.privateImpl.freeze()
}

func (m *ModuleBuilder) Frozen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frozen
}
