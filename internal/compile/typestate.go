package compile

import (
	"ember/internal/lower"
	"ember/internal/program"
	"ember/internal/symbols"
)

// TypeState is the mutable context for compiling one type's members.
// It is owned exclusively by the single logical worker compiling that
// type and must never cross a goroutine boundary; nothing here is
// synchronized.
type TypeState struct {
	Type symbols.ID

	// CurrentImports is the import chain of the member being lowered,
	// inherited by methods synthesized from it for debug info.
	CurrentImports *program.ImportChain

	synthesizedTypes []symbols.ID
	synthesized      []lower.SynthesizedMethod

	ctors *ctorGraph
}

func newTypeState(t symbols.ID) *TypeState {
	return &TypeState{Type: t, ctors: newCtorGraph()}
}

// AddSynthesizedType records a type synthesized during lowering
// (closure environments, state machines).
func (s *TypeState) AddSynthesizedType(t symbols.ID) {
	s.synthesizedTypes = append(s.synthesizedTypes, t)
}

// AddSynthesizedMethod queues a method synthesized during lowering for
// compilation after the type's ordinary members finish.
func (s *TypeState) AddSynthesizedMethod(m lower.SynthesizedMethod) {
	s.synthesized = append(s.synthesized, m)
}

// takeSynthesized drains the queue. Compiling a synthesized method can
// synthesize more; callers loop until the drain comes back empty.
func (s *TypeState) takeSynthesized() []lower.SynthesizedMethod {
	out := s.synthesized
	s.synthesized = nil
	return out
}

// SynthesizedTypes returns the types synthesized so far, in creation
// order.
func (s *TypeState) SynthesizedTypes() []symbols.ID {
	return s.synthesizedTypes
}
