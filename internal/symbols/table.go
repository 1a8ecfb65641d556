package symbols

import (
	"strings"
	"sync"

	"ember/internal/source"
)

// Table is the arena of all symbols in a compilation. Declared symbols
// go in before body compilation starts; lowering stages append
// synthesized symbols concurrently, so the arena is guarded.
type Table struct {
	mu   sync.RWMutex
	syms []Symbol
	root ID
}

func NewTable() *Table {
	t := &Table{
		// Index 0 is reserved so NoID never aliases a real symbol.
		syms: make([]Symbol, 1, 64),
	}
	t.root = t.add(Symbol{Name: "", Kind: KindNamespace})
	return t
}

// Root returns the global namespace.
func (t *Table) Root() ID {
	return t.root
}

func (t *Table) add(s Symbol) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.syms = append(t.syms, s)
	id := ID(len(t.syms) - 1)
	if s.Parent.IsValid() {
		parent := &t.syms[s.Parent]
		parent.Members = append(parent.Members, id)
	}
	return id
}

// Get returns a copy of the symbol. Copies keep readers safe from
// concurrent arena growth; symbols are small.
func (t *Table) Get(id ID) (Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == NoID || int(id) >= len(t.syms) {
		return Symbol{}, false
	}
	return t.syms[id], true
}

// MustGet returns the symbol or a zero Symbol for invalid IDs.
func (t *Table) MustGet(id ID) Symbol {
	s, _ := t.Get(id)
	return s
}

// Len returns the number of symbols, reserved slot included.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.syms)
}

// Members returns a copy of the child list.
func (t *Table) Members(id ID) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == NoID || int(id) >= len(t.syms) {
		return nil
	}
	members := t.syms[id].Members
	out := make([]ID, len(members))
	copy(out, members)
	return out
}

// NewNamespace declares a namespace under parent.
func (t *Table) NewNamespace(parent ID, name string) ID {
	return t.add(Symbol{Name: name, Kind: KindNamespace, Parent: parent})
}

// NewType declares a type under parent.
func (t *Table) NewType(parent ID, name string, flags Flags, span source.Span) ID {
	return t.add(Symbol{Name: name, Kind: KindType, Parent: parent, Flags: flags, Span: span})
}

// NewMethod declares a method under a type.
func (t *Table) NewMethod(parent ID, name string, flags Flags, span source.Span, info MethodInfo) ID {
	mi := info
	return t.add(Symbol{Name: name, Kind: KindMethod, Parent: parent, Flags: flags, Span: span, Method: &mi})
}

// NewField declares a field under a type.
func (t *Table) NewField(parent ID, name string, flags Flags, span source.Span, info FieldInfo) ID {
	fi := info
	return t.add(Symbol{Name: name, Kind: KindField, Parent: parent, Flags: flags, Span: span, Field: &fi})
}

// NewProperty declares a property and links its accessors.
func (t *Table) NewProperty(parent ID, name string, flags Flags, span source.Span, info PropertyInfo) ID {
	pi := info
	return t.add(Symbol{Name: name, Kind: KindProperty, Parent: parent, Flags: flags, Span: span, Property: &pi})
}

// NewEvent declares an event and links its accessors.
func (t *Table) NewEvent(parent ID, name string, flags Flags, span source.Span, info EventInfo) ID {
	ei := info
	return t.add(Symbol{Name: name, Kind: KindEvent, Parent: parent, Flags: flags, Span: span, Event: &ei})
}

// Definition resolves a method to its canonical definition: the
// non-partial definition part when the method is a partial
// implementation, otherwise the method itself. Emitted bodies are
// always keyed by this ID.
func (t *Table) Definition(id ID) ID {
	s, ok := t.Get(id)
	if !ok || s.Kind != KindMethod || s.Method == nil {
		return id
	}
	if s.Method.Definition.IsValid() {
		return s.Method.Definition
	}
	return id
}

// FullName returns the dotted path from the root namespace. Synthesized
// names derive from this, which ties them to symbol identity rather
// than scheduling.
func (t *Table) FullName(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var parts []string
	for id.IsValid() && int(id) < len(t.syms) {
		s := t.syms[id]
		if s.Name != "" {
			parts = append(parts, s.Name)
		}
		id = s.Parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}
