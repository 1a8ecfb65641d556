package emit

import (
	"fmt"
	"sort"
	"sync"
)

// HelperField is one module-level synthesized datum: a cached string,
// an array initializer blob, a hash table for a switch dispatch.
type HelperField struct {
	Name string
	Type string
	Data []byte
}

// PrivateImplementationDetails is the per-module container that holds
// synthesized helpers shared across methods. Method compilers add to
// it concurrently during fan-out; global assembly freezes it at the
// join point, after which additions fail.
type PrivateImplementationDetails struct {
	mu     sync.Mutex
	fields map[string]HelperField
	frozen bool
}

func newPrivateImpl() *PrivateImplementationDetails {
	return &PrivateImplementationDetails{fields: make(map[string]HelperField)}
}

// Add registers a helper field. Adding the same name twice is fine as
// long as the payloads agree; helpers are deduplicated by name so two
// methods caching the same string share one field.
func (p *PrivateImplementationDetails) Add(f HelperField) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return fmt.Errorf("emit: private implementation is frozen, cannot add %q", f.Name)
	}
	if old, ok := p.fields[f.Name]; ok {
		if old.Type != f.Type || string(old.Data) != string(f.Data) {
			return fmt.Errorf("emit: helper %q added twice with different payloads", f.Name)
		}
		return nil
	}
	p.fields[f.Name] = f
	return nil
}

// Fields returns the helpers sorted by name.
func (p *PrivateImplementationDetails) Fields() []HelperField {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]HelperField, 0, len(p.fields))
	for _, f := range p.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *PrivateImplementationDetails) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fields)
}

func (p *PrivateImplementationDetails) freeze() {
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
}

// Frozen reports whether the container has been sealed.
func (p *PrivateImplementationDetails) Frozen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frozen
}
