// Package program holds the bound program handed over by the
// front-end: the symbol table plus per-member type-checked bodies,
// field initializers, constructor chaining info, and import scopes.
// The body compiler consumes it read-only; the package also owns the
// serialized interchange format (see wire.go).
package program

import (
	"ember/internal/bound"
	"ember/internal/diag"
	"ember/internal/source"
	"ember/internal/symbols"
)

// InitializerKind tells how a constructor chains before its own body.
type InitializerKind uint8

const (
	// InitNone means no initializer clause; field initializers run
	// here, then the body.
	InitNone InitializerKind = iota
	// InitThis delegates to a sibling constructor; field initializers
	// are omitted because the target already ran them.
	InitThis
	// InitBase chains to the base type; field initializers still run.
	InitBase
)

// CtorInitializer records a constructor's chaining clause.
type CtorInitializer struct {
	Kind   InitializerKind
	Target symbols.ID
	Span   source.Span
}

// FieldInit pairs a field with its bound initializer expression, in
// declaration order.
type FieldInit struct {
	Field symbols.ID
	Value *bound.Expr
	Span  source.Span
}

// ImportChain is the lexical using-scope chain at a member, emitted as
// debug metadata alongside its body.
type ImportChain struct {
	Usings []string
	Parent *ImportChain
}

// Program is the bound program for one compilation.
type Program struct {
	Table *symbols.Table
	Files *source.FileSet

	bodies    map[symbols.ID]*bound.Body
	inits     map[symbols.ID][]FieldInit
	ctorInits map[symbols.ID]CtorInitializer
	imports   map[symbols.ID]*ImportChain
	// bindDiags carries diagnostics the front-end attached to a
	// member's body; BindBody replays them into the caller's bag.
	bindDiags map[symbols.ID][]diag.Diagnostic
}

func New(table *symbols.Table, files *source.FileSet) *Program {
	if table == nil {
		table = symbols.NewTable()
	}
	if files == nil {
		files = source.NewFileSet()
	}
	return &Program{
		Table:     table,
		Files:     files,
		bodies:    make(map[symbols.ID]*bound.Body),
		inits:     make(map[symbols.ID][]FieldInit),
		ctorInits: make(map[symbols.ID]CtorInitializer),
		imports:   make(map[symbols.ID]*ImportChain),
		bindDiags: make(map[symbols.ID][]diag.Diagnostic),
	}
}

// SetBody attaches a bound body to a member. Front-end/loader only;
// the compiler never writes here.
func (p *Program) SetBody(m symbols.ID, body *bound.Body) {
	p.bodies[m] = body
}

// AddBindDiagnostic attaches a binding-time diagnostic to a member.
func (p *Program) AddBindDiagnostic(m symbols.ID, d diag.Diagnostic) {
	p.bindDiags[m] = append(p.bindDiags[m], d)
}

// SetFieldInitializers records a type's field initializers in
// declaration order.
func (p *Program) SetFieldInitializers(t symbols.ID, inits []FieldInit) {
	p.inits[t] = inits
}

// SetCtorInitializer records a constructor's chaining clause.
func (p *Program) SetCtorInitializer(ctor symbols.ID, init CtorInitializer) {
	p.ctorInits[ctor] = init
}

// SetImports records the using-scope chain at a member.
func (p *Program) SetImports(m symbols.ID, chain *ImportChain) {
	p.imports[m] = chain
}

// BindBody returns the member's bound body and replays any binding
// diagnostics into bag. A nil return means the front-end supplied no
// body for the member.
func (p *Program) BindBody(m symbols.ID, bag *diag.Bag) *bound.Body {
	for _, d := range p.bindDiags[m] {
		bag.Add(d)
	}
	return p.bodies[m]
}

// HasBody reports whether a body exists without replaying diagnostics.
func (p *Program) HasBody(m symbols.ID) bool {
	return p.bodies[m] != nil
}

// FieldInitializers returns a type's initializers in declaration order.
func (p *Program) FieldInitializers(t symbols.ID) []FieldInit {
	return p.inits[t]
}

// CtorInitializer returns a constructor's chaining clause.
func (p *Program) CtorInitializer(ctor symbols.ID) (CtorInitializer, bool) {
	ci, ok := p.ctorInits[ctor]
	return ci, ok
}

// Imports returns the using-scope chain at a member, possibly nil.
func (p *Program) Imports(m symbols.ID) *ImportChain {
	return p.imports[m]
}
