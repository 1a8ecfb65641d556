package bound

import (
	"ember/internal/source"
)

// Block is a sequence of statements.
type Block struct {
	Stmts []*Stmt
	Span  source.Span
}

// IsEmpty returns true if the block has no statements.
func (b *Block) IsEmpty() bool {
	return b == nil || len(b.Stmts) == 0
}

// Prepend returns a new block with stmts inserted before the existing
// ones, preserving source order of both halves.
func (b *Block) Prepend(stmts ...*Stmt) *Block {
	if len(stmts) == 0 {
		return b
	}
	span := source.Span{}
	var existing []*Stmt
	if b != nil {
		span = b.Span
		existing = b.Stmts
	}
	out := make([]*Stmt, 0, len(stmts)+len(existing))
	out = append(out, stmts...)
	out = append(out, existing...)
	return &Block{Stmts: out, Span: span}
}

// Append returns a new block with stmts added at the end.
func (b *Block) Append(stmts ...*Stmt) *Block {
	if len(stmts) == 0 {
		return b
	}
	span := source.Span{}
	var existing []*Stmt
	if b != nil {
		span = b.Span
		existing = b.Stmts
	}
	out := make([]*Stmt, 0, len(existing)+len(stmts))
	out = append(out, existing...)
	out = append(out, stmts...)
	return &Block{Stmts: out, Span: span}
}
