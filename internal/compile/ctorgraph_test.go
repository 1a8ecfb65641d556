package compile

import (
	"testing"

	"ember/internal/source"
	"ember/internal/symbols"
)

func edgeSpan(n uint32) source.Span {
	return source.Span{File: 1, Start: n, End: n + 1}
}

func TestCtorGraphAcyclicChain(t *testing.T) {
	g := newCtorGraph()
	g.addEdge(symbols.ID(10), symbols.ID(11), edgeSpan(10))
	g.addEdge(symbols.ID(11), symbols.ID(12), edgeSpan(11))
	if _, found := g.cycleSpan(); found {
		t.Fatalf("cycle reported in an acyclic chain")
	}
}

func TestCtorGraphManyIntoOneTarget(t *testing.T) {
	g := newCtorGraph()
	g.addEdge(symbols.ID(10), symbols.ID(12), edgeSpan(10))
	g.addEdge(symbols.ID(11), symbols.ID(12), edgeSpan(11))
	if _, found := g.cycleSpan(); found {
		t.Fatalf("cycle reported for fan-in delegation")
	}
}

func TestCtorGraphCycleBlamesClosingEdge(t *testing.T) {
	g := newCtorGraph()
	g.addEdge(symbols.ID(10), symbols.ID(11), edgeSpan(10))
	g.addEdge(symbols.ID(11), symbols.ID(12), edgeSpan(11))
	g.addEdge(symbols.ID(12), symbols.ID(10), edgeSpan(12))
	span, found := g.cycleSpan()
	if !found {
		t.Fatalf("three-constructor cycle not detected")
	}
	// The walk starts at the lowest ID, so the edge returning to it
	// closes the cycle.
	if span != edgeSpan(12) {
		t.Fatalf("blamed span %+v, want the closing edge's", span)
	}
}

func TestCtorGraphSelfDelegation(t *testing.T) {
	g := newCtorGraph()
	g.addEdge(symbols.ID(10), symbols.ID(10), edgeSpan(10))
	span, found := g.cycleSpan()
	if !found {
		t.Fatalf("self-delegation not detected")
	}
	if span != edgeSpan(10) {
		t.Fatalf("blamed span %+v", span)
	}
}

func TestCtorGraphTailIntoCycleFindsIt(t *testing.T) {
	// 5 feeds into the 10↔11 cycle without being part of it.
	g := newCtorGraph()
	g.addEdge(symbols.ID(5), symbols.ID(10), edgeSpan(5))
	g.addEdge(symbols.ID(10), symbols.ID(11), edgeSpan(10))
	g.addEdge(symbols.ID(11), symbols.ID(10), edgeSpan(11))
	if _, found := g.cycleSpan(); !found {
		t.Fatalf("cycle behind a tail not detected")
	}
}
