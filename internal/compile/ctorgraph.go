package compile

import (
	"sort"

	"ember/internal/source"
	"ember/internal/symbols"
)

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// ctorGraph records which constructor each constructor delegates to
// via its initializer, keyed by the delegating constructor. A
// constructor has at most one outgoing edge.
type ctorGraph struct {
	edges map[symbols.ID]ctorEdge
}

type ctorEdge struct {
	target symbols.ID
	span   source.Span
}

func newCtorGraph() *ctorGraph {
	return &ctorGraph{edges: make(map[symbols.ID]ctorEdge)}
}

func (g *ctorGraph) addEdge(from, to symbols.ID, span source.Span) {
	g.edges[from] = ctorEdge{target: to, span: span}
}

// cycleSpan walks delegation chains from every recorded constructor
// and returns the span of the first edge that closes a cycle, in
// constructor-ID order so the report is scheduling-independent. A
// revisit of a node already on the current path is the cycle; nodes
// finished on an earlier walk are skipped, so each cycle is found once
// no matter how many constructors feed into it.
func (g *ctorGraph) cycleSpan() (source.Span, bool) {
	starts := make([]symbols.ID, 0, len(g.edges))
	for from := range g.edges {
		starts = append(starts, from)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	states := make(map[symbols.ID]visitState, len(g.edges))
	for _, start := range starts {
		cur := start
		var path []symbols.ID
		for {
			switch states[cur] {
			case stateVisiting:
				// The edge that returned to the path closes the
				// cycle; blame its span.
				last := path[len(path)-1]
				span := g.edges[last].span
				return span, true
			case stateDone:
				// fallthrough to unwind below
			default:
				if edge, ok := g.edges[cur]; ok {
					states[cur] = stateVisiting
					path = append(path, cur)
					cur = edge.target
					continue
				}
			}
			for _, id := range path {
				states[id] = stateDone
			}
			states[cur] = stateDone
			break
		}
	}
	return source.Span{}, false
}
