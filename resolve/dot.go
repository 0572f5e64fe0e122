package resolve

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/tapforge/tapforge/semver"
)

// dotGraph accumulates the diagnostic dependency graph emitted on a failed
// resolve: nodes are name@version candidates the search actually considered,
// edges are dependency relations, annotated with which ones failed. Node and
// edge order are recorded as added; String() sorts only the final relation
// set, keeping candidate discovery order visible while output stays
// deterministic.
type dotGraph struct {
	nodes []dotNode
	edges []dotEdge
	seen  map[string]bool
}

type dotNode struct {
	key     string // name@version
	failed  bool   // constraint-incompatible: rendered red
}

type dotEdge struct {
	from, to string
	label    string
	failed   bool // rendered dashed
}

func newDotGraph() *dotGraph {
	return &dotGraph{seen: make(map[string]bool)}
}

// addCandidate records that name@version was considered during search.
// failed marks it red: the candidate was rejected. A node already recorded
// is turned red when a later call reports it failed.
func (g *dotGraph) addCandidate(name string, v semver.SemanticVersion, failed bool) {
	key := fmt.Sprintf("%s@%s", name, v)
	if g.seen[key] {
		if failed {
			for i := range g.nodes {
				if g.nodes[i].key == key {
					g.nodes[i].failed = true
				}
			}
		}
		return
	}
	g.seen[key] = true
	g.nodes = append(g.nodes, dotNode{key: key, failed: failed})
}

// addEdge records a dependency edge from -> to, labeled with the specifier
// string that governs it. failed marks it dashed: this edge is why a
// candidate was rejected.
func (g *dotGraph) addEdge(from, to, label string, failed bool) {
	g.edges = append(g.edges, dotEdge{from: from, to: to, label: label, failed: failed})
}

func dotHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// String renders the graph in Graphviz Dot notation (spec §6 "Diagnostic
// graph"): node labels are name@version, red for constraint-incompatible;
// edge labels are the dependency specifier, dashed where it failed.
func (g *dotGraph) String() string {
	var b bytes.Buffer
	b.WriteString("digraph {\n\tnode [shape=box];\n")

	ids := make(map[string]uint32, len(g.nodes))
	for _, n := range g.nodes {
		id := dotHash(n.key)
		ids[n.key] = id
		if n.failed {
			fmt.Fprintf(&b, "\t%d [label=%q, color=red, style=filled, fillcolor=\"#fbb\"];\n", id, n.key)
		} else {
			fmt.Fprintf(&b, "\t%d [label=%q];\n", id, n.key)
		}
	}

	edges := make([]dotEdge, len(g.edges))
	copy(edges, g.edges)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	for _, e := range edges {
		fromID, okF := ids[e.from]
		toID, okT := ids[e.to]
		if !okF || !okT {
			continue
		}
		style := ""
		if e.failed {
			style = ", style=dashed, color=red"
		}
		fmt.Fprintf(&b, "\t%d -> %d [label=%q%s];\n", fromID, toID, e.label, style)
	}

	b.WriteString("}\n")
	return b.String()
}
