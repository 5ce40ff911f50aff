package csgga

import (
	"io"
	"slices"

	"github.com/soypat/csg"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is the connection graph of a set of primitives. Two primitives are
// connected when they touch or overlap.
type Graph struct {
	g     *simple.UndirectedGraph
	funcs []csg.Function
	ids   map[string]int64
}

type graphNode struct {
	id int64
	fn csg.Function
}

func (n graphNode) ID() int64 { return n.id }
func (n graphNode) DOTID() string { return n.fn.Name() }
func (n graphNode) String() string { return n.fn.Name() }

// NewGraph returns a graph over fs without edges. Functions are identified
// by name.
func NewGraph(fs []csg.Function) *Graph {
	g := &Graph{g: simple.NewUndirectedGraph(), ids: make(map[string]int64)}
	for _, f := range fs {
		g.add(f)
	}
	return g
}

func (g *Graph) add(f csg.Function) int64 {
	if id, ok := g.ids[f.Name()]; ok {
		return id
	}
	id := int64(len(g.funcs))
	g.funcs = append(g.funcs, f)
	g.ids[f.Name()] = id
	g.g.AddNode(graphNode{id: id, fn: f})
	return id
}

// ConnectionGraph connects every pair of functions where a sample point of
// one lies inside the other or within eps of its surface.
func ConnectionGraph(fs []csg.Function, eps float64) *Graph {
	g := NewGraph(fs)
	for i, a := range g.funcs {
		for _, b := range g.funcs[i+1:] {
			if touches(a, b, eps) || touches(b, a, eps) {
				g.Connect(a, b)
			}
		}
	}
	return g
}

func touches(a, b csg.Function, eps float64) bool {
	pts := a.Points()
	for i := range pts.Len() {
		if b.SignedDistance(pts.Pos(i)) < eps {
			return true
		}
	}
	return false
}

// Connect adds an edge between a and b, adding them to the graph if absent.
func (g *Graph) Connect(a, b csg.Function) {
	ia, ib := g.add(a), g.add(b)
	if ia == ib {
		return
	}
	g.g.SetEdge(g.g.NewEdge(g.g.Node(ia), g.g.Node(ib)))
}

// Len returns the number of functions in the graph.
func (g *Graph) Len() int { return len(g.funcs) }

// Functions returns the functions in insertion order.
func (g *Graph) Functions() []csg.Function { return g.funcs }

// Index returns the position of f in Functions or -1.
func (g *Graph) Index(f csg.Function) int {
	id, ok := g.ids[f.Name()]
	if !ok {
		return -1
	}
	return int(id)
}

// Connected reports whether a and b share an edge.
func (g *Graph) Connected(a, b csg.Function) bool {
	ia, ib := g.Index(a), g.Index(b)
	if ia < 0 || ib < 0 {
		return false
	}
	return g.g.HasEdgeBetween(int64(ia), int64(ib))
}

// Neighbors returns the functions connected to f ordered by index.
func (g *Graph) Neighbors(f csg.Function) []csg.Function {
	i := g.Index(f)
	if i < 0 {
		return nil
	}
	return g.functionsOf(graph.NodesOf(g.g.From(int64(i))))
}

func (g *Graph) functionsOf(nodes []graph.Node) []csg.Function {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)
	fs := make([]csg.Function, len(ids))
	for i, id := range ids {
		fs[i] = g.funcs[id]
	}
	return fs
}

// Partitions returns the connected components of g as induced subgraphs,
// ordered by their first function.
func (g *Graph) Partitions() []*Graph {
	var parts []*Graph
	for _, fs := range g.groups(topo.ConnectedComponents(g.g)) {
		sub := NewGraph(fs)
		for i, a := range fs {
			for _, b := range fs[i+1:] {
				if g.Connected(a, b) {
					sub.Connect(a, b)
				}
			}
		}
		parts = append(parts, sub)
	}
	return parts
}

// Cliques returns the maximal cliques of g in lexical order of function
// indices.
func (g *Graph) Cliques() [][]csg.Function {
	return g.groups(topo.BronKerbosch(g.g))
}

func (g *Graph) groups(nodeGroups [][]graph.Node) [][]csg.Function {
	groups := make([][]csg.Function, len(nodeGroups))
	for i, nodes := range nodeGroups {
		groups[i] = g.functionsOf(nodes)
	}
	slices.SortFunc(groups, func(a, b []csg.Function) int {
		for i := range min(len(a), len(b)) {
			if c := g.Index(a[i]) - g.Index(b[i]); c != 0 {
				return c
			}
		}
		return len(a) - len(b)
	})
	return groups
}

// WriteGraphDOT writes g in the DOT language.
func WriteGraphDOT(w io.Writer, g *Graph, name string) error {
	b, err := dot.Marshal(g.g, name, "", "\t")
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
