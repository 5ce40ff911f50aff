package csg

import (
	"io"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

type dotNode struct {
	id    int64
	label string
	shape string
}

func (n dotNode) ID() int64 { return n.id }

func (n dotNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: `"` + n.label + `"`},
		{Key: "shape", Value: n.shape},
	}
}

// Graph returns the tree as a directed graph with edges from parent to child.
// Node IDs are pre-order indices.
func (n *Node) Graph() graph.Directed {
	g := simple.NewDirectedGraph()
	var id int64
	var add func(node *Node) graph.Node
	add = func(node *Node) graph.Node {
		gn := dotNode{id: id, label: node.Name(), shape: "box"}
		if node.fn != nil {
			gn.shape = "ellipse"
		}
		id++
		g.AddNode(gn)
		for _, c := range node.children {
			gc := add(c)
			g.SetEdge(g.NewEdge(gn, gc))
		}
		return gn
	}
	add(n)
	return g
}

// WriteDOT writes the tree in graphviz DOT format.
func WriteDOT(w io.Writer, n *Node, name string) error {
	b, err := dot.Marshal(n.Graph(), name, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
