// Package cluster splits CSG trees into sub-problems that can be optimized
// independently and merges the optimized parts back together.
package cluster

import (
	"slices"

	"github.com/soypat/csg"
	"github.com/soypat/csg/csgga"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cluster is a group of primitives optimized together.
type Cluster []csg.Function

// UnionPaths returns the maximal subtrees of n joined to its root by unions
// only. Union(A, B, Union(C, D)) yields A, B, C and D. The subtrees are
// copies of those in n.
func UnionPaths(n *csg.Node) []*csg.Node {
	var clusters []*csg.Node
	var rec func(*csg.Node)
	rec = func(n *csg.Node) {
		if n.IsGeometry() || n.Op() != csg.OpUnion {
			clusters = append(clusters, n.Clone())
			return
		}
		for _, c := range n.Children() {
			rec(c)
		}
	}
	rec(n)
	return clusters
}

// DominatingPrimitives returns the primitives of n whose interior lies
// inside n at every point of a grid of spacing sgs over their bounds.
// Primitives without interior grid points are not dominating.
func DominatingPrimitives(n *csg.Node, sgs float64) []csg.Function {
	var dps []csg.Function
	for _, f := range n.DistinctFunctions() {
		if containedOnGrid(f, n, sgs) {
			dps = append(dps, f)
		}
	}
	return dps
}

// NegatedDominatingPrimitives returns the primitives of n whose interior
// lies outside n on a grid of spacing sgs.
func NegatedDominatingPrimitives(n *csg.Node, sgs float64) []csg.Function {
	return DominatingPrimitives(csg.Complement(n), sgs)
}

func containedOnGrid(f csg.Function, n *csg.Node, sgs float64) bool {
	contained, tested := true, false
	d3.NewGrid(d3.Box(f.Bounds()), sgs).Each(func(_ d3.V3i, p r3.Vec) bool {
		if f.SignedDistance(p) >= 0 {
			return true
		}
		tested = true
		contained = n.SignedDistance(p) < 0
		return contained
	})
	return contained && tested
}

// DominatingPrimitivesFromPoints is DominatingPrimitives testing the points
// of inOut instead of a grid.
func DominatingPrimitivesFromPoints(n *csg.Node, inOut pointcloud.Cloud) []csg.Function {
	return dominatingFromPoints(n, inOut, true)
}

// NegatedDominatingPrimitivesFromPoints is NegatedDominatingPrimitives
// testing the points of inOut instead of a grid.
func NegatedDominatingPrimitivesFromPoints(n *csg.Node, inOut pointcloud.Cloud) []csg.Function {
	return dominatingFromPoints(n, inOut, false)
}

func dominatingFromPoints(n *csg.Node, inOut pointcloud.Cloud, inside bool) []csg.Function {
	var dps []csg.Function
	for _, f := range n.DistinctFunctions() {
		ok, tested := true, false
		for i := range inOut.Len() {
			p := inOut.Pos(i)
			if f.SignedDistance(p) >= 0 {
				continue
			}
			tested = true
			if (n.SignedDistance(p) < 0) != inside {
				ok = false
				break
			}
		}
		if ok && tested {
			dps = append(dps, f)
		}
	}
	return dps
}

// ByDominance groups the primitives of n that are not in dominant into the
// connected components of their connection graph, built with distance
// tolerance eps. Every dominant primitive forms a cluster of its own after
// the components.
func ByDominance(n *csg.Node, dominant []csg.Function, eps float64) []Cluster {
	var rest []csg.Function
	for _, f := range n.DistinctFunctions() {
		if !containsFunction(dominant, f) {
			rest = append(rest, f)
		}
	}
	var clusters []Cluster
	for _, part := range csgga.ConnectionGraph(rest, eps).Partitions() {
		clusters = append(clusters, Cluster(slices.Clone(part.Functions())))
	}
	for _, f := range dominant {
		clusters = append(clusters, Cluster{f})
	}
	return clusters
}

func containsFunction(fs []csg.Function, f csg.Function) bool {
	return slices.ContainsFunc(fs, func(g csg.Function) bool { return g.Name() == f.Name() })
}

// UnionMerge joins nodes with a union. No nodes yield the empty marker and
// a single node is returned as is.
func UnionMerge(nodes []*csg.Node) *csg.Node {
	switch len(nodes) {
	case 0:
		return csg.Empty()
	case 1:
		return nodes[0]
	}
	return csg.Union(nodes...)
}
