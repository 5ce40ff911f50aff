package cit

import (
	"github.com/soypat/csg"
	"github.com/soypat/csg/pointcloud"
)

// RemoveRedundancies removes subtrees that are empty at grid resolution sgs
// or, when refs holds points, at those points. Nodes are processed bottom
// up and empty subtrees are replaced by the empty marker:
//   - a union drops empty children and collapses to its single remaining
//     child if any child was dropped;
//   - an intersection with an empty child is empty;
//   - a difference with an empty left operand is empty and with an empty
//     right operand becomes its left operand.
//
// Childless operations reduce to the empty marker and other operations with
// invalid arity are returned unchanged.
func RemoveRedundancies(n *csg.Node, sgs float64, refs pointcloud.Cloud) *csg.Node {
	return RemoveRedundanciesCached(n, sgs, refs, NewEmptySetCache())
}

// RemoveRedundanciesCached is RemoveRedundancies sharing an empty set cache.
func RemoveRedundanciesCached(n *csg.Node, sgs float64, refs pointcloud.Cloud, cache *EmptySetCache) *csg.Node {
	r := reducer{sgs: sgs, refs: refs, cache: cache}
	return r.reduce(n)
}

type reducer struct {
	sgs   float64
	refs  pointcloud.Cloud
	cache *EmptySetCache
}

func (r *reducer) empty(n *csg.Node) bool {
	return n.IsEmpty() || IsEmptySet(n, r.sgs, r.refs, r.cache)
}

func (r *reducer) reduce(n *csg.Node) *csg.Node {
	if n.IsGeometry() {
		if r.empty(n) {
			return csg.Empty()
		}
		return n.Clone()
	}
	if n.NumChildren() == 0 {
		return csg.Empty()
	}
	lo, hi := n.Op().Arity()
	if nc := n.NumChildren(); nc < lo || (hi >= 0 && nc > hi) {
		return n.Clone()
	}
	children := make([]*csg.Node, n.NumChildren())
	for i, c := range n.Children() {
		children[i] = r.reduce(c)
	}
	var res *csg.Node
	switch n.Op() {
	case csg.OpUnion:
		var kept []*csg.Node
		for _, c := range children {
			if !c.IsEmpty() {
				kept = append(kept, c)
			}
		}
		switch {
		case len(kept) == 0:
			return csg.Empty()
		case len(kept) == 1 && len(kept) < len(children):
			res = kept[0]
		default:
			res = csg.Union(kept...)
		}
	case csg.OpIntersection:
		for _, c := range children {
			if c.IsEmpty() {
				return csg.Empty()
			}
		}
		res = csg.Intersection(children...)
	case csg.OpDifference:
		switch {
		case children[0].IsEmpty():
			return csg.Empty()
		case children[1].IsEmpty():
			return children[0]
		}
		res = csg.Difference(children[0], children[1])
	default:
		res = csg.Operation(n.Op(), children...)
	}
	if r.empty(res) {
		return csg.Empty()
	}
	return res
}
