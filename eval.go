package csg

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// SignedDistance evaluates the signed distance of the tree at p.
// A childless union, a Difference without exactly two children,
// a Complement without exactly one child and an empty Noop
// evaluate to +Inf. A childless intersection evaluates to -Inf.
func (n *Node) SignedDistance(p r3.Vec) float64 {
	if n.fn != nil {
		return n.fn.SignedDistance(p)
	}
	switch n.op {
	case OpUnion:
		d := inf
		for _, c := range n.children {
			d = min(d, c.SignedDistance(p))
		}
		return d
	case OpIntersection:
		d := -inf
		for _, c := range n.children {
			d = max(d, c.SignedDistance(p))
		}
		return d
	case OpDifference:
		if len(n.children) != 2 {
			return inf
		}
		return max(n.children[0].SignedDistance(p), -n.children[1].SignedDistance(p))
	case OpComplement:
		if len(n.children) != 1 {
			return inf
		}
		return -n.children[0].SignedDistance(p)
	case OpNoop:
		if len(n.children) != 1 {
			return inf
		}
		return n.children[0].SignedDistance(p)
	}
	panic("unsupported operation " + n.op.String())
}

// SignedDistanceAndGradient evaluates distance and gradient of the tree at p.
// Union and intersection take distance and gradient of the minimizing and
// maximizing child respectively. A difference takes the negated right operand
// where it dominates and the left operand otherwise.
func (n *Node) SignedDistanceAndGradient(p r3.Vec) (float64, r3.Vec) {
	if n.fn != nil {
		return n.fn.SignedDistanceAndGradient(p)
	}
	var grad r3.Vec
	switch n.op {
	case OpUnion:
		d := inf
		for _, c := range n.children {
			cd, cg := c.SignedDistanceAndGradient(p)
			if cd < d {
				d, grad = cd, cg
			}
		}
		return d, grad
	case OpIntersection:
		d := -inf
		for _, c := range n.children {
			cd, cg := c.SignedDistanceAndGradient(p)
			if cd > d {
				d, grad = cd, cg
			}
		}
		return d, grad
	case OpDifference:
		if len(n.children) != 2 {
			return inf, grad
		}
		ld, lg := n.children[0].SignedDistanceAndGradient(p)
		rd, rg := n.children[1].SignedDistanceAndGradient(p)
		if -rd > ld {
			return -rd, r3.Scale(-1, rg)
		}
		return ld, lg
	case OpComplement:
		if len(n.children) != 1 {
			return inf, grad
		}
		d, g := n.children[0].SignedDistanceAndGradient(p)
		return -d, r3.Scale(-1, g)
	case OpNoop:
		if len(n.children) != 1 {
			return inf, grad
		}
		return n.children[0].SignedDistanceAndGradient(p)
	}
	panic("unsupported operation " + n.op.String())
}

// Bounds returns the box enclosing all functions referenced by the tree.
func (n *Node) Bounds() r3.Box {
	return FunctionsBounds(n.DistinctFunctions())
}
