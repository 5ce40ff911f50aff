package csg

import (
	"strconv"
)

// Node is a node of a CSG tree: either a geometry leaf referencing a
// Function or an operation over child nodes. Each node exclusively owns
// its children; use Clone before editing a tree that is shared.
type Node struct {
	op       Op
	fn       Function
	children []*Node
}

// Geometry returns a leaf node for f.
func Geometry(f Function) *Node {
	if f == nil {
		panic("nil function argument to Geometry")
	}
	return &Node{fn: f}
}

// Operation returns an operation node with the given children.
// Operation panics on an unsupported operation or a nil child.
// Arity is not checked, see Node.IsValid.
func Operation(op Op, children ...*Node) *Node {
	if !op.supported() {
		panic("unsupported operation " + strconv.Itoa(int(op)) + " to Operation")
	}
	for i, c := range children {
		if c == nil {
			panic("nil child argument (" + strconv.Itoa(i) + ") to " + op.String())
		}
	}
	return &Node{op: op, children: children}
}

// Union returns the union of the children. A childless union is nowhere.
func Union(children ...*Node) *Node { return Operation(OpUnion, children...) }

// Intersection returns the intersection of the children. A childless
// intersection is everywhere.
func Intersection(children ...*Node) *Node { return Operation(OpIntersection, children...) }

// Difference returns a minus b.
func Difference(a, b *Node) *Node {
	if a == nil || b == nil {
		panic("nil argument to Difference")
	}
	return Operation(OpDifference, a, b)
}

// Complement returns the complement of a.
func Complement(a *Node) *Node {
	if a == nil {
		panic("nil argument to Complement")
	}
	return Operation(OpComplement, a)
}

// Noop returns a pass-through node. With no children it marks the empty set.
func Noop(children ...*Node) *Node { return Operation(OpNoop, children...) }

// Empty returns the empty set marker, a childless Noop.
func Empty() *Node { return Noop() }

// IsGeometry reports whether n is a geometry leaf.
func (n *Node) IsGeometry() bool { return n.fn != nil }

// IsEmpty reports whether n is the empty set marker.
func (n *Node) IsEmpty() bool { return n.fn == nil && n.op == OpNoop && len(n.children) == 0 }

// Op returns the operation of n. Geometry leaves return OpNone.
func (n *Node) Op() Op { return n.op }

// Func returns the function of a geometry leaf, nil for operations.
func (n *Node) Func() Function { return n.fn }

// Children returns the children of n. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Child returns the i'th child of n.
func (n *Node) Child(i int) *Node { return n.children[i] }

// NumChildren returns the number of direct children of n.
func (n *Node) NumChildren() int { return len(n.children) }

// AddChild appends c to the children of operation n.
func (n *Node) AddChild(c *Node) {
	if c == nil {
		panic("nil argument to AddChild")
	}
	if n.fn != nil {
		panic("cannot add child to geometry node " + n.fn.Name())
	}
	n.children = append(n.children, c)
}

// SetChildren replaces the children of operation n.
func (n *Node) SetChildren(children []*Node) {
	if n.fn != nil {
		panic("cannot set children of geometry node " + n.fn.Name())
	}
	n.children = children
}

// Name returns the function name for leaves and the operation name otherwise.
func (n *Node) Name() string {
	if n.fn != nil {
		return n.fn.Name()
	}
	return n.op.String()
}

// IsValid reports whether every operation in the tree satisfies the arity
// of its operation kind.
func (n *Node) IsValid() bool {
	if n.fn != nil {
		return true
	}
	lo, hi := n.op.Arity()
	nc := len(n.children)
	if nc < lo || (hi >= 0 && nc > hi) {
		return false
	}
	for _, c := range n.children {
		if !c.IsValid() {
			return false
		}
	}
	return true
}

// String returns the structural serialization of n.
func (n *Node) String() string { return n.Key() }
