package csg

import "strconv"

// NumNodes returns the number of nodes in the tree rooted at n.
func (n *Node) NumNodes() int {
	num := 1
	for _, c := range n.children {
		num += c.NumNodes()
	}
	return num
}

// Depth returns the length of the longest root to leaf path. A single node
// has depth 0.
func (n *Node) Depth() int {
	var d int
	for _, c := range n.children {
		d = max(d, c.Depth()+1)
	}
	return d
}

// NodeAt returns the node at pre-order index i where the root is index 0.
// NodeAt returns nil if i is out of range.
func (n *Node) NodeAt(i int) *Node {
	node, _, _ := n.locate(i)
	return node
}

// IndexOf returns the pre-order index of target in the tree or -1 if target
// is not part of the tree. Nodes are compared by identity.
func (n *Node) IndexOf(target *Node) int {
	idx := -1
	var count int
	n.Walk(func(node *Node) bool {
		if node == target {
			idx = count
			return false
		}
		count++
		return true
	})
	return idx
}

// Walk calls fn on every node of the tree in pre-order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	n.walk(fn)
}

func (n *Node) walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// locate finds the node at pre-order index i along with its parent
// and its position among the parent's children.
func (n *Node) locate(i int) (node, parent *Node, childIdx int) {
	if i < 0 {
		return nil, nil, -1
	}
	var count int
	var find func(cur, par *Node, ci int) bool
	find = func(cur, par *Node, ci int) bool {
		if count == i {
			node, parent, childIdx = cur, par, ci
			return true
		}
		count++
		for j, c := range cur.children {
			if find(c, cur, j) {
				return true
			}
		}
		return false
	}
	find(n, nil, -1)
	return node, parent, childIdx
}

// Replace replaces the node at pre-order index i with sub and returns the
// resulting root. Replacing index 0 returns sub. The tree is edited in place.
func (n *Node) Replace(i int, sub *Node) *Node {
	if sub == nil {
		panic("nil argument to Replace")
	}
	node, parent, ci := n.locate(i)
	if node == nil {
		panic("node index " + strconv.Itoa(i) + " out of range")
	}
	if parent == nil {
		return sub
	}
	parent.children[ci] = sub
	return n
}

// SwapSubtrees exchanges the subtree at pre-order index i of a with the
// subtree at index j of b. Both trees are edited in place and the resulting
// roots are returned.
func SwapSubtrees(a *Node, i int, b *Node, j int) (*Node, *Node) {
	na, pa, ca := a.locate(i)
	nb, pb, cb := b.locate(j)
	if na == nil || nb == nil {
		panic("subtree index out of range in SwapSubtrees")
	}
	if pa == nil {
		a = nb
	} else {
		pa.children[ca] = nb
	}
	if pb == nil {
		b = na
	} else {
		pb.children[cb] = na
	}
	return a, b
}

// Clone returns a deep copy of the tree. Functions are shared.
func (n *Node) Clone() *Node {
	c := &Node{op: n.op, fn: n.fn}
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.Clone()
		}
	}
	return c
}

// Functions returns the functions of all leaves in pre-order, with repetitions.
func (n *Node) Functions() []Function {
	var fs []Function
	n.Walk(func(node *Node) bool {
		if node.fn != nil {
			fs = append(fs, node.fn)
		}
		return true
	})
	return fs
}

// DistinctFunctions returns the functions referenced by the tree in order of
// first appearance without repetitions.
func (n *Node) DistinctFunctions() []Function {
	seen := make(map[string]bool)
	var fs []Function
	for _, f := range n.Functions() {
		if !seen[f.Name()] {
			seen[f.Name()] = true
			fs = append(fs, f)
		}
	}
	return fs
}

// ToMaxChildren returns a copy of the tree where every union and
// intersection has at most maxChildren children, nesting the overflow into
// operations of the same kind.
func (n *Node) ToMaxChildren(maxChildren int) *Node {
	if maxChildren < 2 {
		panic("maxChildren must be at least 2")
	}
	if n.fn != nil {
		return &Node{fn: n.fn}
	}
	children := make([]*Node, len(n.children))
	for i, c := range n.children {
		children[i] = c.ToMaxChildren(maxChildren)
	}
	if (n.op != OpUnion && n.op != OpIntersection) || len(children) <= maxChildren {
		return &Node{op: n.op, children: children}
	}
	head := children[:maxChildren-1:maxChildren-1]
	rest := (&Node{op: n.op, children: children[maxChildren-1:]}).ToMaxChildren(maxChildren)
	return &Node{op: n.op, children: append(head, rest)}
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b *Node) bool {
	return a.Key() == b.Key()
}

// Simplify returns a structurally simplified copy of the tree. Unions,
// intersections and noops with a single child are replaced by that child and
// unions and intersections nested in an operation of the same kind are
// flattened into it.
func (n *Node) Simplify() *Node {
	if n.fn != nil {
		return &Node{fn: n.fn}
	}
	children := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		c = c.Simplify()
		if (n.op == OpUnion || n.op == OpIntersection) && c.op == n.op && c.fn == nil && len(c.children) > 0 {
			children = append(children, c.children...)
			continue
		}
		children = append(children, c)
	}
	if len(children) == 1 && (n.op == OpUnion || n.op == OpIntersection || n.op == OpNoop) {
		return children[0]
	}
	return &Node{op: n.op, children: children}
}
