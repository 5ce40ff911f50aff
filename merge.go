package csg

import "slices"

// CommonSubgraph is a subtree found in two trees with equal serialization.
// Left and Right hold every occurrence in the first and second tree.
type CommonSubgraph struct {
	Left     []*Node
	Right    []*Node
	NumNodes int
}

// IsEmpty reports whether no common subtree was found.
func (cs CommonSubgraph) IsEmpty() bool {
	return len(cs.Left) == 0 || len(cs.Right) == 0
}

// CommonSubgraphs returns every subtree whose serialization appears in both
// a and b, largest first. Subtrees of equal size keep the walk order of a.
// Trees of different shape with equal serialization are treated as equal.
func CommonSubgraphs(a, b *Node) []CommonSubgraph {
	var order []string
	left := make(map[string][]*Node)
	a.Walk(func(n *Node) bool {
		k := n.Key()
		if _, ok := left[k]; !ok {
			order = append(order, k)
		}
		left[k] = append(left[k], n)
		return true
	})
	right := make(map[string][]*Node)
	b.Walk(func(n *Node) bool {
		k := n.Key()
		right[k] = append(right[k], n)
		return true
	})
	var css []CommonSubgraph
	for _, k := range order {
		r, ok := right[k]
		if !ok {
			continue
		}
		l := left[k]
		css = append(css, CommonSubgraph{Left: l, Right: r, NumNodes: l[0].NumNodes()})
	}
	slices.SortStableFunc(css, func(x, y CommonSubgraph) int { return y.NumNodes - x.NumNodes })
	return css
}

// LargestCommonSubgraph returns the largest subtree by node count whose
// serialization appears in both a and b. The result is empty if a and b
// share no subtree.
func LargestCommonSubgraph(a, b *Node) CommonSubgraph {
	css := CommonSubgraphs(a, b)
	if len(css) == 0 {
		return CommonSubgraph{}
	}
	return css[0]
}

// MergeResult describes the outcome of MergeNodes.
type MergeResult uint8

const (
	// MergeNone means no valid merge location exists.
	MergeNone MergeResult = iota
	// MergeFirst means the second tree was spliced into the first.
	MergeFirst
	// MergeSecond means the first tree was spliced into the second.
	MergeSecond
)

func (r MergeResult) String() string {
	switch r {
	case MergeFirst:
		return "first"
	case MergeSecond:
		return "second"
	}
	return "none"
}

// MergeNodes replaces an occurrence of the common subgraph cs in one tree
// with the whole other tree. An occurrence is a valid merge location only if
// the path from its root consists of unions and left branches of differences.
// Intersections block the path unless allowIntersections is set. When both
// trees hold a valid occurrence the smaller tree is spliced into the larger.
// The inputs are not modified. MergeNodes panics if cs is empty.
func MergeNodes(a, b *Node, cs CommonSubgraph, allowIntersections bool) (*Node, MergeResult) {
	if cs.IsEmpty() {
		panic("empty common subgraph passed to MergeNodes")
	}
	la := validOccurrence(a, cs.Left, allowIntersections)
	lb := validOccurrence(b, cs.Right, allowIntersections)
	switch {
	case la != nil && lb != nil && a.NumNodes() < b.NumNodes():
		la = nil
	case la == nil && lb == nil:
		return nil, MergeNone
	}
	if la != nil {
		host := a.Clone()
		return host.Replace(a.IndexOf(la), b.Clone()), MergeFirst
	}
	host := b.Clone()
	return host.Replace(b.IndexOf(lb), a.Clone()), MergeSecond
}

func validOccurrence(root *Node, occurrences []*Node, allowIntersections bool) *Node {
	for _, o := range occurrences {
		if isValidMergeNode(root, o, allowIntersections) {
			return o
		}
	}
	return nil
}

func isValidMergeNode(n, target *Node, allowIntersections bool) bool {
	if n == target {
		return true
	}
	if n.fn != nil {
		return false
	}
	switch n.op {
	case OpDifference:
		return len(n.children) > 0 && isValidMergeNode(n.children[0], target, allowIntersections)
	case OpIntersection:
		if !allowIntersections {
			return false
		}
		fallthrough
	case OpUnion:
		for _, c := range n.children {
			if isValidMergeNode(c, target, allowIntersections) {
				return true
			}
		}
	}
	return false
}
