package csgga

import (
	"math/rand/v2"

	"github.com/soypat/csg"
)

// creationOps are the operations random trees are built from.
var creationOps = [...]csg.Op{csg.OpUnion, csg.OpIntersection, csg.OpDifference}

// Creator builds, mutates and crosses CSG trees over a set of functions.
// It implements ga.Creator and is not safe for concurrent use.
type Creator struct {
	funcs  []csg.Function
	cfg    Config
	ranker *Ranker
	rng    *rand.Rand
}

// NewCreator returns a creator over fs. The ranker scores subtrees during
// shared primitive crossover.
func NewCreator(fs []csg.Function, cfg Config, ranker *Ranker, rng *rand.Rand) *Creator {
	if len(fs) == 0 {
		panic("no functions to NewCreator")
	}
	if ranker == nil || rng == nil {
		panic("nil argument to NewCreator")
	}
	return &Creator{funcs: fs, cfg: cfg, ranker: ranker, rng: rng}
}

// Create returns a random tree, or a union of all functions in random order
// when InitializeWithUnionOfAllFunctions is set.
func (c *Creator) Create() *csg.Node {
	if c.cfg.InitializeWithUnionOfAllFunctions {
		return c.unionTree()
	}
	return c.create(0)
}

// unionTree nests a binary union of every function in random order.
func (c *Creator) unionTree() *csg.Node {
	perm := c.rng.Perm(len(c.funcs))
	n := csg.Geometry(c.funcs[perm[len(perm)-1]])
	for i := len(perm) - 2; i >= 0; i-- {
		n = csg.Union(csg.Geometry(c.funcs[perm[i]]), n)
	}
	return n
}

func (c *Creator) leaf() *csg.Node {
	return csg.Geometry(c.funcs[c.rng.IntN(len(c.funcs))])
}

func (c *Creator) create(depth int) *csg.Node {
	if depth >= c.cfg.MaxTreeDepth || c.rng.Float64() >= c.cfg.SubtreeProb {
		return c.leaf()
	}
	op := creationOps[c.rng.IntN(len(creationOps))]
	lo, hi := op.Arity()
	nc := 2
	if hi >= 0 {
		nc = min(hi, nc)
	}
	nc = max(lo, nc)
	children := make([]*csg.Node, nc)
	for i := range children {
		children[i] = c.create(depth + 1)
	}
	return csg.Operation(op, children...)
}

// Mutate returns a new random tree with probability CreateNewRandomProb and
// otherwise a copy of n with a uniformly chosen subtree regenerated.
func (c *Creator) Mutate(n *csg.Node) *csg.Node {
	if c.rng.Float64() < c.cfg.CreateNewRandomProb {
		return c.create(0)
	}
	m := n.Clone()
	return m.Replace(c.rng.IntN(m.NumNodes()), c.create(0))
}

// Crossover exchanges subtrees between copies of a and b. With probability
// SimpleCrossoverProb random subtrees are swapped. Otherwise a random
// subtree of a is matched to the smallest subtree of b over the same
// functions and the lower scoring of the two is overwritten by the other.
func (c *Creator) Crossover(a, b *csg.Node) []*csg.Node {
	if !a.IsValid() || !b.IsValid() {
		return []*csg.Node{a.Clone(), b.Clone()}
	}
	if c.rng.Float64() < c.cfg.SimpleCrossoverProb {
		return c.simpleCrossover(a.Clone(), b.Clone())
	}
	return c.sharedPrimitiveCrossover(a.Clone(), b.Clone())
}

func (c *Creator) simpleCrossover(a, b *csg.Node) []*csg.Node {
	i, j := c.rng.IntN(a.NumNodes()), c.rng.IntN(b.NumNodes())
	a, b = csg.SwapSubtrees(a, i, b, j)
	return []*csg.Node{a, b}
}

func (c *Creator) sharedPrimitiveCrossover(a, b *csg.Node) []*csg.Node {
	i := c.rng.IntN(a.NumNodes())
	subA := a.NodeAt(i)
	fs := subA.DistinctFunctions()
	subB := smallestSubtreeWithFunctions(b, fs)
	if subB == nil {
		return []*csg.Node{a, b}
	}
	j := b.IndexOf(subB)
	scoreA, scoreB := c.ranker.RankFor(subA, fs), c.ranker.RankFor(subB, fs)
	switch {
	case scoreA > scoreB:
		b = b.Replace(j, subA.Clone())
	case scoreA < scoreB:
		a = a.Replace(i, subB.Clone())
	default:
		return c.simpleCrossover(a, b)
	}
	return []*csg.Node{a, b}
}

// smallestSubtreeWithFunctions returns the smallest subtree of n whose
// distinct functions are exactly fs, or nil.
func smallestSubtreeWithFunctions(n *csg.Node, fs []csg.Function) *csg.Node {
	want := functionSet(fs)
	var best *csg.Node
	bestSize := 0
	n.Walk(func(sub *csg.Node) bool {
		got := functionSet(sub.DistinctFunctions())
		if len(got) != len(want) {
			return true
		}
		for name := range want {
			if !got[name] {
				return true
			}
		}
		if sz := sub.NumNodes(); best == nil || sz < bestSize {
			best, bestSize = sub, sz
		}
		return true
	})
	return best
}

func functionSet(fs []csg.Function) map[string]bool {
	set := make(map[string]bool, len(fs))
	for _, f := range fs {
		set[f.Name()] = true
	}
	return set
}
