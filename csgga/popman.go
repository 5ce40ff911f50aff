package csgga

import (
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/soypat/csg"
	"github.com/soypat/csg/dnf"
	"github.com/soypat/csg/ga"
)

// OptimizationType selects how the population manager rewrites trees.
type OptimizationType int

const (
	// Traverse rewrites every operation joining two leaves.
	Traverse OptimizationType = iota
	// Random rewrites randomly chosen subtrees over few functions.
	Random
)

// ParseOptimizationType parses "traverse" or "random", case insensitive.
// Unknown names select Traverse.
func ParseOptimizationType(s string) OptimizationType {
	if strings.EqualFold(s, "random") {
		return Random
	}
	return Traverse
}

func (t OptimizationType) String() string {
	if t == Random {
		return "random"
	}
	return "traverse"
}

// PopulationManager rewrites trees of a population into locally optimal
// subtrees before ranking. Optimal subtrees are cached by their set of
// functions for the lifetime of the manager. It implements
// ga.PopulationManager.
type PopulationManager struct {
	cfg    Config
	ranker *Ranker
	graph  *Graph
	rng    *rand.Rand

	mu     sync.Mutex
	lookup map[string]*csg.Node
}

// NewPopulationManager returns a population manager. graph may be nil.
func NewPopulationManager(cfg Config, ranker *Ranker, graph *Graph, rng *rand.Rand) *PopulationManager {
	if ranker == nil || rng == nil {
		panic("nil argument to NewPopulationManager")
	}
	return &PopulationManager{cfg: cfg, ranker: ranker, graph: graph, rng: rng, lookup: make(map[string]*csg.Node)}
}

// ManipulateAfterRanking implements ga.PopulationManager and does nothing.
func (m *PopulationManager) ManipulateAfterRanking([]ga.Ranked[*csg.Node]) {}

// ManipulateBeforeRanking implements ga.PopulationManager. Rewritten
// unranked trees are left for ranking. A ranked tree is only replaced by a
// rewrite that ranks at least as well.
func (m *PopulationManager) ManipulateBeforeRanking(pop []ga.Ranked[*csg.Node]) {
	for i := range pop {
		n := pop[i].Creature
		changed := false
		if m.rng.Float64() < m.cfg.PreOptimizationProb {
			n, changed = n.Simplify(), true
		}
		if m.rng.Float64() < m.cfg.OptimizationProb {
			switch m.cfg.OptimizationType {
			case Random:
				n = m.optimizeRandom(n)
			default:
				n = m.optimizeTraverse(n)
			}
			changed = true
		}
		switch {
		case !changed:
		case pop[i].IsRanked():
			// Carried over parents keep their rank unless the rewrite improves it.
			if r := m.ranker.Rank(n); r >= pop[i].Rank {
				pop[i].Set(n)
				pop[i].SetRank(r)
			}
		default:
			pop[i].Set(n)
		}
	}
}

// optimizeTraverse returns a copy of n where each operation with two leaf
// children is replaced by the optimal tree over their functions.
func (m *PopulationManager) optimizeTraverse(n *csg.Node) *csg.Node {
	if n.IsGeometry() {
		return n.Clone()
	}
	if n.NumChildren() == 2 && n.Child(0).IsGeometry() && n.Child(1).IsGeometry() {
		return m.OptimizedTree(m.suitableFunctions([]csg.Function{n.Child(0).Func(), n.Child(1).Func()}))
	}
	children := make([]*csg.Node, n.NumChildren())
	for i, c := range n.Children() {
		children[i] = m.optimizeTraverse(c)
	}
	return csg.Operation(n.Op(), children...)
}

func (m *PopulationManager) optimizeRandom(n *csg.Node) *csg.Node {
	n = n.Clone()
	for range max(m.cfg.RandomIterations, 1) {
		for range m.cfg.NodeSelectionTries {
			idx := m.rng.IntN(n.NumNodes())
			fs := m.suitableFunctions(n.NodeAt(idx).DistinctFunctions())
			if len(fs) < m.cfg.MaxFunctions {
				n = n.Replace(idx, m.OptimizedTree(fs))
				break
			}
		}
	}
	return n
}

// suitableFunctions replaces one of two unconnected functions by a random
// neighbor of the other.
func (m *PopulationManager) suitableFunctions(fs []csg.Function) []csg.Function {
	if len(fs) != 2 || m.graph == nil || m.graph.Connected(fs[0], fs[1]) {
		return fs
	}
	keep := m.rng.IntN(2)
	neighbors := m.graph.Neighbors(fs[keep])
	if len(neighbors) == 0 {
		return fs
	}
	res := slices.Clone(fs)
	res[1-keep] = neighbors[m.rng.IntN(len(neighbors))]
	return res
}

// OptimizedTree returns the best tree found for fs. A single function
// yields its leaf, two functions the best scoring binary operation and more
// functions a Shapiro expansion in binary form. Results are cached by the
// set of function names.
func (m *PopulationManager) OptimizedTree(fs []csg.Function) *csg.Node {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name()
	}
	slices.Sort(names)
	key := strings.Join(names, "\x00")
	m.mu.Lock()
	cached, ok := m.lookup[key]
	m.mu.Unlock()
	if ok {
		return cached.Clone()
	}
	var n *csg.Node
	switch len(fs) {
	case 0:
		n = csg.Empty()
	case 1:
		n = csg.Geometry(fs[0])
	case 2:
		n, _ = BestOfTwo(fs[0], fs[1], m.ranker)
	default:
		d := dnf.Shapiro(fs, dnf.Options{UsePrimeImplicants: true, Logger: m.cfg.Logger})
		n = d.Node().ToMaxChildren(2)
	}
	m.mu.Lock()
	m.lookup[key] = n
	m.mu.Unlock()
	return n.Clone()
}

// BestOfTwo returns the best scoring of Union, Intersection and both
// Differences of a and b, ranked against the sample points of a and b.
func BestOfTwo(a, b csg.Function, ranker *Ranker) (*csg.Node, float64) {
	la, lb := csg.Geometry(a), csg.Geometry(b)
	candidates := []*csg.Node{
		csg.Union(la, lb),
		csg.Intersection(la.Clone(), lb.Clone()),
		csg.Difference(la.Clone(), lb.Clone()),
		csg.Difference(lb.Clone(), la.Clone()),
	}
	fs := []csg.Function{a, b}
	var best *csg.Node
	bestScore := 0.0
	for _, c := range candidates {
		s := ranker.RankFor(c, fs)
		if best == nil || s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore
}
