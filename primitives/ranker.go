package primitives

import (
	"math"
	"slices"
	"sync"

	"github.com/soypat/csg"
	"github.com/soypat/csg/ga"
)

// sizeWeight scales the size penalty of a set relative to the largest
// allowed set.
const sizeWeight = 0.2

// Ranker scores primitive sets by the fraction of manifold sample points
// lying on the surface of the union of the set and the static primitives.
// It remembers the best set ranked so far and is safe for concurrent use.
type Ranker struct {
	ms              []*Manifold
	static          Set
	distanceEpsilon float64
	maxSetSize      int

	mu       sync.Mutex
	best     Set
	bestRank float64
}

// NewRanker returns a ranker against the points of ms. Static primitives are
// added to every ranked set.
func NewRanker(ms []*Manifold, static Set, distanceEpsilon float64, maxSetSize int) *Ranker {
	return &Ranker{
		ms:              ms,
		static:          static,
		distanceEpsilon: distanceEpsilon,
		maxSetSize:      max(maxSetSize, 1),
		bestRank:        ga.Worst,
	}
}

// Rank implements ga.Ranker. Sets without primitives and rankers without
// points yield ga.Worst.
func (r *Ranker) Rank(ps Set) float64 {
	fs := ps.Functions()
	if len(fs) == 0 {
		return ga.Worst
	}
	leaves := make([]*csg.Node, 0, len(fs)+len(r.static))
	for _, f := range append(fs, r.static.Functions()...) {
		leaves = append(leaves, csg.Geometry(f))
	}
	node := csg.Union(leaves...)
	var valid, checked int
	for _, m := range r.ms {
		for i := range m.Points.Len() {
			if math.Abs(node.SignedDistance(m.Points.Pos(i))) < r.distanceEpsilon {
				valid++
			}
			checked++
		}
	}
	if checked == 0 {
		return ga.Worst
	}
	rank := float64(valid)/float64(checked) - sizeWeight*float64(len(ps))/float64(r.maxSetSize)
	r.mu.Lock()
	if rank > r.bestRank {
		r.bestRank = rank
		r.best = slices.Clone(ps)
	}
	r.mu.Unlock()
	return rank
}

// Best returns the best ranked set seen so far and its rank.
func (r *Ranker) Best() (Set, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.best), r.bestRank
}

// PopulationManager drops None primitives and repeated primitives from
// every set before ranking. It implements ga.PopulationManager.
type PopulationManager struct{}

// ManipulateBeforeRanking implements ga.PopulationManager.
func (PopulationManager) ManipulateBeforeRanking(pop []ga.Ranked[Set]) {
	for i := range pop {
		if clean, changed := dedupe(pop[i].Creature); changed {
			pop[i].Set(clean)
		}
	}
}

// ManipulateAfterRanking implements ga.PopulationManager and does nothing.
func (PopulationManager) ManipulateAfterRanking([]ga.Ranked[Set]) {}

func dedupe(ps Set) (Set, bool) {
	seen := make(map[string]bool, len(ps))
	out := make(Set, 0, len(ps))
	for _, p := range ps {
		if p.IsNone() || seen[p.Func.Name()] {
			continue
		}
		seen[p.Func.Name()] = true
		out = append(out, p)
	}
	return out, len(out) != len(ps)
}
