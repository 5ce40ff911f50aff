package csgga

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/soypat/csg"
	"github.com/soypat/csg/ga"
	"github.com/soypat/csg/internal/d3"
)

// Ranker scores trees by how well they explain the sample points of a set
// of functions, penalized by tree size. It is safe for concurrent use.
type Ranker struct {
	lambda   float64
	epsilon  float64
	alpha    float64
	funcs    []csg.Function
	graph    *Graph
	epsScale float64
}

// NewRanker returns a ranker over fs. epsilon is relative to the diagonal
// of the sample point bounds and alpha is an angle in radians. When graph
// is not nil trees failing Invalid rank at ga.Worst.
func NewRanker(lambda, epsilon, alpha float64, fs []csg.Function, graph *Graph) *Ranker {
	return &Ranker{
		lambda:   lambda,
		epsilon:  epsilon,
		alpha:    alpha,
		funcs:    fs,
		graph:    graph,
		epsScale: csg.BoundsDiagonal(fs),
	}
}

// LambdaFromPoints returns the logarithm of the number of sample points of
// fs, the default size penalty weight.
func LambdaFromPoints(fs []csg.Function) float64 {
	n := csg.NumPoints(fs)
	if n == 0 {
		return 0
	}
	return math.Log(float64(n))
}

// Rank implements ga.Ranker.
func (r *Ranker) Rank(n *csg.Node) float64 {
	if r.graph != nil && r.Invalid(n) {
		return ga.Worst
	}
	return r.RankFor(n, r.funcs)
}

// RankFor ranks n against the sample points of fs without validity checks.
func (r *Ranker) RankFor(n *csg.Node, fs []csg.Function) float64 {
	return GeometryScore(n, r.epsilon*r.epsScale, r.alpha, fs) - r.lambda*float64(n.NumNodes())
}

func (r *Ranker) String() string {
	return fmt.Sprintf("CSG tree ranker (lambda: %g, pruning: %t)", r.lambda, r.graph != nil)
}

// GeometryScore sums exp(-(d/epsilon)²) + exp(-(θ/alpha)²) over the sample
// points of fs, where d is the distance of n at the point and θ the angle
// between the gradient of n and the point normal.
func GeometryScore(n *csg.Node, epsilon, alpha float64, fs []csg.Function) float64 {
	var score float64
	for _, f := range fs {
		pts := f.Points()
		for i := range pts.Len() {
			p, normal := pts.At(i)
			d, g := n.SignedDistanceAndGradient(p)
			theta := d3.Angle(g, normal)
			dd, ta := d/epsilon, theta/alpha
			score += math.Exp(-dd*dd) + math.Exp(-ta*ta)
		}
	}
	return score
}

// Invalid reports whether n is malformed, misses one of the ranker's
// functions, or joins sibling subtrees whose functions are neither shared
// nor connected.
func (r *Ranker) Invalid(n *csg.Node) bool {
	used := make(map[string]bool)
	for _, f := range n.Functions() {
		used[f.Name()] = true
	}
	if len(used) != len(r.funcs) {
		return true
	}
	for _, f := range r.funcs {
		if !used[f.Name()] {
			return true
		}
	}
	if r.graph == nil {
		return !n.IsValid()
	}
	_, invalid := r.reach(n)
	return invalid
}

// reach returns the functions n references together with their neighbors.
func (r *Ranker) reach(n *csg.Node) (*bitset.BitSet, bool) {
	bs := bitset.New(uint(r.graph.Len()))
	if n.IsGeometry() {
		i := r.graph.Index(n.Func())
		if i < 0 {
			return bs, true
		}
		bs.Set(uint(i))
		for _, nb := range r.graph.Neighbors(n.Func()) {
			bs.Set(uint(r.graph.Index(nb)))
		}
		return bs, false
	}
	lo, hi := n.Op().Arity()
	if nc := n.NumChildren(); nc < lo || (hi >= 0 && nc > hi) {
		return bs, true
	}
	var last *bitset.BitSet
	for _, c := range n.Children() {
		cbs, invalid := r.reach(c)
		if invalid {
			return bs, true
		}
		if last != nil && last.IntersectionCardinality(cbs) == 0 {
			return bs, true
		}
		last = cbs
		bs.InPlaceUnion(cbs)
	}
	return bs, false
}
