package csgga

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/soypat/csg"
	"github.com/soypat/csg/ga"
	"github.com/soypat/csg/implicit"
	"github.com/soypat/csg/inflate"
	"github.com/soypat/csg/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// sampledSpheres returns spheres A and B overlapping and C apart, with
// sample points taken from the surface of their union.
func sampledSpheres(t testing.TB) (a, b, c csg.Function) {
	mk := func(name string, x float64) csg.Function {
		s, err := implicit.NewSphere(name, r3.Vec{X: x}, 1)
		require.NoError(t, err)
		return s
	}
	a, b, c = mk("A", 0), mk("B", 1.5), mk("C", 5)
	fs := []csg.Function{a, b, c}
	model := csg.Union(csg.Geometry(a), csg.Geometry(b), csg.Geometry(c))
	cloud := csg.SampleSurface(model, 0.1, 0.05)
	require.NotZero(t, cloud.Len())
	require.Equal(t, 3, csg.AssignPoints(fs, cloud, 0.05))
	return a, b, c
}

func leaf(f csg.Function) *csg.Node { return csg.Geometry(f) }

func testRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func TestConnectionGraph(t *testing.T) {
	a, b, c := sampledSpheres(t)
	g := ConnectionGraph([]csg.Function{a, b, c}, 0.05)
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.Connected(a, b))
	assert.False(t, g.Connected(a, c))
	assert.False(t, g.Connected(b, c))
	assert.Equal(t, []csg.Function{b}, g.Neighbors(a))
	assert.Empty(t, g.Neighbors(c))

	parts := g.Partitions()
	require.Len(t, parts, 2)
	assert.Equal(t, []csg.Function{a, b}, parts[0].Functions())
	assert.True(t, parts[0].Connected(a, b))
	assert.Equal(t, []csg.Function{c}, parts[1].Functions())

	assert.Equal(t, [][]csg.Function{{a, b}, {c}}, g.Cliques())

	var buf bytes.Buffer
	require.NoError(t, WriteGraphDOT(&buf, g, "prims"))
	assert.Contains(t, buf.String(), "graph prims")
	assert.Contains(t, buf.String(), "A -- B")
}

func TestRanker(t *testing.T) {
	a, b, c := sampledSpheres(t)
	fs := []csg.Function{a, b}
	r := NewRanker(LambdaFromPoints(fs), 0.01, 35*math.Pi/180, fs, nil)
	union := r.Rank(csg.Union(leaf(a), leaf(b)))
	assert.Greater(t, union, r.Rank(csg.Intersection(leaf(a), leaf(b))))
	assert.Greater(t, union, r.Rank(csg.Difference(leaf(a), leaf(b))))
	// Larger trees with the same geometry rank lower.
	assert.Greater(t, union, r.Rank(csg.Union(leaf(a), csg.Union(leaf(b), leaf(b)))))

	all := []csg.Function{a, b, c}
	g := ConnectionGraph(all, 0.05)
	pruned := NewRanker(1, 0.01, 35*math.Pi/180, all, g)
	assert.Equal(t, ga.Worst, pruned.Rank(csg.Union(csg.Union(leaf(a), leaf(b)), leaf(c))))
	assert.True(t, pruned.Invalid(csg.Union(leaf(a), leaf(b))), "missing C")

	pair := NewRanker(1, 0.01, 35*math.Pi/180, fs, ConnectionGraph(fs, 0.05))
	assert.False(t, pair.Invalid(csg.Union(leaf(a), leaf(b))))
	assert.True(t, pair.Invalid(csg.Union(leaf(a), leaf(a))))
}

func TestBestOfTwo(t *testing.T) {
	a, b, _ := sampledSpheres(t)
	fs := []csg.Function{a, b}
	r := NewRanker(LambdaFromPoints(fs), 0.01, 35*math.Pi/180, fs, nil)
	best, score := BestOfTwo(a, b, r)
	assert.True(t, csg.Equal(csg.Union(leaf(a), leaf(b)), best), best.Key())
	assert.Equal(t, r.RankFor(best, fs), score)
}

func TestCreator(t *testing.T) {
	a, b, c := sampledSpheres(t)
	fs := []csg.Function{a, b, c}
	cfg := DefaultConfig()
	cfg.MaxTreeDepth = 3
	cfg.SubtreeProb = 1
	r := NewRanker(1, 0.01, 0.6, fs, nil)
	cr := NewCreator(fs, cfg, r, testRand())
	for range 10 {
		n := cr.Create()
		assert.Equal(t, 3, n.Depth())
		assert.Equal(t, 15, n.NumNodes())
		assert.True(t, n.IsValid())
	}

	cfg.InitializeWithUnionOfAllFunctions = true
	cr = NewCreator(fs, cfg, r, testRand())
	u := cr.Create()
	assert.Equal(t, 5, u.NumNodes())
	assert.Len(t, u.DistinctFunctions(), 3)

	x, y := cr.create(0), cr.create(0)
	kx, ky := x.Key(), y.Key()
	m := cr.Mutate(x)
	assert.True(t, m.IsValid())
	assert.Equal(t, kx, x.Key(), "input is not modified")

	cr.cfg.SimpleCrossoverProb = 1
	children := cr.Crossover(x, y)
	require.Len(t, children, 2)
	assert.Equal(t, x.NumNodes()+y.NumNodes(), children[0].NumNodes()+children[1].NumNodes())
	assert.Equal(t, ky, y.Key())

	assert.Panics(t, func() { NewCreator(nil, cfg, r, testRand()) })
	assert.Panics(t, func() { NewCreator(fs, cfg, nil, testRand()) })
}

func TestSharedPrimitiveCrossover(t *testing.T) {
	a, b, _ := sampledSpheres(t)
	fs := []csg.Function{a, b}
	cfg := DefaultConfig()
	cfg.SimpleCrossoverProb = 0
	r := NewRanker(LambdaFromPoints(fs), 0.01, 0.6, fs, nil)
	cr := NewCreator(fs, cfg, r, testRand())
	good := csg.Union(leaf(a), leaf(b))
	bad := csg.Intersection(leaf(a), leaf(b))
	for range 20 {
		children := cr.Crossover(good, bad)
		require.Len(t, children, 2)
		for _, ch := range children {
			assert.True(t, ch.IsValid())
		}
	}
	assert.True(t, csg.Equal(csg.Union(leaf(a), leaf(b)), good), "inputs are not modified")

	host := csg.Union(leaf(a), csg.Intersection(leaf(b), leaf(a)))
	sub := smallestSubtreeWithFunctions(host, fs)
	require.NotNil(t, sub)
	assert.Equal(t, 3, sub.NumNodes())
	assert.Same(t, host.Child(1), sub)
	_, _, c := sampledSpheres(t)
	assert.Nil(t, smallestSubtreeWithFunctions(host, []csg.Function{c}))
}

func TestPopulationManager(t *testing.T) {
	a, b, _ := sampledSpheres(t)
	fs := []csg.Function{a, b}
	r := NewRanker(LambdaFromPoints(fs), 0.01, 0.6, fs, nil)
	cfg := DefaultConfig()
	cfg.PreOptimizationProb = 1
	m := NewPopulationManager(cfg, r, nil, testRand())
	nested := csg.Union(csg.Union(leaf(a), leaf(b)))
	flat := csg.Union(leaf(a), leaf(b))
	pop := []ga.Ranked[*csg.Node]{ga.NewRanked(nested), ga.NewRanked(nested), ga.NewRanked(nested)}
	pop[1].SetRank(r.Rank(nested))
	pop[2].SetRank(math.Inf(1))
	m.ManipulateBeforeRanking(pop)
	assert.True(t, csg.Equal(flat, pop[0].Creature))
	assert.False(t, pop[0].IsRanked())
	// Ranked parents only take a rewrite that does not lower their rank.
	assert.True(t, csg.Equal(flat, pop[1].Creature), pop[1].Creature.Key())
	assert.True(t, pop[1].IsRanked())
	assert.Equal(t, r.Rank(flat), pop[1].Rank)
	assert.Same(t, nested, pop[2].Creature)
	assert.Equal(t, math.Inf(1), pop[2].Rank)

	cfg.PreOptimizationProb = 0
	cfg.OptimizationProb = 1
	m = NewPopulationManager(cfg, r, nil, testRand())
	pop = []ga.Ranked[*csg.Node]{ga.NewRanked(csg.Intersection(leaf(a), leaf(b)))}
	m.ManipulateBeforeRanking(pop)
	assert.True(t, csg.Equal(csg.Union(leaf(a), leaf(b)), pop[0].Creature), pop[0].Creature.Key())

	assert.True(t, m.OptimizedTree(nil).IsEmpty())
	assert.True(t, csg.Equal(leaf(a), m.OptimizedTree([]csg.Function{a})))
	first := m.OptimizedTree([]csg.Function{a, b})
	key := first.Key()
	first.AddChild(leaf(a))
	assert.Equal(t, key, m.OptimizedTree([]csg.Function{b, a}).Key(), "cached trees are copied")

	assert.Equal(t, Random, ParseOptimizationType("Random"))
	assert.Equal(t, Traverse, ParseOptimizationType("nonsense"))
	assert.Equal(t, "random", Random.String())
}

func TestSuitableFunctions(t *testing.T) {
	a, b, c := sampledSpheres(t)
	all := []csg.Function{a, b, c}
	g := ConnectionGraph(all, 0.05)
	r := NewRanker(1, 0.01, 0.6, all, g)
	m := NewPopulationManager(DefaultConfig(), r, g, testRand())
	assert.Equal(t, []csg.Function{a, b}, m.suitableFunctions([]csg.Function{a, b}))
	for range 10 {
		got := m.suitableFunctions([]csg.Function{a, c})
		require.Len(t, got, 2)
		// C has no neighbors so only A can be kept and C replaced, or C
		// kept and the pair left alone.
		if got[1] != c {
			assert.Equal(t, []csg.Function{a, b}, got)
		}
	}
}

func TestFromParams(t *testing.T) {
	var p params.Params
	p.Set("GA", "PopulationSize", 40)
	p.Set("GA", "SimpleCrossoverRate", 0.25)
	p.Set("Ranking", "Alpha", 30)
	p.Set("Ranking", "Lambda", 2.5)
	p.Set("Optimization", "OptimizationType", "random")
	p.Set("Statistics", "File", "stats.dat")
	cfg := FromParams(p)
	assert.Equal(t, 40, cfg.GA.PopulationSize)
	assert.Equal(t, 0.25, cfg.SimpleCrossoverProb)
	assert.InDelta(t, math.Pi/6, cfg.Alpha, 1e-12)
	assert.False(t, cfg.AutoLambda)
	assert.Equal(t, 2.5, cfg.Lambda)
	assert.Equal(t, Random, cfg.OptimizationType)
	assert.Equal(t, "stats.dat", cfg.StatsFile)
	// Untouched keys keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.MaxIterations, cfg.MaxIterations)
	assert.Equal(t, def.TournamentK, cfg.TournamentK)
	assert.InDelta(t, def.Alpha, FromParams(params.Params{}).Alpha, 1e-12)
	assert.True(t, FromParams(params.Params{}).AutoLambda)
}

func smallConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.GA.PopulationSize = 20
	cfg.MaxIterations = 10
	cfg.MaxIterationsWithoutChange = 5
	cfg.MaxTreeDepth = 3
	cfg.Seed = 7
	cfg.StatsFile = filepath.Join(t.TempDir(), "stats.dat")
	return cfg
}

func TestCreateNodeWithGA(t *testing.T) {
	a, b, _ := sampledSpheres(t)
	fs := []csg.Function{a, b}
	cfg := smallConfig(t)
	cfg.InitializeWithUnionOfAllFunctions = true
	res, err := CreateNodeWithGA(context.Background(), fs, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Node)
	r := NewRanker(LambdaFromPoints(fs), cfg.Epsilon, cfg.Alpha, fs, nil)
	assert.GreaterOrEqual(t, res.Rank, r.Rank(csg.Union(leaf(a), leaf(b)))-1e-9)
	assert.NotEmpty(t, res.Statistics.Iterations)
	_, err = os.Stat(cfg.StatsFile)
	assert.NoError(t, err)

	// Rewriting parents before ranking never lowers the best rank.
	opt := cfg
	opt.OptimizationProb, opt.PreOptimizationProb = 1, 1
	opt.StatsFile = ""
	for _, typ := range []OptimizationType{Traverse, Random} {
		opt.OptimizationType = typ
		res, err := CreateNodeWithGA(context.Background(), fs, opt, nil)
		require.NoError(t, err)
		its := res.Statistics.Iterations
		require.NotEmpty(t, its)
		for i := 1; i < len(its); i++ {
			assert.GreaterOrEqual(t, its[i].Best, its[i-1].Best, "%s iteration %d", typ, i)
		}
	}

	one, err := CreateNodeWithGA(context.Background(), fs[:1], cfg, nil)
	require.NoError(t, err)
	assert.True(t, csg.Equal(leaf(a), one.Node))
	_, err = CreateNodeWithGA(context.Background(), nil, cfg, nil)
	assert.Error(t, err)
}

func TestComputeGAWithPartitions(t *testing.T) {
	a, b, c := sampledSpheres(t)
	g := ConnectionGraph([]csg.Function{a, b, c}, 0.05)
	n, err := ComputeGAWithPartitions(context.Background(), g.Partitions(), smallConfig(t))
	require.NoError(t, err)
	want := csg.Union(csg.Union(leaf(a), leaf(b)), leaf(c))
	assert.True(t, csg.Equal(want, n), n.Key())

	single, err := ComputeGAWithPartitions(context.Background(), []*Graph{NewGraph([]csg.Function{c})}, smallConfig(t))
	require.NoError(t, err)
	assert.True(t, csg.Equal(leaf(c), single))

	empty, err := ComputeGAWithPartitions(context.Background(), nil, smallConfig(t))
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestComputeNodesForCliques(t *testing.T) {
	a, b, c := sampledSpheres(t)
	cliques := [][]csg.Function{{a, b}, {}, {c}}
	check := func(t *testing.T, got []CliqueNode) {
		require.Len(t, got, 2)
		assert.True(t, csg.Equal(csg.Union(leaf(a), leaf(b)), got[0].Node))
		assert.Equal(t, []csg.Function{c}, got[1].Functions)
		assert.True(t, csg.Equal(leaf(c), got[1].Node))
	}
	got, err := ComputeNodesForCliques(context.Background(), cliques, smallConfig(t), false)
	require.NoError(t, err)
	check(t, got)

	got, err = ComputeNodesForCliques(context.Background(), cliques, smallConfig(t), true)
	if runtime.NumCPU() < 2 {
		assert.ErrorIs(t, err, ErrNoParallelism)
		return
	}
	require.NoError(t, err)
	check(t, got)
}

func TestMergeCliqueNodes(t *testing.T) {
	a, b, c := sampledSpheres(t)
	d, err := implicit.NewSphere("D", r3.Vec{Y: 10}, 1)
	require.NoError(t, err)
	nodes := []CliqueNode{
		{Node: csg.Union(leaf(d), csg.Complement(leaf(d)))},
		{Node: csg.Union(leaf(a), leaf(b))},
		{Node: csg.Union(leaf(b), leaf(c))},
	}
	got := MergeCliqueNodes(nodes, nil)
	want := csg.Union(leaf(a), csg.Union(leaf(b), leaf(c)))
	assert.True(t, csg.Equal(want, got), got.Key())
	// Inputs are not modified.
	assert.True(t, csg.Equal(csg.Union(leaf(a), leaf(b)), nodes[1].Node))

	// B is only valid under the union of the first tree, so the second tree
	// is spliced into it and the solid stays the union of both.
	first := csg.Union(leaf(a), leaf(b))
	second := csg.Intersection(leaf(b), csg.Union(leaf(b), leaf(c)))
	got = MergeCliqueNodes([]CliqueNode{{Node: first}, {Node: second}}, nil)
	assert.Equal(t, "( A ) Union ( ( B ) Intersection ( ( B ) Union ( C ) ) )", got.Key())
	assert.Equal(t, first.NumNodes()+second.NumNodes()-1, got.NumNodes())
	assert.True(t, inflate.Equivalent(csg.Union(first, second), got, 0.2, nil), got.Key())

	single := MergeCliqueNodes(nodes[:1], nil)
	assert.True(t, csg.Equal(nodes[0].Node, single))
	assert.Panics(t, func() { MergeCliqueNodes(nil, nil) })
}

func TestMergeFirstFallsBackToSmallerSubgraphs(t *testing.T) {
	a, b, c := sampledSpheres(t)
	d, err := implicit.NewSphere("D", r3.Vec{Y: 3}, 1)
	require.NoError(t, err)
	n := csg.Difference(leaf(a), csg.Union(leaf(b), leaf(c)))
	o := csg.Union(leaf(a), csg.Difference(leaf(d), csg.Union(leaf(b), leaf(c))))
	// The largest common subtree B∪C only appears as a subtrahend.
	require.Equal(t, 3, csg.LargestCommonSubgraph(n, o).NumNodes)
	merged, idx := mergeFirst(n, []*csg.Node{o})
	require.NotNil(t, merged)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "( ( A ) Difference ( ( B ) Union ( C ) ) ) Union ( ( D ) Difference ( ( B ) Union ( C ) ) )", merged.Key())
}
