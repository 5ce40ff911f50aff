package ga

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scalar searches the real line for target.
type scalar struct {
	rng    *rand.Rand
	target float64
	calls  atomic.Int64
}

func (s *scalar) Create() float64 { return -10 + 20*s.rng.Float64() }
func (s *scalar) Mutate(x float64) float64 { return x + s.rng.NormFloat64() }
func (s *scalar) Crossover(a, b float64) []float64 {
	return []float64{(a + b) / 2, a + (b-a)*s.rng.Float64()}
}
func (s *scalar) Rank(x float64) float64 {
	s.calls.Add(1)
	return -math.Abs(x - s.target)
}

func newRng(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed+1)) }

func newScalarGA(s *scalar, stop StopCriterion) *GA[float64] {
	return &GA[float64]{
		Creator:  s,
		Ranker:   s,
		Selector: &TournamentSelector[float64]{K: 2, Rng: newRng(7)},
		Stop:     stop,
		Rng:      newRng(11),
	}
}

func TestRunConverges(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		s := &scalar{rng: newRng(1), target: 3}
		g := newScalarGA(s, IterationStopCriterion{MaxIterations: 60})
		p := DefaultParams()
		p.PopulationSize = 40
		p.InParallel = parallel
		p.Workers = 4
		res := g.Run(p)
		require.Len(t, res.Population, 40)
		assert.InDelta(t, 3, res.Best().Creature, 0.1)
		assert.Len(t, res.Statistics.Iterations, 61)
		for i := 1; i < len(res.Population); i++ {
			assert.GreaterOrEqual(t, res.Population[i-1].Rank, res.Population[i].Rank)
		}
		// Elitism keeps the best rank from decreasing.
		its := res.Statistics.Iterations
		for i := 1; i < len(its); i++ {
			assert.GreaterOrEqual(t, its[i].Best, its[i-1].Best)
		}
	}
}

func TestRankCache(t *testing.T) {
	s := &scalar{rng: newRng(2), target: 1}
	g := newScalarGA(s, IterationStopCriterion{MaxIterations: 20})
	// Rounding collapses the search space to a handful of creatures.
	g.Creator = roundingCreator{s}
	g.Fingerprint = func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	p := DefaultParams()
	p.PopulationSize = 50
	res := g.Run(p)
	assert.Equal(t, 1.0, res.Best().Creature)
	assert.LessOrEqual(t, s.calls.Load(), int64(60))
}

type roundingCreator struct{ *scalar }

func (r roundingCreator) Create() float64 { return math.Round(r.scalar.Create()) }
func (r roundingCreator) Mutate(x float64) float64 {
	return math.Round(r.scalar.Mutate(x))
}
func (r roundingCreator) Crossover(a, b float64) []float64 {
	return []float64{math.Round((a + b) / 2)}
}

func TestNoFitnessIncreaseStopCriterion(t *testing.T) {
	c := &NoFitnessIncreaseStopCriterion{MaxIterationsWithoutChange: 3, Delta: 0.1, MaxIterations: 100}
	assert.False(t, c.ShouldStop(1, 0))
	assert.False(t, c.ShouldStop(1.05, 1))
	assert.False(t, c.ShouldStop(1.5, 2)) // Improvement resets the count.
	assert.False(t, c.ShouldStop(1.5, 3))
	assert.False(t, c.ShouldStop(1.55, 4))
	assert.True(t, c.ShouldStop(1.59, 5))

	c = &NoFitnessIncreaseStopCriterion{MaxIterationsWithoutChange: 10, Delta: 0.1, MaxIterations: 2}
	assert.False(t, c.ShouldStop(1, 0))
	assert.False(t, c.ShouldStop(2, 1))
	assert.True(t, c.ShouldStop(3, 2))
}

func TestTournamentSelector(t *testing.T) {
	pop := []Ranked[int]{{Creature: 0, Rank: 3}, {Creature: 1, Rank: 2}, {Creature: 2, Rank: 1}}
	sel := &TournamentSelector[int]{K: 50, Rng: newRng(3)}
	for range 10 {
		assert.Equal(t, 0, sel.Select(pop).Creature)
	}
	assert.Panics(t, func() { sel.Select(nil) })
}

type neverStop struct{}

func (neverStop) ShouldStop(float64, int) bool { return false }

func TestRunAsyncStop(t *testing.T) {
	s := &scalar{rng: newRng(4), target: -2}
	g := newScalarGA(s, neverStop{})
	p := DefaultParams()
	p.PopulationSize = 10
	h := g.RunAsync(context.Background(), p)
	h.Stop()
	res := h.Wait()
	assert.Len(t, res.Population, 10)
	assert.NotEmpty(t, res.Statistics.Iterations)
	<-h.Done()

	ctx, cancel := context.WithCancel(context.Background())
	h = newScalarGA(&scalar{rng: newRng(5)}, neverStop{}).RunAsync(ctx, p)
	cancel()
	assert.Len(t, h.Wait().Population, 10)
}

// doubler doubles every creature after ranking.
type doubler struct{ before int }

func (d *doubler) ManipulateBeforeRanking(pop []Ranked[float64]) { d.before++ }
func (d *doubler) ManipulateAfterRanking(pop []Ranked[float64]) {
	for i := range pop {
		pop[i].Set(2 * pop[i].Creature)
	}
}

func TestPopulationManager(t *testing.T) {
	s := &scalar{rng: newRng(6)}
	g := newScalarGA(s, IterationStopCriterion{MaxIterations: 2})
	m := &doubler{}
	g.Manager = m
	p := DefaultParams()
	p.PopulationSize = 8
	res := g.Run(p)
	assert.Equal(t, 3, m.before)
	for _, r := range res.Population {
		assert.True(t, r.IsRanked())
		assert.Equal(t, s.Rank(r.Creature), r.Rank)
	}
}

func TestStatistics(t *testing.T) {
	s := &scalar{rng: newRng(8), target: 0.5}
	res := newScalarGA(s, IterationStopCriterion{MaxIterations: 4}).Run(Params{PopulationSize: 12, NumBestParents: 1, MutationRate: 0.5, CrossoverRate: 0.5})
	var buf bytes.Buffer
	n, err := res.Statistics.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	for _, it := range res.Statistics.Iterations {
		assert.GreaterOrEqual(t, it.Best+1e-9, it.Mean)
		assert.GreaterOrEqual(t, it.Mean+1e-9, it.Worst)
	}

	dir := t.TempDir()
	require.NoError(t, res.Statistics.Save(filepath.Join(dir, "stats.dat")))
	require.NoError(t, res.Statistics.SavePlot("ranks", filepath.Join(dir, "stats.png")))
	assert.Error(t, Statistics{}.SavePlot("empty", filepath.Join(dir, "empty.png")))
}
