package ga

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("csg.ga")

var (
	iterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csg_ga_iterations_total",
		Help: "GA iterations run across all runs.",
	})
	rankingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csg_ga_rankings_total",
		Help: "Creature rankings by source.",
	}, []string{"source"})
	bestRank = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csg_ga_best_rank",
		Help: "Best rank of the most recently finished iteration.",
	})
)

// GA evolves creatures of type T. Creator, Ranker, Selector and Stop are
// required. A GA must not be run more than once at a time.
type GA[T any] struct {
	Creator  Creator[T]
	Ranker   Ranker[T]
	Selector Selector[T]
	Stop     StopCriterion
	// Manager is optional.
	Manager PopulationManager[T]
	// Fingerprint identifies equal creatures for the rank cache. Caching is
	// disabled when nil.
	Fingerprint func(T) string
	// Rng drives crossover and mutation decisions. A randomly seeded
	// generator is used when nil.
	Rng    *rand.Rand
	Logger *slog.Logger
}

// Result is the outcome of a run.
type Result[T any] struct {
	RunID uuid.UUID
	// Population is sorted by descending rank.
	Population []Ranked[T]
	Statistics Statistics
}

// Best returns the best ranked creature of the final population.
func (r Result[T]) Best() Ranked[T] {
	if len(r.Population) == 0 {
		panic("no population in Result")
	}
	return r.Population[0]
}

// Run evolves a population until the stop criterion fires.
func (g *GA[T]) Run(p Params) Result[T] {
	return g.run(context.Background(), p, nil)
}

// Handle controls a run started with RunAsync.
type Handle[T any] struct {
	stop atomic.Bool
	done chan struct{}
	res  Result[T]
}

// Stop requests the run to terminate after the current iteration.
func (h *Handle[T]) Stop() { h.stop.Store(true) }

// Done is closed once the run has terminated.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Wait blocks until the run terminates and returns its result.
func (h *Handle[T]) Wait() Result[T] {
	<-h.done
	return h.res
}

// RunAsync starts a run in a new goroutine. The run terminates when the stop
// criterion fires, Stop is called or ctx is done, and yields the population
// of the last completed iteration.
func (g *GA[T]) RunAsync(ctx context.Context, p Params) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res = g.run(ctx, p, &h.stop)
	}()
	return h
}

func (g *GA[T]) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *GA[T]) run(ctx context.Context, p Params, stop *atomic.Bool) Result[T] {
	switch {
	case g.Creator == nil || g.Ranker == nil || g.Selector == nil || g.Stop == nil:
		panic("GA requires Creator, Ranker, Selector and Stop")
	case p.PopulationSize < 1:
		panic("GA population size must be positive")
	}
	if g.Rng == nil {
		g.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	res := Result[T]{RunID: uuid.New()}
	ctx, span := tracer.Start(ctx, "ga.Run", trace.WithAttributes(
		attribute.String("ga.run_id", res.RunID.String()),
		attribute.Int("ga.population_size", p.PopulationSize),
	))
	defer span.End()
	log := g.logger().With("run_id", res.RunID.String())

	var cache map[string]float64
	if p.UseCaching && g.Fingerprint != nil {
		cache = make(map[string]float64)
	}
	start := time.Now()
	pop := make([]Ranked[T], p.PopulationSize)
	for i := range pop {
		pop[i] = NewRanked(g.Creator.Create())
	}
	log.Debug("population created", "size", len(pop))

	for iteration := 0; ; iteration++ {
		itStart := time.Now()
		if g.Manager != nil {
			g.Manager.ManipulateBeforeRanking(pop)
		}
		g.rank(pop, p, cache)
		if g.Manager != nil {
			g.Manager.ManipulateAfterRanking(pop)
			g.rank(pop, p, cache)
		}
		slices.SortStableFunc(pop, func(a, b Ranked[T]) int {
			switch {
			case a.Rank > b.Rank:
				return -1
			case a.Rank < b.Rank:
				return 1
			}
			return 0
		})
		it := newIterationStats(iteration, pop, time.Since(itStart))
		res.Statistics.Iterations = append(res.Statistics.Iterations, it)
		iterationsTotal.Inc()
		bestRank.Set(it.Best)
		log.Debug("iteration done", "iteration", iteration, "best_rank", it.Best, "mean_rank", it.Mean)

		stopped := stop != nil && stop.Load() || ctx.Err() != nil
		if g.Stop.ShouldStop(pop[0].Rank, iteration) || stopped {
			res.Population = pop
			res.Statistics.Total = time.Since(start)
			span.SetAttributes(
				attribute.Int("ga.iterations", iteration+1),
				attribute.Float64("ga.best_rank", pop[0].Rank),
				attribute.Bool("ga.stopped", stopped),
			)
			log.Info("ga run done", "iterations", iteration+1, "best_rank", pop[0].Rank,
				"stopped", stopped, "duration", res.Statistics.Total)
			return res
		}
		pop = g.breed(pop, p)
	}
}

func (g *GA[T]) rank(pop []Ranked[T], p Params, cache map[string]float64) {
	var todo []int
	// Creatures sharing a fingerprint within one batch are ranked once.
	var dups map[string][]int
	if cache != nil {
		dups = make(map[string][]int)
	}
	for i := range pop {
		if pop[i].ranked {
			continue
		}
		if cache != nil {
			key := g.Fingerprint(pop[i].Creature)
			if r, ok := cache[key]; ok {
				pop[i].SetRank(r)
				rankingsTotal.WithLabelValues("cache").Inc()
				continue
			}
			dups[key] = append(dups[key], i)
			if len(dups[key]) > 1 {
				continue
			}
		}
		todo = append(todo, i)
	}
	if p.InParallel && len(todo) > 1 {
		workers := p.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		wp := pool.New().WithMaxGoroutines(workers)
		for _, i := range todo {
			wp.Go(func() {
				pop[i].SetRank(g.Ranker.Rank(pop[i].Creature))
			})
		}
		wp.Wait()
	} else {
		for _, i := range todo {
			pop[i].SetRank(g.Ranker.Rank(pop[i].Creature))
		}
	}
	rankingsTotal.WithLabelValues("ranker").Add(float64(len(todo)))
	for key, idxs := range dups {
		r := pop[idxs[0]].Rank
		cache[key] = r
		for _, i := range idxs[1:] {
			pop[i].SetRank(r)
		}
		rankingsTotal.WithLabelValues("cache").Add(float64(len(idxs) - 1))
	}
}

// breed builds the next generation from a population sorted by rank.
func (g *GA[T]) breed(pop []Ranked[T], p Params) []Ranked[T] {
	next := make([]Ranked[T], 0, p.PopulationSize)
	next = append(next, pop[:min(max(p.NumBestParents, 0), len(pop), p.PopulationSize)]...)
	for len(next) < p.PopulationSize {
		a, b := g.Selector.Select(pop), g.Selector.Select(pop)
		offspring := []Ranked[T]{a, b}
		if g.Rng.Float64() < p.CrossoverRate {
			if children := g.Creator.Crossover(a.Creature, b.Creature); len(children) > 0 {
				offspring = offspring[:0]
				for _, c := range children {
					offspring = append(offspring, NewRanked(c))
				}
			}
		}
		for i := range offspring {
			if g.Rng.Float64() < p.MutationRate {
				offspring[i].Set(g.Creator.Mutate(offspring[i].Creature))
			}
		}
		for _, o := range offspring {
			if len(next) == p.PopulationSize {
				break
			}
			next = append(next, o)
		}
	}
	return next
}
