// Package ga implements a generic genetic algorithm. A GA evolves a
// population of creatures of type T, built and varied by a Creator and
// scored by a Ranker. Higher ranks are better.
package ga

import (
	"math"
	"math/rand/v2"
)

// Worst is the rank of invalid creatures.
const Worst = -math.MaxFloat64

// Creator builds and varies creatures. Mutate and Crossover must not modify
// their arguments.
type Creator[T any] interface {
	Create() T
	Mutate(T) T
	Crossover(a, b T) []T
}

// Ranker scores creatures. Rank must be safe for concurrent use when the GA
// ranks in parallel.
type Ranker[T any] interface {
	Rank(T) float64
}

// PopulationManager manipulates the population right before and right after
// ranking. Creatures replaced through Ranked.Set are ranked again.
type PopulationManager[T any] interface {
	ManipulateBeforeRanking(pop []Ranked[T])
	ManipulateAfterRanking(pop []Ranked[T])
}

// Selector picks a parent from a population sorted by descending rank.
type Selector[T any] interface {
	Select(pop []Ranked[T]) Ranked[T]
}

// StopCriterion decides after each iteration whether the run terminates
// given the best rank of the current population.
type StopCriterion interface {
	ShouldStop(bestRank float64, iteration int) bool
}

// Ranked is a creature together with its rank.
type Ranked[T any] struct {
	Creature T
	Rank     float64
	ranked   bool
}

// NewRanked returns an unranked creature.
func NewRanked[T any](c T) Ranked[T] { return Ranked[T]{Creature: c} }

// IsRanked reports whether the rank is up to date.
func (r Ranked[T]) IsRanked() bool { return r.ranked }

// Set replaces the creature and marks it for ranking.
func (r *Ranked[T]) Set(c T) {
	r.Creature = c
	r.Rank = 0
	r.ranked = false
}

// SetRank sets the rank of the creature.
func (r *Ranked[T]) SetRank(rank float64) {
	r.Rank = rank
	r.ranked = true
}

// Params configures a run.
type Params struct {
	PopulationSize int     `yaml:"population_size"`
	NumBestParents int     `yaml:"num_best_parents"`
	MutationRate   float64 `yaml:"mutation_rate"`
	CrossoverRate  float64 `yaml:"crossover_rate"`
	// InParallel ranks creatures on Workers goroutines.
	InParallel bool `yaml:"in_parallel"`
	Workers    int  `yaml:"workers"`
	// UseCaching memoizes ranks by creature fingerprint for the whole run.
	UseCaching bool `yaml:"use_caching"`
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		PopulationSize: 150,
		NumBestParents: 2,
		MutationRate:   0.3,
		CrossoverRate:  0.4,
		UseCaching:     true,
	}
}

// TournamentSelector picks the best of K uniformly drawn creatures.
type TournamentSelector[T any] struct {
	K   int
	Rng *rand.Rand
}

// Select implements Selector.
func (s *TournamentSelector[T]) Select(pop []Ranked[T]) Ranked[T] {
	if len(pop) == 0 {
		panic("empty population to TournamentSelector")
	}
	k := max(s.K, 1)
	best := pop[s.Rng.IntN(len(pop))]
	for range k - 1 {
		c := pop[s.Rng.IntN(len(pop))]
		if c.Rank > best.Rank {
			best = c
		}
	}
	return best
}

// IterationStopCriterion stops after MaxIterations iterations.
type IterationStopCriterion struct {
	MaxIterations int
}

// ShouldStop implements StopCriterion.
func (c IterationStopCriterion) ShouldStop(_ float64, iteration int) bool {
	return iteration >= c.MaxIterations
}

// NoFitnessIncreaseStopCriterion stops once the best rank has not grown by
// more than Delta for MaxIterationsWithoutChange consecutive iterations, or
// after MaxIterations iterations, whichever happens first.
type NoFitnessIncreaseStopCriterion struct {
	MaxIterationsWithoutChange int
	Delta                      float64
	MaxIterations              int

	started   bool
	best      float64
	unchanged int
}

// ShouldStop implements StopCriterion.
func (c *NoFitnessIncreaseStopCriterion) ShouldStop(bestRank float64, iteration int) bool {
	if iteration >= c.MaxIterations {
		return true
	}
	if !c.started || bestRank-c.best > c.Delta {
		c.started = true
		c.best = bestRank
		c.unchanged = 0
		return false
	}
	c.unchanged++
	return c.unchanged >= c.MaxIterationsWithoutChange
}
