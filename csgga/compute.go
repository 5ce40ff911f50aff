package csgga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/soypat/csg"
	"github.com/soypat/csg/ga"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("csg.csgga")

// ErrNoParallelism is returned when parallel clique processing is requested
// on a machine with a single CPU.
var ErrNoParallelism = errors.New("parallel clique processing requires more than one CPU")

// Result is the outcome of CreateNodeWithGA.
type Result struct {
	Node       *csg.Node
	Rank       float64
	RunID      uuid.UUID
	Statistics ga.Statistics
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// CreateNodeWithGA evolves a tree over fs. When graph is not nil trees
// joining unconnected functions are pruned and optimization substitutes
// graph neighbors. The run stops on the configured criterion or when ctx is
// done, and yields the best tree of the last completed iteration.
func CreateNodeWithGA(ctx context.Context, fs []csg.Function, cfg Config, graph *Graph) (Result, error) {
	switch len(fs) {
	case 0:
		return Result{}, errors.New("no functions to CreateNodeWithGA")
	case 1:
		return Result{Node: csg.Geometry(fs[0])}, nil
	}
	ctx, span := tracer.Start(ctx, "csgga.CreateNodeWithGA",
		trace.WithAttributes(attribute.Int("functions", len(fs)), attribute.Int("population", cfg.GA.PopulationSize)))
	defer span.End()

	log := cfg.logger()
	lambda := cfg.lambdaFor(fs)
	log.Info("csg tree GA", slog.Int("functions", len(fs)), slog.Float64("lambda", lambda), slog.Bool("pruning", graph != nil))

	rng := newRand(cfg.Seed)
	ranker := NewRanker(lambda, cfg.Epsilon, cfg.Alpha, fs, graph)
	g := &ga.GA[*csg.Node]{
		Creator:     NewCreator(fs, cfg, ranker, newRand(rng.Uint64())),
		Ranker:      ranker,
		Selector:    &ga.TournamentSelector[*csg.Node]{K: cfg.TournamentK, Rng: newRand(rng.Uint64())},
		Stop:        &ga.NoFitnessIncreaseStopCriterion{MaxIterationsWithoutChange: cfg.MaxIterationsWithoutChange, Delta: cfg.ChangeDelta, MaxIterations: cfg.MaxIterations},
		Manager:     NewPopulationManager(cfg, ranker, graph, newRand(rng.Uint64())),
		Fingerprint: (*csg.Node).Key,
		Rng:         rng,
		Logger:      log,
	}
	res := g.RunAsync(ctx, cfg.GA).Wait()
	best := res.Best()
	span.SetAttributes(attribute.Float64("rank", best.Rank), attribute.Int("iterations", len(res.Statistics.Iterations)))
	out := Result{Node: best.Creature, Rank: best.Rank, RunID: res.RunID, Statistics: res.Statistics}
	if cfg.StatsFile != "" {
		if err := res.Statistics.Save(cfg.StatsFile); err != nil {
			return out, fmt.Errorf("saving GA statistics: %w", err)
		}
	}
	return out, nil
}

// ComputeGAWithPartitions solves every partition independently and returns
// the union of the results. A single partition yields its result directly.
// Partitions of two functions are solved by BestOfTwo.
func ComputeGAWithPartitions(ctx context.Context, partitions []*Graph, cfg Config) (*csg.Node, error) {
	parts := make([]*csg.Node, 0, len(partitions))
	for _, p := range partitions {
		fs := p.Functions()
		var n *csg.Node
		switch len(fs) {
		case 0:
			continue
		case 1:
			n = csg.Geometry(fs[0])
		case 2:
			ranker := NewRanker(cfg.lambdaFor(fs), cfg.Epsilon, cfg.Alpha, fs, nil)
			n, _ = BestOfTwo(fs[0], fs[1], ranker)
		default:
			res, err := CreateNodeWithGA(ctx, fs, cfg, p)
			if err != nil {
				return nil, err
			}
			n = res.Node
		}
		parts = append(parts, n)
	}
	switch len(parts) {
	case 0:
		return csg.Empty(), nil
	case 1:
		return parts[0], nil
	}
	return csg.Union(parts...), nil
}

// CliqueNode is the tree computed for a clique of functions.
type CliqueNode struct {
	Functions []csg.Function
	Node      *csg.Node
	Score     float64
	Duration  time.Duration
}

// ComputeNodesForCliques computes a tree per clique. Empty cliques are
// skipped. With parallel set cliques are processed concurrently on up to
// runtime.NumCPU goroutines, which fails with ErrNoParallelism on a single
// CPU. Results keep the order of cliques.
func ComputeNodesForCliques(ctx context.Context, cliques [][]csg.Function, cfg Config, parallel bool) ([]CliqueNode, error) {
	ncpu := runtime.NumCPU()
	if parallel && ncpu < 2 {
		return nil, ErrNoParallelism
	}
	log := cfg.logger()
	results := make([]*CliqueNode, len(cliques))
	compute := func(ctx context.Context, i int) error {
		fs := cliques[i]
		if len(fs) == 0 {
			return nil
		}
		log.Debug("clique started", slog.Int("clique", i+1), slog.Int("of", len(cliques)), slog.Int("functions", len(fs)))
		start := time.Now()
		cn, err := computeClique(ctx, fs, cfg)
		if err != nil {
			return fmt.Errorf("clique %d: %w", i, err)
		}
		cn.Duration = time.Since(start)
		results[i] = &cn
		log.Debug("clique done", slog.Int("clique", i+1), slog.Duration("duration", cn.Duration), slog.Float64("score", cn.Score))
		return nil
	}
	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ncpu)
		for i := range cliques {
			g.Go(func() error { return compute(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range cliques {
			if err := compute(ctx, i); err != nil {
				return nil, err
			}
		}
	}
	out := make([]CliqueNode, 0, len(cliques))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func computeClique(ctx context.Context, fs []csg.Function, cfg Config) (CliqueNode, error) {
	cn := CliqueNode{Functions: fs}
	switch len(fs) {
	case 1:
		cn.Node = csg.Geometry(fs[0])
	case 2:
		ranker := NewRanker(cfg.lambdaFor(fs), cfg.Epsilon, cfg.Alpha, fs, nil)
		cn.Node, cn.Score = BestOfTwo(fs[0], fs[1], ranker)
	default:
		cfg.StatsFile = ""
		res, err := CreateNodeWithGA(ctx, fs, cfg, nil)
		if err != nil {
			return cn, err
		}
		cn.Node, cn.Score = res.Node, res.Rank
	}
	return cn, nil
}

// MergeCliqueNodes merges the trees of cliques that share subtrees into one
// tree. The first tree of the worklist is merged with the first other tree
// it has a valid common subgraph with, first without and then with
// intersections allowed on the merge path, and the merged tree replaces
// both. A tree that merges with no other is dropped with a warning.
// MergeCliqueNodes panics if nodes is empty.
func MergeCliqueNodes(nodes []CliqueNode, log *slog.Logger) *csg.Node {
	if len(nodes) == 0 {
		panic("no nodes to MergeCliqueNodes")
	}
	if log == nil {
		log = slog.Default()
	}
	queue := make([]*csg.Node, len(nodes))
	for i, cn := range nodes {
		queue[i] = cn.Node.Clone()
	}
	for len(queue) > 1 {
		n1, rest := queue[0], queue[1:]
		merged, with := mergeFirst(n1, rest)
		if merged == nil {
			log.Warn("tree could not be merged and is ignored", slog.String("tree", n1.Key()))
			queue = rest
			continue
		}
		next := make([]*csg.Node, 0, len(rest))
		next = append(next, merged)
		next = append(next, rest[:with]...)
		queue = append(next, rest[with+1:]...)
	}
	return queue[0]
}

// mergeFirst merges n with the first tree of others that admits a merge at
// any of their common subgraphs, largest first, and returns the result and the
// index of that tree, or nil.
func mergeFirst(n *csg.Node, others []*csg.Node) (*csg.Node, int) {
	for _, allow := range [2]bool{false, true} {
		for i, o := range others {
			for _, cs := range csg.CommonSubgraphs(n, o) {
				if m, res := csg.MergeNodes(n, o, cs, allow); res != csg.MergeNone {
					return m, i
				}
			}
		}
	}
	return nil, -1
}
