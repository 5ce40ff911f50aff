package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/soypat/csg"
	"github.com/soypat/csg/cit"
	"github.com/soypat/csg/csgga"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Merger joins optimized parts into a single tree. UnionMerge is a Merger.
type Merger func([]*csg.Node) *csg.Node

// PerCluster optimizes every node with optimize and merges the results in
// input order. At most workers optimizations run at once; workers below 1
// use one worker per CPU. The first error cancels the remaining work.
func PerCluster(ctx context.Context, nodes []*csg.Node, optimize func(context.Context, *csg.Node) (*csg.Node, error), merge Merger, workers int) (*csg.Node, error) {
	return apply(ctx, "cluster.PerCluster", nodes, optimize, merge, workers)
}

// PerPrimitiveCluster builds a tree for every cluster with optimize and
// merges the results in input order. Concurrency follows PerCluster.
func PerPrimitiveCluster(ctx context.Context, clusters []Cluster, optimize func(context.Context, Cluster) (*csg.Node, error), merge Merger, workers int) (*csg.Node, error) {
	return apply(ctx, "cluster.PerPrimitiveCluster", clusters, optimize, merge, workers)
}

func apply[T any](ctx context.Context, name string, items []T, optimize func(context.Context, T) (*csg.Node, error), merge Merger, workers int) (*csg.Node, error) {
	if optimize == nil || merge == nil {
		panic("nil argument to " + name)
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int("clusters", len(items)),
		attribute.Int("workers", workers),
	))
	defer span.End()

	out := make([]*csg.Node, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			n, err := optimize(ctx, item)
			if err != nil {
				return fmt.Errorf("cluster %d: %w", i, err)
			}
			out[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merge(out), nil
}

// CITOptimizer returns an optimizer running the CIT optimizer on a node
// over its own primitives.
func CITOptimizer(opts cit.Options) func(context.Context, *csg.Node) (*csg.Node, error) {
	return func(ctx context.Context, n *csg.Node) (*csg.Node, error) {
		return cit.Optimize(ctx, n, nil, opts)
	}
}

// GAOptimizer returns an optimizer evolving a tree for a cluster with the
// CSG tree GA. Statistics are not saved.
func GAOptimizer(cfg csgga.Config) func(context.Context, Cluster) (*csg.Node, error) {
	cfg.StatsFile = ""
	return func(ctx context.Context, c Cluster) (*csg.Node, error) {
		res, err := csgga.CreateNodeWithGA(ctx, c, cfg, nil)
		if err != nil {
			return nil, err
		}
		return res.Node, nil
	}
}

// AsDecompositionOptimizer adapts a cluster optimizer to the remainders of
// OptimizeWithDecomposition, which are solved over their own primitives.
func AsDecompositionOptimizer(optimize func(context.Context, Cluster) (*csg.Node, error)) Optimizer {
	return func(ctx context.Context, _ *csg.Node, prims []csg.Function) (*csg.Node, error) {
		return optimize(ctx, prims)
	}
}

// OptimizeUnionPaths optimizes every union path of n with optimize and
// unites the results.
func OptimizeUnionPaths(ctx context.Context, n *csg.Node, optimize func(context.Context, *csg.Node) (*csg.Node, error), workers int, log *slog.Logger) (*csg.Node, error) {
	if log == nil {
		log = slog.Default()
	}
	parts := UnionPaths(n)
	log.Info("union path clusters", slog.Int("clusters", len(parts)))
	return PerCluster(ctx, parts, optimize, UnionMerge, workers)
}
