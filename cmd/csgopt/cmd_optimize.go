package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/soypat/csg"
	"github.com/soypat/csg/cit"
	"github.com/soypat/csg/cluster"
	"github.com/soypat/csg/csgga"
	"github.com/soypat/csg/render"
	"github.com/spf13/cobra"
)

// Optimization methods of the optimize command.
const (
	methodCIT        = "cit"
	methodGA         = "ga"
	methodPartitions = "partitions"
	methodCliques    = "cliques"
	methodDecompose  = "decompose"
	methodUnionPaths = "unionpaths"
)

var methods = []string{methodCIT, methodGA, methodPartitions, methodCliques, methodDecompose, methodUnionPaths}

type optimizeFlags struct {
	output             string
	method             string
	grid               float64
	workers            int
	connectEps         float64
	sampleStep         float64
	removeRedundancies bool
	useDifference      bool
	parallel           bool
	report             string
	statsFile          string
	plotFile           string
	dotFile            string
	stlFile            string
	meshCells          int
}

func (a *app) optimizeCmd() *cobra.Command {
	var f optimizeFlags
	cmd := &cobra.Command{
		Use:   "optimize <tree.json>",
		Short: "Optimize a CSG tree",
		Long: `Optimize rewrites a CSG tree into a smaller tree describing the same solid.

Methods:
  cit         prime implicants of canonical intersection terms with set cover
  ga          genetic search over trees of the tree's primitives
  partitions  genetic search per connected group of primitives
  cliques     genetic search per clique of primitives, merged on common subtrees
  decompose   dominating primitives placed directly, CIT on the remainder
  unionpaths  CIT on every union operand, results united`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("grid") {
				f.grid = a.params.Float("CIT", "SamplingGridSize", f.grid)
			}
			return a.runOptimize(cmd.Context(), cmd.OutOrStdout(), args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "output tree file (JSON)")
	fl.StringVarP(&f.method, "method", "m", methodCIT, "optimization method: "+strings.Join(methods, ", "))
	fl.Float64Var(&f.grid, "grid", cit.DefaultOptions().SamplingGridSize, "sampling grid size of empty set tests")
	fl.IntVar(&f.workers, "workers", 0, "concurrent cluster optimizations (0 uses all CPUs)")
	fl.Float64Var(&f.connectEps, "connect-eps", 0.01, "distance below which primitives are connected")
	fl.Float64Var(&f.sampleStep, "sample-step", 0.05, "grid step for sampling surface points of primitives without points")
	fl.BoolVar(&f.removeRedundancies, "remove-redundancies", false, "remove redundant subtrees before optimizing")
	fl.BoolVar(&f.useDifference, "use-difference", false, "place negated dominating primitives with difference instead of intersection")
	fl.BoolVar(&f.parallel, "parallel", false, "process cliques concurrently")
	fl.StringVar(&f.report, "report", "", "write the CIT optimization report to this file")
	fl.StringVar(&f.statsFile, "stats", "", "write GA statistics table to this file")
	fl.StringVar(&f.plotFile, "plot", "", "plot GA statistics to this image file")
	fl.StringVar(&f.dotFile, "dot", "", "write the optimized tree as DOT to this file")
	fl.StringVar(&f.stlFile, "stl", "", "mesh the optimized tree to this STL file")
	fl.IntVar(&f.meshCells, "mesh-cells", 100, "marching cubes cells along the longest side")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) runOptimize(ctx context.Context, w io.Writer, path string, f optimizeFlags) error {
	in, err := readTree(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "input:  %s\n", treeSummary(in))
	cache := cit.NewEmptySetCache()
	n := in
	if f.removeRedundancies {
		n = cit.RemoveRedundanciesCached(n, f.grid, csg.SampleSurface(n, f.grid, f.grid/2), cache)
		a.log.Info("redundancies removed", slog.Int("before", in.NumNodes()), slog.Int("after", n.NumNodes()))
	}

	citOpts := cit.DefaultOptions()
	citOpts.SamplingGridSize = f.grid
	citOpts.Logger = a.log
	citOpts.Cache = cache
	var report reportBuffer
	if f.report != "" {
		citOpts.Report = &report
	}
	gaCfg := csgga.FromParams(a.params)
	gaCfg.Logger = a.log
	if f.statsFile != "" {
		gaCfg.StatsFile = f.statsFile
	}

	var out *csg.Node
	switch f.method {
	case methodCIT:
		out, err = cit.Optimize(ctx, n, nil, citOpts)
	case methodGA, methodPartitions, methodCliques:
		fs := n.DistinctFunctions()
		a.ensurePoints(n, fs, f.sampleStep)
		out, err = a.runGA(ctx, fs, gaCfg, f)
	case methodDecompose:
		out, err = cluster.OptimizeWithDecomposition(ctx, n, cluster.Options{
			SamplingGridSize: f.grid,
			UseDifference:    f.useDifference,
			Cache:            cache,
			Logger:           a.log,
		}, func(ctx context.Context, sub *csg.Node, prims []csg.Function) (*csg.Node, error) {
			return cit.Optimize(ctx, sub, prims, citOpts)
		})
	case methodUnionPaths:
		out, err = cluster.OptimizeUnionPaths(ctx, n, cluster.CITOptimizer(citOpts), f.workers, a.log)
	default:
		return fmt.Errorf("unknown method %q, want one of %s", f.method, strings.Join(methods, ", "))
	}
	if err != nil {
		return fmt.Errorf("%s optimization: %w", f.method, err)
	}
	fmt.Fprintf(w, "output: %s\n", treeSummary(out))
	a.log.Info("tree optimized", slog.String("method", f.method), slog.Int("empty_set_cache", cache.Len()))

	if err := writeTree(f.output, out); err != nil {
		return err
	}
	if f.report != "" {
		if err := createFile(f.report, report.flush(f.method)); err != nil {
			return err
		}
	}
	if f.dotFile != "" {
		if err := createFile(f.dotFile, func(w io.Writer) error { return csg.WriteDOT(w, out, "optimized") }); err != nil {
			return err
		}
	}
	if f.stlFile != "" {
		r, err := render.NewMeshRenderer(out, f.meshCells)
		if err != nil {
			return err
		}
		if err := render.CreateSTL(f.stlFile, r); err != nil {
			return err
		}
	}
	return nil
}

// ensurePoints samples the surface of n and hands the samples to functions
// when none of them carries points.
func (a *app) ensurePoints(n *csg.Node, fs []csg.Function, step float64) {
	if csg.NumPoints(fs) > 0 {
		return
	}
	cloud := csg.SampleSurface(n, step, step/2)
	assigned := csg.AssignPoints(fs, cloud, step/2)
	a.log.Info("surface sampled", slog.Int("points", cloud.Len()), slog.Int("functions", assigned))
}

func (a *app) runGA(ctx context.Context, fs []csg.Function, cfg csgga.Config, f optimizeFlags) (*csg.Node, error) {
	switch f.method {
	case methodPartitions:
		g := csgga.ConnectionGraph(fs, f.connectEps)
		parts := g.Partitions()
		a.log.Info("partitions", slog.Int("count", len(parts)))
		return csgga.ComputeGAWithPartitions(ctx, parts, cfg)
	case methodCliques:
		g := csgga.ConnectionGraph(fs, f.connectEps)
		cliques := g.Cliques()
		a.log.Info("cliques", slog.Int("count", len(cliques)))
		nodes, err := csgga.ComputeNodesForCliques(ctx, cliques, cfg, f.parallel)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return csg.Empty(), nil
		}
		return csgga.MergeCliqueNodes(nodes, a.log), nil
	}
	res, err := csgga.CreateNodeWithGA(ctx, fs, cfg, csgga.ConnectionGraph(fs, f.connectEps))
	if err != nil {
		return nil, err
	}
	a.log.Info("GA finished", slog.String("run_id", res.RunID.String()), slog.Float64("best_rank", res.Rank))
	if f.plotFile != "" && len(res.Statistics.Iterations) > 0 {
		if err := res.Statistics.SavePlot("CSG tree GA", f.plotFile); err != nil {
			return nil, err
		}
	}
	return res.Node, nil
}

// reportBuffer collects CIT optimizer reports from concurrent optimizations.
type reportBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *reportBuffer) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(b)
}

// flush returns a writer of the collected reports, or of a note when the
// method never ran the CIT optimizer.
func (r *reportBuffer) flush(method string) func(io.Writer) error {
	return func(w io.Writer) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.buf.Len() == 0 {
			_, err := fmt.Fprintf(w, "method %s did not run the CIT optimizer\n", method)
			return err
		}
		_, err := r.buf.WriteTo(w)
		return err
	}
}
