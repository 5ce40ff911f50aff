package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/soypat/csg"
	"github.com/soypat/csg/primitives"
	"github.com/spf13/cobra"
)

type extractFlags struct {
	output    string
	popSize   int
	maxIter   int
	seed      uint64
	statsFile string
	plotFile  string
}

func (a *app) extractCmd() *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract <manifolds.yaml>",
		Short: "Extract primitives from segmented manifolds",
		Long: `Extract searches for the set of spheres, cylinders and boxes that best
explains the points of the manifolds and writes their union as a tree.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := primitives.ConfigFromParams(a.params)
			cfg.Logger = a.log
			fl := cmd.Flags()
			if fl.Changed("population") {
				cfg.GA.PopulationSize = f.popSize
			}
			if fl.Changed("max-iterations") {
				cfg.MaxIterations = f.maxIter
			}
			if fl.Changed("seed") {
				cfg.Seed = f.seed
			}
			return a.runExtract(cmd.Context(), cmd.OutOrStdout(), args[0], cfg, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "output tree file (JSON)")
	fl.IntVar(&f.popSize, "population", 0, "population size")
	fl.IntVar(&f.maxIter, "max-iterations", 0, "maximum number of generations")
	fl.Uint64Var(&f.seed, "seed", 0, "random seed (0 draws one)")
	fl.StringVar(&f.statsFile, "stats", "", "write GA statistics table to this file")
	fl.StringVar(&f.plotFile, "plot", "", "plot GA statistics to this image file")
	cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) runExtract(ctx context.Context, w io.Writer, path string, cfg primitives.Config, f extractFlags) error {
	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	ms, err := primitives.ReadManifolds(fp)
	fp.Close()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := primitives.Extract(ctx, ms, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fs := res.Primitives.Functions()
	if len(fs) == 0 {
		status(w, false, "no primitives", "found for %d manifolds", len(ms))
		return errors.New("extraction found no primitives")
	}
	for _, p := range res.Primitives {
		fmt.Fprintf(w, "  %s\n", p)
	}
	status(w, err == nil, "extracted", "%d primitives, rank %.4f", len(fs), res.Rank)

	leaves := make([]*csg.Node, len(fs))
	for i, fn := range fs {
		leaves[i] = csg.Geometry(fn)
	}
	out := leaves[0]
	if len(leaves) > 1 {
		out = csg.Union(leaves...)
	}
	if err := writeTree(f.output, out); err != nil {
		return err
	}
	if f.statsFile != "" {
		if err := res.Statistics.Save(f.statsFile); err != nil {
			return err
		}
	}
	if f.plotFile != "" && len(res.Statistics.Iterations) > 0 {
		if err := res.Statistics.SavePlot("Primitive extraction", f.plotFile); err != nil {
			return err
		}
	}
	a.log.Info("primitives written", slog.String("path", f.output), slog.Int("primitives", len(fs)))
	return err
}
