package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/soypat/csg/inflate"
	"github.com/spf13/cobra"
)

func (a *app) inflateCmd() *cobra.Command {
	var (
		output  string
		weights map[string]string
		cfg     inflate.Config
	)
	cmd := &cobra.Command{
		Use:   "inflate <tree.json>",
		Short: "Grow a tree with rewrites that keep its solid",
		Long: `Inflate applies random equivalence preserving rewrites to a tree and
writes the result as JSON together with a DOT graph (<output>_graph.gv) and
size information (<output>_info.toml).

Rewrite kinds: SubtreeCopy, DoubleNegation, Distributive, Absorption,
GhostPrimitive. Weights default to 1 for every kind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ins, err := parseInserters(weights)
			if err != nil {
				return err
			}
			cfg.Inserters = ins
			cfg.Logger = a.log
			in, err := readTree(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			res, err := inflate.Run(cmd.Context(), in, cfg)
			if err != nil && !errors.Is(err, inflate.ErrNotEquivalent) {
				return err
			}
			fmt.Fprintf(w, "input:  %s\n", treeSummary(res.Input))
			fmt.Fprintf(w, "output: %s\n", treeSummary(res.Output))
			if cfg.CheckCorrectness {
				verdict := "equivalent"
				if err != nil {
					verdict = "NOT equivalent"
				}
				status(w, err == nil, verdict, "at grid size %g", cfg.SamplingGridSize)
			}
			if werr := inflate.WriteOutputs(output, res); werr != nil {
				return werr
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&output, "output", "o", "", "output tree file (JSON)")
	fl.IntVarP(&cfg.Iterations, "iterations", "n", 10, "number of rewrites attempted")
	fl.StringToStringVarP(&weights, "weight", "w", nil, "rewrite kind weights, e.g. DoubleNegation=2,Distributive=0.5")
	fl.BoolVar(&cfg.CheckCorrectness, "check", false, "check the output encloses the same grid points as the input")
	fl.Float64Var(&cfg.SamplingGridSize, "grid", 0.1, "grid size of the correctness check")
	fl.Uint64Var(&cfg.Seed, "seed", 0, "random seed (0 draws one)")
	cmd.MarkFlagRequired("output")
	return cmd
}

// parseInserters builds inserters from kind=weight pairs. An empty map
// weighs every kind 1.
func parseInserters(weights map[string]string) ([]inflate.Inserter, error) {
	var ins []inflate.Inserter
	if len(weights) == 0 {
		for _, k := range inflate.Kinds() {
			ins = append(ins, inflate.Inserter{Kind: k, Weight: 1})
		}
		return ins, nil
	}
	for name, ws := range weights {
		k, err := inflate.ParseKind(name)
		if err != nil {
			return nil, err
		}
		w, err := strconv.ParseFloat(ws, 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("bad weight %q for %s", ws, name)
		}
		ins = append(ins, inflate.Inserter{Kind: k, Weight: w})
	}
	// Map order is random; sort so seeded runs repeat.
	slices.SortFunc(ins, func(a, b inflate.Inserter) int { return int(a.Kind) - int(b.Kind) })
	return ins, nil
}
