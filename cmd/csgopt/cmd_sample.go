package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/soypat/csg"
	"github.com/soypat/csg/pointcloud"
	"github.com/spf13/cobra"
)

func (a *app) sampleCmd() *cobra.Command {
	var (
		output string
		step   float64
		delta  float64
		noise  float64
		seed   uint64
		xyz    bool
	)
	cmd := &cobra.Command{
		Use:   "sample <tree.json>",
		Short: "Sample oriented points near the surface of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if step <= 0 {
				return fmt.Errorf("step must be positive, got %g", step)
			}
			if !cmd.Flags().Changed("delta") {
				delta = step / 2
			}
			n, err := readTree(args[0])
			if err != nil {
				return err
			}
			cloud := csg.SampleSurface(n, step, delta)
			if cloud.Len() == 0 {
				return errors.New("no grid points near the surface")
			}
			if noise > 0 {
				if seed == 0 {
					seed = rand.Uint64()
				}
				pointcloud.AddNoise(cloud, noise, rand.NewPCG(seed, ^seed))
			}
			write := pointcloud.Write
			if xyz {
				write = pointcloud.WriteXYZ
			}
			if err := createFile(output, func(w io.Writer) error { return write(w, cloud) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d points written to %s\n", cloud.Len(), output)
			a.log.Debug("surface sampled", slog.Float64("step", step), slog.Float64("delta", delta), slog.Float64("noise", noise))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&output, "output", "o", "", "output point cloud file")
	fl.Float64Var(&step, "step", 0.05, "sampling grid step")
	fl.Float64Var(&delta, "delta", 0, "largest distance to the surface of kept points (default step/2)")
	fl.Float64Var(&noise, "noise", 0, "standard deviation of gaussian position noise")
	fl.Uint64Var(&seed, "seed", 0, "noise random seed (0 draws one)")
	fl.BoolVar(&xyz, "xyz", false, "write one point per line without header")
	cmd.MarkFlagRequired("output")
	return cmd
}
