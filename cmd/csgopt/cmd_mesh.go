package main

import (
	"fmt"
	"io"

	"github.com/soypat/csg/render"
	"github.com/spf13/cobra"
)

func (a *app) meshCmd() *cobra.Command {
	var (
		output string
		cells  int
	)
	cmd := &cobra.Command{
		Use:   "mesh <tree.json>",
		Short: "Mesh a tree to a binary STL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := readTree(args[0])
			if err != nil {
				return err
			}
			model, err := render.Mesh(n, cells)
			if err != nil {
				return err
			}
			if err := createFile(output, func(w io.Writer) error { return render.WriteSTL(w, model) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d triangles written to %s\n", len(model), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output STL file")
	cmd.Flags().IntVar(&cells, "cells", 100, "marching cubes cells along the longest side")
	cmd.MarkFlagRequired("output")
	return cmd
}
