package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/soypat/csg"
	"github.com/soypat/csg/cit"
	"github.com/soypat/csg/inflate"
	"github.com/spf13/cobra"
)

var errTreesDiffer = errors.New("trees describe different solids")

func (a *app) compareCmd() *cobra.Command {
	var (
		grid   float64
		noDiff bool
	)
	cmd := &cobra.Command{
		Use:   "compare <a.json> <b.json>",
		Short: "Compare two trees structurally and by the solid they describe",
		Long: `Compare reports whether two trees are structurally equal and whether they
enclose the same grid points, and prints a line diff of their JSON. It fails
when the solids differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ta, err := readTree(args[0])
			if err != nil {
				return err
			}
			tb, err := readTree(args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %s\n", args[0], treeSummary(ta))
			fmt.Fprintf(w, "%s: %s\n", args[1], treeSummary(tb))

			same := csg.Equal(ta, tb)
			status(w, same, verdict(same, "identical", "different"), "structure")
			equiv := same || inflate.Equivalent(ta, tb, grid, cit.NewEmptySetCache())
			status(w, equiv, verdict(equiv, "equivalent", "not equivalent"), "solids at grid size %g", grid)
			if !same && !noDiff {
				if err := writeTreeDiff(w, ta, tb); err != nil {
					return err
				}
			}
			if !equiv {
				return errTreesDiffer
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&grid, "grid", 0.1, "grid size of the equivalence check")
	cmd.Flags().BoolVar(&noDiff, "no-diff", false, "do not print the JSON diff")
	return cmd
}

func verdict(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// writeTreeDiff prints a colored line diff of the indented JSON of a and b.
func writeTreeDiff(w io.Writer, a, b *csg.Node) error {
	ja, err := indentedJSON(a)
	if err != nil {
		return err
	}
	jb, err := indentedJSON(b)
	if err != nil {
		return err
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(ja, jb)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	add := color.New(color.FgGreen)
	del := color.New(color.FgRed)
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				add.Fprint(w, "+ "+line)
			case diffmatchpatch.DiffDelete:
				del.Fprint(w, "- "+line)
			default:
				fmt.Fprint(w, "  "+line)
			}
		}
	}
	return nil
}

func indentedJSON(n *csg.Node) (string, error) {
	var raw, out bytes.Buffer
	if err := csg.WriteJSON(&raw, n); err != nil {
		return "", err
	}
	if err := json.Indent(&out, raw.Bytes(), "", "  "); err != nil {
		return "", err
	}
	out.WriteByte('\n')
	return out.String(), nil
}
