package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/soypat/csg"
	"github.com/soypat/csg/implicit"
	"github.com/soypat/csg/params"
	"github.com/spf13/cobra"
)

// app holds state shared by all subcommands.
type app struct {
	logFormat  string
	verbose    bool
	paramsPath string

	log    *slog.Logger
	params params.Params
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "csgopt",
		Short:         "Reconstruct and optimize CSG trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.logFormat, "log-format", "text", "log output format: text or json")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVarP(&a.paramsPath, "params", "p", "", "parameter file (.yaml, .yml or .toml)")

	root.AddCommand(
		a.optimizeCmd(),
		a.extractCmd(),
		a.inflateCmd(),
		a.sampleCmd(),
		a.compareCmd(),
		a.meshCmd(),
	)
	return root
}

func (a *app) setup(w io.Writer) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(a.logFormat) {
	case "text":
		a.log = slog.New(slog.NewTextHandler(w, opts))
	case "json":
		a.log = slog.New(slog.NewJSONHandler(w, opts))
	default:
		return fmt.Errorf("unknown log format %q", a.logFormat)
	}
	slog.SetDefault(a.log)
	if a.paramsPath == "" {
		return nil
	}
	p, err := params.Load(a.paramsPath)
	if err != nil {
		return err
	}
	a.params = p
	a.log.Debug("parameters loaded", slog.String("path", a.paramsPath), slog.Any("sections", p.Sections()))
	return nil
}

func readTree(path string) (*csg.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	n, err := csg.ReadJSON(f, implicit.Decode)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return n, nil
}

func writeTree(path string, n *csg.Node) error {
	return createFile(path, func(w io.Writer) error { return csg.WriteJSON(w, n) })
}

func createFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

// status prints a colored verdict followed by a plain message.
func status(w io.Writer, ok bool, verdict, format string, args ...any) {
	c := failColor
	if ok {
		c = okColor
	}
	c.Fprint(w, verdict)
	fmt.Fprintf(w, " "+format+"\n", args...)
}

func treeSummary(n *csg.Node) string {
	return infoColor.Sprintf("nodes=%d depth=%d primitives=%d", n.NumNodes(), n.Depth(), len(n.DistinctFunctions()))
}
