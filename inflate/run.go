package inflate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/csg"
	"github.com/soypat/csg/cit"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/params"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("csg.inflate")

// ErrNotEquivalent is returned by Run when the correctness check finds that
// the inflated tree differs from its input.
var ErrNotEquivalent = errors.New("inflated tree is not equivalent to its input")

// Config configures Run.
type Config struct {
	Iterations int
	Inserters  []Inserter
	// CheckCorrectness compares input and output on a grid of spacing
	// SamplingGridSize.
	CheckCorrectness bool
	SamplingGridSize float64
	Seed             uint64
	Logger           *slog.Logger
}

// Info summarizes an inflation.
type Info struct {
	OldSize, NewSize   int
	OldDepth, NewDepth int
	// Dims is the extent of the input's primitives.
	Dims [3]float64
}

// Result is the outcome of Run.
type Result struct {
	Input  *csg.Node
	Output *csg.Node
	Info   Info
}

// Run inflates in and, when requested, checks the result for equivalence.
// A failed check returns the result together with ErrNotEquivalent.
func Run(ctx context.Context, in *csg.Node, cfg Config) (Result, error) {
	if cfg.CheckCorrectness && cfg.SamplingGridSize <= 0 {
		return Result{}, fmt.Errorf("inflate: sampling grid size must be positive, got %g", cfg.SamplingGridSize)
	}
	_, span := tracer.Start(ctx, "inflate.Run", trace.WithAttributes(attribute.Int("iterations", cfg.Iterations)))
	defer span.End()
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	bin := in.ToMaxChildren(2)
	out := Inflate(bin, cfg.Iterations, cfg.Inserters, rand.New(rand.NewPCG(seed, ^seed)))
	res := Result{Input: bin, Output: out, Info: info(bin, out)}
	span.SetAttributes(attribute.Int("old_size", res.Info.OldSize), attribute.Int("new_size", res.Info.NewSize))
	log.Info("tree inflated", slog.Int("old_size", res.Info.OldSize), slog.Int("new_size", res.Info.NewSize))
	if cfg.CheckCorrectness && !Equivalent(bin, out, cfg.SamplingGridSize, cit.NewEmptySetCache()) {
		return res, ErrNotEquivalent
	}
	return res, nil
}

func info(in, out *csg.Node) Info {
	inf := Info{
		OldSize: in.NumNodes(), NewSize: out.NumNodes(),
		OldDepth: in.Depth(), NewDepth: out.Depth(),
	}
	if fs := in.DistinctFunctions(); len(fs) > 0 {
		size := d3.Box(csg.FunctionsBounds(fs)).Size()
		inf.Dims = [3]float64{size.X, size.Y, size.Z}
	}
	return inf
}

// WriteOutputs writes the inflated tree as JSON to path, as DOT next to it
// with suffix "_graph.gv" and the info as TOML with suffix "_info.toml".
func WriteOutputs(path string, res Result) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := writeFile(path, func(f *os.File) error { return csg.WriteJSON(f, res.Output) }); err != nil {
		return err
	}
	if err := writeFile(base+"_graph.gv", func(f *os.File) error { return csg.WriteDOT(f, res.Output, "inflated") }); err != nil {
		return err
	}
	var p params.Params
	const sec = "Info"
	p.Set(sec, "OldTreeSize", res.Info.OldSize)
	p.Set(sec, "OldTreeDepth", res.Info.OldDepth)
	p.Set(sec, "OldTreeDims", res.Info.Dims[:])
	p.Set(sec, "NewTreeSize", res.Info.NewSize)
	p.Set(sec, "NewTreeDepth", res.Info.NewDepth)
	return writeFile(base+"_info.toml", func(f *os.File) error { return p.Encode(f, params.TOML) })
}

func writeFile(path string, write func(*os.File) error) error {
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
