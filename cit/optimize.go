package cit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/soypat/csg"
	"github.com/soypat/csg/dnf"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("csg.cit")

// Options configures Optimize.
type Options struct {
	// SamplingGridSize is the grid spacing of CIT generation and of the
	// empty set tests.
	SamplingGridSize float64 `yaml:"sampling_grid_size"`
	// Report receives a human readable trace of the optimization when set.
	Report io.Writer    `yaml:"-"`
	Logger *slog.Logger `yaml:"-"`
	// Cache is shared between calls when set.
	Cache *EmptySetCache `yaml:"-"`
}

// DefaultOptions returns the options used when no parameters are given.
func DefaultOptions() Options {
	return Options{SamplingGridSize: 0.1}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Optimize rebuilds n as the smallest union of prime implicants covering its
// canonical intersection terms. prims lists the tracked primitives and
// defaults to the distinct functions of n. A single tracked primitive is
// returned as its geometry node without sampling. If n has no interior grid
// point the empty marker is returned.
func Optimize(ctx context.Context, n *csg.Node, prims []csg.Function, opts Options) (*csg.Node, error) {
	if len(prims) == 0 {
		prims = n.DistinctFunctions()
	}
	switch len(prims) {
	case 0:
		if err := writeNote(opts.Report, prims, "no primitives, tree kept"); err != nil {
			return nil, err
		}
		return n.Clone(), nil
	case 1:
		if err := writeNote(opts.Report, prims, "single primitive, no sampling"); err != nil {
			return nil, err
		}
		return csg.Geometry(prims[0]), nil
	}
	if opts.SamplingGridSize <= 0 {
		return nil, fmt.Errorf("cit: sampling grid size must be positive, got %g", opts.SamplingGridSize)
	}
	ctx, span := tracer.Start(ctx, "cit.Optimize", trace.WithAttributes(
		attribute.Int("cit.primitives", len(prims)),
		attribute.Float64("cit.sampling_grid_size", opts.SamplingGridSize),
	))
	defer span.End()
	log := opts.logger()
	cache := opts.Cache
	if cache == nil {
		cache = NewEmptySetCache()
	}
	sgs := opts.SamplingGridSize

	cached := cacheFunctions(prims)
	cits := Generate(n, sgs, cached)
	log.Debug("cits generated", "cits", cits.Len())
	if cits.Len() == 0 {
		span.SetAttributes(attribute.Int("cit.count", 0))
		if err := writeNote(opts.Report, prims, "no interior grid point, tree is empty"); err != nil {
			return nil, err
		}
		return csg.Empty(), nil
	}
	pis, err := PrimeImplicants(ctx, cits, sgs, cache)
	if err != nil {
		return nil, err
	}
	sets := CoverSets(pis, cits)
	chosen := GreedySetCover(cits.Len(), sets)

	result := dnf.DNF{Functions: prims}
	for _, i := range chosen {
		result.Clauses = append(result.Clauses, pis.Clauses[i])
	}
	span.SetAttributes(
		attribute.Int("cit.count", cits.Len()),
		attribute.Int("cit.prime_implicants", len(pis.Clauses)),
		attribute.Int("cit.selected", len(chosen)),
	)
	log.Info("cit optimization done", "cits", cits.Len(), "prime_implicants", len(pis.Clauses), "selected", len(chosen))
	if opts.Report != nil {
		if err := writeReport(opts.Report, prims, cits, pis, sets, chosen); err != nil {
			return nil, fmt.Errorf("cit: writing report: %w", err)
		}
	}
	return result.Node(), nil
}

// writeNote reports the primitives of an optimization that ended before
// generating prime implicants. A nil w is ignored.
func writeNote(w io.Writer, prims []csg.Function, note string) error {
	if w == nil {
		return nil
	}
	var b strings.Builder
	writePrimitives(&b, prims)
	fmt.Fprintf(&b, "\n%s\n", note)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("cit: writing report: %w", err)
	}
	return nil
}

func writePrimitives(b *strings.Builder, prims []csg.Function) {
	b.WriteString("primitives:")
	for _, f := range prims {
		b.WriteByte(' ')
		b.WriteString(f.Name())
	}
}

func writeReport(w io.Writer, prims []csg.Function, cits CITs, pis dnf.DNF, sets [][]int, chosen []int) error {
	var b strings.Builder
	writePrimitives(&b, prims)
	fmt.Fprintf(&b, "\ncits: %d\n", cits.Len())
	for i, c := range cits.DNF.Clauses {
		p := cits.Points[i]
		fmt.Fprintf(&b, "  %d: %s at (%g, %g, %g)\n", i, c.Format(prims), p.X, p.Y, p.Z)
	}
	fmt.Fprintf(&b, "prime implicants: %d\n", len(pis.Clauses))
	for i, c := range pis.Clauses {
		fmt.Fprintf(&b, "  %d: %s covers %v\n", i, c.Format(prims), sets[i])
	}
	fmt.Fprintf(&b, "universe: 0..%d\n", cits.Len()-1)
	fmt.Fprintf(&b, "selected: %v\n", chosen)
	_, err := io.WriteString(w, b.String())
	return err
}
