package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soypat/csg"
	"github.com/soypat/csg/cit"
	"github.com/soypat/csg/pointcloud"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("csg.cluster")

// Options configures Decompose and OptimizeWithDecomposition.
type Options struct {
	SamplingGridSize float64 `yaml:"sampling_grid_size"`
	// UseDifference builds negated dominant primitives with Difference
	// instead of an Intersection with their Complement.
	UseDifference bool `yaml:"use_difference"`
	// InOut holds reference points. When UseSamplingPoints is set and InOut
	// is not empty, dominance and redundancy are tested at these points
	// instead of a grid.
	InOut             pointcloud.Cloud `yaml:"-"`
	UseSamplingPoints bool             `yaml:"use_sampling_points"`

	Cache  *cit.EmptySetCache `yaml:"-"`
	Logger *slog.Logger       `yaml:"-"`
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) usePoints() bool { return o.UseSamplingPoints && o.InOut.Len() > 0 }

func (o Options) refs() pointcloud.Cloud {
	if o.usePoints() {
		return o.InOut
	}
	return pointcloud.Cloud{}
}

// Decomposition is a tree assembled from dominant primitives with at most
// one placeholder for the remaining primitives.
type Decomposition struct {
	Node *csg.Node
	// Placeholder is the pre-order index of the empty marker in Node that
	// stands for Rest, or -1 when the decomposition is complete.
	Placeholder int
	Dominant    []csg.Function
	Rest        []csg.Function
}

// Complete reports whether no primitives are left to place.
func (d Decomposition) Complete() bool { return d.Placeholder < 0 }

type dominantPrimitive struct {
	fn      csg.Function
	negated bool
}

// Decompose splits n into a tree of its dominant and negated dominant
// primitives. The grid spacing must be positive unless reference points
// are used. Dominant primitives are united with the tree and negated
// ones are cut from it, preferring at each step a primitive that overlaps
// the tree built so far. The tree grows around an empty marker which is
// removed if every primitive is dominant and otherwise kept as the
// placeholder for the remaining primitives.
func Decompose(n *csg.Node, opts Options) Decomposition {
	if n == nil {
		panic("nil argument to Decompose")
	}
	if !opts.usePoints() && opts.SamplingGridSize <= 0 {
		panic("non-positive sampling grid size to Decompose")
	}
	var dom, neg []csg.Function
	if opts.usePoints() {
		dom = DominatingPrimitivesFromPoints(n, opts.InOut)
		neg = NegatedDominatingPrimitivesFromPoints(n, opts.InOut)
	} else {
		dom = DominatingPrimitives(n, opts.SamplingGridSize)
		neg = NegatedDominatingPrimitives(n, opts.SamplingGridSize)
	}
	var rest []csg.Function
	for _, f := range n.DistinctFunctions() {
		if !containsFunction(dom, f) && !containsFunction(neg, f) {
			rest = append(rest, f)
		}
	}
	queue := make([]dominantPrimitive, 0, len(dom)+len(neg))
	for _, f := range dom {
		queue = append(queue, dominantPrimitive{fn: f})
	}
	for _, f := range neg {
		queue = append(queue, dominantPrimitive{fn: f, negated: true})
	}

	cache := opts.Cache
	if cache == nil {
		cache = cit.NewEmptySetCache()
	}
	node := csg.Empty()
	for len(queue) > 0 {
		i := len(queue) - 1
		if !node.IsEmpty() {
			for j, dp := range queue {
				if !cit.IsEmptySet(csg.Intersection(node, csg.Geometry(dp.fn)), opts.SamplingGridSize, opts.refs(), cache) {
					i = j
					break
				}
			}
		}
		dp := queue[i]
		queue = append(queue[:i], queue[i+1:]...)
		leaf := csg.Geometry(dp.fn)
		switch {
		case !dp.negated:
			node = csg.Union(leaf, node)
		case opts.UseDifference:
			node = csg.Difference(node, leaf)
		default:
			node = csg.Intersection(node, csg.Complement(leaf))
		}
	}

	d := Decomposition{Placeholder: -1}
	switch len(rest) {
	case 0:
		d.Node = dropEmpty(node)
	default:
		d.Node = node
		d.Placeholder = placeholderIndex(node)
		d.Rest = rest
	}
	d.Dominant = d.Node.DistinctFunctions()
	return d
}

// placeholderIndex returns the pre-order index of the first empty marker.
func placeholderIndex(n *csg.Node) int {
	idx, count := -1, 0
	n.Walk(func(c *csg.Node) bool {
		if c.IsEmpty() {
			idx = count
			return false
		}
		count++
		return true
	})
	return idx
}

// dropEmpty removes the empty marker from a decomposition tree. Unions drop
// it and intersections and differences with an empty first operand become
// empty.
func dropEmpty(n *csg.Node) *csg.Node {
	if n.IsGeometry() || n.IsEmpty() {
		return n
	}
	children := make([]*csg.Node, n.NumChildren())
	for i, c := range n.Children() {
		children[i] = dropEmpty(c)
	}
	switch n.Op() {
	case csg.OpUnion:
		var kept []*csg.Node
		for _, c := range children {
			if !c.IsEmpty() {
				kept = append(kept, c)
			}
		}
		return UnionMerge(kept)
	case csg.OpIntersection, csg.OpDifference:
		if children[0].IsEmpty() {
			return csg.Empty()
		}
	}
	return csg.Operation(n.Op(), children...)
}

// Optimizer computes a tree for n over the primitives prims.
type Optimizer func(ctx context.Context, n *csg.Node, prims []csg.Function) (*csg.Node, error)

// OptimizeWithDecomposition decomposes n and recursively decomposes what
// remains after removing the dominant primitives from n. When a remainder
// has no dominant primitives it is handed to optimize. The results fill the
// placeholders of the enclosing decompositions.
func OptimizeWithDecomposition(ctx context.Context, n *csg.Node, opts Options, optimize Optimizer) (*csg.Node, error) {
	if optimize == nil {
		return nil, errors.New("nil optimizer to OptimizeWithDecomposition")
	}
	if !opts.usePoints() && opts.SamplingGridSize <= 0 {
		return nil, fmt.Errorf("cluster: sampling grid size must be positive, got %g", opts.SamplingGridSize)
	}
	ctx, span := tracer.Start(ctx, "cluster.OptimizeWithDecomposition",
		trace.WithAttributes(attribute.Int("nodes", n.NumNodes())))
	defer span.End()
	return optimizeWithDecomposition(ctx, n, opts, optimize, 0)
}

func optimizeWithDecomposition(ctx context.Context, n *csg.Node, opts Options, optimize Optimizer, level int) (*csg.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := opts.logger()
	dec := Decompose(n, opts)
	log.Debug("decomposed", slog.Int("level", level), slog.Int("dominant", len(dec.Dominant)), slog.Int("rest", len(dec.Rest)))
	if dec.Complete() {
		return dec.Node, nil
	}
	var sub *csg.Node
	var err error
	if len(dec.Dominant) == 0 {
		log.Info("no dominant primitives left", slog.Int("level", level), slog.Int("primitives", len(dec.Rest)))
		sub, err = optimize(ctx, n, dec.Rest)
		if err != nil {
			return nil, fmt.Errorf("optimizing remainder at level %d: %w", level, err)
		}
	} else {
		remainder := n.Clone()
		remainder.Walk(func(c *csg.Node) bool {
			if c.IsGeometry() && containsFunction(dec.Dominant, c.Func()) {
				remainder = remainder.Replace(remainder.IndexOf(c), csg.Empty())
			}
			return true
		})
		remainder = cit.RemoveRedundanciesCached(remainder, opts.SamplingGridSize, opts.refs(), opts.Cache)
		if remainder.IsEmpty() {
			log.Debug("remainder is empty", slog.Int("level", level), slog.Int("primitives", len(dec.Rest)))
			return dropEmpty(dec.Node), nil
		}
		sub, err = optimizeWithDecomposition(ctx, remainder, opts, optimize, level+1)
		if err != nil {
			return nil, err
		}
	}
	return dropEmpty(dec.Node.Replace(dec.Placeholder, sub)), nil
}
