// Package inflate grows CSG trees with rewrites that preserve the solid
// they describe. Inflated trees serve as inputs for testing optimizers.
package inflate

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/soypat/csg"
	"github.com/soypat/csg/cit"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind is a rewrite rule.
type Kind uint8

const (
	// SubtreeCopy rewrites X as X ∪ X or X ∩ X.
	SubtreeCopy Kind = iota
	// DoubleNegation rewrites X as ¬¬X.
	DoubleNegation
	// Distributive rewrites A ∩ (B ∪ C) as (A ∩ B) ∪ (A ∩ C) and
	// A ∪ (B ∩ C) as (A ∪ B) ∩ (A ∪ C).
	Distributive
	// Absorption rewrites X as X ∪ (X ∩ P) or X ∩ (X ∪ P) for a primitive P
	// of the tree.
	Absorption
	// GhostPrimitive rewrites X as X ∪ (P ∩ ¬P) for a primitive P of the
	// tree.
	GhostPrimitive
	numKinds
)

var kindNames = [numKinds]string{
	SubtreeCopy:    "SubtreeCopy",
	DoubleNegation: "DoubleNegation",
	Distributive:   "Distributive",
	Absorption:     "Absorption",
	GhostPrimitive: "GhostPrimitive",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Kinds returns every rewrite kind.
func Kinds() []Kind {
	ks := make([]Kind, numKinds)
	for k := range numKinds {
		ks[k] = k
	}
	return ks
}

// ErrUnknownKind is returned by ParseKind for unknown rewrite names.
var ErrUnknownKind = errors.New("unknown inserter kind")

// ParseKind parses a kind name case insensitively.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownKind, s)
}

// Inserter is a rewrite rule with its selection weight.
type Inserter struct {
	Kind   Kind
	Weight float64
}

// Inflate returns a copy of n rewritten iterations times. Every iteration
// draws an inserter by weight and applies it to a random subtree if the
// rule matches there. The input and result are binary trees as built by
// ToMaxChildren(2).
func Inflate(n *csg.Node, iterations int, inserters []Inserter, rng *rand.Rand) *csg.Node {
	if n == nil || rng == nil {
		panic("nil argument to Inflate")
	}
	out := n.ToMaxChildren(2)
	weights := make([]float64, len(inserters))
	var total float64
	for i, ins := range inserters {
		if ins.Weight < 0 || ins.Kind >= numKinds {
			panic("invalid inserter " + ins.Kind.String() + " to Inflate")
		}
		weights[i] = ins.Weight
		total += ins.Weight
	}
	fs := out.DistinctFunctions()
	if total == 0 || len(fs) == 0 {
		return out
	}
	choose := distuv.NewCategorical(weights, rng)
	for range iterations {
		kind := inserters[int(choose.Rand())].Kind
		i := rng.IntN(out.NumNodes())
		if sub, ok := kind.apply(out.NodeAt(i).Clone(), fs, rng); ok {
			out = out.Replace(i, sub)
		}
	}
	return out.ToMaxChildren(2)
}

func (k Kind) apply(x *csg.Node, fs []csg.Function, rng *rand.Rand) (*csg.Node, bool) {
	union := rng.IntN(2) == 0
	switch k {
	case SubtreeCopy:
		if union {
			return csg.Union(x, x.Clone()), true
		}
		return csg.Intersection(x, x.Clone()), true
	case DoubleNegation:
		return csg.Complement(csg.Complement(x)), true
	case Distributive:
		return distribute(x)
	case Absorption:
		p := csg.Geometry(fs[rng.IntN(len(fs))])
		if union {
			return csg.Union(x, csg.Intersection(x.Clone(), p)), true
		}
		return csg.Intersection(x, csg.Union(x.Clone(), p)), true
	case GhostPrimitive:
		p := csg.Geometry(fs[rng.IntN(len(fs))])
		return csg.Union(x, csg.Intersection(p, csg.Complement(p.Clone()))), true
	}
	return nil, false
}

// distribute applies the distributive law to a binary union or
// intersection with a binary child of the dual operation.
func distribute(x *csg.Node) (*csg.Node, bool) {
	var dual csg.Op
	switch x.Op() {
	case csg.OpUnion:
		dual = csg.OpIntersection
	case csg.OpIntersection:
		dual = csg.OpUnion
	default:
		return nil, false
	}
	if x.NumChildren() != 2 {
		return nil, false
	}
	for i := range 2 {
		inner := x.Child(i)
		if inner.IsGeometry() || inner.Op() != dual || inner.NumChildren() != 2 {
			continue
		}
		a := x.Child(1 - i)
		return csg.Operation(dual,
			csg.Operation(x.Op(), a, inner.Child(0)),
			csg.Operation(x.Op(), a.Clone(), inner.Child(1)),
		), true
	}
	return nil, false
}

// Equivalent reports whether a and b enclose the same grid points at
// spacing sgs, testing both differences for emptiness.
func Equivalent(a, b *csg.Node, sgs float64, cache *cit.EmptySetCache) bool {
	return cit.IsEmptySet(csg.Difference(a, b), sgs, pointcloud.Cloud{}, cache) &&
		cit.IsEmptySet(csg.Difference(b, a), sgs, pointcloud.Cloud{}, cache)
}
