// Package csg implements constructive solid geometry trees over implicit
// functions: signed distance evaluation, structural queries, tree editing,
// structural serialization and merging of trees that share a subtree.
package csg

import (
	"math"

	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// Function is an implicit surface. Distances are negative inside the
// surface, zero on it and positive outside.
type Function interface {
	// Name identifies the function. Two leaves reference the same function
	// if and only if their names match.
	Name() string
	SignedDistance(p r3.Vec) float64
	// SignedDistanceAndGradient returns the signed distance at p and the
	// gradient of the distance field there.
	SignedDistanceAndGradient(p r3.Vec) (float64, r3.Vec)
	// Points returns the oriented samples supporting the function.
	Points() pointcloud.Cloud
	// Bounds returns the bounding box of the solid enclosed by the function.
	Bounds() r3.Box
}

// PointSetter is implemented by functions whose sample points can be replaced.
type PointSetter interface {
	SetPoints(pointcloud.Cloud)
}

// Op is a CSG operation kind.
type Op uint8

const (
	OpNone Op = iota
	OpUnion
	OpIntersection
	OpDifference
	OpComplement
	// OpNoop is a pass-through operation. A childless Noop represents
	// the empty set and doubles as a placeholder while editing trees.
	OpNoop
)

// String returns the operation name used in serialization and DOT output.
func (op Op) String() string {
	switch op {
	case OpUnion:
		return "Union"
	case OpIntersection:
		return "Intersection"
	case OpDifference:
		return "Difference"
	case OpComplement:
		return "Complement"
	case OpNoop:
		return "Noop"
	}
	return "None"
}

// Arity returns the allowed children range of an operation. max is -1 for
// operations without an upper bound.
func (op Op) Arity() (min, max int) {
	switch op {
	case OpUnion, OpIntersection:
		return 1, -1
	case OpDifference:
		return 2, 2
	case OpComplement:
		return 1, 1
	case OpNoop:
		return 0, 1
	}
	return 0, 0
}

func (op Op) supported() bool {
	return op >= OpUnion && op <= OpNoop
}

// ParseOp returns the operation with the given name as returned by Op.String.
func ParseOp(s string) (Op, bool) {
	for op := OpUnion; op <= OpNoop; op++ {
		if op.String() == s {
			return op, true
		}
	}
	return OpNone, false
}

// FunctionsBounds returns the box enclosing the bounds of all functions.
// An empty slice returns the zero box.
func FunctionsBounds(fs []Function) r3.Box {
	if len(fs) == 0 {
		return r3.Box{}
	}
	bb := d3.Box(fs[0].Bounds())
	for _, f := range fs[1:] {
		bb = bb.Extend(d3.Box(f.Bounds()))
	}
	return r3.Box(bb)
}

// AABB returns the center and half size of the box enclosing all functions.
func AABB(fs []Function) (center, half r3.Vec) {
	bb := d3.Box(FunctionsBounds(fs))
	return bb.Center(), bb.Half()
}

// BoundsDiagonal returns the length of the diagonal of the box enclosing all
// sample points of all functions. Zero is returned when there are no points.
func BoundsDiagonal(fs []Function) float64 {
	var bb d3.Box
	first := true
	for _, f := range fs {
		pts := f.Points()
		if pts.Len() == 0 {
			continue
		}
		pb := d3.Box(pts.Bounds())
		if first {
			bb, first = pb, false
		} else {
			bb = bb.Extend(pb)
		}
	}
	if first {
		return 0
	}
	return bb.Diagonal()
}

// NumPoints returns the sum of sample point counts of all functions.
func NumPoints(fs []Function) int {
	var n int
	for _, f := range fs {
		n += f.Points().Len()
	}
	return n
}

var inf = math.Inf(1)
