package primitives

import (
	"math"
	"strings"

	"github.com/soypat/csg"
	"github.com/soypat/csg/implicit"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Type is the kind of a primitive.
type Type uint8

const (
	None Type = iota
	Cylinder
	Sphere
	Cone
	Box
)

func (t Type) String() string {
	switch t {
	case Cylinder:
		return "Cylinder"
	case Sphere:
		return "Sphere"
	case Cone:
		return "Cone"
	case Box:
		return "Box"
	}
	return "None"
}

// Primitive is a solid built from one or more manifolds. A primitive of type
// None has no function and marks a failed construction.
type Primitive struct {
	Func      csg.Function
	Manifolds []*Manifold
	Type      Type
}

// IsNone reports whether construction of p failed.
func (p Primitive) IsNone() bool { return p.Type == None || p.Func == nil }

func (p Primitive) String() string {
	if p.IsNone() {
		return "None"
	}
	return p.Type.String() + " " + p.Func.Name()
}

// Set is an ordered set of primitives.
type Set []Primitive

// Functions returns the functions of the primitives of s that are not None.
func (s Set) Functions() []csg.Function {
	fs := make([]csg.Function, 0, len(s))
	for _, p := range s {
		if !p.IsNone() {
			fs = append(fs, p.Func)
		}
	}
	return fs
}

// Key identifies s by the names of its primitives in order.
func (s Set) Key() string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.String()
	}
	return strings.Join(names, ";")
}

func primitiveName(t Type, ms []*Manifold) string {
	var sb strings.Builder
	sb.WriteString(t.String())
	for _, m := range ms {
		sb.WriteByte('_')
		sb.WriteString(m.Name)
	}
	return sb.String()
}

// NewSphere returns the sphere of a sphere manifold, or a None primitive.
func NewSphere(m *Manifold) Primitive {
	if m == nil || m.Type != ManifoldSphere {
		return Primitive{}
	}
	f, err := implicit.NewSphere(primitiveName(Sphere, []*Manifold{m}), m.P, m.Radius)
	if err != nil {
		return Primitive{}
	}
	return Primitive{Func: f, Manifolds: []*Manifold{m}, Type: Sphere}
}

// NewBox returns the box bounded by six planes given as three consecutive
// pairs of parallel planes. Plane normals are flipped where needed so each
// pair faces away from the other. A None primitive is returned when planes
// do not enclose a bounded solid.
func NewBox(planes []*Manifold) Primitive {
	if len(planes) != 6 {
		return Primitive{}
	}
	ms := make([]*Manifold, 0, 6)
	half := make([]implicit.Plane, 0, 6)
	for i := 0; i < 6; i += 2 {
		a, b := *planes[i], *planes[i+1]
		if a.Type != ManifoldPlane || b.Type != ManifoldPlane {
			return Primitive{}
		}
		da := r3.Dot(r3.Sub(b.P, a.P), b.N) / r3.Dot(a.N, b.N)
		db := r3.Dot(r3.Sub(a.P, b.P), a.N) / r3.Dot(b.N, a.N)
		if da >= 0 {
			a.N = r3.Scale(-1, a.N)
		}
		if db >= 0 {
			b.N = r3.Scale(-1, b.N)
		}
		ms = append(ms, &a, &b)
		half = append(half, implicit.Plane{Point: a.P, Normal: a.N}, implicit.Plane{Point: b.P, Normal: b.N})
	}
	f, err := implicit.NewPolytope(primitiveName(Box, planes), half)
	if err != nil {
		return Primitive{}
	}
	return Primitive{Func: f, Manifolds: ms, Type: Box}
}

// NewCylinder returns the cylinder of a cylinder manifold capped by up to
// two planes. A missing second plane is placed at the end of the cylinder's
// points farthest from the first. Without planes the height and center are
// estimated from the cylinder's points.
func NewCylinder(m *Manifold, planes []*Manifold) Primitive {
	if m == nil || m.Type != ManifoldCylinder {
		return Primitive{}
	}
	var height float64
	var pos r3.Vec
	ms := []*Manifold{m}
	switch len(planes) {
	case 1:
		second := secondCylinderPlane(m, planes[0])
		if second == nil {
			return Primitive{}
		}
		planes = []*Manifold{planes[0], second}
		fallthrough
	case 2:
		i0, ok0 := axisIntersection(m, planes[0])
		i1, ok1 := axisIntersection(m, planes[1])
		if !ok0 || !ok1 {
			return Primitive{}
		}
		height = r3.Norm(r3.Sub(i1, i0))
		pos = r3.Add(i0, r3.Scale(0.5, r3.Sub(i1, i0)))
		ms = append(ms, planes...)
	case 0:
		height, pos = cylinderExtent(m)
	default:
		return Primitive{}
	}
	if math.IsNaN(height) || math.IsInf(height, 0) || height <= 0 {
		return Primitive{}
	}
	f, err := implicit.NewCylinder(primitiveName(Cylinder, ms), pos, m.N, m.Radius, height)
	if err != nil {
		return Primitive{}
	}
	return Primitive{Func: f, Manifolds: ms, Type: Cylinder}
}

// axisIntersection intersects the axis of cylinder m with plane.
func axisIntersection(m, plane *Manifold) (r3.Vec, bool) {
	den := r3.Dot(m.N, plane.N)
	if math.Abs(den) < 1e-12 {
		return r3.Vec{}, false
	}
	d := r3.Dot(r3.Sub(plane.P, m.P), plane.N) / den
	return r3.Add(m.P, r3.Scale(d, m.N)), true
}

// cylinderExtent returns the extent of m's points along its axis and the
// center of their bounding box.
func cylinderExtent(m *Manifold) (height float64, center r3.Vec) {
	if m.Points.Len() == 0 {
		return 0, r3.Vec{}
	}
	axis := r3.Unit(m.N)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range m.Points.Len() {
		c := r3.Dot(m.Points.Pos(i), axis)
		lo, hi = math.Min(lo, c), math.Max(hi, c)
	}
	bmin, bmax := cloudExtremes(m.Points)
	return hi - lo, r3.Add(bmin, r3.Scale(0.5, r3.Sub(bmax, bmin)))
}

// cloudExtremes returns the per coordinate minimum and maximum of c.
func cloudExtremes(c pointcloud.Cloud) (lo3, hi3 r3.Vec) {
	m := c.Matrix()
	var lo, hi [3]float64
	col := make([]float64, c.Len())
	for j := range 3 {
		mat.Col(col, j, m)
		lo[j], hi[j] = floats.Min(col), floats.Max(col)
	}
	return r3.Vec{X: lo[0], Y: lo[1], Z: lo[2]}, r3.Vec{X: hi[0], Y: hi[1], Z: hi[2]}
}

// secondCylinderPlane returns the plane opposite first through the extreme
// of m's points farther from first.
func secondCylinderPlane(m, first *Manifold) *Manifold {
	if m.Points.Len() == 0 {
		return nil
	}
	bmin, bmax := cloudExtremes(m.Points)
	p := bmax
	if r3.Norm(r3.Sub(first.P, bmin)) > r3.Norm(r3.Sub(first.P, bmax)) {
		p = bmin
	}
	return &Manifold{Name: first.Name + "'", Type: ManifoldPlane, P: p, N: r3.Scale(-1, first.N)}
}
