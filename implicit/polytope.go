package implicit

import (
	"math"

	"github.com/soypat/csg"
	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is an oriented plane through Point. Normal points outwards of the
// half space it bounds.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
}

// Distance returns the signed distance from p to the plane.
func (pl Plane) Distance(p r3.Vec) float64 {
	return r3.Dot(r3.Sub(p, pl.Point), pl.Normal)
}

// Polytope is a convex polyhedron given as the intersection of half spaces.
// Its distance field is the maximum of the plane distances which is exact
// on faces and an underestimate near edges and corners.
type Polytope struct {
	base
	planes []Plane
	bb     r3.Box
}

// NewPolytope returns the convex intersection of the half spaces bounded by
// planes. Normals are normalized.
func NewPolytope(name string, planes []Plane) (p *Polytope, err error) {
	defer catch(&err)
	return mustPolytope(name, planes), err
}

func mustPolytope(name string, planes []Plane) *Polytope {
	if len(planes) < 4 {
		panic("polytope requires at least 4 planes")
	}
	if name == "" {
		panic("empty polytope name")
	}
	pls := make([]Plane, len(planes))
	for i, pl := range planes {
		if r3.Norm(pl.Normal) == 0 {
			panic("zero polytope plane normal")
		}
		pls[i] = Plane{Point: pl.Point, Normal: r3.Unit(pl.Normal)}
	}
	p := &Polytope{base: base{name: name}, planes: pls}
	verts := p.vertices()
	if len(verts) == 0 {
		panic("polytope is empty or unbounded")
	}
	p.bb = r3.Box(verts.Bounds())
	return p
}

// NewBox returns an axis aligned box polytope.
func NewBox(name string, center, size r3.Vec) (p *Polytope, err error) {
	defer catch(&err)
	if d3.LTEZero(size) {
		panic("size <= 0")
	}
	b := d3.NewBox(center, size)
	planes := []Plane{
		{Point: b.Max, Normal: r3.Vec{X: 1}},
		{Point: b.Min, Normal: r3.Vec{X: -1}},
		{Point: b.Max, Normal: r3.Vec{Y: 1}},
		{Point: b.Min, Normal: r3.Vec{Y: -1}},
		{Point: b.Max, Normal: r3.Vec{Z: 1}},
		{Point: b.Min, Normal: r3.Vec{Z: -1}},
	}
	return mustPolytope(name, planes), err
}

// Planes returns the bounding planes of the polytope.
func (p *Polytope) Planes() []Plane { return p.planes }

func (p *Polytope) SignedDistance(x r3.Vec) float64 {
	d := math.Inf(-1)
	for _, pl := range p.planes {
		d = math.Max(d, pl.Distance(x))
	}
	return d
}

func (p *Polytope) SignedDistanceAndGradient(x r3.Vec) (float64, r3.Vec) {
	d := math.Inf(-1)
	var g r3.Vec
	for _, pl := range p.planes {
		if pd := pl.Distance(x); pd > d {
			d, g = pd, pl.Normal
		}
	}
	return d, g
}

func (p *Polytope) Bounds() r3.Box { return p.bb }

func (p *Polytope) Describe() csg.GeometryDesc {
	pts := make([]r3.Vec, len(p.planes))
	nrm := make([]r3.Vec, len(p.planes))
	for i, pl := range p.planes {
		pts[i], nrm[i] = pl.Point, pl.Normal
	}
	return csg.GeometryDesc{
		Name: p.name,
		Type: "polytope",
		Params: map[string][]float64{
			"points":  flat(pts...),
			"normals": flat(nrm...),
		},
	}
}

// vertices returns the intersection points of every plane triple that lie
// on the polytope.
func (p *Polytope) vertices() d3.Set {
	const tol = 1e-7
	var verts d3.Set
	n := len(p.planes)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				v, ok := IntersectPlanes(p.planes[i], p.planes[j], p.planes[k])
				if ok && p.SignedDistance(v) <= tol {
					verts = append(verts, v)
				}
			}
		}
	}
	return verts
}

// IntersectPlanes returns the single point shared by three planes. ok is
// false if the planes do not meet in exactly one point.
func IntersectPlanes(a, b, c Plane) (v r3.Vec, ok bool) {
	A := mat.NewDense(3, 3, []float64{
		a.Normal.X, a.Normal.Y, a.Normal.Z,
		b.Normal.X, b.Normal.Y, b.Normal.Z,
		c.Normal.X, c.Normal.Y, c.Normal.Z,
	})
	if math.Abs(mat.Det(A)) < 1e-9 {
		return r3.Vec{}, false
	}
	rhs := mat.NewVecDense(3, []float64{
		r3.Dot(a.Normal, a.Point),
		r3.Dot(b.Normal, b.Point),
		r3.Dot(c.Normal, c.Point),
	})
	var x mat.VecDense
	if err := x.SolveVec(A, rhs); err != nil {
		return r3.Vec{}, false
	}
	return r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}, true
}
