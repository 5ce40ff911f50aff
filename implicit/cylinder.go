package implicit

import (
	"math"

	"github.com/soypat/csg"
	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cylinder is a cylinder around an axis through point with unit direction.
// With positive height the cylinder is capped at height/2 on both sides
// of point along the axis, otherwise it is infinite.
type Cylinder struct {
	base
	point  r3.Vec
	dir    r3.Vec
	radius float64
	height float64
}

// NewCylinder returns a cylinder. height <= 0 builds an infinite cylinder.
func NewCylinder(name string, point, dir r3.Vec, radius, height float64) (c *Cylinder, err error) {
	defer catch(&err)
	return mustCylinder(name, point, dir, radius, height), err
}

func mustCylinder(name string, point, dir r3.Vec, radius, height float64) *Cylinder {
	if radius <= 0 {
		panic("radius <= 0")
	}
	if r3.Norm(dir) == 0 {
		panic("zero cylinder direction")
	}
	if name == "" {
		panic("empty cylinder name")
	}
	return &Cylinder{
		base:   base{name: name},
		point:  point,
		dir:    r3.Unit(dir),
		radius: radius,
		height: math.Max(height, 0),
	}
}

// Axis returns a point on the axis and the unit axis direction.
func (c *Cylinder) Axis() (point, dir r3.Vec) { return c.point, c.dir }

// Radius returns the cylinder radius.
func (c *Cylinder) Radius() float64 { return c.radius }

// Height returns the cylinder height, zero for infinite cylinders.
func (c *Cylinder) Height() float64 { return c.height }

// decompose returns the axial coordinate of p and the radial unit vector.
func (c *Cylinder) decompose(p r3.Vec) (axial, radial float64, radialDir r3.Vec) {
	q := r3.Sub(p, c.point)
	axial = r3.Dot(q, c.dir)
	rv := r3.Sub(q, r3.Scale(axial, c.dir))
	radial = r3.Norm(rv)
	if radial == 0 {
		return axial, 0, perpendicular(c.dir)
	}
	return axial, radial, r3.Scale(1/radial, rv)
}

func (c *Cylinder) SignedDistance(p r3.Vec) float64 {
	d, _ := c.SignedDistanceAndGradient(p)
	return d
}

func (c *Cylinder) SignedDistanceAndGradient(p r3.Vec) (float64, r3.Vec) {
	axial, radial, rdir := c.decompose(p)
	rd := radial - c.radius
	if c.height == 0 {
		return rd, rdir
	}
	adir := c.dir
	if axial < 0 {
		adir = r3.Scale(-1, adir)
	}
	hd := math.Abs(axial) - c.height/2
	if rd > 0 && hd > 0 {
		d := math.Hypot(rd, hd)
		return d, r3.Scale(1/d, r3.Add(r3.Scale(rd, rdir), r3.Scale(hd, adir)))
	}
	if rd > hd {
		return rd, rdir
	}
	return hd, adir
}

// Bounds of a capped cylinder enclose both cap disks. Infinite cylinders
// are bounded by their sample points enlarged by the radius, or a radius
// sized box around the axis point when no points are present.
func (c *Cylinder) Bounds() r3.Box {
	if c.height == 0 {
		if c.points.Len() == 0 {
			return r3.Box(d3.CenteredBox(c.point, d3.Elem(c.radius)))
		}
		return r3.Box(d3.Box(c.points.Bounds()).Enlarge(d3.Elem(2 * c.radius)))
	}
	half := r3.Scale(c.height/2, c.dir)
	ext := r3.Vec{
		X: c.radius * math.Sqrt(math.Max(0, 1-c.dir.X*c.dir.X)),
		Y: c.radius * math.Sqrt(math.Max(0, 1-c.dir.Y*c.dir.Y)),
		Z: c.radius * math.Sqrt(math.Max(0, 1-c.dir.Z*c.dir.Z)),
	}
	a := d3.CenteredBox(r3.Add(c.point, half), ext)
	b := d3.CenteredBox(r3.Sub(c.point, half), ext)
	return r3.Box(a.Extend(b))
}

func (c *Cylinder) Describe() csg.GeometryDesc {
	desc := csg.GeometryDesc{
		Name: c.name,
		Type: "cylinder",
		Params: map[string][]float64{
			"point":     flat(c.point),
			"direction": flat(c.dir),
			"radius":    {c.radius},
		},
	}
	if c.height > 0 {
		desc.Params["height"] = []float64{c.height}
	}
	return desc
}

// perpendicular returns a unit vector perpendicular to unit vector v.
func perpendicular(v r3.Vec) r3.Vec {
	ref := r3.Vec{X: 1}
	if math.Abs(v.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(v, ref))
}
