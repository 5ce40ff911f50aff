package implicit

import (
	"github.com/soypat/csg"
	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sphere (exact distance field)
type Sphere struct {
	base
	center r3.Vec
	radius float64
}

// NewSphere returns a sphere centered at center.
func NewSphere(name string, center r3.Vec, radius float64) (s *Sphere, err error) {
	defer catch(&err)
	return mustSphere(name, center, radius), err
}

func mustSphere(name string, center r3.Vec, radius float64) *Sphere {
	if radius <= 0 {
		panic("radius <= 0")
	}
	if name == "" {
		panic("empty sphere name")
	}
	return &Sphere{base: base{name: name}, center: center, radius: radius}
}

// Center returns the center of the sphere.
func (s *Sphere) Center() r3.Vec { return s.center }

// Radius returns the radius of the sphere.
func (s *Sphere) Radius() float64 { return s.radius }

// SignedDistance returns the distance from p to the sphere surface.
func (s *Sphere) SignedDistance(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.center)) - s.radius
}

func (s *Sphere) SignedDistanceAndGradient(p r3.Vec) (float64, r3.Vec) {
	v := r3.Sub(p, s.center)
	l := r3.Norm(v)
	if l == 0 {
		return -s.radius, r3.Vec{Z: 1}
	}
	return l - s.radius, r3.Scale(1/l, v)
}

func (s *Sphere) Bounds() r3.Box {
	return r3.Box(d3.CenteredBox(s.center, d3.Elem(s.radius)))
}

func (s *Sphere) Describe() csg.GeometryDesc {
	return csg.GeometryDesc{
		Name: s.name,
		Type: "sphere",
		Params: map[string][]float64{
			"center": flat(s.center),
			"radius": {s.radius},
		},
	}
}
