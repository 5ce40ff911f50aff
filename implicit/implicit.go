// Package implicit provides the geometry leaves of CSG trees: spheres,
// cylinders and convex polytopes given by their signed distance fields.
package implicit

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/soypat/csg"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrUnknownGeometry is returned by Decode for unsupported geometry types.
var ErrUnknownGeometry = errors.New("unknown geometry type")

type shapeErr struct {
	panicObj interface{}
	stack    string
}

func (s *shapeErr) Error() string {
	return fmt.Sprintf("%s", s.panicObj)
}

// catch converts a panic raised while building a shape into an error.
func catch(err *error) {
	if a := recover(); a != nil {
		*err = &shapeErr{
			panicObj: a,
			stack:    string(debug.Stack()),
		}
	}
}

// base holds the name and sample points shared by all functions.
type base struct {
	name   string
	points pointcloud.Cloud
}

func (b *base) Name() string { return b.name }

// Points returns the sample points supporting the function.
func (b *base) Points() pointcloud.Cloud { return b.points }

// SetPoints replaces the sample points supporting the function.
func (b *base) SetPoints(c pointcloud.Cloud) { b.points = c }

var (
	_ csg.Function    = (*Sphere)(nil)
	_ csg.Function    = (*Cylinder)(nil)
	_ csg.Function    = (*Polytope)(nil)
	_ csg.PointSetter = (*Sphere)(nil)
	_ csg.Describer   = (*Polytope)(nil)
)

// Decode builds the function described by desc. It is a csg.Resolver.
func Decode(desc csg.GeometryDesc) (f csg.Function, err error) {
	defer catch(&err)
	switch desc.Type {
	case "sphere":
		return mustSphere(desc.Name, vecParam(desc, "center"), scalarParam(desc, "radius")), nil
	case "cylinder":
		return mustCylinder(desc.Name, vecParam(desc, "point"), vecParam(desc, "direction"),
			scalarParam(desc, "radius"), optionalScalar(desc, "height")), nil
	case "polytope":
		pts, nrm := desc.Params["points"], desc.Params["normals"]
		if len(pts) != len(nrm) || len(pts)%3 != 0 {
			panic("polytope points and normals must be equal length multiples of 3")
		}
		planes := make([]Plane, len(pts)/3)
		for i := range planes {
			planes[i] = Plane{
				Point:  vec(pts[3*i:]),
				Normal: vec(nrm[3*i:]),
			}
		}
		return mustPolytope(desc.Name, planes), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownGeometry, desc.Type)
}

func vecParam(desc csg.GeometryDesc, key string) r3.Vec {
	v, ok := desc.Params[key]
	if !ok || len(v) != 3 {
		panic("parameter " + key + " must have 3 values")
	}
	return vec(v)
}

func vec(v []float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func flat(vs ...r3.Vec) []float64 {
	out := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}

func scalarParam(desc csg.GeometryDesc, key string) float64 {
	v, ok := desc.Params[key]
	if !ok || len(v) != 1 {
		panic("parameter " + key + " must have 1 value")
	}
	return v[0]
}

func optionalScalar(desc csg.GeometryDesc, key string) float64 {
	if _, ok := desc.Params[key]; !ok {
		return 0
	}
	return scalarParam(desc, key)
}
