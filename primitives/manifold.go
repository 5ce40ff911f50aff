// Package primitives assembles solid primitives from fitted surface
// manifolds and searches for the primitive set that best explains the
// manifolds' sample points with a genetic algorithm.
package primitives

import (
	"fmt"
	"strings"

	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// ManifoldType is the kind of a fitted surface.
type ManifoldType uint8

const (
	ManifoldNone ManifoldType = iota
	ManifoldCylinder
	ManifoldSphere
	ManifoldPlane
	ManifoldCone
)

var manifoldNames = [...]string{
	ManifoldNone:     "None",
	ManifoldCylinder: "Cylinder",
	ManifoldSphere:   "Sphere",
	ManifoldPlane:    "Plane",
	ManifoldCone:     "Cone",
}

func (t ManifoldType) String() string {
	if int(t) < len(manifoldNames) {
		return manifoldNames[t]
	}
	return fmt.Sprintf("ManifoldType(%d)", t)
}

// ParseManifoldType parses a manifold type name case insensitively.
// Unknown names yield ManifoldNone.
func ParseManifoldType(s string) ManifoldType {
	for i, name := range manifoldNames {
		if strings.EqualFold(s, name) {
			return ManifoldType(i)
		}
	}
	return ManifoldNone
}

// Manifold is an unbounded surface fitted to a point cloud. For planes P is
// a point on the plane and N its normal. For cylinders P is a point on the
// axis and N the axis direction. For spheres P is the center.
type Manifold struct {
	Name   string
	Type   ManifoldType
	P      r3.Vec
	N      r3.Vec
	Radius float64
	Points pointcloud.Cloud
}

func (m *Manifold) String() string {
	return fmt.Sprintf("%s %s p=%v n=%v r=%g points=%d", m.Type, m.Name, m.P, m.N, m.Radius, m.Points.Len())
}

// splitStatic returns primitives for every sphere manifold and the remaining
// manifolds.
func splitStatic(ms []*Manifold) (static Set, rest []*Manifold) {
	for _, m := range ms {
		if m.Type != ManifoldSphere {
			rest = append(rest, m)
			continue
		}
		if p := NewSphere(m); !p.IsNone() {
			static = append(static, p)
		}
	}
	return static, rest
}
