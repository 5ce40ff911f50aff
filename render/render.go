// Package render turns CSG trees into triangle meshes and reads and writes
// them as binary STL.
package render

import (
	"errors"
	"io"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/soypat/csg"
	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams the triangles of a mesh. ReadTriangles returns io.EOF
// once the mesh is exhausted.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Triangle3 is a triangle in 3d space with counter-clockwise vertices
// seen from outside the solid.
type Triangle3 struct {
	V [3]r3.Vec
}

// Normal returns the unit normal of the triangle.
func (t Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t.V[1], t.V[0])
	e2 := r3.Sub(t.V[2], t.V[0])
	return r3.Unit(r3.Cross(e1, e2))
}

// Degenerate reports whether two vertices are within tol of each other.
func (t Triangle3) Degenerate(tol float64) bool {
	return d3.EqualWithin(t.V[0], t.V[1], tol) ||
		d3.EqualWithin(t.V[1], t.V[2], tol) ||
		d3.EqualWithin(t.V[2], t.V[0], tol)
}

// ErrEmptyMesh is returned when meshing produces no triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// boundsMargin enlarges the meshed box relative to its diagonal so surfaces
// on the primitive bounds are not clipped.
const boundsMargin = 0.05

// nodeSDF adapts a CSG tree to the sdfx SDF3 interface.
type nodeSDF struct {
	n  *csg.Node
	bb sdf.Box3
}

func newNodeSDF(n *csg.Node) nodeSDF {
	box := d3.Box(n.Bounds())
	box = box.Enlarge(d3.Elem(boundsMargin * box.Diagonal()))
	return nodeSDF{
		n: n,
		bb: sdf.Box3{
			Min: v3.Vec{X: box.Min.X, Y: box.Min.Y, Z: box.Min.Z},
			Max: v3.Vec{X: box.Max.X, Y: box.Max.Y, Z: box.Max.Z},
		},
	}
}

func (s nodeSDF) Evaluate(p v3.Vec) float64 {
	return s.n.SignedDistance(r3.Vec{X: p.X, Y: p.Y, Z: p.Z})
}

func (s nodeSDF) BoundingBox() sdf.Box3 { return s.bb }

// Mesh meshes n with marching cubes over its primitive bounds, using cells
// cells along the longest side of the box. Triangles with nearly coincident
// vertices are dropped.
func Mesh(n *csg.Node, cells int) ([]Triangle3, error) {
	if n == nil {
		panic("nil argument to Mesh")
	}
	if cells < 1 {
		return nil, errors.New("render: mesh cells must be positive")
	}
	if len(n.DistinctFunctions()) == 0 {
		return nil, ErrEmptyMesh
	}
	s := newNodeSDF(n)
	tris := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))
	// Vertices closer than this collapse once stored as float32.
	tol := 1e-6 * d3.Box(n.Bounds()).Diagonal()
	out := make([]Triangle3, 0, len(tris))
	for _, tri := range tris {
		t := Triangle3{V: [3]r3.Vec{
			{X: tri[0].X, Y: tri[0].Y, Z: tri[0].Z},
			{X: tri[1].X, Y: tri[1].Y, Z: tri[1].Z},
			{X: tri[2].X, Y: tri[2].Y, Z: tri[2].Z},
		}}
		if !t.Degenerate(tol) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyMesh
	}
	return out, nil
}

// NewMeshRenderer meshes n as Mesh does and returns a Renderer streaming the
// result.
func NewMeshRenderer(n *csg.Node, cells int) (Renderer, error) {
	tris, err := Mesh(n, cells)
	if err != nil {
		return nil, err
	}
	return &meshRenderer{buf: triangle3Buffer{buf: tris}}, nil
}

type meshRenderer struct {
	buf triangle3Buffer
}

func (m *meshRenderer) ReadTriangles(t []Triangle3) (int, error) {
	if m.buf.Len() == 0 {
		return 0, io.EOF
	}
	return m.buf.Read(t), nil
}
