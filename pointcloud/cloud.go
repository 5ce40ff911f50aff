// Package pointcloud implements oriented point samples stored as rows of
// x, y, z, nx, ny, nz.
package pointcloud

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// Cols is the number of columns of a point cloud row.
const Cols = 6

// Cloud is a dense table of oriented samples. The zero value is an empty cloud.
type Cloud struct {
	m *mat.Dense
}

// New returns a zeroed cloud with n rows.
func New(n int) Cloud {
	if n < 0 {
		panic("negative point cloud size")
	}
	if n == 0 {
		return Cloud{}
	}
	return Cloud{m: mat.NewDense(n, Cols, nil)}
}

// FromPoints builds a cloud from positions and matching normals.
// A nil normals slice leaves normals zeroed.
func FromPoints(pos, normals []r3.Vec) Cloud {
	if normals != nil && len(normals) != len(pos) {
		panic("positions and normals length mismatch")
	}
	c := New(len(pos))
	for i, p := range pos {
		var n r3.Vec
		if normals != nil {
			n = normals[i]
		}
		c.Set(i, p, n)
	}
	return c
}

// Len returns the number of points in the cloud.
func (c Cloud) Len() int {
	if c.m == nil {
		return 0
	}
	r, _ := c.m.Dims()
	return r
}

// At returns position and normal of the i'th point.
func (c Cloud) At(i int) (p, n r3.Vec) {
	row := c.m.RawRowView(i)
	return r3.Vec{X: row[0], Y: row[1], Z: row[2]}, r3.Vec{X: row[3], Y: row[4], Z: row[5]}
}

// Pos returns the position of the i'th point.
func (c Cloud) Pos(i int) r3.Vec {
	row := c.m.RawRowView(i)
	return r3.Vec{X: row[0], Y: row[1], Z: row[2]}
}

// Set sets position and normal of the i'th point.
func (c Cloud) Set(i int, p, n r3.Vec) {
	c.m.SetRow(i, []float64{p.X, p.Y, p.Z, n.X, n.Y, n.Z})
}

// Matrix returns the cloud's backing matrix. It is nil for an empty cloud.
func (c Cloud) Matrix() *mat.Dense { return c.m }

// Clone returns a deep copy of the cloud.
func (c Cloud) Clone() Cloud {
	if c.m == nil {
		return Cloud{}
	}
	return Cloud{m: mat.DenseCopyOf(c.m)}
}

// Bounds returns the axis aligned box containing every point position.
// An empty cloud returns the zero box.
func (c Cloud) Bounds() r3.Box {
	n := c.Len()
	if n == 0 {
		return r3.Box{}
	}
	p := c.Pos(0)
	bb := r3.Box{Min: p, Max: p}
	for i := 1; i < n; i++ {
		p = c.Pos(i)
		bb.Min = r3.Vec{X: min(bb.Min.X, p.X), Y: min(bb.Min.Y, p.Y), Z: min(bb.Min.Z, p.Z)}
		bb.Max = r3.Vec{X: max(bb.Max.X, p.X), Y: max(bb.Max.Y, p.Y), Z: max(bb.Max.Z, p.Z)}
	}
	return bb
}

// Filter returns a new cloud with the points for which keep returns true.
func (c Cloud) Filter(keep func(p, n r3.Vec) bool) Cloud {
	var pos, nrm []r3.Vec
	for i := range c.Len() {
		p, n := c.At(i)
		if keep(p, n) {
			pos = append(pos, p)
			nrm = append(nrm, n)
		}
	}
	return FromPoints(pos, nrm)
}

// Concat stacks clouds vertically into a new cloud.
func Concat(clouds ...Cloud) Cloud {
	var total int
	for _, c := range clouds {
		total += c.Len()
	}
	dst := New(total)
	var off int
	for _, c := range clouds {
		n := c.Len()
		if n == 0 {
			continue
		}
		dst.m.Slice(off, off+n, 0, Cols).(*mat.Dense).Copy(c.m)
		off += n
	}
	return dst
}

// AddNoise displaces every point position by gaussian noise of standard
// deviation sigma along each axis, drawing from src.
func AddNoise(c Cloud, sigma float64, src rand.Source) {
	if sigma <= 0 {
		return
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	for i := range c.Len() {
		row := c.m.RawRowView(i)
		row[0] += dist.Rand()
		row[1] += dist.Rand()
		row[2] += dist.Rand()
	}
}
