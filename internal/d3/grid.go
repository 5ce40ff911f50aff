package d3

import "gonum.org/v1/gonum/spatial/r3"

// V3i is a 3D integer vector.
type V3i [3]int

// ToV3 converts V3i (integer) to r3.Vec (float).
func (a V3i) ToV3() r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}

// Grid is a regular lattice of sample points starting at Origin
// with Step spacing along every axis.
type Grid struct {
	Origin r3.Vec
	Step   float64
	N      V3i // number of samples per axis
}

// NewGrid returns the grid sampling box b with spacing step. Each axis
// holds int(size/step)+1 samples so both box faces lie close to a sample.
func NewGrid(b Box, step float64) Grid {
	if step <= 0 {
		panic("grid step must be positive")
	}
	sz := b.Size()
	return Grid{
		Origin: b.Min,
		Step:   step,
		N:      V3i{int(sz.X/step) + 1, int(sz.Y/step) + 1, int(sz.Z/step) + 1},
	}
}

// Len returns the amount of points in the grid.
func (g Grid) Len() int {
	return g.N[0] * g.N[1] * g.N[2]
}

// At returns the position of the grid point at integer coordinates vi.
func (g Grid) At(vi V3i) r3.Vec {
	return r3.Add(g.Origin, r3.Scale(g.Step, vi.ToV3()))
}

// Each calls fn on every grid point in x-major order. Iteration stops
// early when fn returns false.
func (g Grid) Each(fn func(vi V3i, p r3.Vec) bool) {
	var vi V3i
	for vi[0] = 0; vi[0] < g.N[0]; vi[0]++ {
		for vi[1] = 0; vi[1] < g.N[1]; vi[1]++ {
			for vi[2] = 0; vi[2] < g.N[2]; vi[2]++ {
				if !fn(vi, g.At(vi)) {
					return
				}
			}
		}
	}
}
