package csg

import (
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// SampleSurface samples the tree on a regular grid of spacing step over its
// bounds enlarged by two steps and keeps the points closer than delta to the
// surface. Each point's normal is the normalized gradient of the tree.
func SampleSurface(n *Node, step, delta float64) pointcloud.Cloud {
	bb := d3.Box(n.Bounds()).Enlarge(d3.Elem(4 * step))
	var pos, nrm []r3.Vec
	d3.NewGrid(bb, step).Each(func(_ d3.V3i, p r3.Vec) bool {
		d, g := n.SignedDistanceAndGradient(p)
		if d > -delta && d < delta && r3.Norm2(g) > 0 {
			pos = append(pos, p)
			nrm = append(nrm, r3.Unit(g))
		}
		return true
	})
	return pointcloud.FromPoints(pos, nrm)
}

// AssignPoints gives every function implementing PointSetter the points of c
// closer than delta to its surface. It returns the number of functions that
// received at least one point.
func AssignPoints(fs []Function, c pointcloud.Cloud, delta float64) int {
	var assigned int
	for _, f := range fs {
		ps, ok := f.(PointSetter)
		if !ok {
			continue
		}
		sub := c.Filter(func(p, _ r3.Vec) bool {
			d := f.SignedDistance(p)
			return d > -delta && d < delta
		})
		ps.SetPoints(sub)
		if sub.Len() > 0 {
			assigned++
		}
	}
	return assigned
}
