package cit

import (
	"github.com/soypat/csg"
	"github.com/soypat/csg/internal/d3"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// IsEmptySet reports whether n has no interior point on a grid of spacing
// sgs over the bounds of its functions. When refs holds points only those
// points are tested. A node without functions is tested at the origin.
// Results are memoized in cache, which may be nil.
func IsEmptySet(n *csg.Node, sgs float64, refs pointcloud.Cloud, cache *EmptySetCache) bool {
	key := newEmptySetKey(n, sgs, refs)
	if cache != nil {
		if empty, found := cache.read(key); found {
			return empty
		}
	}
	empty := isEmptySet(n, sgs, refs)
	if cache != nil {
		cache.write(key, empty)
	}
	return empty
}

func isEmptySet(n *csg.Node, sgs float64, refs pointcloud.Cloud) bool {
	if refs.Len() > 0 {
		for i := range refs.Len() {
			if n.SignedDistance(refs.Pos(i)) < 0 {
				return false
			}
		}
		return true
	}
	fs := n.DistinctFunctions()
	if len(fs) == 0 {
		return n.SignedDistance(r3.Vec{}) >= 0
	}
	empty := true
	d3.NewGrid(d3.Box(csg.FunctionsBounds(fs)), sgs).Each(func(_ d3.V3i, p r3.Vec) bool {
		if n.SignedDistance(p) < 0 {
			empty = false
		}
		return empty
	})
	return empty
}
