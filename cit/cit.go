// Package cit optimizes CSG trees by rebuilding them from canonical
// intersection terms (CITs) sampled on a regular grid. Each interior grid
// point of a tree yields the sign pattern of the tree's primitives at that
// point. Sign patterns are widened into prime implicants and a set cover
// over the sample points selects the implicants forming the optimized tree.
package cit

import (
	"github.com/soypat/csg"
	"github.com/soypat/csg/dnf"
	"github.com/soypat/csg/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// CITs holds the canonical intersection terms of a tree. Points[i] is the
// sample point that produced DNF.Clauses[i].
type CITs struct {
	Points []r3.Vec
	DNF    dnf.DNF
}

// Len returns the number of terms.
func (c CITs) Len() int { return len(c.Points) }

// Generate samples n on a grid of spacing sgs over the bounds of prims and
// returns one term per distinct sign pattern found at interior points. The
// term of a point has every literal set and a literal is complemented when
// the point lies outside its primitive. Patterns with all literals
// complemented are discarded. If prims is empty the distinct functions of
// n are used.
func Generate(n *csg.Node, sgs float64, prims []csg.Function) CITs {
	if len(prims) == 0 {
		prims = n.DistinctFunctions()
	}
	cits := CITs{DNF: dnf.DNF{Functions: prims}}
	if len(prims) == 0 {
		return cits
	}
	seen := make(map[string]bool)
	grid := d3.NewGrid(d3.Box(csg.FunctionsBounds(prims)), sgs)
	grid.Each(func(_ d3.V3i, p r3.Vec) bool {
		if n.SignedDistance(p) >= 0 {
			return true
		}
		c := dnf.NewClause(len(prims))
		for i, f := range prims {
			c.Literals[i] = true
			c.Negated[i] = f.SignedDistance(p) > 0
		}
		if c.NumNegations() == len(prims) {
			return true
		}
		key := c.Key()
		if seen[key] {
			return true
		}
		seen[key] = true
		cits.Points = append(cits.Points, p)
		cits.DNF.Clauses = append(cits.DNF.Clauses, c)
		return true
	})
	return cits
}
