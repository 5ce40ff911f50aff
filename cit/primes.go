package cit

import (
	"context"

	"github.com/soypat/csg"
	"github.com/soypat/csg/dnf"
	"github.com/soypat/csg/pointcloud"
)

// PrimeImplicants widens every term of cits into a prime implicant by
// greedily dropping literals while the widened term stays inside the
// union of all terms. The last literal of a term is never dropped.
// Duplicate implicants are removed keeping first occurrence order.
func PrimeImplicants(ctx context.Context, cits CITs, sgs float64, cache *EmptySetCache) (dnf.DNF, error) {
	if cache == nil {
		cache = NewEmptySetCache()
	}
	fs := cits.DNF.Functions
	pis := dnf.DNF{Functions: fs}
	if cits.Len() == 0 {
		return pis, nil
	}
	model := cits.DNF.Node()
	seen := make(map[string]bool)
	for _, c := range cits.DNF.Clauses {
		if err := ctx.Err(); err != nil {
			return pis, err
		}
		pc := primeClause(c, fs, model, sgs, cache)
		key := pc.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		pis.Clauses = append(pis.Clauses, pc)
	}
	return pis, nil
}

func primeClause(c dnf.Clause, fs []csg.Function, model *csg.Node, sgs float64, cache *EmptySetCache) dnf.Clause {
	prime := c.Clone()
	available := prime.NumLiterals()
	removed := 0
	for i, lit := range prime.Literals {
		if !lit {
			continue
		}
		prime.Literals[i] = false
		if available == removed+1 || isOutside(prime, fs, model, sgs, cache) {
			prime.Literals[i] = true
			continue
		}
		removed++
	}
	return prime
}

// isOutside reports whether the clause covers space outside model.
func isOutside(c dnf.Clause, fs []csg.Function, model *csg.Node, sgs float64, cache *EmptySetCache) bool {
	diff := csg.Difference(dnf.ClauseToNode(c, fs), model)
	return !IsEmptySet(diff, sgs, pointcloud.Cloud{}, cache)
}

// CoverSets returns for each clause of pis the indices of the points of
// cits it contains.
func CoverSets(pis dnf.DNF, cits CITs) [][]int {
	sets := make([][]int, len(pis.Clauses))
	for i, c := range pis.Clauses {
		for j, p := range cits.Points {
			if c.SignedDistance(p, pis.Functions) <= 0 {
				sets[i] = append(sets[i], j)
			}
		}
	}
	return sets
}
