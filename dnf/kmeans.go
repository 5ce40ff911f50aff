package dnf

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// KMeans clusters scalar values into k groups with Lloyd iterations.
// Means start evenly spread between the minimum and maximum value.
// Iteration stops after maxIter rounds or when assignments settle.
func KMeans(values []float64, k, maxIter int) (means []float64, assign []int) {
	if k < 1 {
		panic("k-means requires k >= 1")
	}
	assign = make([]int, len(values))
	means = make([]float64, k)
	if len(values) == 0 {
		return means, assign
	}
	lo, hi := slices.Min(values), slices.Max(values)
	for i := range means {
		if k == 1 {
			means[i] = (lo + hi) / 2
		} else {
			means[i] = lo + (hi-lo)*float64(i)/float64(k-1)
		}
	}
	members := make([][]float64, k)
	for it := 0; it < maxIter; it++ {
		changed := it == 0
		for i, v := range values {
			best := 0
			for j := 1; j < k; j++ {
				if math.Abs(v-means[j]) < math.Abs(v-means[best]) {
					best = j
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		for j := range members {
			members[j] = members[j][:0]
		}
		for i, v := range values {
			members[assign[i]] = append(members[assign[i]], v)
		}
		for j, m := range members {
			if len(m) > 0 {
				means[j] = stat.Mean(m, nil)
			}
		}
	}
	return means, assign
}

// Threshold returns the accept cutoff for quality scores: scores are split
// in two k-means clusters and the largest of the cluster minimums is used.
// An empty cluster has no minimum and is ignored, so scores forming a single
// cluster are all accepted rather than all rejected.
func Threshold(scores []float64) float64 {
	const k = 2
	_, assign := KMeans(scores, k, 300)
	mins := make([]float64, k)
	for i := range mins {
		mins[i] = math.Inf(1)
	}
	for i, a := range assign {
		mins[a] = math.Min(mins[a], scores[i])
	}
	t := math.Inf(-1)
	for _, m := range mins {
		if !math.IsInf(m, 1) {
			t = math.Max(t, m)
		}
	}
	return t
}
