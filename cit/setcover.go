package cit

// GreedySetCover selects sets covering the universe 0..n-1. At each step
// the set covering the most uncovered elements is chosen, ties going to the
// lowest index. Selection stops once everything is covered or no set adds
// coverage. The indices of the chosen sets are returned in selection order.
func GreedySetCover(n int, sets [][]int) []int {
	covered := make([]bool, n)
	remaining := n
	used := make([]bool, len(sets))
	var chosen []int
	for remaining > 0 {
		best, bestGain := -1, 0
		for i, s := range sets {
			if used[i] {
				continue
			}
			gain := 0
			for _, e := range s {
				if e >= 0 && e < n && !covered[e] {
					gain++
				}
			}
			if gain > bestGain {
				best, bestGain = i, gain
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		chosen = append(chosen, best)
		for _, e := range sets[best] {
			if e >= 0 && e < n && !covered[e] {
				covered[e] = true
				remaining--
			}
		}
	}
	return chosen
}
