package dnf

import (
	"log/slog"

	"github.com/soypat/csg"
	"gonum.org/v1/gonum/spatial/r3"
)

// smallestDelta is the tolerance when comparing node and function distances.
const smallestDelta = 1e-9

// Options configures the Shapiro expansion.
type Options struct {
	// UsePrimeImplicants extracts single primitive prime implicants first
	// and expands only the remaining functions.
	UsePrimeImplicants bool
	Logger             *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// ScoreClause rates how well the clause explains the sample points of fs.
// A sample is considered when the clause's distance is not above the
// function's own distance, and correct when both distances agree and the
// clause gradient points along the sample normal. The score is the ratio of
// correct to considered samples, zero if no sample was considered.
func ScoreClause(c Clause, fs []csg.Function) float64 {
	node := ClauseToNode(c, fs)
	var correct, considered int
	for _, f := range fs {
		pts := f.Points()
		for j := range pts.Len() {
			p, n := pts.At(j)
			fd := f.SignedDistance(p)
			nd, ng := node.SignedDistanceAndGradient(p)
			if nd-fd > smallestDelta {
				continue
			}
			considered++
			if nd-fd < -smallestDelta {
				continue
			}
			if r3.Dot(ng, n) <= 0 {
				continue
			}
			correct++
		}
	}
	if considered == 0 {
		return 0
	}
	return float64(correct) / float64(considered)
}

// ValidClauses returns the indices of scores reaching the Threshold.
func ValidClauses(scores []float64) []int {
	if len(scores) == 0 {
		return nil
	}
	t := Threshold(scores)
	var valid []int
	for i, s := range scores {
		if s >= t {
			valid = append(valid, i)
		}
	}
	return valid
}

// PrimeImplicants finds the functions that alone form a valid clause. It
// returns a DNF with one single literal clause per such function and the
// remaining functions.
func PrimeImplicants(fs []csg.Function) (pis DNF, rest []csg.Function) {
	scores := make([]float64, len(fs))
	for i := range fs {
		c := NewClause(len(fs))
		c.Literals[i] = true
		scores[i] = ScoreClause(c, fs)
	}
	valid := ValidClauses(scores)
	isPI := make([]bool, len(fs))
	for i, idx := range valid {
		c := NewClause(len(valid))
		c.Literals[i] = true
		pis.Clauses = append(pis.Clauses, c)
		pis.Functions = append(pis.Functions, fs[idx])
		isPI[idx] = true
	}
	for i, f := range fs {
		if !isPI[i] {
			rest = append(rest, f)
		}
	}
	return pis, rest
}

// Shapiro scores every sign assignment of a full width clause over fs, in
// order of increasing number of complemented literals, and keeps the
// clauses reaching the adaptive Threshold.
func Shapiro(fs []csg.Function, opts Options) DNF {
	log := opts.logger()
	var pis DNF
	rest := fs
	if opts.UsePrimeImplicants {
		pis, rest = PrimeImplicants(fs)
		log.Debug("prime implicants identified", "prime", len(pis.Functions), "rest", len(rest))
	}
	d := DNF{Functions: rest}
	if len(rest) > 0 {
		var clauses []Clause
		var scores []float64
		for k := 0; k <= len(rest); k++ {
			negated := make([]bool, len(rest))
			for i := len(rest) - k; i < len(rest); i++ {
				negated[i] = true
			}
			for {
				c := NewClause(len(rest))
				for i := range c.Literals {
					c.Literals[i] = true
				}
				copy(c.Negated, negated)
				clauses = append(clauses, c)
				scores = append(scores, ScoreClause(c, rest))
				if !nextPermutation(negated) {
					break
				}
			}
		}
		for _, idx := range ValidClauses(scores) {
			d.Clauses = append(d.Clauses, clauses[idx])
		}
		log.Debug("shapiro expansion done", "candidates", len(clauses), "valid", len(d.Clauses))
	}
	return Merge(pis, d)
}

// nextPermutation rearranges b into the lexicographically next arrangement
// with false ordered before true. It returns false when b was the last
// arrangement.
func nextPermutation(b []bool) bool {
	less := func(x, y bool) bool { return !x && y }
	i := len(b) - 2
	for i >= 0 && !less(b[i], b[i+1]) {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(b) - 1
	for !less(b[i], b[j]) {
		j--
	}
	b[i], b[j] = b[j], b[i]
	for l, r := i+1, len(b)-1; l < r; l, r = l+1, r-1 {
		b[l], b[r] = b[r], b[l]
	}
	return true
}
