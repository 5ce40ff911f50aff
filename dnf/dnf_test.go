package dnf

import (
	"bytes"
	"math"
	"testing"

	"github.com/soypat/csg"
	"github.com/soypat/csg/implicit"
	"github.com/soypat/csg/pointcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// surfaceSphere returns a sphere carrying n points spread over its surface
// that satisfy keep.
func surfaceSphere(t testing.TB, name string, c r3.Vec, r float64, n int, keep func(r3.Vec) bool) *implicit.Sphere {
	s, err := implicit.NewSphere(name, c, r)
	require.NoError(t, err)
	golden := math.Pi * (3 - math.Sqrt(5))
	var pos, nrm []r3.Vec
	for i := range n {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		rad := math.Sqrt(1 - y*y)
		th := golden * float64(i)
		dir := r3.Vec{X: rad * math.Cos(th), Y: y, Z: rad * math.Sin(th)}
		p := r3.Add(c, r3.Scale(r, dir))
		if keep == nil || keep(p) {
			pos = append(pos, p)
			nrm = append(nrm, dir)
		}
	}
	s.SetPoints(pointcloud.FromPoints(pos, nrm))
	return s
}

func TestClauseEqualityIgnoresDontCares(t *testing.T) {
	a := Clause{Literals: []bool{true, false, true}, Negated: []bool{false, true, true}}
	b := Clause{Literals: []bool{true, false, true}, Negated: []bool{false, false, true}}
	c := Clause{Literals: []bool{true, false, true}, Negated: []bool{true, false, true}}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())
	assert.False(t, a.Equal(NewClause(2)))
	assert.Equal(t, 2, a.NumLiterals())
	assert.Equal(t, 1, a.NumNegations())
	assert.Equal(t, "1!0!1", a.String())
}

func TestClauseToNode(t *testing.T) {
	a := surfaceSphere(t, "a", r3.Vec{}, 1, 0, nil)
	b := surfaceSphere(t, "b", r3.Vec{X: 1}, 1, 0, nil)
	fs := []csg.Function{a, b}

	single := Clause{Literals: []bool{false, true}, Negated: []bool{false, true}}
	n := ClauseToNode(single, fs)
	assert.Equal(t, "Complement ( b )", n.Key())
	assert.Equal(t, "!b", single.Format(fs))

	both := Clause{Literals: []bool{true, true}, Negated: []bool{false, true}}
	n = ClauseToNode(both, fs)
	assert.Equal(t, "( a ) Intersection ( Complement ( b ) )", n.Key())

	d := DNF{Clauses: []Clause{both}, Functions: fs}
	node := d.Node()
	assert.Equal(t, csg.OpUnion, node.Op())
	for _, x := range []float64{-1.5, -0.5, 0.2, 0.8, 1.5, 2.5} {
		p := r3.Vec{X: x, Y: 0.1}
		want := both.SignedDistance(p, fs)
		got := node.SignedDistance(p)
		assert.Equal(t, want < 0, got < 0, "x=%v", x)
		assert.InDelta(t, want, got, 1e-12)
	}
}

func TestMerge(t *testing.T) {
	fa := surfaceSphere(t, "a", r3.Vec{}, 1, 0, nil)
	fb := surfaceSphere(t, "b", r3.Vec{X: 3}, 1, 0, nil)
	fc := surfaceSphere(t, "c", r3.Vec{X: 6}, 1, 0, nil)
	d1 := DNF{Functions: []csg.Function{fa}, Clauses: []Clause{{Literals: []bool{true}, Negated: []bool{false}}}}
	d2 := DNF{Functions: []csg.Function{fb, fc}, Clauses: []Clause{
		{Literals: []bool{true, true}, Negated: []bool{false, true}},
		{Literals: []bool{false, true}, Negated: []bool{false, false}},
	}}
	merged := Merge(d1, DNF{}, d2)
	require.Len(t, merged.Clauses, len(d1.Clauses)+len(d2.Clauses))
	require.Len(t, merged.Functions, 3)
	for _, c := range merged.Clauses {
		assert.Equal(t, 3, c.Len())
		assert.Len(t, c.Negated, 3)
	}
	assert.Equal(t, "1--", merged.Clauses[0].Key())
	assert.Equal(t, "-10", merged.Clauses[1].Key())
	assert.Equal(t, "--1", merged.Clauses[2].Key())
	// Inputs keep their widths.
	assert.Equal(t, 1, d1.Clauses[0].Len())
	assert.Equal(t, "a\nb !c\nc", merged.String())
}

func TestKMeansThreshold(t *testing.T) {
	scores := []float64{0.1, 0.95, 0.15, 0.9, 1, 0.05}
	means, assign := KMeans(scores, 2, 300)
	require.Len(t, means, 2)
	assert.InDelta(t, 0.1, means[0], 1e-12)
	assert.InDelta(t, 0.95, means[1], 1e-12)
	assert.Equal(t, []int{0, 1, 0, 1, 1, 0}, assign)
	assert.InDelta(t, 0.9, Threshold(scores), 1e-12)
	assert.Equal(t, []int{1, 3, 4}, ValidClauses(scores))

	// A single natural cluster leaves the other empty and accepts everything.
	assert.Equal(t, 0.5, Threshold([]float64{0.5, 0.5, 0.5}))
	assert.Equal(t, []int{0, 1, 2}, ValidClauses([]float64{1, 1, 1}))
	assert.Nil(t, ValidClauses(nil))
}

func TestNextPermutationEnumeratesAllSignPatterns(t *testing.T) {
	const n = 4
	seen := make(map[string]bool)
	for k := 0; k <= n; k++ {
		neg := make([]bool, n)
		for i := n - k; i < n; i++ {
			neg[i] = true
		}
		for {
			c := Clause{Literals: []bool{true, true, true, true}, Negated: append([]bool(nil), neg...)}
			assert.False(t, seen[c.Key()], c.Key())
			seen[c.Key()] = true
			if !nextPermutation(neg) {
				break
			}
		}
	}
	assert.Len(t, seen, 1<<n)
}

func TestScoreClause(t *testing.T) {
	ca, cb := r3.Vec{}, r3.Vec{X: 1.5}
	outside := func(c r3.Vec) func(r3.Vec) bool {
		return func(p r3.Vec) bool { return r3.Norm(r3.Sub(p, c)) > 1 }
	}
	a := surfaceSphere(t, "a", ca, 1, 400, outside(cb))
	b := surfaceSphere(t, "b", cb, 1, 400, outside(ca))
	fs := []csg.Function{a, b}

	// No sample lies on the surface of the intersection.
	inter := Clause{Literals: []bool{true, true}, Negated: []bool{false, false}}
	assert.Equal(t, 0.0, ScoreClause(inter, fs))
	onlyA := Clause{Literals: []bool{true, false}, Negated: []bool{false, false}}
	assert.InDelta(t, 1, ScoreClause(onlyA, fs), 1e-12)
	aMinusB := Clause{Literals: []bool{true, true}, Negated: []bool{false, true}}
	assert.InDelta(t, 1, ScoreClause(aMinusB, fs), 1e-12)
	notA := Clause{Literals: []bool{true, false}, Negated: []bool{true, false}}
	assert.Equal(t, 0.0, ScoreClause(notA, fs))
	assert.Equal(t, 0.0, ScoreClause(onlyA, []csg.Function{surfaceSphere(t, "e", ca, 1, 0, nil)}))
}

func TestShapiroUnionOfSpheres(t *testing.T) {
	ca, cb := r3.Vec{}, r3.Vec{X: 1.5}
	outside := func(c r3.Vec) func(r3.Vec) bool {
		return func(p r3.Vec) bool { return r3.Norm(r3.Sub(p, c)) > 1 }
	}
	a := surfaceSphere(t, "a", ca, 1, 400, outside(cb))
	b := surfaceSphere(t, "b", cb, 1, 400, outside(ca))
	fs := []csg.Function{a, b}

	d := Shapiro(fs, Options{UsePrimeImplicants: true})
	require.Len(t, d.Functions, 2)
	assert.Len(t, d.Clauses, 2)
	node := d.Node()
	model := csg.Union(csg.Geometry(a), csg.Geometry(b))
	for _, x := range []float64{-1.5, -0.5, 0.7, 2, 3} {
		p := r3.Vec{X: x}
		assert.Equal(t, model.SignedDistance(p) < 0, node.SignedDistance(p) < 0, "x=%v", x)
	}

	full := Shapiro(fs, Options{})
	assert.NotEmpty(t, full.Clauses)
	for _, c := range full.Clauses {
		assert.Equal(t, 2, c.NumLiterals())
	}
}

func TestWriteEspresso(t *testing.T) {
	fa := surfaceSphere(t, "a", r3.Vec{}, 1, 0, nil)
	fb := surfaceSphere(t, "b", r3.Vec{X: 3}, 1, 0, nil)
	d := DNF{Functions: []csg.Function{fa, fb}, Clauses: []Clause{
		{Literals: []bool{true, true}, Negated: []bool{false, true}},
		{Literals: []bool{false, true}, Negated: []bool{false, false}},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteEspresso(&buf, d))
	assert.Equal(t, "a,b= map(exprvar, 'a,b'.split(','))\nexpr = a & ~b | b \ndnf = expr.to_dnf()", buf.String())
}
