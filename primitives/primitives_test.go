package primitives

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/soypat/csg/ga"
	"github.com/soypat/csg/params"
	"github.com/soypat/csg/pointcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// facePoints samples the square face of the unit cube with outward normal n.
func facePoints(n r3.Vec) pointcloud.Cloud {
	var pos, nrm []r3.Vec
	for i := range 5 {
		for j := range 5 {
			u, v := -0.8+0.4*float64(i), -0.8+0.4*float64(j)
			var p r3.Vec
			switch {
			case n.X != 0:
				p = r3.Vec{X: n.X, Y: u, Z: v}
			case n.Y != 0:
				p = r3.Vec{X: u, Y: n.Y, Z: v}
			default:
				p = r3.Vec{X: u, Y: v, Z: n.Z}
			}
			pos = append(pos, p)
			nrm = append(nrm, n)
		}
	}
	return pointcloud.FromPoints(pos, nrm)
}

// cubePlanes returns the six faces of the cube [-1,1]³ with normals that are
// not consistently oriented.
func cubePlanes() []*Manifold {
	dirs := []r3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
	ms := make([]*Manifold, len(dirs))
	for i, d := range dirs {
		n := d
		if i%2 == 1 {
			// Both planes of a pair share the normal direction.
			n = r3.Scale(-1, d)
		}
		ms[i] = &Manifold{Name: "p" + string(rune('0'+i)), Type: ManifoldPlane, P: d, N: n, Points: facePoints(d)}
	}
	return ms
}

func cylinderManifold() *Manifold {
	var pos []r3.Vec
	for i := range 12 {
		a := float64(i) * math.Pi / 6
		for _, z := range []float64{-1, 0, 1} {
			pos = append(pos, r3.Vec{X: 0.5 * math.Cos(a), Y: 0.5 * math.Sin(a), Z: z})
		}
	}
	return &Manifold{Name: "c", Type: ManifoldCylinder, N: r3.Vec{Z: 1}, Radius: 0.5, Points: pointcloud.FromPoints(pos, nil)}
}

func sphereManifold() *Manifold {
	var pos []r3.Vec
	for _, d := range []r3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}} {
		pos = append(pos, r3.Add(r3.Vec{X: 5}, d))
	}
	return &Manifold{Name: "s", Type: ManifoldSphere, P: r3.Vec{X: 5}, Radius: 1, Points: pointcloud.FromPoints(pos, nil)}
}

func testRand() *rand.Rand { return rand.New(rand.NewPCG(3, 4)) }

func TestNewBox(t *testing.T) {
	planes := cubePlanes()
	box := NewBox(planes)
	require.False(t, box.IsNone())
	assert.Equal(t, Box, box.Type)
	assert.InDelta(t, -1, box.Func.SignedDistance(r3.Vec{}), 1e-12)
	assert.InDelta(t, 1, box.Func.SignedDistance(r3.Vec{X: 2}), 1e-12)
	assert.InDelta(t, 1, box.Func.SignedDistance(r3.Vec{Y: -2}), 1e-12)
	assert.Equal(t, "Box_p0_p1_p2_p3_p4_p5", box.Func.Name())
	// Inputs keep their orientation.
	assert.Equal(t, r3.Vec{X: 1}, planes[1].N)

	assert.True(t, NewBox(planes[:5]).IsNone())
	assert.True(t, NewBox(append(planes[:5:5], cylinderManifold())).IsNone())
}

func TestNewCylinder(t *testing.T) {
	cyl := cylinderManifold()
	p := NewCylinder(cyl, nil)
	require.False(t, p.IsNone())
	assert.InDelta(t, -0.5, p.Func.SignedDistance(r3.Vec{}), 1e-9)
	assert.InDelta(t, 0.5, p.Func.SignedDistance(r3.Vec{Z: 1.5}), 1e-9)

	top := &Manifold{Name: "top", Type: ManifoldPlane, P: r3.Vec{Z: 1}, N: r3.Vec{Z: 1}}
	bottom := &Manifold{Name: "bottom", Type: ManifoldPlane, P: r3.Vec{Z: -1}, N: r3.Vec{Z: -1}}
	two := NewCylinder(cyl, []*Manifold{top, bottom})
	require.False(t, two.IsNone())
	assert.Len(t, two.Manifolds, 3)
	assert.InDelta(t, 0.5, two.Func.SignedDistance(r3.Vec{Z: 1.5}), 1e-9)

	one := NewCylinder(cyl, []*Manifold{top})
	require.False(t, one.IsNone())
	assert.InDelta(t, 0.5, one.Func.SignedDistance(r3.Vec{Z: -1.5}), 1e-9)

	side := &Manifold{Name: "side", Type: ManifoldPlane, P: r3.Vec{X: 1}, N: r3.Vec{X: 1}}
	assert.True(t, NewCylinder(cyl, []*Manifold{side, side}).IsNone(), "planes parallel to the axis")
	assert.True(t, NewCylinder(cyl, []*Manifold{top, bottom, side}).IsNone())
	assert.True(t, NewCylinder(&Manifold{Type: ManifoldCylinder, N: r3.Vec{Z: 1}, Radius: 1}, nil).IsNone(), "no points")
	assert.True(t, NewCylinder(top, nil).IsNone())

	assert.False(t, NewSphere(sphereManifold()).IsNone())
	assert.True(t, NewSphere(cyl).IsNone())
}

func TestTypes(t *testing.T) {
	assert.Equal(t, ManifoldPlane, ParseManifoldType("plane"))
	assert.Equal(t, ManifoldNone, ParseManifoldType("torus"))
	assert.Equal(t, "Cylinder", ManifoldCylinder.String())
	assert.Equal(t, "Box", Box.String())
	assert.Equal(t, "None", Primitive{}.String())
}

func TestCreator(t *testing.T) {
	ms := append(cubePlanes(), cylinderManifold())
	cfg := DefaultConfig().Creator
	cfg.MaxSetSize = 4
	c := NewCreator(ms, cfg, testRand())
	assert.ElementsMatch(t, []Type{Box, Cylinder}, c.types)
	for range 20 {
		ps := c.Create()
		require.NotEmpty(t, ps)
		assert.LessOrEqual(t, len(ps), 4)
		for _, p := range ps {
			require.False(t, p.IsNone())
			assert.Less(t, p.Func.SignedDistance(r3.Vec{}), 0.0, p.String())
		}
		m := c.Mutate(ps)
		assert.NotEmpty(t, m)
		children := c.Crossover(ps, m)
		require.Len(t, children, 2)
		assert.Len(t, children[0], len(ps))
		assert.Len(t, children[1], len(m))
	}

	none := NewCreator([]*Manifold{sphereManifold()}, cfg, testRand())
	assert.Empty(t, none.Create())
	assert.Panics(t, func() { NewCreator(ms, cfg, nil) })
}

func TestCrossoverKeepsGenes(t *testing.T) {
	sphereSet := func(names ...string) Set {
		var ps Set
		for _, name := range names {
			m := sphereManifold()
			m.Name = name
			ps = append(ps, NewSphere(m))
		}
		return ps
	}
	keys := func(sets ...Set) []string {
		var out []string
		for _, ps := range sets {
			for _, p := range ps {
				out = append(out, p.String())
			}
		}
		return out
	}
	cfg := DefaultConfig().Creator
	cfg.IntraCrossoverProb = 0
	cfg.MaxCrossoverIterations = 8
	c := NewCreator([]*Manifold{sphereManifold()}, cfg, testRand())
	a, b := sphereSet("a0", "a1"), sphereSet("b0", "b1", "b2")
	want := keys(a, b)
	for range 50 {
		children := c.Crossover(a, b)
		require.Len(t, children, 2)
		// Repeated exchanges move primitives without duplicating them.
		assert.ElementsMatch(t, want, keys(children...))
		assert.Len(t, children[0], len(a))
	}
	assert.Equal(t, want, keys(a, b))
}

func TestRanker(t *testing.T) {
	planes := cubePlanes()
	sphere := NewSphere(sphereManifold())
	ms := append(planes, sphereManifold())
	r := NewRanker(ms, Set{sphere}, 0.01, 10)
	assert.Equal(t, ga.Worst, r.Rank(nil))
	assert.Equal(t, ga.Worst, r.Rank(Set{{}}))
	box := NewBox(planes)
	assert.InDelta(t, 0.98, r.Rank(Set{box}), 1e-9)
	assert.InDelta(t, 0.96, r.Rank(Set{box, box}), 1e-9)
	best, rank := r.Best()
	assert.InDelta(t, 0.98, rank, 1e-9)
	assert.Equal(t, Set{box}.Key(), best.Key())

	empty := NewRanker(nil, nil, 0.01, 10)
	assert.Equal(t, ga.Worst, empty.Rank(Set{box}))
}

func TestPopulationManager(t *testing.T) {
	box := NewBox(cubePlanes())
	pop := []ga.Ranked[Set]{
		ga.NewRanked(Set{box, {}, box}),
		ga.NewRanked(Set{box}),
	}
	pop[1].SetRank(1)
	PopulationManager{}.ManipulateBeforeRanking(pop)
	assert.Equal(t, Set{box}.Key(), pop[0].Creature.Key())
	assert.True(t, pop[1].IsRanked())
}

func TestExtract(t *testing.T) {
	ms := append(cubePlanes(), sphereManifold())
	cfg := DefaultConfig()
	cfg.GA.PopulationSize = 20
	cfg.MaxIterations = 5
	cfg.DistanceEpsilon = 0.01
	cfg.Seed = 1
	res, err := Extract(context.Background(), ms, cfg)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Primitives), 2)
	assert.Equal(t, Sphere, res.Primitives[0].Type)
	assert.GreaterOrEqual(t, res.Rank, 0.98-1e-9)
	assert.NotEmpty(t, res.Statistics.Iterations)
	assert.Len(t, res.Primitives.Functions(), len(res.Primitives))

	only, err := Extract(context.Background(), []*Manifold{sphereManifold()}, cfg)
	require.NoError(t, err)
	require.Len(t, only.Primitives, 1)

	_, err = Extract(context.Background(), nil, cfg)
	assert.Error(t, err)
}

func TestConfigFromParams(t *testing.T) {
	var p params.Params
	p.Set("Extraction", "MaxSetSize", 3)
	p.Set("Extraction", "AngleEpsilon", 10)
	cfg := ConfigFromParams(p)
	assert.Equal(t, 3, cfg.Creator.MaxSetSize)
	assert.InDelta(t, math.Pi/18, cfg.Creator.AngleEpsilon, 1e-12)
	assert.Equal(t, 1000, cfg.MaxIterations)
	assert.Equal(t, 0.2, cfg.DistanceEpsilon)
}

func TestManifoldYAML(t *testing.T) {
	ms := []*Manifold{cubePlanes()[0], cylinderManifold(), sphereManifold()}
	var buf bytes.Buffer
	require.NoError(t, WriteManifolds(&buf, ms))
	got, err := ReadManifolds(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, m := range ms {
		assert.Equal(t, m.Name, got[i].Name)
		assert.Equal(t, m.Type, got[i].Type)
		assert.Equal(t, m.P, got[i].P)
		assert.Equal(t, m.Radius, got[i].Radius)
		require.Equal(t, m.Points.Len(), got[i].Points.Len())
		for j := range m.Points.Len() {
			assert.InDelta(t, 0, r3.Norm(r3.Sub(m.Points.Pos(j), got[i].Points.Pos(j))), 1e-12)
		}
	}

	unnamed, err := ReadManifolds(strings.NewReader("manifolds:\n  - type: sphere\n    p: [0, 0, 0]\n    radius: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "m0", unnamed[0].Name)

	_, err = ReadManifolds(strings.NewReader("manifolds:\n  - type: torus\n    p: [0, 0, 0]\n"))
	assert.Error(t, err)
	_, err = ReadManifolds(strings.NewReader("manifolds:\n  - type: plane\n    p: [0, 0]\n"))
	assert.Error(t, err)
	_, err = ReadManifolds(strings.NewReader("manifolds:\n  - type: plane\n    p: [0, 0, 0]\n    points: [[1, 2]]\n"))
	assert.Error(t, err)
}
