package primitives

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxCreateAttempts bounds the failed primitive constructions per requested
// primitive in Create.
const maxCreateAttempts = 20

// CreatorConfig configures a Creator.
type CreatorConfig struct {
	// IntraCrossoverProb is the probability that a crossover iteration
	// leaves both sets unchanged instead of exchanging a primitive.
	IntraCrossoverProb float64 `yaml:"intra_crossover_prob"`
	// IntraMutationProb is the probability that a mutation iteration
	// rebuilds one primitive from its manifolds instead of replacing it.
	IntraMutationProb      float64 `yaml:"intra_mutation_prob"`
	CreateNewMutationProb  float64 `yaml:"create_new_mutation_prob"`
	MaxMutationIterations  int     `yaml:"max_mutation_iterations"`
	MaxCrossoverIterations int     `yaml:"max_crossover_iterations"`
	MaxSetSize             int     `yaml:"max_set_size"`
	// AngleEpsilon is the tolerance in radians for parallel planes.
	AngleEpsilon float64 `yaml:"angle_epsilon"`
}

// Creator builds, mutates and crosses primitive sets over a fixed set of
// manifolds. It implements ga.Creator and is not safe for concurrent use.
type Creator struct {
	ms    []*Manifold
	cfg   CreatorConfig
	types []Type
	rng   *rand.Rand
}

// NewCreator returns a creator drawing primitives from ms. Boxes are built
// when ms holds planes and cylinders when it holds cylinders.
func NewCreator(ms []*Manifold, cfg CreatorConfig, rng *rand.Rand) *Creator {
	if rng == nil {
		panic("nil argument to NewCreator")
	}
	c := &Creator{ms: ms, cfg: cfg, rng: rng}
	for _, m := range ms {
		var t Type
		switch m.Type {
		case ManifoldPlane:
			t = Box
		case ManifoldCylinder:
			t = Cylinder
		default:
			continue
		}
		if !slices.Contains(c.types, t) {
			c.types = append(c.types, t)
		}
	}
	return c
}

// Create returns a set of between 1 and MaxSetSize primitives. The set is
// smaller, possibly empty, when primitives fail to build repeatedly.
func (c *Creator) Create() Set {
	size := 1 + c.rng.IntN(max(c.cfg.MaxSetSize, 1))
	ps := make(Set, 0, size)
	for attempts := 0; len(ps) < size && attempts < size*maxCreateAttempts; attempts++ {
		if p := c.createPrimitive(); !p.IsNone() {
			ps = append(ps, p)
		}
	}
	return ps
}

// Mutate returns a new set with probability CreateNewMutationProb or when ps
// is empty. Otherwise up to MaxMutationIterations primitives of a copy of ps
// are rebuilt or replaced. Failed constructions keep the old primitive.
func (c *Creator) Mutate(ps Set) Set {
	if len(ps) == 0 || c.rng.Float64() < c.cfg.CreateNewMutationProb {
		return c.Create()
	}
	out := slices.Clone(ps)
	for range 1 + c.rng.IntN(max(c.cfg.MaxMutationIterations, 1)) {
		i := c.rng.IntN(len(out))
		var p Primitive
		if c.rng.Float64() < c.cfg.IntraMutationProb {
			p = c.mutatePrimitive(out[i])
		} else {
			p = c.createPrimitive()
		}
		if !p.IsNone() {
			out[i] = p
		}
	}
	return out
}

// Crossover exchanges randomly chosen primitives between copies of a and b.
func (c *Creator) Crossover(a, b Set) []Set {
	na, nb := slices.Clone(a), slices.Clone(b)
	for range 1 + c.rng.IntN(max(c.cfg.MaxCrossoverIterations, 1)) {
		if c.rng.Float64() < c.cfg.IntraCrossoverProb || len(a) == 0 || len(b) == 0 {
			continue
		}
		i, j := c.rng.IntN(len(a)), c.rng.IntN(len(b))
		na[i], nb[j] = nb[j], na[i]
	}
	return []Set{na, nb}
}

func (c *Creator) createPrimitive() Primitive {
	if len(c.types) == 0 {
		return Primitive{}
	}
	switch c.types[c.rng.IntN(len(c.types))] {
	case Box:
		return c.createBox()
	case Cylinder:
		cyl := c.manifold(ManifoldCylinder, r3.Vec{}, nil, true)
		if cyl == nil {
			return Primitive{}
		}
		return NewCylinder(cyl, c.capPlanes(cyl))
	}
	return Primitive{}
}

func (c *Creator) createBox() Primitive {
	first := c.manifold(ManifoldPlane, r3.Vec{}, nil, true)
	if first == nil {
		return Primitive{}
	}
	planes := []*Manifold{first}
	for i := 1; i < 6; i++ {
		var next *Manifold
		if i%2 == 1 {
			next = c.parallelPlane(planes[i-1], planes)
		} else {
			next = c.perpendicularPlane(planes)
		}
		if next == nil {
			return Primitive{}
		}
		planes = append(planes, next)
	}
	return NewBox(planes)
}

// capPlanes draws 0 to 2 planes perpendicular to the axis of cyl.
func (c *Creator) capPlanes(cyl *Manifold) []*Manifold {
	var planes []*Manifold
	for range c.rng.IntN(3) {
		if p := c.manifold(ManifoldPlane, cyl.N, planes, false); p != nil {
			planes = append(planes, p)
		}
	}
	return planes
}

func (c *Creator) mutatePrimitive(p Primitive) Primitive {
	switch p.Type {
	case Box:
		if len(p.Manifolds) != 6 {
			return Primitive{}
		}
		pair := 2 * c.rng.IntN(3)
		np := c.parallelPlane(p.Manifolds[pair], p.Manifolds)
		if np == nil {
			return p
		}
		planes := slices.Clone(p.Manifolds)
		planes[pair+1] = np
		return NewBox(planes)
	case Cylinder:
		cyl := p.Manifolds[0]
		return NewCylinder(cyl, c.capPlanes(cyl))
	}
	return p
}

// manifold returns a random unused manifold of type t whose normal is
// parallel or antiparallel to dir within AngleEpsilon, or nil.
func (c *Creator) manifold(t ManifoldType, dir r3.Vec, used []*Manifold, anyDir bool) *Manifold {
	cosEps := math.Cos(c.cfg.AngleEpsilon)
	var candidates []*Manifold
	for _, m := range c.ms {
		if m.Type != t || containsManifold(used, m) {
			continue
		}
		if anyDir || math.Abs(r3.Dot(r3.Unit(dir), r3.Unit(m.N))) > cosEps {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[c.rng.IntN(len(candidates))]
}

func (c *Creator) parallelPlane(plane *Manifold, used []*Manifold) *Manifold {
	return c.manifold(ManifoldPlane, plane.N, used, false)
}

// perpendicularPlane returns a random unused plane not parallel to any of
// planes, or nil.
func (c *Creator) perpendicularPlane(planes []*Manifold) *Manifold {
	cosEps := math.Cos(c.cfg.AngleEpsilon)
	var candidates []*Manifold
outer:
	for _, m := range c.ms {
		if m.Type != ManifoldPlane || containsManifold(planes, m) {
			continue
		}
		for _, p := range planes {
			if math.Abs(r3.Dot(r3.Unit(p.N), r3.Unit(m.N))) >= cosEps {
				continue outer
			}
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[c.rng.IntN(len(candidates))]
}

// containsManifold matches by name since box construction copies planes.
func containsManifold(ms []*Manifold, m *Manifold) bool {
	for _, o := range ms {
		if o == m || o.Name == m.Name {
			return true
		}
	}
	return false
}
