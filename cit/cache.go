package cit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/soypat/csg"
	"github.com/soypat/csg/pointcloud"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	emptySetLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csg_cit_empty_set_lookups_total",
		Help: "Empty set tests by cache outcome.",
	}, []string{"result"})

	distanceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csg_cit_distance_lookups_total",
		Help: "Primitive distance evaluations by cache outcome.",
	}, []string{"result"})
)

// emptySetKey identifies a test by node structure and by what it sampled:
// a reference cloud, or a grid spacing when no cloud is given.
type emptySetKey struct {
	hash uint64
	sgs  float64
	refs *mat.Dense
}

func newEmptySetKey(n *csg.Node, sgs float64, refs pointcloud.Cloud) emptySetKey {
	if refs.Len() > 0 {
		return emptySetKey{hash: n.Hash(), refs: refs.Matrix()}
	}
	return emptySetKey{hash: n.Hash(), sgs: sgs}
}

// EmptySetCache memoizes empty set test results by structural hash of the
// tested node, the grid spacing and the reference cloud. Reference clouds
// are told apart by identity and must not change while cached. It is safe for
// concurrent use. The zero value is not usable, use NewEmptySetCache.
type EmptySetCache struct {
	mu    sync.Mutex
	cache map[emptySetKey]bool
}

// NewEmptySetCache returns an empty cache.
func NewEmptySetCache() *EmptySetCache {
	return &EmptySetCache{cache: make(map[emptySetKey]bool)}
}

// Len returns the number of cached results.
func (c *EmptySetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *EmptySetCache) read(k emptySetKey) (empty, found bool) {
	c.mu.Lock()
	empty, found = c.cache[k]
	c.mu.Unlock()
	if found {
		emptySetLookups.WithLabelValues("hit").Inc()
	} else {
		emptySetLookups.WithLabelValues("miss").Inc()
	}
	return empty, found
}

func (c *EmptySetCache) write(k emptySetKey, empty bool) {
	c.mu.Lock()
	c.cache[k] = empty
	c.mu.Unlock()
}

// cachedFunction evaluates a function via a distance cache keyed by exact
// sample position. Repeated empty set tests over the same grid hit the
// cache for every primitive evaluation.
type cachedFunction struct {
	csg.Function
	mu    sync.Mutex
	cache map[r3.Vec]float64
}

func newCachedFunction(f csg.Function) *cachedFunction {
	return &cachedFunction{Function: f, cache: make(map[r3.Vec]float64)}
}

// SignedDistance returns the cached distance at p, evaluating the wrapped
// function on a miss.
func (c *cachedFunction) SignedDistance(p r3.Vec) float64 {
	c.mu.Lock()
	d, found := c.cache[p]
	c.mu.Unlock()
	if found {
		distanceLookups.WithLabelValues("hit").Inc()
		return d
	}
	distanceLookups.WithLabelValues("miss").Inc()
	d = c.Function.SignedDistance(p)
	c.mu.Lock()
	c.cache[p] = d
	c.mu.Unlock()
	return d
}

func cacheFunctions(fs []csg.Function) []csg.Function {
	cached := make([]csg.Function, len(fs))
	for i, f := range fs {
		cached[i] = newCachedFunction(f)
	}
	return cached
}
