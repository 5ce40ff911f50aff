package primitives

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/soypat/csg/ga"
	"github.com/soypat/csg/params"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("csg.primitives")

// Config configures Extract.
type Config struct {
	GA      ga.Params     `yaml:"ga"`
	Creator CreatorConfig `yaml:"creator"`

	TournamentK                int     `yaml:"tournament_k"`
	MaxIterations              int     `yaml:"max_iterations"`
	MaxIterationsWithoutChange int     `yaml:"max_iterations_without_change"`
	ChangeDelta                float64 `yaml:"change_delta"`
	// DistanceEpsilon is the largest distance of a sample point to the
	// surface of a set for the point to count as explained.
	DistanceEpsilon float64 `yaml:"distance_epsilon"`

	Seed   uint64       `yaml:"seed"`
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration used when no parameters are given.
func DefaultConfig() Config {
	p := ga.DefaultParams()
	p.MutationRate = 0.7
	p.CrossoverRate = 0.7
	p.InParallel = true
	p.UseCaching = false
	return Config{
		GA: p,
		Creator: CreatorConfig{
			IntraMutationProb:      0.5,
			CreateNewMutationProb:  0.3,
			MaxMutationIterations:  1,
			MaxCrossoverIterations: 1,
			MaxSetSize:             10,
			AngleEpsilon:           20 * math.Pi / 180,
		},
		TournamentK:                2,
		MaxIterations:              1000,
		MaxIterationsWithoutChange: 50,
		ChangeDelta:                0.001,
		DistanceEpsilon:            0.2,
	}
}

// ConfigFromParams overlays the Extraction section of p on DefaultConfig.
// AngleEpsilon is read in degrees.
func ConfigFromParams(p params.Params) Config {
	c := DefaultConfig()
	const sec = "Extraction"
	c.GA.PopulationSize = p.Int(sec, "PopulationSize", c.GA.PopulationSize)
	c.GA.InParallel = p.Bool(sec, "InParallel", c.GA.InParallel)
	c.MaxIterations = p.Int(sec, "MaxIterations", c.MaxIterations)
	c.MaxIterationsWithoutChange = p.Int(sec, "MaxIterationsWithoutChange", c.MaxIterationsWithoutChange)
	c.Creator.MaxSetSize = p.Int(sec, "MaxSetSize", c.Creator.MaxSetSize)
	c.Creator.AngleEpsilon = p.Float(sec, "AngleEpsilon", 20) * math.Pi / 180
	c.DistanceEpsilon = p.Float(sec, "DistanceEpsilon", c.DistanceEpsilon)
	c.Seed = uint64(p.Int(sec, "Seed", 0))
	return c
}

// Result is the outcome of Extract.
type Result struct {
	// Primitives holds the static spheres followed by the best set found.
	Primitives Set
	Rank       float64
	Manifolds  []*Manifold
	Statistics ga.Statistics
}

// Extract searches for the primitive set best explaining the points of ms.
// Sphere manifolds become static primitives present in every set. The
// remaining planes and cylinders feed the search, whose result is the best
// set ranked during the whole run.
func Extract(ctx context.Context, ms []*Manifold, cfg Config) (Result, error) {
	if len(ms) == 0 {
		return Result{}, errors.New("no manifolds to Extract")
	}
	ctx, span := tracer.Start(ctx, "primitives.Extract", trace.WithAttributes(attribute.Int("manifolds", len(ms))))
	defer span.End()
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	static, rest := splitStatic(ms)
	res := Result{Primitives: static, Manifolds: ms}
	if len(rest) == 0 {
		log.Info("only static primitives", slog.Int("spheres", len(static)))
		return res, nil
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, ^seed))
	ranker := NewRanker(ms, static, cfg.DistanceEpsilon, cfg.Creator.MaxSetSize)
	g := &ga.GA[Set]{
		Creator:  NewCreator(rest, cfg.Creator, rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))),
		Ranker:   ranker,
		Selector: &ga.TournamentSelector[Set]{K: cfg.TournamentK, Rng: rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))},
		Stop: &ga.NoFitnessIncreaseStopCriterion{
			MaxIterationsWithoutChange: cfg.MaxIterationsWithoutChange,
			Delta:                      cfg.ChangeDelta,
			MaxIterations:              cfg.MaxIterations,
		},
		Manager:     PopulationManager{},
		Fingerprint: Set.Key,
		Rng:         rng,
		Logger:      log,
	}
	run := g.RunAsync(ctx, cfg.GA).Wait()
	best, rank := ranker.Best()
	res.Primitives = append(append(Set{}, static...), best...)
	res.Rank = rank
	res.Statistics = run.Statistics
	span.SetAttributes(attribute.Float64("rank", rank), attribute.Int("primitives", len(res.Primitives)))
	log.Info("primitive extraction done", slog.String("run", run.RunID.String()),
		slog.Int("primitives", len(res.Primitives)), slog.Float64("rank", rank))
	return res, ctx.Err()
}
