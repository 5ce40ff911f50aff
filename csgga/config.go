package csgga

import (
	"log/slog"
	"math"

	"github.com/soypat/csg"
	"github.com/soypat/csg/ga"
	"github.com/soypat/csg/params"
)

// Config holds every tunable of the CSG tree GA.
type Config struct {
	GA          ga.Params `yaml:"ga"`
	TournamentK int       `yaml:"tournament_k"`

	MaxIterations              int     `yaml:"max_iterations"`
	MaxIterationsWithoutChange int     `yaml:"max_iterations_without_change"`
	ChangeDelta                float64 `yaml:"change_delta"`

	MaxTreeDepth                      int     `yaml:"max_tree_depth"`
	SubtreeProb                       float64 `yaml:"subtree_prob"`
	CreateNewRandomProb               float64 `yaml:"create_new_random_prob"`
	SimpleCrossoverProb               float64 `yaml:"simple_crossover_prob"`
	InitializeWithUnionOfAllFunctions bool    `yaml:"initialize_with_union_of_all_functions"`

	// Alpha is the normal deviation tolerance in radians.
	Alpha float64 `yaml:"alpha"`
	// Epsilon is the distance tolerance relative to the point cloud diagonal.
	Epsilon float64 `yaml:"epsilon"`
	// Lambda weighs the tree size penalty. When AutoLambda is set it is
	// replaced by LambdaFromPoints of the ranked functions.
	Lambda     float64 `yaml:"lambda"`
	AutoLambda bool    `yaml:"auto_lambda"`

	OptimizationProb    float64          `yaml:"optimization_prob"`
	PreOptimizationProb float64          `yaml:"pre_optimization_prob"`
	OptimizationType    OptimizationType `yaml:"-"`
	RandomIterations    int              `yaml:"random_iterations"`
	NodeSelectionTries  int              `yaml:"node_selection_tries"`
	MaxFunctions        int              `yaml:"max_functions"`

	// StatsFile receives the per iteration statistics table when not empty.
	StatsFile string `yaml:"stats_file"`
	// Seed seeds the run's random sources. Zero draws a random seed.
	Seed   uint64       `yaml:"seed"`
	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the configuration used when no parameters are given.
func DefaultConfig() Config {
	return Config{
		GA:                         ga.DefaultParams(),
		TournamentK:                2,
		MaxIterations:              500,
		MaxIterationsWithoutChange: 200,
		ChangeDelta:                0.01,
		MaxTreeDepth:               10,
		SubtreeProb:                0.7,
		CreateNewRandomProb:        0.5,
		SimpleCrossoverProb:        1,
		Alpha:                      35 * math.Pi / 180,
		Epsilon:                    0.01,
		AutoLambda:                 true,
		NodeSelectionTries:         10,
		MaxFunctions:               4,
		RandomIterations:           1,
	}
}

// FromParams overlays p on DefaultConfig. Ranking/Alpha is read in degrees
// and an explicit Ranking/Lambda disables AutoLambda.
func FromParams(p params.Params) Config {
	c := DefaultConfig()
	c.GA.PopulationSize = p.Int("GA", "PopulationSize", c.GA.PopulationSize)
	c.GA.NumBestParents = p.Int("GA", "NumBestParents", c.GA.NumBestParents)
	c.GA.MutationRate = p.Float("GA", "MutationRate", c.GA.MutationRate)
	c.GA.CrossoverRate = p.Float("GA", "CrossoverRate", c.GA.CrossoverRate)
	c.GA.InParallel = p.Bool("GA", "InParallel", c.GA.InParallel)
	c.GA.Workers = p.Int("GA", "Workers", c.GA.Workers)
	c.GA.UseCaching = p.Bool("GA", "UseCaching", c.GA.UseCaching)
	c.SimpleCrossoverProb = p.Float("GA", "SimpleCrossoverRate", c.SimpleCrossoverProb)
	c.InitializeWithUnionOfAllFunctions = p.Bool("GA", "InitializeWithUnionOfAllFunctions", false)
	c.Seed = uint64(p.Int("GA", "Seed", 0))

	c.TournamentK = p.Int("Selection", "TournamentK", c.TournamentK)

	c.MaxIterations = p.Int("StopCriterion", "MaxIterations", c.MaxIterations)
	c.MaxIterationsWithoutChange = p.Int("StopCriterion", "MaxIterationsWithoutChange", c.MaxIterationsWithoutChange)
	c.ChangeDelta = p.Float("StopCriterion", "ChangeDelta", c.ChangeDelta)

	c.MaxTreeDepth = p.Int("Creation", "MaxTreeDepth", c.MaxTreeDepth)
	c.CreateNewRandomProb = p.Float("Creation", "CreateNewRandomProb", c.CreateNewRandomProb)
	c.SubtreeProb = p.Float("Creation", "SubtreeProb", c.SubtreeProb)

	c.Alpha = p.Float("Ranking", "Alpha", 35) * math.Pi / 180
	c.Epsilon = p.Float("Ranking", "Epsilon", c.Epsilon)
	if p.Has("Ranking", "Lambda") {
		c.Lambda = p.Float("Ranking", "Lambda", 0)
		c.AutoLambda = false
	}

	c.NodeSelectionTries = p.Int("Optimization", "NodeSelectionTries", c.NodeSelectionTries)
	c.MaxFunctions = p.Int("Optimization", "MaxFunctions", c.MaxFunctions)
	c.RandomIterations = p.Int("Optimization", "RandomIterations", c.RandomIterations)
	c.OptimizationProb = p.Float("Optimization", "OptimizationProb", 0)
	c.PreOptimizationProb = p.Float("Optimization", "PreOptimizationProb", 0)
	c.OptimizationType = ParseOptimizationType(p.String("Optimization", "OptimizationType", "traverse"))

	c.StatsFile = p.String("Statistics", "File", "")
	return c
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// lambdaFor returns the size penalty weight for ranking fs.
func (c Config) lambdaFor(fs []csg.Function) float64 {
	if c.AutoLambda {
		return LambdaFromPoints(fs)
	}
	return c.Lambda
}
