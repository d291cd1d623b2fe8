// Package config loads run configuration from YAML and turns it into the
// tree, graph and evolution parameter structs.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"gpr/internal/evo"
	"gpr/internal/graph"
	"gpr/internal/instr"
	"gpr/internal/model"
	"gpr/internal/tree"
)

var ErrUnknownEncoding = errors.New("unknown encoding")

// Config is the flat run parameter record.
type Config struct {
	Encoding       string `yaml:"encoding"`
	InstructionSet string `yaml:"instruction_set"`
	Seed           uint32 `yaml:"seed"`
	Generations    int    `yaml:"generations"`

	// EquationOnly rejects instruction sets whose programs cannot be read
	// back as a plain equation.
	EquationOnly bool `yaml:"equation_only"`

	Sensors     int     `yaml:"sensors"`
	Actuators   int     `yaml:"actuators"`
	MinConstant float64 `yaml:"min_constant"`
	MaxConstant float64 `yaml:"max_constant"`
	Integer     bool    `yaml:"integer"`
	ADFProb     float64 `yaml:"adf_prob"`

	Tree  TreeConfig  `yaml:"tree"`
	Graph GraphConfig `yaml:"graph"`

	Evolution EvolutionConfig `yaml:"evolution"`
	Store     StoreConfig     `yaml:"store"`
}

type TreeConfig struct {
	MaxDepth  int `yaml:"max_depth"`
	Registers int `yaml:"registers"`
	ADFs      int `yaml:"adfs"`
}

type GraphConfig struct {
	Rows               int     `yaml:"rows"`
	Columns            int     `yaml:"columns"`
	ConnectionsPerGene int     `yaml:"connections_per_gene"`
	ADFModules         int     `yaml:"adf_modules"`
	Chromosomes        int     `yaml:"chromosomes"`
	Dropout            float64 `yaml:"dropout"`
	Dynamic            bool    `yaml:"dynamic"`
	CompressDepth      int     `yaml:"compress_depth"`
}

type EvolutionConfig struct {
	Islands           int     `yaml:"islands"`
	PopulationSize    int     `yaml:"population_size"`
	MigrationInterval int     `yaml:"migration_interval"`
	Elitism           float64 `yaml:"elitism"`
	MutationProb      float64 `yaml:"mutation_prob"`
	Trials            int     `yaml:"trials"`
	Workers           int     `yaml:"workers"`
	ForceEvaluate     bool    `yaml:"force_evaluate"`
	Selection         string  `yaml:"selection"`
	Postprocessor     string  `yaml:"fitness_postprocessor"`
	MutationPolicy    string  `yaml:"mutation_policy"`
}

type StoreConfig struct {
	Backend      string `yaml:"backend"`
	SQLitePath   string `yaml:"sqlite_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// Default returns a small tree configuration that runs out of the box.
func Default() Config {
	return Config{
		Encoding:       string(model.EncodingTree),
		InstructionSet: "value,add,subtract,multiply,divide,get",
		Seed:           1,
		Generations:    50,
		Sensors:        1,
		Actuators:      1,
		MinConstant:    -1,
		MaxConstant:    1,
		ADFProb:        tree.DefaultADFProb,
		Tree: TreeConfig{
			MaxDepth:  5,
			Registers: 0,
			ADFs:      1,
		},
		Graph: GraphConfig{
			Rows:               4,
			Columns:            8,
			ConnectionsPerGene: 2,
			ADFModules:         2,
			Chromosomes:        1,
		},
		Evolution: EvolutionConfig{
			Islands:           4,
			PopulationSize:    32,
			MigrationInterval: evo.DefaultMigrationInterval,
			Elitism:           evo.DefaultElitism,
			MutationProb:      0.1,
			Trials:            1,
			Workers:           runtime.NumCPU(),
			Selection:         "elite",
			Postprocessor:     "none",
			MutationPolicy:    "diversity_adaptive",
		},
		Store: StoreConfig{
			Backend:      "memory",
			ArtifactsDir: "runs",
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}

// Normalize applies the documented clamps. Out of range elitism resets to
// the default rather than saturating.
func (c Config) Normalize() Config {
	c.Encoding = strings.ToLower(strings.TrimSpace(c.Encoding))
	if c.Encoding == "" {
		c.Encoding = string(model.EncodingTree)
	}
	if c.Evolution.Elitism < evo.MinElitism || c.Evolution.Elitism > evo.MaxElitism {
		c.Evolution.Elitism = evo.DefaultElitism
	}
	if c.Evolution.Workers <= 0 {
		c.Evolution.Workers = runtime.NumCPU()
	}
	if c.Evolution.MigrationInterval <= 0 {
		c.Evolution.MigrationInterval = evo.DefaultMigrationInterval
	}
	if c.Evolution.Islands <= 0 {
		c.Evolution.Islands = 1
	}
	if c.Evolution.Trials <= 0 {
		c.Evolution.Trials = 1
	}
	if c.MinConstant > c.MaxConstant {
		c.MinConstant, c.MaxConstant = c.MaxConstant, c.MinConstant
	}
	return c
}

func (c Config) Validate() error {
	switch model.Encoding(c.Encoding) {
	case model.EncodingTree, model.EncodingGraph:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEncoding, c.Encoding)
	}
	if c.Sensors <= 0 || c.Actuators <= 0 {
		return fmt.Errorf("sensors and actuators must be > 0")
	}
	if c.Evolution.PopulationSize < 2 {
		return fmt.Errorf("population size %d: %w", c.Evolution.PopulationSize, evo.ErrPopulationTooSmall)
	}
	if c.Generations < 0 {
		return fmt.Errorf("generations must be >= 0")
	}
	set, err := c.Set()
	if err != nil {
		return err
	}
	if c.EquationOnly {
		if err := instr.ValidateEquation(set); err != nil {
			return fmt.Errorf("equation_only: %w", err)
		}
	}
	if _, err := c.PopulationParams(); err != nil {
		return err
	}
	if model.Encoding(c.Encoding) == model.EncodingGraph {
		if err := c.GraphConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Set resolves InstructionSet as a preset name or a comma separated tag
// list.
func (c Config) Set() (instr.Set, error) {
	name := c.InstructionSet
	if strings.TrimSpace(name) == "" {
		name = "default"
	}
	return instr.ParseSet(name)
}

func (c Config) TreeConfig() tree.Config {
	set, _ := c.Set()
	return tree.Config{
		Sensors:     c.Sensors,
		Actuators:   c.Actuators,
		Registers:   c.Tree.Registers,
		MaxDepth:    c.Tree.MaxDepth,
		ADFs:        c.Tree.ADFs,
		Set:         set,
		MinConstant: c.MinConstant,
		MaxConstant: c.MaxConstant,
		Integer:     c.Integer,
		ADFProb:     c.ADFProb,
	}
}

func (c Config) GraphConfig() graph.Config {
	set, _ := c.Set()
	return graph.Config{
		Rows:               c.Graph.Rows,
		Columns:            c.Graph.Columns,
		Sensors:            c.Sensors,
		Actuators:          c.Actuators,
		ConnectionsPerGene: c.Graph.ConnectionsPerGene,
		ADFModules:         c.Graph.ADFModules,
		Chromosomes:        c.Graph.Chromosomes,
		MinConstant:        c.MinConstant,
		MaxConstant:        c.MaxConstant,
		Integer:            c.Integer,
		Set:                set,
		ADFProb:            c.ADFProb,
	}
}

func (c Config) CompressOptions() graph.CompressOptions {
	return graph.CompressOptions{MaxDepth: c.Graph.CompressDepth}
}

// PopulationParams resolves the strategy names against the evo registries.
func (c Config) PopulationParams() (evo.Params, error) {
	e := c.Evolution
	selector, err := evo.ResolveSelector(e.Selection)
	if err != nil {
		return evo.Params{}, fmt.Errorf("selection: %w", err)
	}
	post, err := evo.ResolvePostprocessor(e.Postprocessor)
	if err != nil {
		return evo.Params{}, fmt.Errorf("fitness postprocessor: %w", err)
	}
	policy, err := evo.ResolveMutationPolicy(e.MutationPolicy)
	if err != nil {
		return evo.Params{}, fmt.Errorf("mutation policy: %w", err)
	}
	return evo.Params{
		Size:          e.PopulationSize,
		Elitism:       e.Elitism,
		MutationProb:  e.MutationProb,
		Trials:        e.Trials,
		Workers:       e.Workers,
		ForceEvaluate: e.ForceEvaluate,
		Selector:      selector,
		Postprocessor: post,
		Policy:        policy,
	}, nil
}

func (c Config) SystemConfig() (evo.SystemConfig, error) {
	params, err := c.PopulationParams()
	if err != nil {
		return evo.SystemConfig{}, err
	}
	return evo.SystemConfig{
		Islands:           c.Evolution.Islands,
		MigrationInterval: c.Evolution.MigrationInterval,
		Population:        params,
	}, nil
}
