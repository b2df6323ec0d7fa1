// Package config loads and validates arena settings from defaults, an
// optional YAML file, and ARENA_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arenakit/arena/pkg/errors"
)

// Voting method names recognized in configuration.
const (
	MethodSingleChoice = "single-choice"
	MethodRankedChoice = "ranked-choice"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Simulation SimulationConfig `koanf:"simulation"`
	Voting     VotingConfig     `koanf:"voting"`
	Evolution  EvolutionConfig  `koanf:"evolution"`
	Memory     MemoryConfig     `koanf:"memory"`
	Store      StoreConfig      `koanf:"store"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider       string  `koanf:"provider"` // ollama, mock
	Model          string  `koanf:"model"`
	BaseURL        string  `koanf:"base_url"`
	TimeoutSeconds int     `koanf:"timeout_seconds"`
	MaxRetries     int     `koanf:"max_retries"`
	Temperature    float64 `koanf:"temperature"`
}

type SimulationConfig struct {
	NumAgents int      `koanf:"num_agents"`
	NumRounds int      `koanf:"num_rounds"`
	MaxAgents int      `koanf:"max_agents"`
	Seed      int64    `koanf:"seed"` // 0 means derive from wall clock
	Questions []string `koanf:"questions"`
}

type VotingConfig struct {
	Method          string `koanf:"method"` // single-choice, ranked-choice
	AllowSelfVoting bool   `koanf:"allow_self_voting"`
}

type EvolutionConfig struct {
	MutationRate   float64  `koanf:"mutation_rate"`
	MutationTraits []string `koanf:"mutation_traits"`
}

type MemoryConfig struct {
	Cap int `koanf:"cap"`
}

type StoreConfig struct {
	Path string `koanf:"path"` // sqlite database file, empty disables persistence
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// PerCallTimeout returns the adapter per-call timeout as a duration.
func (c LLMConfig) PerCallTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultQuestions seed the round question list when none are configured.
var DefaultQuestions = []string{
	"What is the most important quality for survival in a competitive environment?",
	"How should AI systems make ethical decisions?",
	"What is the meaning of intelligence?",
	"How can we solve climate change effectively?",
	"What makes a good leader?",
	"Should AI have rights?",
	"What is the future of human-AI collaboration?",
	"How do we balance innovation with safety?",
}

// DefaultMutationTraits seed the trait pool drawn from during evolution.
var DefaultMutationTraits = []string{
	"more analytical",
	"more creative",
	"more skeptical",
	"more optimistic",
	"more concise",
	"more detailed",
	"more humorous",
	"more serious",
	"more technical",
	"more philosophical",
	"more practical",
	"more abstract",
	"more empathetic",
	"more logical",
	"more intuitive",
}

// Load reads configuration from defaults, the optional YAML file at path,
// and ARENA_-prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "llama2")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("llm.timeout_seconds", 120)
	k.Set("llm.max_retries", 1)
	k.Set("llm.temperature", 0.7)
	k.Set("simulation.num_agents", 8)
	k.Set("simulation.num_rounds", 8)
	k.Set("simulation.max_agents", 0)
	k.Set("simulation.questions", DefaultQuestions)
	k.Set("voting.method", MethodSingleChoice)
	k.Set("voting.allow_self_voting", false)
	k.Set("evolution.mutation_rate", 0.3)
	k.Set("evolution.mutation_traits", DefaultMutationTraits)
	k.Set("memory.cap", 10)
	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (ARENA_VOTING_METHOD -> voting.method)
	if err := k.Load(env.Provider("ARENA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ARENA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Simulation.MaxAgents == 0 {
		cfg.Simulation.MaxAgents = cfg.Simulation.NumAgents
	}

	return &cfg, nil
}

// Validate rejects configurations that could not run a single round. It is
// called before any agent is created; nothing is partially executed on error.
func (c *Config) Validate() error {
	fail := func(msg string) *errors.Error {
		return errors.New(errors.CodeInvalidConfig, msg, nil)
	}

	if c.Simulation.NumAgents < 2 {
		return fail("simulation.num_agents must be at least 2").WithContext("num_agents", c.Simulation.NumAgents)
	}
	if c.Simulation.NumRounds < 1 {
		return fail("simulation.num_rounds must be at least 1").WithContext("num_rounds", c.Simulation.NumRounds)
	}
	if c.Simulation.MaxAgents < c.Simulation.NumAgents {
		return fail("simulation.max_agents must be >= num_agents").WithContext("max_agents", c.Simulation.MaxAgents)
	}
	if len(c.Simulation.Questions) == 0 {
		return fail("simulation.questions must not be empty")
	}
	switch c.Voting.Method {
	case MethodSingleChoice, MethodRankedChoice:
	default:
		return fail("voting.method must be single-choice or ranked-choice").WithContext("method", c.Voting.Method)
	}
	if c.Evolution.MutationRate < 0 || c.Evolution.MutationRate > 1 {
		return fail("evolution.mutation_rate must be within [0,1]").WithContext("mutation_rate", c.Evolution.MutationRate)
	}
	if len(c.Evolution.MutationTraits) == 0 {
		return fail("evolution.mutation_traits must not be empty")
	}
	if c.Memory.Cap < 0 {
		return fail("memory.cap must be >= 0").WithContext("cap", c.Memory.Cap)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fail("llm.timeout_seconds must be > 0").WithContext("timeout_seconds", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxRetries < 1 {
		return fail("llm.max_retries must be >= 1").WithContext("max_retries", c.LLM.MaxRetries)
	}
	return nil
}
