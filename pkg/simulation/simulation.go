// Package simulation drives the tournament: it owns the live population,
// runs the answer/vote/evolve cycle once per round and accumulates the
// run's history.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/arenakit/arena/pkg/agent"
	"github.com/arenakit/arena/pkg/config"
	"github.com/arenakit/arena/pkg/errors"
	"github.com/arenakit/arena/pkg/evolution"
	"github.com/arenakit/arena/pkg/llm"
	"github.com/arenakit/arena/pkg/telemetry"
	"github.com/arenakit/arena/pkg/voting"
)

// Status is the simulation lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RoundResult is the immutable record of one completed round.
type RoundResult struct {
	Round        int                 `json:"round"`
	Question     string              `json:"question"`
	Answers      map[string]string   `json:"answers"`
	Votes        map[string][]string `json:"votes"`
	Tally        map[string]int      `json:"tally"`
	Abstentions  int                 `json:"abstentions"`
	WinnerID     string              `json:"winner_id"`
	EliminatedID string              `json:"eliminated_id"`
	NewAgent     agent.Snapshot      `json:"new_agent"`
	Mutation     string              `json:"mutation,omitempty"`
}

// Snapshot is the serializable view of the simulation handed to callers
// and the persistence layer.
type Snapshot struct {
	Status     Status                    `json:"status"`
	Rounds     []RoundResult             `json:"rounds"`
	Standings  []agent.Snapshot          `json:"standings"` // live population, best first
	AllAgents  map[string]agent.Snapshot `json:"all_agents"`
	AdapterUse llm.Stats                 `json:"adapter_use"`
}

// Simulation owns one run. It is not safe for concurrent use; phase
// concurrency happens inside a round while the population stays untouched.
type Simulation struct {
	cfg       *config.Config
	gen       llm.TextGenerator
	voting    *voting.Engine
	evolution *evolution.Engine
	questions QuestionSource
	logger    *slog.Logger
	metrics   *telemetry.TournamentMetrics
	rng       *rand.Rand

	nextID     int
	status     Status
	population []*agent.Agent
	allAgents  map[string]*agent.Agent
	history    []RoundResult
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulation) { s.logger = logger }
}

// WithMetrics attaches tournament metrics; nil disables recording.
func WithMetrics(m *telemetry.TournamentMetrics) Option {
	return func(s *Simulation) { s.metrics = m }
}

// New assembles a simulation from a validated config. roster supplies the
// founding personalities; questions supplies one question per round. The
// random source is seeded from cfg.Simulation.Seed, or from the clock when
// the seed is zero.
func New(cfg *config.Config, roster []agent.Personality, gen llm.TextGenerator, questions QuestionSource, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulation{
		cfg:       cfg,
		gen:       gen,
		questions: questions,
		logger:    slog.Default(),
		rng:       rand.New(rand.NewSource(seed)),
		status:    StatusIdle,
		allAgents: make(map[string]*agent.Agent),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.voting = voting.NewEngine(gen, cfg.LLM.PerCallTimeout(), cfg.Voting.AllowSelfVoting, s.logger)
	s.evolution = evolution.NewEngine(cfg.Evolution.MutationRate, cfg.Evolution.MutationTraits, s.logger)

	for _, p := range agent.Roster(roster, cfg.Simulation.NumAgents) {
		a := agent.New(s.allocateID(), p.Name, p.Personality, cfg.LLM.Model, cfg.Memory.Cap)
		s.population = append(s.population, a)
		s.allAgents[a.ID] = a
	}
	return s, nil
}

// allocateID returns a fresh agent id. Ids are monotonic within a run and
// never reused, so lineage lookups and the lexicographic tie-break stay
// stable under a fixed seed.
func (s *Simulation) allocateID() string {
	s.nextID++
	return fmt.Sprintf("agent-%03d", s.nextID)
}

// Status returns the lifecycle state.
func (s *Simulation) Status() Status {
	return s.status
}

// Run executes all configured rounds. On NoQuorum or an internal invariant
// violation the simulation transitions to failed and the error is returned;
// per-agent backend failures never abort a round.
func (s *Simulation) Run(ctx context.Context) error {
	if s.status != StatusIdle {
		return errors.New(errors.CodeInternal, "simulation already ran", nil).
			WithContext("status", string(s.status))
	}
	s.status = StatusRunning
	s.logger.InfoContext(ctx, "simulation starting",
		slog.Int("agents", len(s.population)),
		slog.Int("rounds", s.cfg.Simulation.NumRounds),
		slog.String("method", s.cfg.Voting.Method))

	for round := 1; round <= s.cfg.Simulation.NumRounds; round++ {
		if err := ctx.Err(); err != nil {
			s.status = StatusFailed
			return errors.New(errors.CodeTimeout, "simulation canceled", err).
				WithContext("round", round)
		}
		if err := s.runRound(ctx, round); err != nil {
			s.status = StatusFailed
			return err
		}
		if n := len(s.population); n < 2 || n > s.cfg.Simulation.MaxAgents {
			s.logger.WarnContext(ctx, "population left the configured bounds, stopping early",
				slog.Int("round", round),
				slog.Int("population", n))
			break
		}
	}

	s.status = StatusCompleted
	s.logger.InfoContext(ctx, "simulation completed",
		slog.Int("rounds", len(s.history)))
	return nil
}

func (s *Simulation) runRound(ctx context.Context, round int) error {
	started := time.Now()

	question, err := s.questions.Next(round)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "round starting",
		slog.Int("round", round),
		slog.String("question", question))

	answers := s.collectAnswers(ctx, question)

	outcome, err := s.voting.CollectVotes(ctx, s.population, question, answers, voting.Method(s.cfg.Voting.Method))
	if err != nil {
		return err
	}
	s.metrics.RecordAbstentions(ctx, int64(outcome.Abstentions))

	// Every ballot's top choice earns one lifetime vote, under both
	// methods. Lifetime totals feed the tie-break and the parent draw.
	for _, choices := range outcome.Votes {
		if len(choices) > 0 {
			if a, ok := s.allAgents[choices[0]]; ok {
				a.VotesReceived++
			}
		}
	}

	for _, a := range s.population {
		if answer := answers[a.ID]; answer != "" {
			a.RecordExchange(round, question, answer)
		}
	}

	res, err := s.evolution.Evolve(s.population, outcome.Ranking, round, s.allocateID(), s.rng)
	if err != nil {
		return err
	}

	before := len(s.population)
	survivors := make([]*agent.Agent, 0, before)
	for _, a := range s.population {
		if a.ID == res.EliminatedID {
			continue
		}
		a.RoundsSurvived++
		survivors = append(survivors, a)
	}
	s.population = append(survivors, res.Child)
	s.allAgents[res.Child.ID] = res.Child

	if len(s.population) != before {
		return errors.New(errors.CodeInvariant, "population size drifted after elimination and birth", nil).
			WithContext("round", round).
			WithContext("before", before).
			WithContext("after", len(s.population))
	}

	s.history = append(s.history, RoundResult{
		Round:        round,
		Question:     question,
		Answers:      answers,
		Votes:        outcome.Votes,
		Tally:        outcome.Tally,
		Abstentions:  outcome.Abstentions,
		WinnerID:     outcome.Winner(),
		EliminatedID: res.EliminatedID,
		NewAgent:     res.Child.Snapshot(),
		Mutation:     res.Mutation,
	})

	s.metrics.RecordRound(ctx, time.Since(started).Seconds())
	s.metrics.RecordElimination(ctx, round)
	s.metrics.RecordPopulation(ctx, int64(len(s.population)))
	s.logger.InfoContext(ctx, "round completed",
		slog.Int("round", round),
		slog.String("eliminated", s.agentName(res.EliminatedID)),
		slog.String("born", res.Child.Name),
		slog.Int("abstentions", outcome.Abstentions))
	return nil
}

// collectAnswers queries every live agent concurrently. A failed call
// degrades to an empty answer for that agent; the phase always completes.
func (s *Simulation) collectAnswers(ctx context.Context, question string) map[string]string {
	results := make([]string, len(s.population))

	var wg sync.WaitGroup
	for i, a := range s.population {
		wg.Add(1)
		go func(i int, a *agent.Agent) {
			defer wg.Done()
			answer, err := s.gen.Generate(ctx, a.AnswerPrompt(question), a.Model, s.cfg.LLM.PerCallTimeout())
			if err != nil {
				s.metrics.RecordAdapterFailure(ctx, string(errors.CodeOf(err)))
				s.logger.WarnContext(ctx, "answer call failed, agent gives no answer",
					slog.String("agent", a.Name),
					slog.String("code", string(errors.CodeOf(err))))
				return
			}
			results[i] = answer
		}(i, a)
	}
	wg.Wait()

	answers := make(map[string]string, len(s.population))
	for i, a := range s.population {
		answers[a.ID] = results[i]
	}
	return answers
}

// Standings returns the live population best first: most lifetime votes
// received wins, with the elimination tie-break applied in reverse.
func (s *Simulation) Standings() []agent.Snapshot {
	tally := make(map[string]int, len(s.population))
	for _, a := range s.population {
		tally[a.ID] = a.VotesReceived
	}
	ranked := voting.Rank(s.population, tally)

	out := make([]agent.Snapshot, 0, len(ranked))
	for _, id := range ranked {
		out = append(out, s.allAgents[id].Snapshot())
	}
	return out
}

// History returns the recorded rounds in order.
func (s *Simulation) History() []RoundResult {
	out := make([]RoundResult, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot returns the full serializable state of the run.
func (s *Simulation) Snapshot() *Snapshot {
	all := make(map[string]agent.Snapshot, len(s.allAgents))
	for id, a := range s.allAgents {
		all[id] = a.Snapshot()
	}
	snap := &Snapshot{
		Status:    s.status,
		Rounds:    s.History(),
		Standings: s.Standings(),
		AllAgents: all,
	}
	if g, ok := s.gen.(*llm.Generator); ok {
		snap.AdapterUse = g.Stats()
	}
	return snap
}

// Lineage walks an agent's ancestry, starting at the agent itself and
// ending at its generation-zero founder.
func (s *Simulation) Lineage(id string) []agent.Snapshot {
	var out []agent.Snapshot
	for id != "" {
		a, ok := s.allAgents[id]
		if !ok {
			break
		}
		out = append(out, a.Snapshot())
		id = a.ParentID
	}
	return out
}

func (s *Simulation) agentName(id string) string {
	if a, ok := s.allAgents[id]; ok {
		return a.Name
	}
	return id
}
