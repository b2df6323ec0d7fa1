// Package evolution replaces the eliminated agent each round: it picks a
// parent among the survivors by vote-weighted draw and derives a child with
// an optional mutation appended to the inherited personality.
package evolution

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/arenakit/arena/pkg/agent"
	"github.com/arenakit/arena/pkg/errors"
)

// Engine performs the elimination/birth step. All randomness comes from
// the *rand.Rand passed into Evolve; the engine itself holds none.
type Engine struct {
	mutationRate float64
	traits       []string
	logger       *slog.Logger
}

// NewEngine creates an evolution engine.
func NewEngine(mutationRate float64, traits []string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mutationRate: mutationRate,
		traits:       traits,
		logger:       logger,
	}
}

// Result records one elimination/birth step.
type Result struct {
	EliminatedID string       `json:"eliminated_id"`
	ParentID     string       `json:"parent_id"`
	Child        *agent.Agent `json:"-"`
	Mutation     string       `json:"mutation,omitempty"`
}

// Evolve eliminates the lowest-ranked agent and derives one child to
// restore population size. ranking is ordered best first; the loser is its
// last element. The parent draw weights each survivor by 1 + lifetime
// votes received, so zero-vote survivors still have a chance. childID must
// be fresh; the caller owns id allocation and the random source.
func (e *Engine) Evolve(population []*agent.Agent, ranking []string, round int, childID string, rng *rand.Rand) (*Result, error) {
	if len(population) < 2 {
		return nil, errors.New(errors.CodeInternal, "cannot evolve a population below two agents", nil).
			WithContext("size", len(population))
	}
	if len(ranking) != len(population) {
		return nil, errors.New(errors.CodeInternal, "ranking does not cover the population", nil).
			WithContext("ranking", len(ranking)).
			WithContext("population", len(population))
	}

	eliminatedID := ranking[len(ranking)-1]
	survivors := make([]*agent.Agent, 0, len(population)-1)
	for _, a := range population {
		if a.ID != eliminatedID {
			survivors = append(survivors, a)
		}
	}
	if len(survivors) != len(population)-1 {
		return nil, errors.New(errors.CodeInternal, "eliminated agent not found in population", nil).
			WithContext("eliminated_id", eliminatedID)
	}

	parent := e.selectParent(survivors, rng)
	mutation := e.mutation(rng)
	name := e.childName(parent, survivors, rng)
	child := parent.DeriveChild(childID, name, mutation, round)

	e.logger.Info("agent evolved",
		slog.String("child", child.Name),
		slog.String("parent", parent.Name),
		slog.Int("generation", child.Generation),
		slog.Bool("mutated", mutation != ""))

	return &Result{
		EliminatedID: eliminatedID,
		ParentID:     parent.ID,
		Child:        child,
		Mutation:     mutation,
	}, nil
}

// selectParent draws one survivor from a cumulative-weight distribution.
func (e *Engine) selectParent(survivors []*agent.Agent, rng *rand.Rand) *agent.Agent {
	total := 0
	for _, a := range survivors {
		total += 1 + a.VotesReceived
	}
	pick := rng.Intn(total)
	for _, a := range survivors {
		pick -= 1 + a.VotesReceived
		if pick < 0 {
			return a
		}
	}
	return survivors[len(survivors)-1]
}

// mutation returns the trait text to append, or "" for a pure clone.
func (e *Engine) mutation(rng *rand.Rand) string {
	if rng.Float64() >= e.mutationRate {
		return ""
	}
	trait := e.traits[rng.Intn(len(e.traits))]
	return fmt.Sprintf("Evolved traits: You are now %s compared to your predecessor.", trait)
}

var evolutionSuffixes = []string{
	"Evolved", "2.0", "Redux", "Reborn", "Neo",
	"Next", "Prime", "Enhanced", "Advanced", "Plus",
}

// childName derives a name from the parent's, suffixed so it stays unique
// within the live population.
func (e *Engine) childName(parent *agent.Agent, survivors []*agent.Agent, rng *rand.Rand) string {
	taken := make(map[string]bool, len(survivors))
	for _, a := range survivors {
		taken[a.Name] = true
	}

	base := fmt.Sprintf("%s %s", parent.Name, evolutionSuffixes[rng.Intn(len(evolutionSuffixes))])
	name := base
	for n := 2; taken[name]; n++ {
		name = fmt.Sprintf("%s %d", base, n)
	}
	return name
}
