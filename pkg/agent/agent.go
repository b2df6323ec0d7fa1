// Package agent holds the tournament participant record: identity,
// personality, lineage and a bounded memory of past exchanges.
package agent

import (
	"fmt"
	"strings"
)

// MemoryEntry is one remembered question/answer exchange.
type MemoryEntry struct {
	Round    int    `json:"round"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Agent is a tournament participant. Fields are mutated only between
// phases, on the orchestrator goroutine; concurrent phase workers read
// prompts built before the phase starts.
type Agent struct {
	ID          string
	Name        string
	Personality string
	Model       string

	Generation int
	BirthRound int
	ParentID   string
	ParentName string

	VotesReceived  int
	RoundsSurvived int

	memory    []MemoryEntry
	memoryCap int
}

// New creates a founding agent (generation zero, no parent).
func New(id, name, personality, model string, memoryCap int) *Agent {
	return &Agent{
		ID:          id,
		Name:        name,
		Personality: personality,
		Model:       model,
		memoryCap:   memoryCap,
	}
}

// RecordExchange appends a question/answer pair to memory, evicting the
// oldest entry once the cap is reached. A cap of zero disables memory.
func (a *Agent) RecordExchange(round int, question, answer string) {
	if a.memoryCap == 0 {
		return
	}
	a.memory = append(a.memory, MemoryEntry{Round: round, Question: question, Answer: answer})
	if len(a.memory) > a.memoryCap {
		a.memory = a.memory[len(a.memory)-a.memoryCap:]
	}
}

// Memory returns a copy of the remembered exchanges, oldest first.
func (a *Agent) Memory() []MemoryEntry {
	out := make([]MemoryEntry, len(a.memory))
	copy(out, a.memory)
	return out
}

// MemoryContext renders recent memories for inclusion in a prompt. At most
// the five most recent entries are shown, truncated to keep prompts small.
func (a *Agent) MemoryContext() string {
	if len(a.memory) == 0 {
		return "No previous memories."
	}
	recent := a.memory
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	var b strings.Builder
	b.WriteString("Recent memories:\n")
	for _, m := range recent {
		b.WriteString(fmt.Sprintf("- Round %d: Q: %s | A: %s\n", m.Round, truncate(m.Question, 80), truncate(m.Answer, 100)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// AnswerPrompt builds the answer-phase prompt. The agent name appears
// verbatim so routed test backends can key on it.
func (a *Agent) AnswerPrompt(question string) string {
	return fmt.Sprintf(`You are %s, an AI agent with the following personality:
%s

%s

Question: %s

Provide a thoughtful answer that reflects your unique personality and perspective. Be concise but insightful (2-4 sentences).`,
		a.Name, a.Personality, a.MemoryContext(), question)
}

// DeriveChild creates the successor agent spawned from this one. The child
// inherits the personality with mutation appended, starts with fresh memory
// and zeroed counters, and records its lineage.
func (a *Agent) DeriveChild(id, name, mutation string, birthRound int) *Agent {
	personality := a.Personality
	if mutation != "" {
		personality += "\n\n" + mutation
	}
	return &Agent{
		ID:          id,
		Name:        name,
		Personality: personality,
		Model:       a.Model,
		Generation:  a.Generation + 1,
		BirthRound:  birthRound,
		ParentID:    a.ID,
		ParentName:  a.Name,
		memoryCap:   a.memoryCap,
	}
}

// Snapshot is the immutable, serializable view of an agent used in round
// records and final standings.
type Snapshot struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Personality    string `json:"personality"`
	Model          string `json:"model"`
	Generation     int    `json:"generation"`
	BirthRound     int    `json:"birth_round"`
	ParentID       string `json:"parent_id,omitempty"`
	ParentName     string `json:"parent_name,omitempty"`
	VotesReceived  int    `json:"votes_received"`
	RoundsSurvived int    `json:"rounds_survived"`
}

// Snapshot returns a copy of the agent's current state.
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{
		ID:             a.ID,
		Name:           a.Name,
		Personality:    a.Personality,
		Model:          a.Model,
		Generation:     a.Generation,
		BirthRound:     a.BirthRound,
		ParentID:       a.ParentID,
		ParentName:     a.ParentName,
		VotesReceived:  a.VotesReceived,
		RoundsSurvived: a.RoundsSurvived,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Personality is a named founding personality.
type Personality struct {
	Name        string `json:"name" yaml:"name"`
	Personality string `json:"personality" yaml:"personality"`
}

// DefaultRoster returns the founding personalities used when no roster file
// is supplied.
func DefaultRoster() []Personality {
	return []Personality{
		{Name: "The Philosopher", Personality: "You are a deep thinker who values wisdom, logic, and contemplation. You approach problems with careful reasoning and always seek the deeper meaning."},
		{Name: "The Scientist", Personality: "You are analytical and evidence-based. You rely on data, experiments, and the scientific method to understand the world."},
		{Name: "The Artist", Personality: "You are creative and emotional. You see beauty in everything and express yourself through metaphor and artistic vision."},
		{Name: "The Pragmatist", Personality: "You are practical and results-oriented. You focus on what works and what can be implemented in the real world."},
		{Name: "The Optimist", Personality: "You always see the bright side and believe in positive outcomes. You inspire hope and encourage others."},
		{Name: "The Skeptic", Personality: "You question everything and demand proof. You are cautious and always look for potential flaws or problems."},
		{Name: "The Empath", Personality: "You deeply understand emotions and human nature. You prioritize compassion, connection, and emotional intelligence."},
		{Name: "The Strategist", Personality: "You think several steps ahead and excel at planning. You analyze situations from all angles to find the optimal path."},
	}
}
