package voting

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/arenakit/arena/pkg/agent"
	"github.com/arenakit/arena/pkg/errors"
	"github.com/arenakit/arena/pkg/llm"
)

func makeAgent(id, name string) *agent.Agent {
	return agent.New(id, name, "You are "+name+".", "llama2", 10)
}

func TestParseSingleChoiceBallot(t *testing.T) {
	candidates := []*agent.Agent{
		makeAgent("agent-1", "Alpha"),
		makeAgent("agent-2", "Bravo"),
	}

	tests := []struct {
		name      string
		response  string
		want      []string
		abstained bool
	}{
		{"plain name", "Alpha\nBest reasoning.", []string{"agent-1"}, false},
		{"name with prefix", "Agent Bravo\nStrong answer.", []string{"agent-2"}, false},
		{"name with period", "Bravo.", []string{"agent-2"}, false},
		{"case insensitive", "alpha", []string{"agent-1"}, false},
		{"unknown name", "Zulu\nWho?", nil, true},
		{"empty response", "", nil, true},
		{"essay instead of name", "I think the best answer came from Alpha because...", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := parseSingleChoiceBallot("voter", tc.response, candidates)
			if b.Abstained != tc.abstained {
				t.Fatalf("abstained = %v, want %v", b.Abstained, tc.abstained)
			}
			if !tc.abstained && !reflect.DeepEqual(b.Choices, tc.want) {
				t.Errorf("choices = %v, want %v", b.Choices, tc.want)
			}
		})
	}
}

func TestParseSingleChoiceJustification(t *testing.T) {
	candidates := []*agent.Agent{makeAgent("agent-1", "Alpha")}
	b := parseSingleChoiceBallot("voter", "Alpha\nClear and concise.", candidates)
	if b.Justification != "Clear and concise." {
		t.Errorf("justification = %q", b.Justification)
	}
}

func TestParseRankedBallot(t *testing.T) {
	candidates := []*agent.Agent{
		makeAgent("agent-1", "Alpha"),
		makeAgent("agent-2", "Bravo"),
		makeAgent("agent-3", "Charlie"),
		makeAgent("agent-4", "Delta"),
	}

	t.Run("full ordering", func(t *testing.T) {
		b := parseRankedBallot("voter", "Delta, Alpha, Charlie, Bravo", candidates)
		want := []string{"agent-4", "agent-1", "agent-3", "agent-2"}
		if !reflect.DeepEqual(b.Choices, want) {
			t.Errorf("choices = %v, want %v", b.Choices, want)
		}
	})

	t.Run("partial ballot padded in id order", func(t *testing.T) {
		b := parseRankedBallot("voter", "Charlie, Bravo", candidates)
		want := []string{"agent-3", "agent-2", "agent-1", "agent-4"}
		if !reflect.DeepEqual(b.Choices, want) {
			t.Errorf("choices = %v, want %v", b.Choices, want)
		}
	})

	t.Run("duplicates and unknowns dropped", func(t *testing.T) {
		b := parseRankedBallot("voter", "Bravo, Zulu, Bravo, Alpha", candidates)
		want := []string{"agent-2", "agent-1", "agent-3", "agent-4"}
		if !reflect.DeepEqual(b.Choices, want) {
			t.Errorf("choices = %v, want %v", b.Choices, want)
		}
	})

	t.Run("no valid entries is an abstention", func(t *testing.T) {
		b := parseRankedBallot("voter", "none of these deserve to win", candidates)
		if !b.Abstained {
			t.Error("expected abstention")
		}
	})
}

func TestRankedScoring(t *testing.T) {
	// Two full ballots over three candidates: [A,B,C] gives {A:2,B:1,C:0},
	// [B,A,C] gives {B:2,A:1,C:0}. Aggregate A=3, B=3, C=0; the tie at the
	// top falls to lifetime votes received.
	a := makeAgent("agent-a", "Alpha")
	b := makeAgent("agent-b", "Bravo")
	c := makeAgent("agent-c", "Charlie")
	a.VotesReceived = 5
	b.VotesReceived = 3
	population := []*agent.Agent{a, b, c}

	ballots := []Ballot{
		{VoterID: "x", Choices: []string{"agent-a", "agent-b", "agent-c"}},
		{VoterID: "y", Choices: []string{"agent-b", "agent-a", "agent-c"}},
	}

	tally := tallyBallots(population, ballots, RankedChoice)
	if tally["agent-a"] != 3 || tally["agent-b"] != 3 || tally["agent-c"] != 0 {
		t.Fatalf("unexpected tally: %v", tally)
	}

	ranking := Rank(population, tally)
	want := []string{"agent-a", "agent-b", "agent-c"}
	if !reflect.DeepEqual(ranking, want) {
		t.Errorf("ranking = %v, want %v", ranking, want)
	}
}

func TestRankTieBreakTotality(t *testing.T) {
	// All scores and stats equal: ordering falls through to the id, and the
	// lexicographically smallest id loses.
	population := []*agent.Agent{
		makeAgent("agent-c", "Charlie"),
		makeAgent("agent-a", "Alpha"),
		makeAgent("agent-b", "Bravo"),
	}
	tally := map[string]int{"agent-a": 0, "agent-b": 0, "agent-c": 0}

	ranking := Rank(population, tally)
	want := []string{"agent-c", "agent-b", "agent-a"}
	if !reflect.DeepEqual(ranking, want) {
		t.Errorf("ranking = %v, want %v", ranking, want)
	}

	// Earlier birth round loses before the id is consulted.
	population[2].BirthRound = 2
	ranking = Rank(population, tally)
	if ranking[len(ranking)-1] != "agent-a" {
		t.Errorf("expected agent-a to lose, got %v", ranking)
	}
}

func TestRankDeterminism(t *testing.T) {
	population := []*agent.Agent{
		makeAgent("agent-1", "Alpha"),
		makeAgent("agent-2", "Bravo"),
		makeAgent("agent-3", "Charlie"),
		makeAgent("agent-4", "Delta"),
	}
	tally := map[string]int{"agent-1": 2, "agent-2": 2, "agent-3": 1, "agent-4": 1}

	first := Rank(population, tally)
	for i := 0; i < 50; i++ {
		if got := Rank(population, tally); !reflect.DeepEqual(got, first) {
			t.Fatalf("ranking changed between invocations: %v vs %v", first, got)
		}
	}
}

func votingPopulation() []*agent.Agent {
	return []*agent.Agent{
		makeAgent("agent-1", "Alpha"),
		makeAgent("agent-2", "Bravo"),
		makeAgent("agent-3", "Charlie"),
		makeAgent("agent-4", "Delta"),
	}
}

func votingAnswers() map[string]string {
	return map[string]string{
		"agent-1": "answer one",
		"agent-2": "answer two",
		"agent-3": "answer three",
		"agent-4": "answer four",
	}
}

func TestCollectVotesSingleChoice(t *testing.T) {
	gen := llm.NewGenerator(&llm.RoutedMockProvider{
		Routes: map[string]string{
			"You are Alpha":   "Bravo\nSharp and direct.",
			"You are Bravo":   "Charlie\nWell argued.",
			"You are Charlie": "Bravo\nConvincing.",
			"You are Delta":   "Bravo\nBest of the lot.",
		},
	})
	engine := NewEngine(gen, time.Second, false, nil)

	outcome, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), SingleChoice)
	if err != nil {
		t.Fatalf("CollectVotes failed: %v", err)
	}
	if outcome.Abstentions != 0 {
		t.Errorf("expected no abstentions, got %d", outcome.Abstentions)
	}
	if outcome.Tally["agent-2"] != 3 || outcome.Tally["agent-3"] != 1 {
		t.Errorf("unexpected tally: %v", outcome.Tally)
	}
	if outcome.Winner() != "agent-2" {
		t.Errorf("winner = %s, want agent-2", outcome.Winner())
	}
	// Alpha and Delta tie at zero; the smaller id loses.
	if outcome.Loser() != "agent-1" {
		t.Errorf("loser = %s, want agent-1", outcome.Loser())
	}
}

func TestCollectVotesAbstentionTolerance(t *testing.T) {
	// One voter's call times out; the round completes on the other three.
	gen := llm.NewGenerator(&llm.RoutedMockProvider{
		Routes: map[string]string{
			"You are Alpha":   "Bravo\nGood.",
			"You are Bravo":   "Charlie\nGood.",
			"You are Charlie": "Bravo\nGood.",
		},
		Errs: map[string]error{
			"You are Delta": errors.New(errors.CodeTimeout, "deadline exceeded", nil),
		},
	})
	engine := NewEngine(gen, time.Second, false, nil)

	outcome, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), SingleChoice)
	if err != nil {
		t.Fatalf("CollectVotes failed: %v", err)
	}
	if outcome.Abstentions != 1 {
		t.Errorf("expected 1 abstention, got %d", outcome.Abstentions)
	}
	if len(outcome.Votes) != 3 {
		t.Errorf("expected 3 recorded votes, got %d", len(outcome.Votes))
	}
	if outcome.Tally["agent-2"] != 2 || outcome.Tally["agent-3"] != 1 {
		t.Errorf("unexpected tally: %v", outcome.Tally)
	}
	if outcome.Loser() != "agent-1" {
		t.Errorf("loser = %s, want agent-1", outcome.Loser())
	}
}

func TestCollectVotesNoQuorum(t *testing.T) {
	gen := llm.NewGenerator(&llm.FailingMockProvider{})
	engine := NewEngine(gen, time.Second, false, nil)

	_, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), SingleChoice)
	if errors.CodeOf(err) != errors.CodeNoQuorum {
		t.Fatalf("expected NO_QUORUM, got %v", err)
	}
}

func TestCollectVotesRankedChoice(t *testing.T) {
	gen := llm.NewGenerator(&llm.RoutedMockProvider{
		Routes: map[string]string{
			"You are Alpha":   "Bravo, Charlie, Delta",
			"You are Bravo":   "Charlie, Alpha, Delta",
			"You are Charlie": "Bravo, Alpha, Delta",
			"You are Delta":   "Bravo, Charlie, Alpha",
		},
	})
	engine := NewEngine(gen, time.Second, false, nil)

	outcome, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), RankedChoice)
	if err != nil {
		t.Fatalf("CollectVotes failed: %v", err)
	}
	// Each ballot covers 3 candidates, top spot worth 2 points.
	// Bravo: 2+2+2=6, Charlie: 1+2+1=4, Alpha: 1+1+0=2, Delta: 0+0+0=0.
	if outcome.Tally["agent-2"] != 6 || outcome.Tally["agent-3"] != 4 || outcome.Tally["agent-1"] != 2 || outcome.Tally["agent-4"] != 0 {
		t.Fatalf("unexpected tally: %v", outcome.Tally)
	}
	if outcome.Loser() != "agent-4" {
		t.Errorf("loser = %s, want agent-4", outcome.Loser())
	}
}

func TestCollectVotesSelfVotingExcluded(t *testing.T) {
	// Every voter tries to vote for itself; with self-voting off the name
	// is not in the candidate set, so every ballot degrades to abstention
	// and the round has no quorum.
	gen := llm.NewGenerator(&llm.RoutedMockProvider{
		Routes: map[string]string{
			"You are Alpha":   "Alpha",
			"You are Bravo":   "Bravo",
			"You are Charlie": "Charlie",
			"You are Delta":   "Delta",
		},
	})
	engine := NewEngine(gen, time.Second, false, nil)
	_, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), SingleChoice)
	if errors.CodeOf(err) != errors.CodeNoQuorum {
		t.Fatalf("expected NO_QUORUM, got %v", err)
	}

	// With self-voting on the same ballots parse.
	engine = NewEngine(gen, time.Second, true, nil)
	outcome, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), SingleChoice)
	if err != nil {
		t.Fatalf("CollectVotes failed: %v", err)
	}
	for id, score := range outcome.Tally {
		if score != 1 {
			t.Errorf("expected every agent to score 1, got %s=%d", id, score)
		}
	}
}

func TestCollectVotesRankedDropsSelfRank(t *testing.T) {
	// A self-rank inside a ranked ballot is silently dropped when
	// self-voting is disabled; the rest of the ballot still counts.
	gen := llm.NewGenerator(&llm.RoutedMockProvider{
		Routes: map[string]string{
			"You are Alpha":   "Alpha, Bravo, Charlie, Delta",
			"You are Bravo":   "Charlie, Delta, Alpha",
			"You are Charlie": "Bravo, Delta, Alpha",
			"You are Delta":   "Bravo, Charlie, Alpha",
		},
	})
	engine := NewEngine(gen, time.Second, false, nil)

	outcome, err := engine.CollectVotes(context.Background(), votingPopulation(), "q", votingAnswers(), RankedChoice)
	if err != nil {
		t.Fatalf("CollectVotes failed: %v", err)
	}
	// Alpha's ballot becomes [Bravo, Charlie, Delta] after the self-rank
	// is dropped.
	want := []string{"agent-2", "agent-3", "agent-4"}
	if !reflect.DeepEqual(outcome.Votes["agent-1"], want) {
		t.Errorf("alpha ballot = %v, want %v", outcome.Votes["agent-1"], want)
	}
}
