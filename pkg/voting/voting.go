// Package voting collects ballots from the live population, tallies them
// under the configured method and produces a deterministic ranking.
package voting

import (
	"sort"

	"github.com/arenakit/arena/pkg/agent"
)

// Method selects how ballots are cast and scored.
type Method string

const (
	// SingleChoice has each voter name exactly one candidate; score is the
	// count of votes received.
	SingleChoice Method = "single-choice"
	// RankedChoice has each voter order all candidates; score is a Borda
	// count with the top position worth len(ballot)-1 points.
	RankedChoice Method = "ranked-choice"
)

// Ballot is one voter's parsed response. A ballot either carries at least
// one valid choice or is an abstention; there is no error state.
type Ballot struct {
	VoterID       string   `json:"voter_id"`
	Abstained     bool     `json:"abstained"`
	Choices       []string `json:"choices,omitempty"` // candidate ids, best first
	Justification string   `json:"justification,omitempty"`
}

// Outcome is the result of one round's vote collection.
type Outcome struct {
	Method      Method              `json:"method"`
	Votes       map[string][]string `json:"votes"` // voter id -> candidate ids, best first
	Tally       map[string]int      `json:"tally"` // candidate id -> score
	Ranking     []string            `json:"ranking"` // candidate ids, best first
	Abstentions int                 `json:"abstentions"`
}

// standing carries the per-candidate fields the tie-break policy consults.
type standing struct {
	id            string
	score         int
	votesReceived int
	birthRound    int
}

// Rank orders candidate ids best first. The loser is the last element:
// lowest score, ties broken by fewer lifetime votes received, then earlier
// birth round, then lexicographically smaller id. The winner side of the
// ranking applies the same precedence inverted, so the order is total and
// has no random component.
func Rank(population []*agent.Agent, tally map[string]int) []string {
	standings := make([]standing, 0, len(population))
	for _, a := range population {
		standings = append(standings, standing{
			id:            a.ID,
			score:         tally[a.ID],
			votesReceived: a.VotesReceived,
			birthRound:    a.BirthRound,
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		return worse(standings[j], standings[i])
	})
	out := make([]string, len(standings))
	for i, s := range standings {
		out[i] = s.id
	}
	return out
}

// worse reports whether a loses to b under the tie-break precedence.
func worse(a, b standing) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.votesReceived != b.votesReceived {
		return a.votesReceived < b.votesReceived
	}
	if a.birthRound != b.birthRound {
		return a.birthRound < b.birthRound
	}
	return a.id < b.id
}

// Loser returns the elimination target for the outcome's ranking.
func (o *Outcome) Loser() string {
	if len(o.Ranking) == 0 {
		return ""
	}
	return o.Ranking[len(o.Ranking)-1]
}

// Winner returns the round's best-placed candidate.
func (o *Outcome) Winner() string {
	if len(o.Ranking) == 0 {
		return ""
	}
	return o.Ranking[0]
}

// tallyBallots aggregates parsed ballots into candidate scores. Every
// population member appears in the tally, scoring zero absent any points.
func tallyBallots(population []*agent.Agent, ballots []Ballot, method Method) map[string]int {
	tally := make(map[string]int, len(population))
	for _, a := range population {
		tally[a.ID] = 0
	}
	for _, b := range ballots {
		if b.Abstained {
			continue
		}
		switch method {
		case RankedChoice:
			n := len(b.Choices)
			for idx, id := range b.Choices {
				tally[id] += n - 1 - idx
			}
		default:
			if len(b.Choices) > 0 {
				tally[b.Choices[0]]++
			}
		}
	}
	return tally
}
