package voting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arenakit/arena/pkg/agent"
	"github.com/arenakit/arena/pkg/errors"
	"github.com/arenakit/arena/pkg/llm"
)

// Engine issues vote prompts through the text generator and turns the
// responses into an Outcome. It holds no population state between calls.
type Engine struct {
	gen             llm.TextGenerator
	timeout         time.Duration
	allowSelfVoting bool
	logger          *slog.Logger
}

// NewEngine creates a voting engine on top of the given generator.
func NewEngine(gen llm.TextGenerator, timeout time.Duration, allowSelfVoting bool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gen:             gen,
		timeout:         timeout,
		allowSelfVoting: allowSelfVoting,
		logger:          logger,
	}
}

// CollectVotes gathers one ballot per live agent, concurrently, and tallies
// them under method. A generator failure or unparseable response degrades
// to an abstention for that voter. When every voter abstains the round has
// no signal and a NO_QUORUM error is returned.
func (e *Engine) CollectVotes(ctx context.Context, population []*agent.Agent, question string, answers map[string]string, method Method) (*Outcome, error) {
	ballots := make([]Ballot, len(population))

	var wg sync.WaitGroup
	for i, voter := range population {
		wg.Add(1)
		go func(i int, voter *agent.Agent) {
			defer wg.Done()
			ballots[i] = e.collectBallot(ctx, voter, population, question, answers, method)
		}(i, voter)
	}
	wg.Wait()

	outcome := &Outcome{
		Method: method,
		Votes:  make(map[string][]string, len(population)),
	}
	for _, b := range ballots {
		if b.Abstained {
			outcome.Abstentions++
			continue
		}
		outcome.Votes[b.VoterID] = b.Choices
	}
	if outcome.Abstentions == len(population) {
		return nil, errors.New(errors.CodeNoQuorum, "no valid votes were collected from any agent", nil).
			WithContext("voters", len(population))
	}

	outcome.Tally = tallyBallots(population, ballots, method)
	outcome.Ranking = Rank(population, outcome.Tally)
	return outcome, nil
}

// collectBallot runs one voter's call end to end. Every failure path ends
// in an abstention; nothing escapes to the round.
func (e *Engine) collectBallot(ctx context.Context, voter *agent.Agent, population []*agent.Agent, question string, answers map[string]string, method Method) Ballot {
	candidates := e.candidatesFor(voter, population)
	if len(candidates) == 0 {
		return Ballot{VoterID: voter.ID, Abstained: true}
	}

	var prompt string
	switch method {
	case RankedChoice:
		prompt = rankedPrompt(voter, candidates, question, answers)
	default:
		prompt = singleChoicePrompt(voter, candidates, question, answers)
	}

	response, err := e.gen.Generate(ctx, prompt, voter.Model, e.timeout)
	if err != nil {
		e.logger.WarnContext(ctx, "vote call failed, treating as abstention",
			slog.String("voter", voter.Name),
			slog.String("code", string(errors.CodeOf(err))))
		return Ballot{VoterID: voter.ID, Abstained: true}
	}

	var ballot Ballot
	switch method {
	case RankedChoice:
		ballot = parseRankedBallot(voter.ID, response, candidates)
	default:
		ballot = parseSingleChoiceBallot(voter.ID, response, candidates)
	}
	if ballot.Abstained {
		e.logger.WarnContext(ctx, "unparseable ballot, treating as abstention",
			slog.String("voter", voter.Name),
			slog.String("response", truncate(response, 120)))
	}
	return ballot
}

// candidatesFor returns the agents this voter may rank, in population
// order. The voter itself is excluded unless self-voting is enabled.
func (e *Engine) candidatesFor(voter *agent.Agent, population []*agent.Agent) []*agent.Agent {
	out := make([]*agent.Agent, 0, len(population))
	for _, a := range population {
		if a.ID == voter.ID && !e.allowSelfVoting {
			continue
		}
		out = append(out, a)
	}
	return out
}

func answersBlock(candidates []*agent.Agent, answers map[string]string) string {
	var b strings.Builder
	for _, c := range candidates {
		answer := answers[c.ID]
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "Agent %s:\n%s\n\n", c.Name, answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func singleChoicePrompt(voter *agent.Agent, candidates []*agent.Agent, question string, answers map[string]string) string {
	return fmt.Sprintf(`You are %s, an AI agent with this personality:
%s

Question that was asked: %s

Here are the answers from different agents:

%s

Based on your personality and values, which agent gave the BEST answer?
Respond with ONLY the agent's name on the first line, followed by a 1-2 sentence justification on the next line.`,
		voter.Name, voter.Personality, question, answersBlock(candidates, answers))
}

func rankedPrompt(voter *agent.Agent, candidates []*agent.Agent, question string, answers map[string]string) string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf(`You are %s, an AI agent with this personality:
%s

Question that was asked: %s

Here are the answers from different agents:

%s

Rank ALL of the following agents from best answer to worst answer: %s.
Respond with ONLY a comma-separated list of agent names on the first line, best first.`,
		voter.Name, voter.Personality, question, answersBlock(candidates, answers), strings.Join(names, ", "))
}

// parseSingleChoiceBallot applies the strict grammar: the first line must
// name exactly one candidate. Anything else is an abstention.
func parseSingleChoiceBallot(voterID, response string, candidates []*agent.Agent) Ballot {
	lines := strings.SplitN(strings.TrimSpace(response), "\n", 2)
	name := normalizeName(lines[0])

	justification := ""
	if len(lines) > 1 {
		justification = strings.TrimSpace(lines[1])
	}

	for _, c := range candidates {
		if normalizeName(c.Name) == name {
			return Ballot{VoterID: voterID, Choices: []string{c.ID}, Justification: justification}
		}
	}
	return Ballot{VoterID: voterID, Abstained: true}
}

// parseRankedBallot reads a comma-separated name list from the first line.
// Unknown names and duplicates are dropped; candidates the voter omitted
// are appended in lexicographic id order so every ballot covers the full
// candidate set. A ballot with no valid entries at all is an abstention.
func parseRankedBallot(voterID, response string, candidates []*agent.Agent) Ballot {
	firstLine := strings.SplitN(strings.TrimSpace(response), "\n", 2)[0]

	byName := make(map[string]string, len(candidates))
	for _, c := range candidates {
		byName[normalizeName(c.Name)] = c.ID
	}

	var choices []string
	seen := make(map[string]bool, len(candidates))
	for _, part := range strings.Split(firstLine, ",") {
		id, ok := byName[normalizeName(part)]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		choices = append(choices, id)
	}
	if len(choices) == 0 {
		return Ballot{VoterID: voterID, Abstained: true}
	}

	var missing []string
	for _, c := range candidates {
		if !seen[c.ID] {
			missing = append(missing, c.ID)
		}
	}
	sort.Strings(missing)
	choices = append(choices, missing...)

	return Ballot{VoterID: voterID, Choices: choices}
}

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "Agent ")
	return strings.ToLower(strings.TrimSpace(s))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
