package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/arenakit/arena/pkg/agent"
	"github.com/arenakit/arena/pkg/config"
	"github.com/arenakit/arena/pkg/llm"
	"github.com/arenakit/arena/pkg/simulation"
	"github.com/arenakit/arena/pkg/store"
	"github.com/arenakit/arena/pkg/telemetry"
)

type runFlags struct {
	Agents      int
	Rounds      int
	Seed        int64
	Method      string
	Backend     string
	RosterPath  string
	Interactive bool
}

func runTournament(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("arena run", flag.ExitOnError)
	var rf runFlags
	fs.IntVar(&rf.Agents, "agents", 0, "number of agents (overrides config)")
	fs.IntVar(&rf.Rounds, "rounds", 0, "number of rounds (overrides config)")
	fs.Int64Var(&rf.Seed, "seed", 0, "random seed (overrides config)")
	fs.StringVar(&rf.Method, "method", "", "voting method: single-choice or ranked-choice")
	fs.StringVar(&rf.Backend, "backend", "", "llm backend: ollama or mock")
	fs.StringVar(&rf.RosterPath, "roster", "", "path to YAML roster of founding personalities")
	fs.BoolVar(&rf.Interactive, "interactive", false, "read one question per round from stdin")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	applyRunFlags(cfg, rf)

	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init("arena", version, telemetry.Config{
			Exporter:     cfg.Telemetry.Exporter,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			fatal(err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	roster := agent.DefaultRoster()
	if rf.RosterPath != "" {
		var err error
		roster, err = agent.LoadRoster(rf.RosterPath)
		if err != nil {
			fatal(err)
		}
	}

	var questions simulation.QuestionSource
	if rf.Interactive {
		questions = simulation.NewReaderSource(os.Stdin, os.Stderr)
	} else {
		var err error
		questions, err = simulation.NewListSource(cfg.Simulation.Questions)
		if err != nil {
			fatal(err)
		}
	}

	gen := buildGenerator(cfg)
	opts := []simulation.Option{simulation.WithLogger(logger)}
	if cfg.Telemetry.Enabled {
		metrics, err := telemetry.NewTournamentMetrics()
		if err != nil {
			fatal(err)
		}
		opts = append(opts, simulation.WithMetrics(metrics))
	}

	sim, err := simulation.New(cfg, roster, gen, questions, opts...)
	if err != nil {
		fatal(err)
	}

	runErr := sim.Run(ctx)
	snap := sim.Snapshot()

	if cfg.Store.Path != "" {
		if err := persistRun(ctx, cfg.Store.Path, snap); err != nil {
			logger.Warn("failed to persist run", slog.Any("error", err))
		}
	}

	if runErr != nil {
		fatal(runErr)
	}

	if global.JSON {
		printJSON(snap)
		return
	}
	printStandings(snap)
}

func applyRunFlags(cfg *config.Config, rf runFlags) {
	if rf.Agents > 0 {
		cfg.Simulation.NumAgents = rf.Agents
		if cfg.Simulation.MaxAgents < rf.Agents {
			cfg.Simulation.MaxAgents = rf.Agents
		}
	}
	if rf.Rounds > 0 {
		cfg.Simulation.NumRounds = rf.Rounds
	}
	if rf.Seed != 0 {
		cfg.Simulation.Seed = rf.Seed
	}
	if rf.Method != "" {
		cfg.Voting.Method = rf.Method
	}
	if rf.Backend != "" {
		cfg.LLM.Provider = rf.Backend
	}
}

func buildGenerator(cfg *config.Config) llm.TextGenerator {
	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "mock":
		provider = &llm.MockProvider{Response: "I abstain from this question."}
	default:
		provider = llm.NewOllama(cfg.LLM.BaseURL)
	}
	return llm.NewGenerator(provider,
		llm.WithRetry(cfg.LLM.MaxRetries),
		llm.WithTemperature(cfg.LLM.Temperature))
}

func persistRun(ctx context.Context, path string, snap *simulation.Snapshot) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := store.NewRunStore(db)
	if err != nil {
		return err
	}
	runID, err := s.BeginRun(ctx)
	if err != nil {
		return err
	}
	for _, rr := range snap.Rounds {
		if err := s.SaveRound(ctx, runID, rr); err != nil {
			return err
		}
	}
	return s.FinishRun(ctx, runID, snap)
}

func printStandings(snap *simulation.Snapshot) {
	fmt.Printf("Tournament %s after %d rounds\n\n", snap.Status, len(snap.Rounds))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tGEN\tVOTES\tSURVIVED\tBORN")
	for i, a := range snap.Standings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\tround %d\n",
			i+1, a.Name, a.Generation, a.VotesReceived, a.RoundsSurvived, a.BirthRound)
	}
	w.Flush()

	fmt.Printf("\nbackend calls: %d (%d failed)\n",
		snap.AdapterUse.TotalRequests, snap.AdapterUse.FailedRequests)
}

func listRuns(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if cfg.Store.Path == "" {
		fatal(fmt.Errorf("no store configured; set store.path or ARENA_STORE_PATH"))
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	s, err := store.NewRunStore(db)
	if err != nil {
		fatal(err)
	}
	runs, err := s.ListRuns(ctx)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(runs)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tFINISHED")
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), finished)
	}
	w.Flush()
}

func showRun(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: arena show <run-id>"))
	}
	if cfg.Store.Path == "" {
		fatal(fmt.Errorf("no store configured; set store.path or ARENA_STORE_PATH"))
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	s, err := store.NewRunStore(db)
	if err != nil {
		fatal(err)
	}
	rounds, err := s.LoadRounds(ctx, args[0])
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(rounds)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROUND\tQUESTION\tELIMINATED\tBORN\tABSTAIN")
	for _, rr := range rounds {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n",
			rr.Round, truncate(rr.Question, 48), rr.EliminatedID, rr.NewAgent.Name, rr.Abstentions)
	}
	w.Flush()
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
