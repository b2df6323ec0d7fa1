// Command arena runs elimination tournaments between LLM-backed agents
// and inspects stored runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arenakit/arena/pkg/config"
	"github.com/arenakit/arena/pkg/errors"
)

const version = "0.3.0"

type globalFlags struct {
	ConfigPath string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}

	switch cmd := args[0]; cmd {
	case "run":
		runTournament(ctx, global, cfg, args[1:])
	case "runs":
		listRuns(ctx, global, cfg, args[1:])
	case "show":
		showRun(ctx, global, cfg, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println("arena", version)
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var global globalFlags
	fs.StringVar(&global.ConfigPath, "config", "", "path to YAML config file")
	fs.BoolVar(&global.JSON, "json", false, "emit JSON instead of tables")
	fs.BoolVar(&global.Help, "help", false, "show usage")

	if err := fs.Parse(args); err != nil {
		return globalFlags{}, nil, err
	}
	return global, fs.Args(), nil
}

func printUsage() {
	fmt.Print(`arena - elimination tournaments between LLM-backed agents

Usage:
  arena [--config file] [--json] <command>

Commands:
  run      run a tournament (see 'arena run -help' for flags)
  runs     list stored runs
  show     show the rounds of a stored run: arena show <run-id>
  version  print version
  help     show this message

Configuration may also come from ARENA_* environment variables, e.g.
ARENA_VOTING_METHOD=ranked-choice.
`)
}

func fatal(err error) {
	if ae, ok := err.(*errors.Error); ok {
		fmt.Fprintf(os.Stderr, "arena: [%s] %s\n", ae.Code, ae.Message)
	} else {
		fmt.Fprintf(os.Stderr, "arena: %v\n", err)
	}
	os.Exit(1)
}
