// Command ruzivo is a terminal-hosted research orchestrator. It reads
// requests from a REPL (or runs one via --query), routes each to a fixed
// workflow, fans out to the configured sources and models, and prints a
// cited answer. When a digest schedule is configured it fires alongside
// the interactive session, or alone when stdin is not a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"github.com/ruzivolabs/ruzivo/internal/commands"
	"github.com/ruzivolabs/ruzivo/internal/config"
	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const version = "0.1.0"

// CLI is the flag surface. Everything else lives in ~/.ruzivo/ruzivo.json.
type CLI struct {
	Config     string           `short:"c" help:"Config file path (default ~/.ruzivo/ruzivo.json)." type:"path"`
	LogLevel   string           `help:"Log verbosity." enum:"fatal,error,warn,info,debug,trace" default:"info"`
	LogFile    string           `help:"Append logs to this file instead of stderr." type:"path"`
	Query      string           `short:"q" help:"Run one request non-interactively and exit."`
	DigestCron string           `help:"Cron expression (5-field) for scheduled digests; overrides the config."`
	DigestOut  string           `help:"File scheduled digests are written to; empty prints them." type:"path"`
	Version    kong.VersionFlag `help:"Print version and exit."`
}

var logLevels = map[string]int{
	"fatal": LevelFatal,
	"error": LevelError,
	"warn":  LevelWarn,
	"info":  LevelInfo,
	"debug": LevelDebug,
	"trace": LevelTrace,
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("ruzivo"),
		kong.Description("Terminal research orchestrator."),
		kong.UsageOnError(),
		kong.Vars{"version": "ruzivo " + version},
	)

	level := logLevels[cli.LogLevel]
	Init(&Config{
		Level:      level,
		ShowCaller: level >= LevelDebug,
		LogFile:    cli.LogFile,
	})
	L_info("ruzivo starting", "version", version)

	os.Exit(run(cli))
}

func run(cli CLI) int {
	cfgPath := cli.Config
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		L_fatal("cannot load config", "path", cfgPath, "error", err)
	}

	a, err := newApp(cfgPath, cfg)
	if err != nil {
		L_fatal("startup failed", "error", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	cron := cli.DigestCron
	if cron == "" {
		cron = cfg.Digest.Schedule
	}
	if cron != "" {
		out := cli.DigestOut
		if out == "" {
			out = cfg.Digest.Output
		}
		if err := a.ScheduleDigest(cron, out); err != nil {
			L_fatal("cannot schedule digest", "cron", cron, "error", err)
		}
	}

	if cli.Query != "" {
		return runOnce(ctx, a, cli.Query)
	}
	if a.scheduler != nil && !stdinIsTerminal() {
		return runService(ctx)
	}
	return newREPL(a).Run(ctx)
}

// runOnce executes a single request and exits. Slash prefixes work the
// same as in the REPL, so scripts can force a workflow or run a system
// command.
func runOnce(ctx context.Context, a *app, query string) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query = strings.TrimSpace(query)
	forced, body, ok := parseSlash(query)
	if !ok {
		body = query
		if commands.IsCommand(query) {
			res := a.commands.Execute(ctx, query)
			if res.Err != nil {
				fmt.Fprintln(os.Stderr, renderError(res.Err))
				return 1
			}
			fmt.Println(res.Text)
			return 0
		}
	}

	answer, elapsed, err := a.processor.Process(ctx, body, forced)
	if err != nil {
		if ctx.Err() != nil {
			return 130
		}
		fmt.Fprintln(os.Stderr, renderError(err))
		return 1
	}
	fmt.Println(answer)
	L_debug("query finished", "elapsed_s", fmt.Sprintf("%.1f", elapsed))
	return 0
}

// runService blocks on the digest scheduler until interrupted. Used when
// stdin is not a terminal and no query was given.
func runService(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	L_info("running scheduled digests, interrupt to stop")
	<-ctx.Done()
	SetShuttingDown()
	L_info("shutting down")
	return 0
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
