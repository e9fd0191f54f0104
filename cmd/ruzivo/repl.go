package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/ruzivolabs/ruzivo/internal/commands"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	. "github.com/ruzivolabs/ruzivo/internal/logging"
	"github.com/ruzivolabs/ruzivo/internal/router"
	"github.com/ruzivolabs/ruzivo/internal/tools"
)

// slashWorkflows maps REPL slash commands to forced workflows. System
// commands (/models, /save, ...) belong to the commands package instead.
var slashWorkflows = map[string]router.Workflow{
	"/search":   router.WorkflowResearch,
	"/deep":     router.WorkflowDeep,
	"/academic": router.WorkflowAcademic,
	"/ask":      router.WorkflowQA,
	"/code":     router.WorkflowCode,
	"/develop":  router.WorkflowDevelop,
	"/analyst":  router.WorkflowDataAnalysis,
	"/image":    router.WorkflowImage,
	"/vision":   router.WorkflowVision,
	"/digest":   router.WorkflowDigest,
}

// parseSlash splits a workflow command off the input. Lines that are not
// workflow commands come back unrecognized so the router or the command
// manager can have them.
func parseSlash(line string) (router.Workflow, string, bool) {
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	cmd, body, _ := strings.Cut(line, " ")
	wf, ok := slashWorkflows[strings.ToLower(cmd)]
	if !ok {
		return "", "", false
	}
	return wf, strings.TrimSpace(body), true
}

// repl is the interactive loop. One turn runs at a time; SIGINT during a
// turn cancels that turn, SIGINT at the prompt exits with 130.
type repl struct {
	app  *app
	in   *bufio.Reader
	out  io.Writer
	turn atomic.Pointer[context.CancelFunc]
}

func newREPL(a *app) *repl {
	return &repl{app: a, in: a.stdin, out: os.Stdout}
}

func (r *repl) Run(ctx context.Context) int {
	interactive := stdinIsTerminal()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if cancel := r.turn.Load(); cancel != nil {
				(*cancel)()
				continue
			}
			SetShuttingDown()
			os.Exit(130)
		}
	}()

	if interactive {
		fmt.Fprintf(r.out, "ruzivo %s. Type /help for commands, exit to leave.\n", version)
	}
	for {
		if interactive {
			fmt.Fprint(r.out, "> ")
		}
		line, err := readLine(r.in)
		if err != nil {
			if interactive {
				fmt.Fprintln(r.out)
			}
			if errors.Is(err, io.EOF) {
				return 0
			}
			L_error("stdin read failed", "error", err)
			return 1
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return 0
		}
		r.dispatch(ctx, line)
	}
}

func (r *repl) dispatch(ctx context.Context, line string) {
	if forced, body, ok := parseSlash(line); ok {
		r.runTurn(ctx, body, forced)
		return
	}
	if commands.IsCommand(line) {
		res := r.app.commands.Execute(ctx, line)
		if res.Err != nil {
			fmt.Fprintln(r.out, renderError(res.Err))
			return
		}
		fmt.Fprintln(r.out, res.Text)
		return
	}
	r.runTurn(ctx, line, "")
}

func (r *repl) runTurn(ctx context.Context, input string, forced router.Workflow) {
	tctx, cancel := context.WithCancel(ctx)
	r.turn.Store(&cancel)
	defer func() {
		r.turn.Store(nil)
		cancel()
	}()

	answer, elapsed, err := r.app.processor.Process(tctx, input, forced)
	if err != nil {
		if tctx.Err() != nil {
			fmt.Fprintln(r.out, "Interrupted.")
			return
		}
		fmt.Fprintln(r.out, renderError(err))
		return
	}
	fmt.Fprintf(r.out, "\n%s\n\n(%.1fs)\n", answer, elapsed)
}

// renderError favors the classified message and hint over raw wrapping.
func renderError(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return "error: " + fe.UserMessage()
	}
	return "error: " + err.Error()
}

// readLine returns the next trimmed line. A final line without a newline
// still comes back as a line; the EOF surfaces on the following call.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// planPrompter collects the user's verdict on a proposed coding plan.
// Only wired on interactive sessions.
type planPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *planPrompter) ReviewPlan(plan string) (tools.PlanVerdict, string) {
	fmt.Fprintf(p.out, "\nProposed plan:\n\n%s\n\n", plan)
	for {
		fmt.Fprint(p.out, "[a]ccept, [m]odify, or [c]ancel? ")
		line, err := readLine(p.in)
		if err != nil {
			return tools.PlanCancel, ""
		}
		switch strings.ToLower(line) {
		case "a", "accept", "y", "yes":
			return tools.PlanAccept, ""
		case "m", "modify":
			fmt.Fprint(p.out, "Describe the changes: ")
			changes, err := readLine(p.in)
			if err != nil || changes == "" {
				return tools.PlanCancel, ""
			}
			return tools.PlanModify, changes
		case "c", "cancel", "n", "no":
			return tools.PlanCancel, ""
		}
	}
}
