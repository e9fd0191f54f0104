package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// shellTimeout bounds a single run_shell command.
const shellTimeout = 60 * time.Second

// shellWhitelist lists the only programs run_shell will start.
var shellWhitelist = map[string]bool{
	"ls": true, "pwd": true, "echo": true, "cat": true, "grep": true,
	"find": true, "wc": true, "head": true, "tail": true,
	"python": true, "python3": true, "node": true, "npm": true,
	"git": true, "pytest": true, "black": true, "flake8": true,
	"mkdir": true, "cd": true, "touch": true, "mv": true, "cp": true,
}

// bannedSequences block shell metacharacters and destructive commands
// before the whitelist check. Commands never run through a shell, so
// these sequences would be inert anyway, but refusing them keeps the
// model from believing redirection or chaining worked.
var bannedSequences = []string{
	"rm ", "sudo", "su ", "shutdown", "reboot", "chmod 777", "chown",
	"kill -9", ">", ">>", "|", ";", "&&", "||", "`", "$(",
	"mkfs", "dd if=", "dd of=", "format", "deltree",
}

// RunShellTool executes one whitelisted command in the session working
// directory. `cd` is handled in-process and moves the session cwd.
type RunShellTool struct {
	session *Session
}

func NewRunShellTool(session *Session) *RunShellTool {
	return &RunShellTool{session: session}
}

func (t *RunShellTool) Name() string { return "run_shell" }

func (t *RunShellTool) Description() string {
	return "Run a single safe shell command (ls, cat, grep, git, python and similar). No pipes, redirection, or command chaining. cd changes the working directory for later commands."
}

func (t *RunShellTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The command line to run. Arguments are split on whitespace; quoting is not interpreted.",
			},
		},
		"required": []string{"command"},
	}
}

type runShellInput struct {
	Command string `json:"command"`
}

func (t *RunShellTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params runShellInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("run_shell: invalid input: %v", err)
	}

	command := strings.TrimSpace(params.Command)
	if command == "" {
		return "", fault.InvalidArgument("run_shell: command is required")
	}

	for _, banned := range bannedSequences {
		if strings.Contains(command, banned) {
			L_warn("run_shell: banned sequence", "command", command, "sequence", banned)
			return "", fault.InvalidArgument("command contains a banned sequence: %q", strings.TrimSpace(banned)).
				WithHint("pipes, redirection, chaining, and destructive commands are not available")
		}
	}

	fields := strings.Fields(command)
	program := fields[0]
	if !shellWhitelist[program] {
		return "", fault.InvalidArgument("command not allowed: %s", program).
			WithHint("allowed commands: " + allowedCommands())
	}

	if program == "cd" {
		target := ""
		if len(fields) > 1 {
			target = fields[1]
		}
		resolved, err := t.session.Chdir(target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Changed directory to %s", resolved), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, program, fields[1:]...)
	cmd.Dir = t.session.Cwd()

	L_debug("run_shell: executing", "program", program, "args", len(fields)-1, "cwd", cmd.Dir)
	out, err := cmd.CombinedOutput()
	output := strings.TrimRight(string(out), "\n")

	if runCtx.Err() == context.DeadlineExceeded {
		return "", fault.New(fault.KindUnknown, "command timed out after %s: %s", shellTimeout, command)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := fmt.Sprintf("command failed with exit code %d", exitErr.ExitCode())
			if output != "" {
				msg += ":\n" + output
			}
			return "", fault.New(fault.KindUnknown, "%s", msg)
		}
		return "", fmt.Errorf("run %s: %w", program, err)
	}

	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}

func allowedCommands() string {
	names := make([]string, 0, len(shellWhitelist))
	for name := range shellWhitelist {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
