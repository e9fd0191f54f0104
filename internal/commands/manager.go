// Package commands implements the REPL's system commands: the slash
// commands that inspect or manage the program itself rather than being
// forwarded to a workflow.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Command is one registered system command.
type Command struct {
	Name        string   // e.g. "/models"
	Description string   // one-line help text
	Usage       string   // argument usage, e.g. "<name>" (optional)
	Aliases     []string // e.g. ["/hist"]
	Handler     Handler
}

// Handler executes a command.
type Handler func(ctx context.Context, args *Args) Result

// Args carries what a handler needs per invocation.
type Args struct {
	RawArgs  string   // everything after the command name, trimmed
	Usage    string   // copy of Command.Usage for error messages
	Provider Provider // access to the running program
}

// Manager is the command registry.
type Manager struct {
	mu       sync.RWMutex
	commands map[string]*Command // keyed by lowercase name and alias
	provider Provider
}

// NewManager builds a registry with the built-in commands installed.
func NewManager(provider Provider) *Manager {
	m := &Manager{
		commands: make(map[string]*Command),
		provider: provider,
	}
	registerBuiltins(m)
	return m
}

// Register adds a command and its aliases.
func (m *Manager) Register(cmd *Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[strings.ToLower(cmd.Name)] = cmd
	for _, alias := range cmd.Aliases {
		m.commands[strings.ToLower(alias)] = cmd
	}
}

// Get returns a command by name or alias, nil when unknown.
func (m *Manager) Get(name string) *Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commands[strings.ToLower(name)]
}

// List returns the unique commands sorted by name.
func (m *Manager) List() []*Command {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[*Command]bool)
	var list []*Command
	for _, cmd := range m.commands {
		if !seen[cmd] {
			seen[cmd] = true
			list = append(list, cmd)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Execute parses "/name args" and runs the matching handler. Unknown
// names produce a help hint rather than an error.
func (m *Manager) Execute(ctx context.Context, cmdStr string) Result {
	cmdStr = strings.TrimSpace(cmdStr)
	name, rawArgs, _ := strings.Cut(cmdStr, " ")

	cmd := m.Get(name)
	if cmd == nil {
		return Result{Text: fmt.Sprintf("Unknown command: %s\nType /help for available commands.", name)}
	}
	return cmd.Handler(ctx, &Args{
		RawArgs:  strings.TrimSpace(rawArgs),
		Usage:    cmd.Usage,
		Provider: m.provider,
	})
}

// IsCommand reports whether the input line is a slash command.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}
