package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ruzivolabs/ruzivo/internal/workflow"
)

// How many models an endpoint listing shows before eliding.
const modelListMax = 20

// How many research runs /visualize lists without an id.
const visualizeListMax = 10

// Synthesis preview length in the /visualize detail view.
const synthesisPreviewChars = 600

func registerBuiltins(m *Manager) {
	m.Register(&Command{
		Name:        "/models",
		Description: "List configured endpoints and the models they serve",
		Handler:     handleModels,
	})

	m.Register(&Command{
		Name:        "/config",
		Description: "Show the active configuration (secrets redacted)",
		Handler:     handleConfig,
	})

	m.Register(&Command{
		Name:        "/save",
		Description: "Save the conversation for later /resume",
		Usage:       "[name]",
		Handler:     handleSave,
	})

	m.Register(&Command{
		Name:        "/history",
		Description: "List saved sessions",
		Aliases:     []string{"/sessions"},
		Handler:     handleHistory,
	})

	m.Register(&Command{
		Name:        "/resume",
		Description: "Restore a saved session",
		Usage:       "<name>",
		Handler:     handleResume,
	})

	m.Register(&Command{
		Name:        "/clear",
		Description: "Clear the conversation",
		Aliases:     []string{"/reset"},
		Handler:     handleClear,
	})

	m.Register(&Command{
		Name:        "/visualize",
		Description: "Show saved deep research runs",
		Usage:       "[research-id]",
		Handler:     handleVisualize,
	})

	m.Register(&Command{
		Name:        "/help",
		Description: "Show this help",
		Handler: func(ctx context.Context, args *Args) Result {
			return handleHelp(m)
		},
	})
}

func handleHelp(m *Manager) Result {
	var text strings.Builder
	text.WriteString("Workflows (slash forces one, plain text is routed):\n")
	text.WriteString("  /search /deep /academic /ask /code /develop /analyst\n")
	text.WriteString("  /image /vision /digest <days> [topic]\n")
	text.WriteString("\nCommands:\n")
	for _, cmd := range m.List() {
		name := cmd.Name
		if cmd.Usage != "" {
			name += " " + cmd.Usage
		}
		text.WriteString(fmt.Sprintf("  %-24s %s\n", name, cmd.Description))
	}
	text.WriteString("\nType exit or press Ctrl-D to leave.")
	return Result{Text: text.String()}
}

func handleModels(ctx context.Context, args *Args) Result {
	endpoints := args.Provider.ModelStatus(ctx)
	if len(endpoints) == 0 {
		return Result{Text: "No endpoints enabled. Add one to the config and try again."}
	}

	var text strings.Builder
	text.WriteString("Configured endpoints\n")
	for _, ep := range endpoints {
		text.WriteString(fmt.Sprintf("\n  %s (%s)\n", ep.Key, ep.Type))
		if ep.Model != "" {
			text.WriteString(fmt.Sprintf("    default model: %s\n", ep.Model))
		}
		if len(ep.Roles) > 0 {
			text.WriteString(fmt.Sprintf("    roles: %s\n", strings.Join(ep.Roles, ", ")))
		}
		switch {
		case ep.Err != "":
			text.WriteString(fmt.Sprintf("    models: unavailable (%s)\n", ep.Err))
		case len(ep.Models) == 0:
			text.WriteString("    models: none reported\n")
		default:
			shown := ep.Models
			elided := 0
			if len(shown) > modelListMax {
				elided = len(shown) - modelListMax
				shown = shown[:modelListMax]
			}
			text.WriteString(fmt.Sprintf("    models (%d): %s", len(ep.Models), strings.Join(shown, ", ")))
			if elided > 0 {
				text.WriteString(fmt.Sprintf(" ... and %d more", elided))
			}
			text.WriteString("\n")
		}
	}
	return Result{Text: strings.TrimRight(text.String(), "\n")}
}

func handleConfig(ctx context.Context, args *Args) Result {
	path, cfg := args.Provider.ConfigView()

	var text strings.Builder
	text.WriteString(fmt.Sprintf("Config: %s\n", path))

	text.WriteString("\nOrchestrator\n")
	text.WriteString(fmt.Sprintf("  endpoint: %s\n", cfg.Orchestrator.Endpoint))
	text.WriteString(fmt.Sprintf("  model: %s\n", valueOr(cfg.Orchestrator.Model, "endpoint default")))
	text.WriteString(fmt.Sprintf("  max tokens: %d, temperature: %.2f\n",
		cfg.Orchestrator.MaxTokens, cfg.Orchestrator.Temperature))

	if len(cfg.Roles) > 0 {
		text.WriteString("\nRoles\n")
		roles := make([]string, 0, len(cfg.Roles))
		for role := range cfg.Roles {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			text.WriteString(fmt.Sprintf("  %s -> %s\n", role, cfg.Roles[role]))
		}
	}

	if len(cfg.Endpoints) > 0 {
		text.WriteString("\nEndpoints\n")
		keys := make([]string, 0, len(cfg.Endpoints))
		for key := range cfg.Endpoints {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			ec := cfg.Endpoints[key]
			state := "enabled"
			if ec.Enabled != nil && !*ec.Enabled {
				state = "disabled"
			}
			text.WriteString(fmt.Sprintf("  %s: type=%s model=%s key=%s [%s]\n",
				key, ec.Type, valueOr(ec.Model, "-"), secretState(ec.APIKey), state))
		}
	}

	text.WriteString("\nSearch\n")
	text.WriteString(fmt.Sprintf("  brave key: %s\n", secretState(cfg.Search.BraveAPIKey)))
	text.WriteString(fmt.Sprintf("  cache: %v, optimize: %v, parallel: %v, extraction: %v\n",
		cfg.Search.CacheEnabled, cfg.Search.OptimizeQueries, cfg.Search.Parallel, cfg.Search.ContentExtraction))
	text.WriteString(fmt.Sprintf("  synthesize: %v (threshold %d), max results: %d\n",
		cfg.Search.Synthesize, cfg.Search.SynthesizeThreshold, cfg.Search.MaxResults))

	text.WriteString("\nAcademic\n")
	text.WriteString(fmt.Sprintf("  core key: %s, sci-hub mirrors: %d, per-source max: %d\n",
		secretState(cfg.Academic.COREAPIKey), len(cfg.Academic.SciHubMirrors), cfg.Academic.PerSourceMax))

	text.WriteString("\nNewsroom\n")
	if cfg.Newsroom.BaseURL == "" {
		text.WriteString("  not configured\n")
	} else {
		text.WriteString(fmt.Sprintf("  url: %s, jwt: %s, days back: %d\n",
			cfg.Newsroom.BaseURL, secretState(cfg.Newsroom.JWT), cfg.Newsroom.DaysBack))
	}

	text.WriteString("\nDigest\n")
	text.WriteString(fmt.Sprintf("  days: %d, schedule: %s\n",
		cfg.Digest.Days, valueOr(cfg.Digest.Schedule, "manual")))

	return Result{Text: strings.TrimRight(text.String(), "\n")}
}

func handleSave(ctx context.Context, args *Args) Result {
	info, err := args.Provider.SaveSession(args.RawArgs)
	if err != nil {
		return Result{Text: "Could not save: " + err.Error(), Err: err}
	}
	return Result{Text: fmt.Sprintf("Saved session %q (%d messages, ~%s tokens).",
		info.Name, info.Messages, humanize.Comma(int64(info.Tokens)))}
}

func handleHistory(ctx context.Context, args *Args) Result {
	sessions, err := args.Provider.ListSessions()
	if err != nil {
		return Result{Text: "Could not list sessions: " + err.Error(), Err: err}
	}
	if len(sessions) == 0 {
		return Result{Text: "No saved sessions yet. /save stores the current conversation."}
	}

	var text strings.Builder
	text.WriteString("Saved sessions\n")
	for _, s := range sessions {
		text.WriteString(fmt.Sprintf("  %-24s %d turns, %d messages, updated %s\n",
			s.Name, s.Turns, s.Messages, humanize.Time(s.UpdatedAt)))
	}
	text.WriteString("\n/resume <name> restores one.")
	return Result{Text: text.String()}
}

func handleResume(ctx context.Context, args *Args) Result {
	if args.RawArgs == "" {
		return Result{Text: "Usage: /resume " + args.Usage}
	}
	info, err := args.Provider.ResumeSession(args.RawArgs)
	if err != nil {
		return Result{Text: "Could not resume: " + err.Error(), Err: err}
	}
	return Result{Text: fmt.Sprintf("Resumed %q (%d messages, ~%s tokens). The conversation continues where it left off.",
		info.Name, info.Messages, humanize.Comma(int64(info.Tokens)))}
}

func handleClear(ctx context.Context, args *Args) Result {
	args.Provider.ClearSession()
	return Result{Text: "Conversation cleared."}
}

func handleVisualize(ctx context.Context, args *Args) Result {
	if args.RawArgs != "" {
		return visualizeRun(args.Provider, args.RawArgs)
	}

	runs, err := args.Provider.RecentResearch(visualizeListMax)
	if err != nil {
		return Result{Text: "Could not list research runs: " + err.Error(), Err: err}
	}
	if len(runs) == 0 {
		return Result{Text: "No research runs saved yet. /deep persists its runs here."}
	}

	var text strings.Builder
	text.WriteString("Deep research runs\n")
	for _, run := range runs {
		text.WriteString(fmt.Sprintf("  %s  %s (%s)\n",
			run.ID, excerptLine(run.Query, 60), humanize.Time(run.CreatedAt)))
	}
	text.WriteString("\n/visualize <research-id> shows the full tree.")
	return Result{Text: text.String()}
}

func visualizeRun(p Provider, id string) Result {
	run, err := p.ResearchRun(id)
	if err != nil {
		return Result{Text: "Could not load run: " + err.Error(), Err: err}
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("Research %s\n", run.ID))
	text.WriteString(fmt.Sprintf("  Query: %s\n", run.Query))
	text.WriteString(fmt.Sprintf("  When:  %s (%s)\n",
		run.CreatedAt.Format("2006-01-02 15:04"), humanize.Time(run.CreatedAt)))

	if len(run.Sources) > 0 {
		text.WriteString(fmt.Sprintf("  Sources: %d\n", len(run.Sources)))
		for _, src := range run.Sources {
			text.WriteString(fmt.Sprintf("    [%-6s] %s\n", src.Credibility, excerptLine(src.Title, 70)))
			if src.URL != "" {
				text.WriteString(fmt.Sprintf("             %s\n", src.URL))
			}
		}
		text.WriteString("  " + workflow.CredibilitySummary(run.Sources) + "\n")
	}

	if run.Findings != "" {
		text.WriteString("  Findings:\n")
		for _, line := range strings.Split(strings.TrimSpace(run.Findings), "\n") {
			text.WriteString("    " + line + "\n")
		}
	}

	if run.Synthesis != "" {
		text.WriteString("  Synthesis:\n")
		preview := run.Synthesis
		if len(preview) > synthesisPreviewChars {
			preview = preview[:synthesisPreviewChars] + "..."
		}
		for _, line := range strings.Split(strings.TrimSpace(preview), "\n") {
			text.WriteString("    " + line + "\n")
		}
	}
	return Result{Text: strings.TrimRight(text.String(), "\n")}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func secretState(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

func excerptLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
