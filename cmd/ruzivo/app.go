package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/commands"
	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/history"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	. "github.com/ruzivolabs/ruzivo/internal/logging"
	"github.com/ruzivolabs/ruzivo/internal/newsroom"
	"github.com/ruzivolabs/ruzivo/internal/progress"
	"github.com/ruzivolabs/ruzivo/internal/search"
	"github.com/ruzivolabs/ruzivo/internal/tools"
	"github.com/ruzivolabs/ruzivo/internal/turn"
	"github.com/ruzivolabs/ruzivo/internal/workflow"
)

const defaultSystemPrompt = "You are ruzivo, a research assistant living in a terminal. " +
	"Answer from the conversation and the tool results you are given, cite sources when " +
	"research supplies them, and say plainly when you do not know. Keep formatting plain text."

// app is the composition root: every subsystem wired once at startup. It
// implements commands.Provider so system commands reach the live pieces.
type app struct {
	cfgPath string
	current atomic.Pointer[config.Config]
	watcher *config.Watcher
	stdin   *bufio.Reader

	pool  *llm.Pool
	roles *llm.RolePool

	bus      *progress.Bus
	renderer *progress.Renderer

	processor *turn.Processor
	commands  *commands.Manager

	sessions  *history.Store
	store     *workflow.ResearchStore
	digest    *workflow.Digest
	scheduler *workflow.Scheduler
}

func newApp(cfgPath string, cfg *config.Config) (*app, error) {
	a := &app{cfgPath: cfgPath, stdin: bufio.NewReader(os.Stdin)}
	a.current.Store(cfg)
	snapshot := a.current.Load

	a.pool = llm.NewPool()
	a.roles = llm.NewRolePool(snapshot, a.pool)

	a.bus = progress.NewBus(0)
	a.renderer = progress.NewRenderer(a.bus, os.Stdout)

	searchTimeout := time.Duration(cfg.Search.TimeoutSeconds) * time.Second
	brave := search.NewBraveClient(cfg.Search.BraveAPIKey, searchTimeout)
	ddg := search.NewDuckDuckGoClient(searchTimeout)
	web := search.NewWebSearcher(brave, ddg, cfg.Search.Parallel, cfg.Search.MaxPerDomain)
	core := search.NewCOREClient(cfg.Academic.COREAPIKey, searchTimeout)
	scihub := search.NewSciHubClient(cfg.Academic.SciHubMirrors, searchTimeout)
	academic := search.NewAcademicSearcher(ddg, core, scihub, cfg.Academic.PerSourceMax)

	var extractor *search.Extractor
	if cfg.Search.ContentExtraction {
		extractor = search.NewExtractor(searchTimeout)
	}
	var cache *search.Cache
	if cfg.Search.CacheEnabled {
		cache = search.NewCache(cfg.Search.CacheSize,
			time.Duration(cfg.Search.VolatileTTLMinutes)*time.Minute,
			time.Duration(cfg.Search.StableTTLMinutes)*time.Minute)
	}

	news := newsroom.NewClient(cfg.Newsroom.BaseURL, cfg.Newsroom.JWT,
		time.Duration(cfg.Newsroom.TimeoutSeconds)*time.Second)

	sess, err := tools.NewSession("")
	if err != nil {
		return nil, err
	}
	var approver tools.PlanApprover
	if stdinIsTerminal() {
		approver = &planPrompter{in: a.stdin, out: os.Stdout}
	}
	reg := tools.NewRegistry()
	detector := tools.RegisterBuiltins(reg, tools.BuiltinDeps{
		Session:  sess,
		Web:      web,
		Academic: academic,
		Specialist: tools.SpecialistOptions{
			Providers: a.roles,
			Prompts:   snapshotPrompts{snapshot},
			Out:       os.Stdout,
		},
		Approver: approver,
	})
	dispatcher := tools.NewDispatcher(reg, sess, a.bus)

	research := workflow.NewResearch(a.roles.Completer(config.RoleSearch),
		news, web, extractor, a.bus, workflow.ResearchConfig{
			MaxResults:     cfg.Search.MaxResults,
			NewsroomDays:   cfg.Newsroom.DaysBack,
			ExtractContent: cfg.Search.ContentExtraction,
		})
	a.store, err = workflow.NewResearchStore(filepath.Join(config.Dir(), "research.db"))
	if err != nil {
		return nil, err
	}
	deep := workflow.NewDeepResearch(research, a.store)
	a.digest = workflow.NewDigest(a.roles.Completer(config.RoleReasoning), news, a.bus)

	conv := turn.NewConversation(cfg.Conversation, a.roles.Completer(config.RoleReasoning))
	conv.SetSystem(systemPrompt(cfg))
	a.processor = turn.NewProcessor(conv, turn.Options{
		Snapshot:   snapshot,
		Dispatcher: dispatcher,
		Providers:  a.roles,
		Intent:     detector,
		Research:   research,
		Deep:       deep,
		Digest:     a.digest,
		Cache:      cache,
		Bus:        a.bus,
	})

	a.sessions, err = history.NewStore(filepath.Join(config.Dir(), "sessions"))
	if err != nil {
		return nil, err
	}
	a.commands = commands.NewManager(a)

	w, err := config.NewWatcher(cfgPath, func(fresh *config.Config) {
		a.current.Store(fresh)
		a.roles.Reset()
	})
	if err != nil {
		L_warn("config watcher unavailable", "error", err)
	} else {
		a.watcher = w
	}
	return a, nil
}

// Start launches the progress renderer and the config watcher. Both stop
// when ctx is cancelled.
func (a *app) Start(ctx context.Context) {
	go a.renderer.Run(ctx)
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			L_warn("config watcher failed to start", "error", err)
		}
	}
}

// ScheduleDigest registers a recurring digest job. An empty out path
// prints each digest; otherwise it is written atomically to the file.
func (a *app) ScheduleDigest(expr, out string) error {
	sched, err := workflow.NewScheduler("")
	if err != nil {
		return err
	}
	job := func() {
		cfg := a.current.Load()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		text, err := a.digest.Run(ctx, cfg.Digest.Days, "")
		if err != nil {
			L_error("scheduled digest failed", "error", err)
			return
		}
		if out == "" {
			fmt.Println(text)
			return
		}
		if err := config.AtomicWrite(out, []byte(text), 0o644); err != nil {
			L_error("cannot write digest", "path", out, "error", err)
		} else {
			L_info("digest written", "path", out, "bytes", len(text))
		}
	}
	if err := sched.Add("digest", expr, job); err != nil {
		return err
	}
	sched.Start()
	a.scheduler = sched
	return nil
}

func (a *app) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.bus.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			L_warn("research store close failed", "error", err)
		}
	}
}

func systemPrompt(cfg *config.Config) string {
	if p, ok := cfg.PromptOverride(config.RoleOrchestrator); ok {
		return p
	}
	return defaultSystemPrompt
}

// snapshotPrompts resolves prompt overrides against the live config so a
// prompts.yaml reload takes effect mid-session.
type snapshotPrompts struct {
	snapshot func() *config.Config
}

func (s snapshotPrompts) PromptOverride(role string) (string, bool) {
	return s.snapshot().PromptOverride(role)
}
