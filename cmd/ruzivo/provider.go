package main

import (
	"context"
	"sort"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/commands"
	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/history"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/tokens"
	"github.com/ruzivolabs/ruzivo/internal/types"
	"github.com/ruzivolabs/ruzivo/internal/workflow"
)

const modelListTimeout = 10 * time.Second

func (a *app) ConfigView() (string, *config.Config) {
	return a.cfgPath, a.current.Load()
}

// ModelStatus asks every enabled endpoint for its model list. Failures
// are reported per endpoint rather than failing the whole command.
func (a *app) ModelStatus(ctx context.Context) []commands.EndpointModels {
	cfg := a.current.Load()

	keys := make([]string, 0, len(cfg.Endpoints))
	for key := range cfg.Endpoints {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rolesByKey := map[string][]string{}
	for role, key := range cfg.Roles {
		rolesByKey[key] = append(rolesByKey[key], role)
	}
	for _, roles := range rolesByKey {
		sort.Strings(roles)
	}

	out := make([]commands.EndpointModels, 0, len(keys))
	for _, key := range keys {
		ec := cfg.Endpoints[key]
		if !ec.IsEnabled() {
			continue
		}
		em := commands.EndpointModels{
			Key:   key,
			Type:  ec.Type,
			Model: ec.Model,
			Roles: rolesByKey[key],
		}
		p, err := a.pool.Get(key, llm.EndpointFromConfig(ec))
		if err != nil {
			em.Err = err.Error()
			out = append(out, em)
			continue
		}
		lctx, cancel := context.WithTimeout(ctx, modelListTimeout)
		models, err := p.ListModels(lctx)
		cancel()
		if err != nil {
			em.Err = err.Error()
		} else {
			em.Models = models
		}
		out = append(out, em)
	}
	return out
}

func (a *app) SessionInfo() commands.SessionInfo {
	msgs := a.processor.Conversation().Messages()
	return commands.SessionInfo{
		Messages: len(msgs),
		Turns:    countTurns(msgs),
		Tokens:   tokens.EstimateMessages(msgs),
	}
}

func (a *app) ClearSession() {
	a.processor.Clear()
}

func (a *app) SaveSession(name string) (commands.SessionInfo, error) {
	if name == "" {
		name = history.DefaultName(time.Now())
	}
	snap, err := a.sessions.Save(name, a.processor.Conversation().Messages())
	if err != nil {
		return commands.SessionInfo{}, err
	}
	return snapshotInfo(snap), nil
}

func (a *app) ListSessions() ([]commands.SessionSummary, error) {
	snaps, err := a.sessions.List()
	if err != nil {
		return nil, err
	}
	out := make([]commands.SessionSummary, 0, len(snaps))
	for i := range snaps {
		s := &snaps[i]
		out = append(out, commands.SessionSummary{
			Name:      s.Name,
			UpdatedAt: s.UpdatedAt,
			Turns:     s.Turns(),
			Messages:  len(s.Messages),
		})
	}
	return out, nil
}

func (a *app) ResumeSession(name string) (commands.SessionInfo, error) {
	snap, err := a.sessions.Load(name)
	if err != nil {
		return commands.SessionInfo{}, err
	}
	if err := a.processor.Conversation().Restore(snap.Messages); err != nil {
		return commands.SessionInfo{}, err
	}
	return snapshotInfo(snap), nil
}

func (a *app) RecentResearch(limit int) ([]workflow.ResearchRun, error) {
	return a.store.ListRuns(limit)
}

func (a *app) ResearchRun(id string) (*workflow.ResearchRun, error) {
	return a.store.GetRun(id)
}

func snapshotInfo(snap *history.Snapshot) commands.SessionInfo {
	return commands.SessionInfo{
		Name:     snap.Name,
		Messages: len(snap.Messages),
		Turns:    snap.Turns(),
		Tokens:   tokens.EstimateMessages(snap.Messages),
	}
}

func countTurns(msgs []types.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == types.RoleUser {
			n++
		}
	}
	return n
}
