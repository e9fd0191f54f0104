package llm

import (
	"context"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
)

// EndpointFromConfig converts a configured endpoint into adapter form.
func EndpointFromConfig(ec config.EndpointConfig) Endpoint {
	return Endpoint{
		Type:           ec.Type,
		URL:            ec.URL,
		BaseURL:        ec.BaseURL,
		APIKey:         ec.APIKey,
		Model:          ec.Model,
		ChatTemplate:   ec.ChatTemplate,
		MaxTokens:      ec.MaxTokens,
		Temperature:    ec.Temperature,
		TimeoutSeconds: ec.TimeoutSeconds,
	}
}

// RolePool resolves specialist roles to pooled providers against the
// current config snapshot, so a reload takes effect on the next call.
type RolePool struct {
	snapshot func() *config.Config
	pool     *Pool
}

// NewRolePool builds a role resolver over a config snapshot getter.
func NewRolePool(snapshot func() *config.Config, pool *Pool) *RolePool {
	if pool == nil {
		pool = NewPool()
	}
	return &RolePool{snapshot: snapshot, pool: pool}
}

// ForRole returns the provider serving a specialist role. Roles without
// an explicit mapping fall back to the orchestrator endpoint.
func (r *RolePool) ForRole(role string) (Provider, error) {
	cfg := r.snapshot()
	if cfg == nil {
		return nil, fault.Config("no configuration loaded")
	}
	ec, err := cfg.EndpointForRole(role)
	if err != nil {
		return nil, fault.Config("role %s: %v", role, err)
	}
	key := cfg.Roles[role]
	if key == "" {
		key = cfg.Orchestrator.Endpoint
	}
	return r.pool.Get(key, EndpointFromConfig(ec))
}

// Reset drops all pooled providers, forcing reconstruction from the
// next config snapshot.
func (r *RolePool) Reset() {
	r.pool.Reset()
}

// RoleCompleter defers role resolution to call time, so consumers that
// only need Complete pick up config reloads without re-wiring.
type RoleCompleter struct {
	roles *RolePool
	role  string
}

// Completer binds a role name to the pool as a Complete-only client.
func (r *RolePool) Completer(role string) *RoleCompleter {
	return &RoleCompleter{roles: r, role: role}
}

func (rc *RoleCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	p, err := rc.roles.ForRole(rc.role)
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, req)
}
