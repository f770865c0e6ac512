package agent

import (
	"fmt"
	"sync"

	"github.com/wolo-run/wolo/internal/permission"
)

// Registry holds every agent a process knows: built-ins plus any loaded
// from configuration. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry creates a registry pre-populated with the built-in agents.
func NewRegistry() *Registry {
	return &Registry{agents: BuiltInAgents()}
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", name)
	}
	return a, nil
}

// Register adds or replaces an agent.
func (r *Registry) Register(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name] = a
}

// Unregister removes an agent by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, name)
}

// List returns all registered agents in unspecified order.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// ListPrimary returns the agents that may drive a session.
func (r *Registry) ListPrimary() []*Agent {
	return r.filter((*Agent).IsPrimary)
}

// ListSubagents returns the agents the task tool may delegate to.
func (r *Registry) ListSubagents() []*Agent {
	return r.filter((*Agent).IsSubagent)
}

func (r *Registry) filter(keep func(*Agent) bool) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Agent
	for _, a := range r.agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Names returns every registered agent name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

// Exists reports whether an agent is registered under name.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Count returns how many agents are registered.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// LoadFromConfig overlays user-configured agents. An entry naming a
// built-in clones it first so the stock definition stays pristine; an
// unknown name starts from an empty primary agent.
func (r *Registry) LoadFromConfig(config map[string]AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cfg := range config {
		base, exists := r.agents[name]
		var a *Agent
		if exists {
			a = base.Clone()
			a.BuiltIn = false
		} else {
			a = &Agent{
				Name:  name,
				Mode:  ModePrimary,
				Tools: make(map[string]bool),
			}
		}
		applyConfig(a, cfg)
		r.agents[name] = a
	}
}

// applyConfig merges one config entry onto an agent; zero values leave the
// base untouched.
func applyConfig(a *Agent, cfg AgentConfig) {
	if cfg.Description != "" {
		a.Description = cfg.Description
	}
	if cfg.Mode != "" {
		a.Mode = cfg.Mode
	}
	if cfg.Model != nil {
		a.Model = cfg.Model
	}
	if cfg.Prompt != "" {
		a.Prompt = cfg.Prompt
	}
	if cfg.Temperature > 0 {
		a.Temperature = cfg.Temperature
	}
	if cfg.TopP > 0 {
		a.TopP = cfg.TopP
	}
	if cfg.Color != "" {
		a.Color = cfg.Color
	}
	if cfg.Tools != nil {
		if a.Tools == nil {
			a.Tools = make(map[string]bool)
		}
		for k, v := range cfg.Tools {
			a.Tools[k] = v
		}
	}
	if cfg.Options != nil {
		if a.Options == nil {
			a.Options = make(map[string]any)
		}
		for k, v := range cfg.Options {
			a.Options[k] = v
		}
	}
	if p := cfg.Permission; p != nil {
		if p.Edit != "" {
			a.Permission.Edit = p.Edit
		}
		if p.WebFetch != "" {
			a.Permission.WebFetch = p.WebFetch
		}
		if p.ExternalDir != "" {
			a.Permission.ExternalDir = p.ExternalDir
		}
		if p.DoomLoop != "" {
			a.Permission.DoomLoop = p.DoomLoop
		}
		if p.Bash != nil {
			if a.Permission.Bash == nil {
				a.Permission.Bash = make(map[string]permission.PermissionAction)
			}
			for k, v := range p.Bash {
				a.Permission.Bash[k] = v
			}
		}
	}
}

// AgentConfig is the user-facing shape of one configured agent.
type AgentConfig struct {
	Description string                 `json:"description,omitempty"`
	Mode        Mode                   `json:"mode,omitempty"`
	Model       *ModelRef              `json:"model,omitempty"`
	Prompt      string                 `json:"prompt,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
	TopP        float64                `json:"top_p,omitempty"`
	Color       string                 `json:"color,omitempty"`
	Tools       map[string]bool        `json:"tools,omitempty"`
	Permission  *AgentPermissionConfig `json:"permission,omitempty"`
	Options     map[string]any         `json:"options,omitempty"`
}

// AgentPermissionConfig mirrors AgentPermission for config files.
type AgentPermissionConfig struct {
	Edit        permission.PermissionAction            `json:"edit,omitempty"`
	Bash        map[string]permission.PermissionAction `json:"bash,omitempty"`
	WebFetch    permission.PermissionAction            `json:"webfetch,omitempty"`
	ExternalDir permission.PermissionAction            `json:"external_directory,omitempty"`
	DoomLoop    permission.PermissionAction            `json:"doom_loop,omitempty"`
}
