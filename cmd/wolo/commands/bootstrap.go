package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wolo-run/wolo/internal/agent"
	"github.com/wolo-run/wolo/internal/agentloop"
	"github.com/wolo-run/wolo/internal/compaction"
	"github.com/wolo-run/wolo/internal/config"
	"github.com/wolo-run/wolo/internal/control"
	"github.com/wolo-run/wolo/internal/llm"
	"github.com/wolo-run/wolo/internal/logging"
	"github.com/wolo-run/wolo/internal/metrics"
	"github.com/wolo-run/wolo/internal/modes"
	"github.com/wolo-run/wolo/internal/pathguard"
	"github.com/wolo-run/wolo/internal/permission"
	"github.com/wolo-run/wolo/internal/project"
	"github.com/wolo-run/wolo/internal/session"
	"github.com/wolo-run/wolo/internal/tool"
	"github.com/wolo-run/wolo/pkg/types"
)

// runtime bundles every collaborator a CLI command needs to start an Agent
// Loop, built once per invocation from the layered config plus CLI flags.
type runtime struct {
	Config  *types.Config
	Store   *session.Store
	Agents  *agent.Registry
	Tools   *tool.Registry
	Control *control.Manager
	Guard    *pathguard.Guard
	LLM      *llm.Client
	Metrics  *metrics.Collector
	DoomLoop *permission.DoomLoopDetector

	WorkDir   string
	ProjectID string
	Endpoint  types.EndpointConfig
	Mode      modes.Config
	Agent     *agent.Agent
}

// bootstrapOptions carries the flags shared by every command that starts a
// run: the working directory, mode, model override, and path-safety
// overrides.
type bootstrapOptions struct {
	WorkDir      string
	Mode         modes.Mode
	Model        string
	AllowedPaths []string
	WildMode     bool
	// WildModeExplicit reports whether the user passed --wild/-W at all
	// (in either direction). SOLO implies wild mode only when they did
	// not, so an explicit --wild=false keeps gating on.
	WildModeExplicit bool
	AgentName        string
}

// bootstrap loads configuration, builds the session store and tool/agent
// registries, and wires a pathguard + control manager for one CLI
// invocation, mirroring how a session's dependencies are assembled in
// one Config read at startup, nothing reloaded mid-run.
func bootstrap(opts bootstrapOptions) (*runtime, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	endpoint, err := resolveEndpoint(cfg, opts.Model)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(paths.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	projectID, err := project.GetProjectID(opts.WorkDir)
	if err != nil {
		projectID = project.HashDirectory(opts.WorkDir)
	}

	agents := agent.NewRegistry()
	for _, a := range agent.BuiltInAgents() {
		agents.Register(a)
	}
	agents.LoadFromConfig(toAgentConfigMap(cfg.Agent))

	activeAgent, err := agents.Get(resolveAgentName(opts.AgentName))
	if err != nil {
		return nil, fmt.Errorf("resolve agent: %w", err)
	}

	toolReg := tool.DefaultRegistry(opts.WorkDir, store)
	ctrl := control.New()
	toolReg.RegisterQuestionTool(ctrl)
	toolReg.RegisterTaskTool(agents)

	mode := modes.ForMode(opts.Mode)
	wildMode := opts.WildMode
	if !wildMode && mode.WildModeImplied && !opts.WildModeExplicit {
		wildMode = true
		fmt.Fprintln(os.Stderr, "warning: solo mode implies --wild (path-safety gating disabled); pass --wild=false to keep it on")
	}

	guard := pathguard.New(pathguard.Config{
		Workdir:                opts.WorkDir,
		AllowedWritePaths:      append(append([]string{}, cfg.PathSafety.AllowedWritePaths...), opts.AllowedPaths...),
		MaxConfirmationsPerRun: cfg.PathSafety.MaxConfirmationsPerRun,
		AuditDenied:            cfg.PathSafety.AuditDenied,
		AuditLogFile:           resolveAuditLogFile(cfg.PathSafety.AuditLogFile),
		WildMode:               wildMode,
	})

	rt := &runtime{
		Config:    cfg,
		Store:     store,
		Agents:    agents,
		Tools:     toolReg,
		Control:   ctrl,
		Guard:     guard,
		LLM:       llm.NewClient(nil),
		Metrics:   metrics.New(),
		DoomLoop:  permission.NewDoomLoopDetector(),
		WorkDir:   opts.WorkDir,
		ProjectID: projectID,
		Endpoint:  endpoint,
		Mode:      mode,
		Agent:     activeAgent,
	}

	executor := &agentloop.SubagentExecutor{
		AgentRegistry: agents,
		Base:          rt.deps(activeAgent),
	}
	toolReg.SetTaskExecutor(executor)

	return rt, nil
}

// deps projects the runtime into one Loop's Deps, parameterized by the
// agent driving that particular run (the top-level agent for the initial
// loop, or a subagent for a nested one).
func (rt *runtime) deps(a *agent.Agent) agentloop.Deps {
	return agentloop.Deps{
		Store:        rt.Store,
		ToolRegistry: rt.Tools,
		Dispatcher:   tool.NewDispatcher(rt.Tools),
		LLM:          rt.LLM,
		Control:      rt.Control,
		Metrics:      rt.Metrics,
		PathGuard:    rt.Guard,
		DoomLoop:     rt.DoomLoop,
		Compaction:   compactionConfigFrom(rt.Config.Compaction),
		Mode:         rt.Mode,
		Agent:        a,
		WorkDir:      rt.WorkDir,
		Endpoint:     rt.Endpoint,
		ProjectID:    rt.ProjectID,
		EnableThink:   rt.Config.EnableThink,
		ContextWindow: rt.Endpoint.ContextSize,
	}
}

func compactionConfigFrom(c types.CompactionSettingsConfig) compaction.Config {
	if !c.Enabled {
		return compaction.Config{}
	}
	return compaction.Config{
		ProtectRecentTurns:    c.ToolPruningPolicy.ProtectRecentTurns,
		ProtectTokenThreshold: c.ToolPruningPolicy.ProtectTokenThreshold,
		MinimumPruneTokens:    c.ToolPruningPolicy.MinimumPruneTokens,
	}
}

func resolveEndpoint(cfg *types.Config, modelOverride string) (types.EndpointConfig, error) {
	ep, err := pickEndpoint(cfg, modelOverride)
	if err != nil {
		return ep, err
	}
	applyEndpointEnv(&ep)
	return ep, nil
}

func pickEndpoint(cfg *types.Config, modelOverride string) (types.EndpointConfig, error) {
	name := cfg.DefaultEndpoint
	for _, ep := range cfg.Endpoints {
		if ep.Name == name {
			if modelOverride != "" {
				ep.Model = modelOverride
			}
			return ep, nil
		}
	}
	if len(cfg.Endpoints) > 0 {
		ep := cfg.Endpoints[0]
		if modelOverride != "" {
			ep.Model = modelOverride
		}
		return ep, nil
	}
	if modelOverride == "" && os.Getenv("WOLO_MODEL") == "" {
		return types.EndpointConfig{}, fmt.Errorf("no endpoint configured; set endpoints in config or pass --model provider/model")
	}
	return types.EndpointConfig{Name: "default", Model: modelOverride}, nil
}

// applyEndpointEnv overlays the WOLO_* endpoint environment variables.
// Malformed numeric values fall back to whatever the config resolved, with
// a debug line, never an error.
func applyEndpointEnv(ep *types.EndpointConfig) {
	if v := os.Getenv("WOLO_MODEL"); v != "" && ep.Model == "" {
		ep.Model = v
	}
	if v := os.Getenv("WOLO_API_KEY"); v != "" {
		ep.APIKey = v
	}
	if v := os.Getenv("WOLO_API_BASE"); v != "" {
		ep.BaseURL = v
	}
	if v := os.Getenv("WOLO_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			ep.Temperature = f
		} else {
			logging.Debug().Str("value", v).Msg("WOLO_TEMPERATURE is not a number, using default")
		}
	}
	if v := os.Getenv("WOLO_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ep.MaxTokens = n
		} else {
			logging.Debug().Str("value", v).Msg("WOLO_MAX_TOKENS is not an integer, using default")
		}
	}
	if v := os.Getenv("WOLO_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ep.ContextSize = n
		} else {
			logging.Debug().Str("value", v).Msg("WOLO_CONTEXT_WINDOW is not an integer, using default")
		}
	}
}

// resolveAuditLogFile defaults the path-safety audit log to
// ~/.wolo/path_audit.log when the config leaves it unset.
func resolveAuditLogFile(configured string) string {
	if configured != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wolo", "path_audit.log")
}

func resolveAgentName(name string) string {
	if name != "" {
		return name
	}
	return "general"
}

func toAgentConfigMap(in map[string]types.AgentConfig) map[string]agent.AgentConfig {
	out := make(map[string]agent.AgentConfig, len(in))
	for name, a := range in {
		out[name] = agent.AgentConfig{
			Description: a.Description,
			Tools:       a.Tools,
		}
	}
	return out
}
