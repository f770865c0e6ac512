package types

// Config is the layered configuration the core reads at startup. It is loaded once; nothing in the core reloads it.
type Config struct {
	Endpoints       []EndpointConfig         `yaml:"endpoints" json:"endpoints"`
	DefaultEndpoint string                   `yaml:"default_endpoint" json:"default_endpoint"`
	Compaction      CompactionSettingsConfig `yaml:"compaction" json:"compaction"`
	PathSafety      PathSafetyConfig         `yaml:"path_safety" json:"path_safety"`
	MCP             MCPSettingsConfig        `yaml:"mcp" json:"mcp"`
	EnableThink     bool                     `yaml:"enable_think" json:"enable_think"`

	// Tool/agent enable flags driving the agent registry's per-agent
	// tool allow-list.
	Tools map[string]bool        `yaml:"tools,omitempty" json:"tools,omitempty"`
	Agent map[string]AgentConfig `yaml:"agent,omitempty" json:"agent,omitempty"`
}

// EndpointConfig describes one OpenAI-compatible chat-completions endpoint.
type EndpointConfig struct {
	Name        string  `yaml:"name" json:"name"`
	BaseURL     string  `yaml:"base_url" json:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model       string  `yaml:"model" json:"model"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	ContextSize int     `yaml:"context_window,omitempty" json:"context_window,omitempty"`
}

// CompactionSettingsConfig configures the Compaction Engine.
type CompactionSettingsConfig struct {
	Enabled             bool               `yaml:"enabled" json:"enabled"`
	TokenThreshold      int                `yaml:"token_threshold" json:"token_threshold"`
	ToolPruningPolicy   ToolPruningPolicy  `yaml:"tool_pruning_policy" json:"tool_pruning_policy"`
}

// ToolPruningPolicy configures the tool-output pruning policy.
type ToolPruningPolicy struct {
	Enabled               bool     `yaml:"enabled" json:"enabled"`
	ProtectRecentTurns    int      `yaml:"protect_recent_turns" json:"protect_recent_turns"`
	ProtectTokenThreshold int      `yaml:"protect_token_threshold" json:"protect_token_threshold"`
	MinimumPruneTokens    int      `yaml:"minimum_prune_tokens" json:"minimum_prune_tokens"`
	ProtectedTools        []string `yaml:"protected_tools,omitempty" json:"protected_tools,omitempty"`
	ReplacementText       string   `yaml:"replacement_text" json:"replacement_text"`
}

// PathSafetyConfig configures the Path Guard.
type PathSafetyConfig struct {
	AllowedWritePaths       []string `yaml:"allowed_write_paths,omitempty" json:"allowed_write_paths,omitempty"`
	MaxConfirmationsPerRun  int      `yaml:"max_confirmations_per_session" json:"max_confirmations_per_session"`
	AuditDenied             bool     `yaml:"audit_denied" json:"audit_denied"`
	AuditLogFile            string   `yaml:"audit_log_file" json:"audit_log_file"`
}

// MCPSettingsConfig configures external tool-server plumbing, which is out of
// scope for the core beyond this passthrough shape.
type MCPSettingsConfig struct {
	Enabled bool                       `yaml:"enabled" json:"enabled"`
	Servers map[string]MCPServerConfig `yaml:"servers,omitempty" json:"servers,omitempty"`
}

// MCPServerConfig is a single external tool-server declaration.
type MCPServerConfig struct {
	Command []string          `yaml:"command,omitempty" json:"command,omitempty"`
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// AgentConfig configures one named agent (general/plan/explore/compaction or
// a user-defined one).
type AgentConfig struct {
	Model       string             `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature *float64           `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Prompt      string             `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Tools       map[string]bool    `yaml:"tools,omitempty" json:"tools,omitempty"`
	Permission  *PermissionConfig  `yaml:"permission,omitempty" json:"permission,omitempty"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Disable     bool               `yaml:"disable,omitempty" json:"disable,omitempty"`
}

// PermissionConfig sets the allow|ask|deny rule for each permission-gated
// action.
type PermissionConfig struct {
	Edit            string `yaml:"edit,omitempty" json:"edit,omitempty"`
	Bash            string `yaml:"bash,omitempty" json:"bash,omitempty"`
	WebFetch        string `yaml:"webfetch,omitempty" json:"webfetch,omitempty"`
	ExternalDir     string `yaml:"external_directory,omitempty" json:"external_directory,omitempty"`
	Question        string `yaml:"question,omitempty" json:"question,omitempty"`
}

// Model describes one LLM model entry, used for context-window/pricing
// lookups by the agent loop and compaction engine.
type Model struct {
	ID                string  `json:"id"`
	ContextWindow     int     `json:"context_window"`
	MaxOutputTokens   int     `json:"max_output_tokens"`
	SupportsTools     bool    `json:"supports_tools"`
	SupportsReasoning bool    `json:"supports_reasoning"`
}
