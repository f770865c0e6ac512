package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wolo-run/wolo/internal/config"
	"github.com/wolo-run/wolo/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold wolo configuration",
	Long: `Inspect the layered configuration or
scaffold a starting project config file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .wolo/config.yaml in the current project",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective merged configuration as JSON",
	RunE:  runConfigShow,
}

var configListEndpointsCmd = &cobra.Command{
	Use:   "list-endpoints",
	Short: "List configured endpoints and which one is the default",
	RunE:  runConfigListEndpoints,
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file to stdout",
	RunE:  runConfigExample,
}

var configDocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Print a short description of recognized configuration keys",
	RunE:  runConfigDocs,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configListEndpointsCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configDocsCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(globalWorkDir)
	if err != nil {
		return err
	}

	path := config.ProjectConfigPath(workDir)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := config.Save(exampleConfig(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote starter config to %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(globalWorkDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runConfigListEndpoints(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(globalWorkDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tBASE URL\tDEFAULT\t")
	for _, ep := range cfg.Endpoints {
		mark := ""
		if ep.Name == cfg.DefaultEndpoint {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", ep.Name, ep.Model, ep.BaseURL, mark)
	}
	return w.Flush()
}

func runConfigExample(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(exampleConfig())
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runConfigDocs(cmd *cobra.Command, args []string) error {
	fmt.Println(`Recognized configuration keys ($XDG_CONFIG_HOME/wolo/config.yaml, default
~/.config/wolo/config.yaml, and .wolo/config.yaml; ~/.wolo/config.yaml is not read):

  endpoints:            list of OpenAI-compatible chat-completions endpoints
    - name:             short identifier default_endpoint refers to
      base_url:         https://... chat completions base URL
      api_key:          inline API key (overridden by --api-key / WOLO_API_KEY)
      model:            model identifier sent in the request body
      temperature:      sampling temperature
      max_tokens:       max output tokens requested
      context_window:   model's context size, used by the compaction trigger
  default_endpoint:     name of the endpoint to use (first endpoint if unmatched);
                        -m/--model overrides only its model
  enable_think:         whether to request/record extended-thinking output
  compaction:           Compaction Engine thresholds
  path_safety:          Path Guard allow-list and confirmation limits (§4.4)
  mcp:                  external tool-server declarations (out of scope, passthrough)
  tools / agent:        per-tool and per-agent overrides

Environment variables: WOLO_LOG_LEVEL, WOLO_API_KEY, WOLO_MODEL, WOLO_API_BASE,
WOLO_TEMPERATURE, WOLO_MAX_TOKENS, WOLO_CONTEXT_WINDOW, WOLO_MCP_SERVERS,
WOLO_ENABLE_THINK, NO_COLOR.`)
	return nil
}

func exampleConfig() *types.Config {
	return &types.Config{
		Endpoints: []types.EndpointConfig{
			{
				Name:        "default",
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o",
				Temperature: 0.7,
				MaxTokens:   4096,
				ContextSize: 128000,
			},
		},
		DefaultEndpoint: "default",
		Compaction: types.CompactionSettingsConfig{
			Enabled:        true,
			TokenThreshold: 150000,
			ToolPruningPolicy: types.ToolPruningPolicy{
				Enabled:               true,
				ProtectRecentTurns:    3,
				ProtectTokenThreshold: 2000,
				MinimumPruneTokens:    500,
				ReplacementText:       "[pruned: output too large, re-run the tool if you need it again]",
			},
		},
		PathSafety: types.PathSafetyConfig{
			MaxConfirmationsPerRun: 20,
			AuditDenied:            true,
		},
	}
}
