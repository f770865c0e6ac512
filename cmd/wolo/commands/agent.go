package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolo-run/wolo/internal/agent"
	"github.com/wolo-run/wolo/internal/config"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agent configurations",
	Long: `List, create, and delete agent configurations.

Beyond the built-ins, agents come from the "agent" key of the
configuration file. Markdown agents under .wolo/agent/ are listed,
scaffolded and deleted here; a run resolves -a against the built-in
and config agents only.`,
}

var agentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every known agent",
	RunE:    runAgentList,
}

var agentCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Scaffold a file-based agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentCreate,
}

var agentDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a file-based agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentDelete,
}

func init() {
	agentCmd.AddCommand(agentListCmd, agentCreateCmd, agentDeleteCmd)
}

func runAgentList(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOURCE\tDETAIL\t")

	builtins := agent.BuiltInAgents()
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s\tbuilt-in\t%s\t\n", name, builtins[name].Mode)
	}

	for name, a := range cfg.Agent {
		fmt.Fprintf(w, "%s\tconfig\t%s\t\n", name, enabledToolSummary(a.Tools))
	}

	for _, name := range fileAgentNames(workDir) {
		fmt.Fprintf(w, "%s\tfile\tcustom\t\n", name)
	}

	return w.Flush()
}

// enabledToolSummary renders a config agent's tool allow-list for display.
func enabledToolSummary(tools map[string]bool) string {
	var enabled []string
	for name, on := range tools {
		if on {
			enabled = append(enabled, name)
		}
	}
	if len(enabled) == 0 {
		return "all"
	}
	sort.Strings(enabled)
	return strings.Join(enabled, ", ")
}

// fileAgentNames lists the markdown agents under .wolo/agent/.
func fileAgentNames(workDir string) []string {
	entries, _ := os.ReadDir(filepath.Join(workDir, ".wolo", "agent"))
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
	}
	sort.Strings(names)
	return names
}

const agentTemplate = `---
name: %s
description: Custom agent for %s
mode: all
tools:
  bash: true
  edit: true
  read: true
  write: true
  glob: true
  grep: true
permission:
  edit: ask
  bash: ask
---

# %s

Describe what this agent does and how it should behave.
`

func runAgentCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	agentDir := filepath.Join(workDir, ".wolo", "agent")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(agentDir, name+".md")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("agent %s already exists", name)
	}

	body := fmt.Sprintf(agentTemplate, name, name, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}

	fmt.Printf("Created agent: %s\n", path)
	return nil
}

func runAgentDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	path := filepath.Join(workDir, ".wolo", "agent", name+".md")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("agent %s not found (only file-based agents can be deleted)", name)
	}
	if err := os.Remove(path); err != nil {
		return err
	}

	fmt.Printf("Deleted agent: %s\n", name)
	return nil
}
