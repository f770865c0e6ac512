// Package commands provides the CLI commands for Wolo.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolo-run/wolo/internal/config"
	"github.com/wolo-run/wolo/internal/logging"
	"github.com/wolo-run/wolo/internal/modes"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags.
var (
	printLogs  bool
	logLevel   string
	logFile    bool
	showConfig bool

	globalModel   string
	globalWorkDir string

	flagSolo bool
	flagCoop bool
	flagRepl bool

	flagSessionName string
	flagResume      string
	flagWatch       string
	flagList        bool

	flagAllowPaths []string
	flagWild       bool

	flagAgent     string
	flagMaxSteps  int
	flagBaseURL   string
	flagAPIKey    string
	flagNoColor   bool
	flagOutput    string
	flagJSONOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "wolo [prompt]",
	Short: "Wolo - an agentic coding assistant core",
	Long: `Wolo runs a single agent loop against an OpenAI-compatible chat
completions endpoint, dispatching tool calls locally and persisting every
session to disk.

A positional prompt and/or piped stdin starts a run directly; stdin (if
present) is formatted as Context and the positional argument as Task. Use
the session/config subcommands to inspect persisted state, or chat/repl as
synonyms for --repl.`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logFile,
		}
		if !printLogs && !logFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if logFile {
			logging.Info().
				Str("version", Version).
				Str("logFile", logging.GetLogFilePath()).
				Msg("wolo started with file logging")
		}

		if showConfig {
			dir, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
				os.Exit(1)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling config: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			os.Exit(0)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagList {
			return runSessionList(cmd, nil)
		}
		if flagWatch != "" {
			return runSessionWatch(cmd, []string{flagWatch})
		}
		return runAgentInvocation(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Write logs to /tmp/wolo-YYYYMMDD-HHMMSS.log")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "Print merged configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVarP(&globalModel, "model", "m", "", "Model to use (endpoint override)")
	rootCmd.PersistentFlags().StringVarP(&globalWorkDir, "workdir", "C", "", "Working directory (default: current directory)")

	rootCmd.Flags().BoolVar(&flagSolo, "solo", false, "Run in SOLO mode (default): keyboard shortcuts, no question tool, exits after the task")
	rootCmd.Flags().BoolVar(&flagCoop, "coop", false, "Run in COOP mode: question tool enabled, no keyboard shortcuts, for a scripted driver")
	rootCmd.Flags().BoolVar(&flagRepl, "repl", false, "Run in REPL mode: keyboard shortcuts and question tool, loops for another prompt instead of exiting")

	rootCmd.Flags().StringVarP(&flagSessionName, "session", "s", "", "Name the session being created")
	rootCmd.Flags().StringVarP(&flagResume, "resume", "r", "", "Resume an existing session by ID")
	rootCmd.Flags().StringVarP(&flagWatch, "watch", "w", "", "Connect to a session's watch socket and print events (never writes)")
	rootCmd.Flags().BoolVarP(&flagList, "list", "l", false, "List sessions with status")

	rootCmd.Flags().StringArrayVarP(&flagAllowPaths, "allow-path", "P", nil, "Allow writes under this path without confirmation (repeatable)")
	rootCmd.Flags().BoolVarP(&flagWild, "wild", "W", false, "Bypass path-safety gating entirely for this run")

	rootCmd.Flags().StringVarP(&flagAgent, "agent", "a", "", "Agent to run (general|plan|explore|compaction)")
	rootCmd.Flags().IntVarP(&flagMaxSteps, "max-steps", "n", 0, "Maximum agent loop steps before aborting (default: 50)")
	rootCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Override the endpoint's base URL")
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "Override the endpoint's API key")
	rootCmd.Flags().BoolVar(&flagNoColor, "no-color", false, "Disable ANSI color in output")
	rootCmd.Flags().StringVar(&flagOutput, "output-style", "default", "Output verbosity (minimal|default|verbose)")
	rootCmd.Flags().BoolVar(&flagJSONOut, "json", false, "Emit newline-delimited JSON events instead of rendered text")

	rootCmd.SetVersionTemplate(fmt.Sprintf("wolo %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(debugCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	if globalWorkDir != "" {
		return globalWorkDir, nil
	}
	return os.Getwd()
}

// GetGlobalModel returns the global model flag value.
func GetGlobalModel() string {
	return globalModel
}

// resolveMode applies the mutually-exclusive mode flags,
// defaulting to SOLO.
func resolveMode() (modes.Mode, error) {
	set := 0
	if flagSolo {
		set++
	}
	if flagCoop {
		set++
	}
	if flagRepl {
		set++
	}
	if set > 1 {
		return "", fmt.Errorf("--solo, --coop, and --repl are mutually exclusive")
	}
	switch {
	case flagCoop:
		return modes.Coop, nil
	case flagRepl:
		return modes.Repl, nil
	default:
		return modes.Solo, nil
	}
}
