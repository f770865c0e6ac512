package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolo-run/wolo/internal/agentloop"
	"github.com/wolo-run/wolo/internal/errs"
	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/internal/procreg"
	"github.com/wolo-run/wolo/internal/session"
	"github.com/wolo-run/wolo/internal/tracing"
	"github.com/wolo-run/wolo/internal/watch"
	"github.com/wolo-run/wolo/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run the agent loop on a prompt (alias for the default invocation)",
	Args:  cobra.ArbitraryArgs,
	RunE:  runAgentInvocation,
}

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Synonym for --repl: start an interactive multi-turn session",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagRepl = true
		return runAgentInvocation(cmd, args)
	},
}

var replCmd = &cobra.Command{
	Use:   "repl [prompt]",
	Short: "Synonym for --repl: start an interactive multi-turn session",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flagRepl = true
		return runAgentInvocation(cmd, args)
	},
}

// contextTaskTemplate joins piped stdin (Context) and the positional
// argument (Task) through a fixed template.
const contextTaskTemplate = "Context:\n%s\n\nTask:\n%s"

// runAgentInvocation is the shared implementation behind the root command,
// `run`, `chat`, and `repl`: it builds the prompt from args/stdin, bootstraps
// a runtime, creates or resumes a session, and drives one Agent Loop run to
// a terminal condition, exiting with the documented exit code.
func runAgentInvocation(cmd *cobra.Command, args []string) error {
	traceShutdown := tracing.SetupFromEnv()
	defer traceShutdown(context.Background())

	prompt, err := buildPrompt(args)
	if err != nil {
		return err
	}

	mode, err := resolveMode()
	if err != nil {
		return err
	}

	workDir, err := GetWorkDir(globalWorkDir)
	if err != nil {
		return err
	}

	model := globalModel
	if model == "" {
		model = GetGlobalModel()
	}

	rt, err := bootstrap(bootstrapOptions{
		WorkDir:          workDir,
		Mode:             mode,
		Model:            model,
		AllowedPaths:     flagAllowPaths,
		WildMode:         flagWild,
		WildModeExplicit: cmd.Flags().Changed("wild"),
		AgentName:        flagAgent,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.KindConfig.ExitCode())
	}

	if flagBaseURL != "" {
		rt.Endpoint.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		rt.Endpoint.APIKey = flagAPIKey
	}

	sessionID, isNew, err := resolveSessionID(rt, flagResume)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.KindSession.ExitCode())
	}

	if isNew {
		now := time.Now().UnixMilli()
		sess := &types.Session{
			ID:            sessionID,
			CreatedAt:     now,
			UpdatedAt:     now,
			AgentType:     rt.Agent.Name,
			Title:         flagSessionName,
			Workdir:       workDir,
			ExecutionMode: string(mode),
		}
		if err := rt.Store.CreateSession(sess); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}

	if err := rt.Store.ClaimPID(sessionID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.KindSession.ExitCode())
	}
	defer rt.Store.ReleasePID(sessionID)

	if prompt != "" {
		msg := &types.Message{
			ID:        session.NewID(),
			Role:      types.RoleUser,
			Timestamp: time.Now().UnixMilli(),
			Finished:  true,
			Parts:     []types.Part{&types.TextPart{ID: session.NewID(), Type: "text", Text: prompt}},
		}
		if err := rt.Store.SaveMessage(sessionID, msg); err != nil {
			return fmt.Errorf("save initial message: %w", err)
		}
	}

	unsubscribe := subscribeRenderer(sessionID)
	defer unsubscribe()

	watchSrv := watch.New(sessionID, filepath.Join(rt.Store.SessionDir(sessionID), "watch.sock"), nil)
	if err := watchSrv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "watch server: %v\n", err)
	} else {
		defer watchSrv.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalInterrupt(ctx, cancel, rt)

	deps := rt.deps(rt.Agent)
	if flagMaxSteps > 0 {
		deps.MaxSteps = flagMaxSteps
	}

	result, runErr := agentloop.New(sessionID, deps).Run(ctx)
	procreg.Global().KillAll()
	code := agentloop.ExitCode(result, runErr)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// buildPrompt joins a piped-stdin Context with the positional-argument Task
//, or returns just one side if only one is present.
func buildPrompt(args []string) (string, error) {
	task := strings.Join(args, " ")

	stat, err := os.Stdin.Stat()
	if err != nil {
		return task, nil
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		// stdin is a TTY, not a pipe: nothing to read.
		return task, nil
	}

	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	stdinContext := strings.TrimSpace(string(data))
	if stdinContext == "" {
		return task, nil
	}
	if task == "" {
		return stdinContext, nil
	}
	return fmt.Sprintf(contextTaskTemplate, stdinContext, task), nil
}

// resolveSessionID picks up a --resume'd session or mints a fresh
// {SanitizedAgentName}_{YYMMDD}_{HHMMSS} ID.
func resolveSessionID(rt *runtime, resume string) (id string, isNew bool, err error) {
	if resume != "" {
		if _, err := rt.Store.GetSession(resume); err != nil {
			return "", false, fmt.Errorf("resume %s: %w", resume, err)
		}
		return resume, false, nil
	}
	return session.NewSessionID(rt.Agent.Name, time.Now()), true, nil
}

// subscribeRenderer prints a session's streamed events to stdout, the way a
// terminal driver for this session would, honoring --output-style and
// --json. It returns an unsubscribe func.
func subscribeRenderer(sessionID string) func() {
	if flagJSONOut {
		return event.SubscribeAll(func(e event.Event) {
			if !eventBelongsToRenderedSession(e, sessionID) {
				return
			}
			fmt.Println(renderJSONEvent(e))
		})
	}

	return event.SubscribeAll(func(e event.Event) {
		if !eventBelongsToRenderedSession(e, sessionID) {
			return
		}
		renderTextEvent(e, flagOutput)
	})
}

func eventBelongsToRenderedSession(e event.Event, sessionID string) bool {
	switch data := e.Data.(type) {
	case event.TextDeltaData:
		return data.SessionID == sessionID
	case event.ReasoningDeltaData:
		return data.SessionID == sessionID
	case event.ToolStartData:
		return data.SessionID == sessionID
	case event.ToolCompleteData:
		return data.SessionID == sessionID
	case event.FinishData:
		return data.SessionID == sessionID
	case event.LoopErrorData:
		return data.SessionID == sessionID
	}
	return false
}

func renderTextEvent(e event.Event, style string) {
	switch data := e.Data.(type) {
	case event.TextDeltaData:
		fmt.Print(data.Delta)
	case event.ReasoningDeltaData:
		if style == "verbose" {
			fmt.Print(data.Delta)
		}
	case event.ToolStartData:
		if style != "minimal" {
			brief := data.Brief
			if brief == "" {
				brief = data.Tool
			}
			fmt.Fprintf(os.Stderr, "\n> %s\n", brief)
		}
	case event.ToolCompleteData:
		if style == "verbose" {
			if data.Error != "" {
				fmt.Fprintf(os.Stderr, "! %s: %s\n", data.Tool, data.Error)
			} else if data.Brief != "" {
				fmt.Fprintf(os.Stderr, "< %s\n", data.Brief)
			}
		}
	case event.FinishData:
		fmt.Println()
		if style != "minimal" {
			fmt.Fprintf(os.Stderr, "[%s after %d step(s)]\n", data.FinishReason, data.StepCount)
		}
	case event.LoopErrorData:
		fmt.Fprintf(os.Stderr, "error: %s\n", data.Message)
	}
}

func renderJSONEvent(e event.Event) string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"type":"error","message":%q}`, err.Error())
	}
	return string(data)
}

// installSignalInterrupt maps SIGINT/SIGTERM onto the Control Manager and
// context cancellation, so any terminal path persists state and reports the
// right exit code.
func installSignalInterrupt(ctx context.Context, cancel context.CancelFunc, rt *runtime) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			rt.Control.Interrupt()
			cancel()
		case <-ctx.Done():
		}
	}()
}
