package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/wolo-run/wolo/internal/permission"
	"github.com/wolo-run/wolo/internal/procreg"
)

const (
	// DefaultBashTimeout bounds a command that didn't ask for more time.
	DefaultBashTimeout = 30 * time.Second
	// MaxBashTimeout caps what a command may ask for.
	MaxBashTimeout = 10 * time.Minute
	// MaxOutputLength truncates runaway command output.
	MaxOutputLength = 30000
	// sigkillGrace is how long the process group gets between SIGTERM
	// and SIGKILL after a timeout.
	sigkillGrace = 200 * time.Millisecond
)

const bashDescription = `Run a shell command and capture its combined output.

- timeout is in milliseconds; commands are killed when it expires
  (default 30s, max 10min).
- description should say what the command does in a few words.
- The command runs in its own process group so stray children are
  cleaned up with it.`

// BashTool executes shell commands under the session's permission rules.
type BashTool struct {
	workDir     string
	shell       string
	permChecker *permission.Checker
	permissions map[string]permission.PermissionAction
	externalDir permission.PermissionAction
}

type bashParams struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"`
	Description string `json:"description"`
}

// BashToolOption configures the bash tool.
type BashToolOption func(*BashTool)

// WithPermissionChecker attaches the interactive permission checker.
func WithPermissionChecker(checker *permission.Checker) BashToolOption {
	return func(t *BashTool) { t.permChecker = checker }
}

// WithBashPermissions sets the per-command-pattern permission table.
func WithBashPermissions(perms map[string]permission.PermissionAction) BashToolOption {
	return func(t *BashTool) { t.permissions = perms }
}

// WithExternalDirAction sets how commands touching paths outside the
// working directory are handled.
func WithExternalDirAction(action permission.PermissionAction) BashToolOption {
	return func(t *BashTool) { t.externalDir = action }
}

// NewBashTool creates the bash tool rooted at workDir.
func NewBashTool(workDir string, opts ...BashToolOption) *BashTool {
	t := &BashTool{
		workDir:     workDir,
		shell:       loginShell(),
		permissions: make(map[string]permission.PermissionAction),
		externalDir: permission.ActionAsk,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// loginShell picks the shell commands run under. fish and nushell are
// skipped: their syntax breaks POSIX command lines the model writes.
func loginShell() string {
	switch s := os.Getenv("SHELL"); s {
	case "", "/bin/fish", "/usr/bin/fish", "/bin/nu", "/usr/bin/nu":
	default:
		return s
	}
	switch runtime.GOOS {
	case "darwin":
		return "/bin/zsh"
	case "windows":
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

func (t *BashTool) ID() string          { return "bash" }
func (t *BashTool) Description() string { return bashDescription }

func (t *BashTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The shell command to run"
			},
			"timeout": {
				"type": "integer",
				"description": "Timeout in milliseconds (max 600000)"
			},
			"description": {
				"type": "string",
				"description": "What this command does, in a few words"
			}
		},
		"required": ["command", "description"]
	}`)
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params bashParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if t.permChecker != nil && toolCtx != nil {
		if err := t.checkPermissions(ctx, params.Command, toolCtx); err != nil {
			return nil, err
		}
	}

	timeout := DefaultBashTimeout
	if params.Timeout > 0 {
		timeout = min(time.Duration(params.Timeout)*time.Millisecond, MaxBashTimeout)
	}

	if toolCtx != nil {
		toolCtx.SetMetadata(params.Description, map[string]any{
			"description": params.Description,
			"output":      "",
		})
	}

	output, exitCode, timedOut, err := t.run(ctx, params.Command, timeout, toolCtx)
	if err != nil {
		return nil, err
	}

	if len(output) > MaxOutputLength {
		output = output[:MaxOutputLength] + "\n\n(Output truncated)"
	}
	if timedOut {
		output += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
	}

	title := params.Description
	if title == "" {
		title = "Run command"
	}
	return &Result{
		Title:  title,
		Output: output,
		Metadata: map[string]any{
			"description": params.Description,
			"output":      output,
			"exit":        exitCode,
			"timed_out":   timedOut,
		},
	}, nil
}

// run starts the shell, registers the child with the process registry so a
// shutdown can reap it, and waits out the command or its deadline.
func (t *BashTool) run(ctx context.Context, command string, timeout time.Duration, toolCtx *Context) (output string, exitCode int, timedOut bool, err error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, t.shell, "/c", command)
	} else {
		cmd = exec.CommandContext(cmdCtx, t.shell, "-c", command)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	cmd.Dir = t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		cmd.Dir = toolCtx.WorkDir
	}
	cmd.Env = os.Environ()

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return "", 0, false, fmt.Errorf("start command: %w", err)
	}

	if runtime.GOOS != "windows" {
		procreg.Global().Register(cmd.Process.Pid)
		defer procreg.Global().Unregister(cmd.Process.Pid)
	}

	waitErr := cmd.Wait()
	timedOut = cmdCtx.Err() == context.DeadlineExceeded
	if timedOut {
		// The context kill only reaches the direct child; sweep the whole
		// process group so grandchildren don't outlive the timeout.
		t.killGroup(cmd)
	}

	output = buf.String()
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if waitErr != nil && !timedOut {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			output += fmt.Sprintf("\n\nError: %v", waitErr)
		}
	}
	return output, exitCode, timedOut, nil
}

// killGroup terminates the command's whole process group. Wait has already
// returned by the time this runs, so signalling an empty group is a no-op.
func (t *BashTool) killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if runtime.GOOS == "windows" {
		exec.Command("taskkill", "/pid", fmt.Sprint(pid), "/f", "/t").Run()
		return
	}
	syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(sigkillGrace)
	syscall.Kill(-pid, syscall.SIGKILL)
}

// FormatToolStart prefers the model-supplied description, falling back to
// the command line itself.
func (t *BashTool) FormatToolStart(input map[string]any) string {
	if desc, _ := input["description"].(string); desc != "" {
		return desc
	}
	if command, _ := input["command"].(string); command != "" {
		return "$ " + command
	}
	return ""
}

// FormatToolComplete surfaces the exit code alongside status and duration.
func (t *BashTool) FormatToolComplete(output, status string, duration time.Duration, metadata map[string]any) string {
	exit, ok := metadata["exit"].(int)
	if !ok {
		return ""
	}
	return fmt.Sprintf("exit %d, %s (%s)", exit, status, duration.Round(time.Millisecond))
}

// ShowOutput is always true for shell commands: their output is the point.
func (t *BashTool) ShowOutput() bool { return true }

// checkPermissions parses the command line into simple commands and applies
// the pattern table plus the external-directory rule to each.
func (t *BashTool) checkPermissions(ctx context.Context, command string, toolCtx *Context) error {
	commands, err := permission.ParseBashCommand(command)
	if err != nil {
		// Unparseable input can hide anything; hand it to the user whole.
		return t.permChecker.Ask(ctx, permission.Request{
			Type:      permission.PermBash,
			Pattern:   []string{command},
			SessionID: toolCtx.SessionID,
			MessageID: toolCtx.MessageID,
			CallID:    toolCtx.CallID,
			Title:     command,
			Metadata:  map[string]any{"command": command, "parse_failed": true},
		})
	}

	workDir := t.workDir
	if toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}

	var askPatterns []string
	for _, cmd := range commands {
		if err := t.checkExternalPaths(ctx, command, cmd, workDir, toolCtx); err != nil {
			return err
		}
		if cmd.Name == "cd" {
			continue
		}

		switch permission.MatchBashPermission(cmd, t.permissions) {
		case permission.ActionDeny:
			return &permission.RejectedError{
				SessionID: toolCtx.SessionID,
				Type:      permission.PermBash,
				CallID:    toolCtx.CallID,
				Message:   fmt.Sprintf("Command not allowed: %s", cmd.Name),
				Metadata:  map[string]any{"command": command, "permissions": t.permissions},
			}
		case permission.ActionAsk:
			askPatterns = append(askPatterns, permission.BuildPattern(cmd))
		}
	}

	if len(askPatterns) == 0 {
		return nil
	}
	return t.permChecker.Ask(ctx, permission.Request{
		Type:      permission.PermBash,
		Pattern:   dedupe(askPatterns),
		SessionID: toolCtx.SessionID,
		MessageID: toolCtx.MessageID,
		CallID:    toolCtx.CallID,
		Title:     command,
		Metadata:  map[string]any{"command": command, "patterns": dedupe(askPatterns)},
	})
}

// checkExternalPaths applies the external-directory action to any path a
// mutating command references outside the working directory.
func (t *BashTool) checkExternalPaths(ctx context.Context, full string, cmd permission.BashCommand, workDir string, toolCtx *Context) error {
	if !permission.IsDangerousCommand(cmd.Name) {
		return nil
	}
	for _, p := range permission.ExtractPaths(cmd) {
		resolved, err := permission.ResolvePath(ctx, p, workDir)
		if err != nil {
			continue
		}
		if permission.IsWithinDir(resolved, workDir) {
			continue
		}
		switch t.externalDir {
		case permission.ActionDeny:
			return &permission.RejectedError{
				SessionID: toolCtx.SessionID,
				Type:      permission.PermExternalDir,
				CallID:    toolCtx.CallID,
				Message:   fmt.Sprintf("Command references paths outside of %s", workDir),
				Metadata:  map[string]any{"command": full, "path": resolved},
			}
		case permission.ActionAsk:
			err := t.permChecker.Ask(ctx, permission.Request{
				Type:      permission.PermExternalDir,
				Pattern:   []string{filepath.Dir(resolved), filepath.Join(filepath.Dir(resolved), "*")},
				SessionID: toolCtx.SessionID,
				MessageID: toolCtx.MessageID,
				CallID:    toolCtx.CallID,
				Title:     fmt.Sprintf("Command references paths outside of %s", workDir),
				Metadata:  map[string]any{"command": full, "path": resolved},
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
