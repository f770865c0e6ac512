// Package modes defines the SOLO/COOP/REPL feature-flag bundles the Agent
// Loop reads once at the start of a run, exposed on the CLI as the
// mutually exclusive --solo/--coop/--repl flags.
package modes

import "github.com/wolo-run/wolo/pkg/types"

// Mode is one of the three execution modes a session runs under.
type Mode string

const (
	Solo Mode = types.ModeSolo
	Coop Mode = types.ModeCoop
	Repl Mode = types.ModeRepl
)

// Config bundles the feature flags the Agent Loop consults.
// It is read once at the start of a run and never changes mid-run.
type Config struct {
	Mode Mode

	// EnableKeyboardShortcuts wires ^A/^B/^P/^C into the Control Manager.
	// Off in COOP, where an external driver (not a human at a TTY) owns
	// the session.
	EnableKeyboardShortcuts bool

	// EnableQuestionTool includes the interactive "question" tool in the
	// projected tool list. SOLO disables it: a solo run has no human to
	// block on, so the registry must exclude it from the model's tool
	// list at projection time.
	EnableQuestionTool bool

	// EnableUIState enables renderer-facing state tracking (spinner,
	// streaming hints), irrelevant to a headless COOP driver.
	EnableUIState bool

	// ExitAfterTask ends the process once the current task's terminal
	// condition is reached. REPL is the only mode where it's false: a
	// REPL session loops back to read another prompt instead of exiting.
	ExitAfterTask bool

	// WildModeImplied reports whether this mode implies path-safety
	// bypass absent an explicit --wild/-W or opposing flag. Only SOLO sets this.
	WildModeImplied bool
}

// ForMode returns the ModeConfig bundle for a named mode, defaulting to
// Solo for an empty or unrecognized value.
func ForMode(m Mode) Config {
	switch m {
	case Coop:
		return Config{
			Mode:                    Coop,
			EnableKeyboardShortcuts: false,
			EnableQuestionTool:      true,
			EnableUIState:           false,
			ExitAfterTask:           true,
			WildModeImplied:         false,
		}
	case Repl:
		return Config{
			Mode:                    Repl,
			EnableKeyboardShortcuts: true,
			EnableQuestionTool:      true,
			EnableUIState:           true,
			ExitAfterTask:           false,
			WildModeImplied:         false,
		}
	default:
		return Config{
			Mode:                    Solo,
			EnableKeyboardShortcuts: true,
			EnableQuestionTool:      false,
			EnableUIState:           true,
			ExitAfterTask:           true,
			WildModeImplied:         true,
		}
	}
}

// Parse maps a CLI flag value to a Mode, defaulting to Solo.
func Parse(s string) Mode {
	switch s {
	case "coop":
		return Coop
	case "repl":
		return Repl
	default:
		return Solo
	}
}
