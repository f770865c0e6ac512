// Package pathguard implements the filesystem write gate: a stateful,
// per-session resolver that keeps file-writing tools from escaping the
// directories a session is allowed to touch.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of a Resolve call.
type Decision string

const (
	DecisionAllowed          Decision = "allowed"
	DecisionNeedsConfirm     Decision = "needs_confirmation"
	DecisionDenied           Decision = "denied"
)

// Error is a typed path-safety error.
type Error struct {
	Reason string
	Path   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("path safety: %s: %s", e.Reason, e.Path)
}

const (
	ReasonOutsideWorkdir   = "outside_workdir"
	ReasonDenyPattern      = "matches_deny_pattern"
	ReasonSymlinkEscape    = "symlink_escapes_workdir"
	ReasonConfirmLimit     = "max_confirmations_exceeded"
)

// Guard is a per-session path resolver. It is stateful: once a directory has
// been confirmed, subsequent writes under it do not re-prompt, and wild_mode
// disables gating entirely for the life of the session.
type Guard struct {
	mu sync.Mutex

	workdir string

	allowedWritePaths []string
	wildMode          bool

	maxConfirmationsPerRun int
	confirmationsUsed      int
	confirmedDirs          map[string]bool

	auditDenied  bool
	auditLogFile string
	auditLog     []AuditEntry
}

// AuditEntry records one denied or confirmed resolution.
type AuditEntry struct {
	Path     string
	Decision Decision
	Reason   string
}

// Config configures a new Guard, mirroring types.PathSafetyConfig.
type Config struct {
	Workdir                string
	AllowedWritePaths      []string
	MaxConfirmationsPerRun int
	AuditDenied            bool
	// AuditLogFile receives one appended line per audited resolution.
	// Empty disables the file (in-memory audit entries remain).
	AuditLogFile string
	WildMode     bool
}

// New creates a Guard scoped to one session's working directory.
func New(cfg Config) *Guard {
	max := cfg.MaxConfirmationsPerRun
	if max <= 0 {
		max = 20
	}
	return &Guard{
		workdir:                cfg.Workdir,
		allowedWritePaths:      cfg.AllowedWritePaths,
		maxConfirmationsPerRun: max,
		confirmedDirs:          make(map[string]bool),
		auditDenied:            cfg.AuditDenied,
		auditLogFile:           cfg.AuditLogFile,
		wildMode:               cfg.WildMode,
	}
}

// SetWildMode toggles the bypass: when enabled, all
// paths resolve as allowed without gating or confirmation.
func (g *Guard) SetWildMode(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wildMode = enabled
}

// Resolve canonicalizes path (relative to the session workdir, following
// symlinks) and classifies it as allowed, needing confirmation, or denied.
// A canonicalization failure (e.g. a broken symlink for a not-yet-created
// file) falls back to the lexical join, since a write tool must still be
// able to create a new file that doesn't exist yet.
func (g *Guard) Resolve(path string) (string, Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(g.workdir, abs)
	}
	canon := canonicalize(abs)

	if g.wildMode {
		return canon, DecisionAllowed, nil
	}

	if !g.isContained(canon, g.workdir) {
		return canon, g.classifyOutside(canon), nil
	}

	for _, pattern := range g.allowedWritePaths {
		if matched, _ := doublestar.Match(pattern, canon); matched {
			return canon, DecisionAllowed, nil
		}
	}

	dir := filepath.Dir(canon)
	if g.confirmedDirs[dir] {
		return canon, DecisionAllowed, nil
	}

	return canon, DecisionNeedsConfirm, nil
}

// classifyOutside decides whether an out-of-workdir path is deniable outright
// or eligible for a one-time "external directory" confirmation, per the
// external_directory permission.
func (g *Guard) classifyOutside(canon string) Decision {
	if g.confirmationsUsed >= g.maxConfirmationsPerRun {
		g.record(canon, DecisionDenied, ReasonConfirmLimit)
		return DecisionDenied
	}
	if g.confirmedDirs[filepath.Dir(canon)] {
		return DecisionAllowed
	}
	return DecisionNeedsConfirm
}

// Confirm records that the user approved a write under dir, so subsequent
// resolutions in the same directory do not re-prompt.
func (g *Guard) Confirm(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	dir := filepath.Dir(canonicalize(path))
	g.confirmedDirs[dir] = true
	g.confirmationsUsed++
	g.record(path, DecisionAllowed, "confirmed_by_user")
}

// Deny records a user rejection in the audit log without changing state.
func (g *Guard) Deny(path, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(path, DecisionDenied, reason)
}

func (g *Guard) record(path string, d Decision, reason string) {
	if d == DecisionDenied && !g.auditDenied {
		return
	}
	entry := AuditEntry{Path: path, Decision: d, Reason: reason}
	g.auditLog = append(g.auditLog, entry)
	g.appendAuditLine(entry)
	log.Debug().Str("path", path).Str("decision", string(d)).Str("reason", reason).Msg("pathguard: resolution")
}

// appendAuditLine writes one audit record to the append-only log file.
// Audit failures are logged, never fatal: a full disk must not turn a
// denial into a crash.
func (g *Guard) appendAuditLine(entry AuditEntry) {
	if g.auditLogFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(g.auditLogFile), 0o755); err != nil {
		log.Debug().Err(err).Msg("pathguard: audit log directory")
		return
	}
	f, err := os.OpenFile(g.auditLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		log.Debug().Err(err).Msg("pathguard: audit log open")
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s\t%s\t%s\t%s\n",
		time.Now().UTC().Format(time.RFC3339), entry.Decision, entry.Reason, entry.Path)
}

// Audit returns a copy of the accumulated audit log.
func (g *Guard) Audit() []AuditEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]AuditEntry, len(g.auditLog))
	copy(out, g.auditLog)
	return out
}

// isContained reports whether canon is workdir itself or lies beneath it.
func (g *Guard) isContained(canon, workdir string) bool {
	workdirCanon := canonicalize(workdir)
	if canon == workdirCanon {
		return true
	}
	rel, err := filepath.Rel(workdirCanon, canon)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// canonicalize resolves symlinks when possible, otherwise returns the
// lexically cleaned absolute path (new files have no link to resolve yet).
func canonicalize(path string) string {
	clean := filepath.Clean(path)
	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return canonicalizeMissing(clean)
		}
		return clean
	}
	return resolved
}

// canonicalizeMissing resolves symlinks on the longest existing ancestor of
// a not-yet-created path, then rejoins the missing suffix.
func canonicalizeMissing(clean string) string {
	dir, base := filepath.Split(clean)
	dir = filepath.Clean(dir)
	if dir == clean || dir == "." || dir == string(filepath.Separator) {
		return clean
	}
	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return filepath.Join(canonicalizeMissing(dir), base)
		}
		return clean
	}
	return filepath.Join(resolvedDir, base)
}
