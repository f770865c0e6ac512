package session

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/wolo-run/wolo/pkg/types"
)

// ClaimPID records the current process as the active driver of a session,
// refusing the claim if another live process already holds it.
func (s *Store) ClaimPID(sessionID string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}

	if sess.PID != nil && processAlive(*sess.PID) && *sess.PID != os.Getpid() {
		return fmt.Errorf("session: %s is already active under pid %d", sessionID, *sess.PID)
	}

	pid := os.Getpid()
	now := time.Now().UnixMilli()
	sess.PID = &pid
	sess.PIDUpdatedAt = &now
	return s.SaveSession(sess)
}

// ReleasePID clears the PID claim, normally called when a session run ends.
func (s *Store) ReleasePID(sessionID string) error {
	sess, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess.PID == nil || *sess.PID != os.Getpid() {
		return nil
	}
	sess.PID = nil
	sess.PIDUpdatedAt = nil
	return s.SaveSession(sess)
}

// IsRunning reports whether sess is currently owned by a live process,
// the same check ClaimPID performs, exposed for session-listing callers.
func IsRunning(sess *types.Session) bool {
	return sess.PID != nil && processAlive(*sess.PID)
}

// processAlive reports whether pid refers to a currently running process.
// On POSIX systems signal 0 performs existence/permission checks without
// actually signaling the process.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
