package permission

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

const (
	// DoomLoopThreshold is how many identical consecutive calls count as
	// a loop.
	DoomLoopThreshold = 3
	// doomHistoryCap bounds per-session history.
	doomHistoryCap = 10
)

// DoomLoopDetector notices a model re-issuing the exact same tool call
// over and over, so the loop can be interrupted by policy instead of
// burning steps.
type DoomLoopDetector struct {
	mu      sync.RWMutex
	history map[string][]string // session -> recent call fingerprints
}

// NewDoomLoopDetector creates an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[string][]string)}
}

// Check records one call and reports whether it is the DoomLoopThreshold-th
// identical call in a row for this session.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	fp := fingerprint(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := d.history[sessionID]
	looping := isRepeat(history, fp)

	history = append(history, fp)
	if len(history) > doomHistoryCap {
		history = history[len(history)-doomHistoryCap:]
	}
	d.history[sessionID] = history

	return looping
}

// isRepeat reports whether the last DoomLoopThreshold-1 fingerprints all
// equal fp.
func isRepeat(history []string, fp string) bool {
	need := DoomLoopThreshold - 1
	if len(history) < need {
		return false
	}
	for _, prev := range history[len(history)-need:] {
		if prev != fp {
			return false
		}
	}
	return true
}

// fingerprint hashes a tool name plus its input into a stable key.
func fingerprint(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{"tool": toolName, "input": input})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Clear forgets a session entirely.
func (d *DoomLoopDetector) Clear(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

// Reset empties a session's history once a different call breaks the loop.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history[sessionID] = nil
}
