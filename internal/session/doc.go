// Package session implements the on-disk session store: durable,
// crash-safe persistence of session metadata, messages, parts, and todos
// under a per-session directory, plus the PID lock that guards against two
// processes driving the same session concurrently.
package session
