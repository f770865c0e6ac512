package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugSink is the adapter's debug side channel: a running
// appended log with one timestamped summary line per request and per
// response status (no headers), and/or a per-request file with the
// full serialized input, raw SSE stream, and a finish-reason trailer.
type DebugSink struct {
	mu        sync.Mutex
	filePath  string // incremental summary log
	dirPath   string // one file per request, full detail
	reqCount  int
}

// NewDebugSink returns a DebugSink, or nil if neither path is configured;
// callers treat a nil *DebugSink as "disabled" throughout.
func NewDebugSink(filePath, dirPath string) *DebugSink {
	if filePath == "" && dirPath == "" {
		return nil
	}
	return &DebugSink{filePath: filePath, dirPath: dirPath}
}

// requestFile opens (creating if needed) the per-request debug file and
// returns its path, or "" if dirPath is not configured.
func (d *DebugSink) requestFile(model string, payload []byte) string {
	if d == nil || d.dirPath == "" {
		return ""
	}
	d.mu.Lock()
	d.reqCount++
	n := d.reqCount
	d.mu.Unlock()

	name := fmt.Sprintf("req_%s_%d.json", time.Now().UTC().Format("20060102_150405"), n)
	path := filepath.Join(d.dirPath, name)
	content := fmt.Sprintf("---INPUT---\nmodel: %s\n%s\n---OUTPUT---\n", model, payload)
	_ = os.WriteFile(path, []byte(content), 0644)
	return path
}

// appendLine appends one summary line, prefixed with a UTC timestamp, to the
// incremental debug log.
func (d *DebugSink) appendLine(line string) {
	if d == nil || d.filePath == "" {
		return
	}
	f, err := os.OpenFile(d.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(time.Now().UTC().Format(time.RFC3339) + " " + line)
}

// appendRaw appends raw SSE bytes to the per-request debug file.
func (d *DebugSink) appendRaw(path string, data []byte) {
	if d == nil || path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(data)
}

// trailer closes a per-request capture with the finish reason.
func (d *DebugSink) trailer(path, finishReason string) {
	if d == nil || path == "" {
		return
	}
	d.appendRaw(path, []byte(fmt.Sprintf("\n---END--- (finish_reason: %s)\n", finishReason)))
}
