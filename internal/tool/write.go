package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wolo-run/wolo/internal/event"
)

const writeDescription = `Write content to a file, replacing it if it exists.

- file_path must be absolute.
- Missing parent directories are created.
- Prefer the edit tool for changing existing files; write is for new files
  or full rewrites.`

// WriteTool creates or overwrites files, gated by the session's path guard.
type WriteTool struct {
	workDir string
}

type writeParams struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// NewWriteTool creates the write tool rooted at workDir.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{workDir: workDir}
}

func (t *WriteTool) ID() string          { return "write" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {
				"type": "string",
				"description": "Absolute path of the file to write"
			},
			"content": {
				"type": "string",
				"description": "Full content to write"
			}
		},
		"required": ["file_path", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params writeParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	canon, err := resolvePath(toolCtx, params.FilePath)
	if err != nil {
		return nil, err
	}

	// Capture prior content for the diff; a missing file diffs from empty.
	before := ""
	if prev, err := os.ReadFile(canon); err == nil {
		before = string(prev)
	}

	if err := os.MkdirAll(filepath.Dir(canon), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(canon, []byte(params.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", canon, err)
	}

	publishFileEdited(toolCtx, canon)

	meta := map[string]any{
		"file":  canon,
		"bytes": len(params.Content),
	}
	if diff, added, removed := buildDiffMetadata(canon, before, params.Content, t.workDir); diff != "" {
		meta["diff"] = diff
		meta["additions"] = added
		meta["deletions"] = removed
	}

	return &Result{
		Title:    "Wrote " + filepath.Base(canon),
		Output:   fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), canon),
		Metadata: meta,
	}, nil
}

// publishFileEdited announces a filesystem mutation on the bus so renderers
// and watch observers can surface it.
func publishFileEdited(toolCtx *Context, path string) {
	if toolCtx == nil || toolCtx.SessionID == "" {
		return
	}
	event.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path},
	})
}
