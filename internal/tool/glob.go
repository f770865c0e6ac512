package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const globMaxResults = 100

const globDescription = `Find files by name pattern.

- Supports doublestar globs such as "**/*.go" or "internal/**/*_test.go".
- Results are sorted by modification time, newest first.
- Use grep to search file contents instead.`

// GlobTool matches files against a glob pattern without shelling out.
type GlobTool struct {
	workDir string
}

type globParams struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates the glob tool rooted at workDir.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "Glob pattern to match file paths against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search from (defaults to the working directory)"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params globParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	root := searchRoot(t.workDir, toolCtx, params.Path)
	matches, err := globByMtime(root, params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", params.Pattern, err)
	}

	if len(matches) == 0 {
		return &Result{
			Title:    "No matches",
			Output:   "No files matched the pattern",
			Metadata: map[string]any{"pattern": params.Pattern, "count": 0},
		}, nil
	}

	truncated := len(matches) > globMaxResults
	if truncated {
		matches = matches[:globMaxResults]
	}

	out := strings.Join(matches, "\n")
	if truncated {
		out += fmt.Sprintf("\n\n(first %d matches shown; narrow the pattern for more)", globMaxResults)
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d files", len(matches)),
		Output: out,
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(matches),
			"truncated": truncated,
		},
	}, nil
}

// searchRoot resolves the directory a search-style tool operates in: the
// per-call override wins, relative overrides are joined onto the session
// workdir.
func searchRoot(base string, toolCtx *Context, override string) string {
	root := base
	if toolCtx != nil && toolCtx.WorkDir != "" {
		root = toolCtx.WorkDir
	}
	if override == "" {
		return root
	}
	if filepath.IsAbs(override) {
		return override
	}
	return filepath.Join(root, override)
}

// globByMtime walks root matching pattern, newest files first.
func globByMtime(root, pattern string) ([]string, error) {
	type hit struct {
		path  string
		mtime time.Time
	}
	var hits []hit

	err := doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		var mtime time.Time
		if info, err := d.Info(); err == nil {
			mtime = info.ModTime()
		}
		hits = append(hits, hit{path: path, mtime: mtime})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].mtime.After(hits[j].mtime) })

	paths := make([]string, len(hits))
	for i, h := range hits {
		paths[i] = h.path
	}
	return paths, nil
}
