package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const listDescription = `List the entries of a directory.

- Directories are listed first, then files with their sizes.
- Build artifacts, caches, and VCS internals are skipped by default;
  pass extra ignore globs to skip more.`

// ListTool enumerates a directory for the model.
type ListTool struct {
	workDir string
}

type listParams struct {
	Path   string   `json:"path,omitempty"`
	Ignore []string `json:"ignore,omitempty"`
}

// listDefaultIgnores are directory and file names every listing skips.
var listDefaultIgnores = []string{
	".git/", ".idea/", ".vscode/", ".cache/", ".venv/", "venv/", "env/",
	"node_modules/", "__pycache__/", "vendor/", "dist/", "build/",
	"target/", "bin/", "obj/", "coverage/", "tmp/", "temp/", "logs/",
}

// NewListTool creates the list tool rooted at workDir.
func NewListTool(workDir string) *ListTool {
	return &ListTool{workDir: workDir}
}

func (t *ListTool) ID() string          { return "list" }
func (t *ListTool) Description() string { return listDescription }

func (t *ListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory to list (defaults to the working directory)"
			},
			"ignore": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Additional glob patterns to skip"
			}
		}
	}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params listParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	dir := searchRoot(t.workDir, toolCtx, params.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	ignores := append(append([]string{}, listDefaultIgnores...), params.Ignore...)

	type row struct {
		name  string
		isDir bool
		size  int64
	}
	var rows []row
	for _, e := range entries {
		if listIgnored(e.Name(), e.IsDir(), ignores) {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		rows = append(rows, row{name: e.Name(), isDir: e.IsDir(), size: size})
	}

	// Directories first, each group alphabetical.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].isDir != rows[j].isDir {
			return rows[i].isDir
		}
		return rows[i].name < rows[j].name
	})

	var sb strings.Builder
	for _, r := range rows {
		if r.isDir {
			fmt.Fprintf(&sb, "[dir ] %s\n", r.name)
		} else {
			fmt.Fprintf(&sb, "[file] %s (%d bytes)\n", r.name, r.size)
		}
	}

	return &Result{
		Title:  fmt.Sprintf("Listed %d items", len(rows)),
		Output: sb.String(),
		Metadata: map[string]any{
			"path":  dir,
			"count": len(rows),
		},
	}, nil
}

// listIgnored reports whether an entry matches any ignore pattern. A
// pattern with a trailing slash only matches directories.
func listIgnored(name string, isDir bool, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/") {
			if isDir && name == strings.TrimSuffix(p, "/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}
