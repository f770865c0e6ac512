package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	grepMaxMatches     = 100
	grepMaxScannedLine = 512 * 1024
)

const grepDescription = `Search file contents with a regular expression.

- pattern uses Go regexp syntax (RE2), matched per line.
- include filters which files are searched, e.g. "*.go" or "**/*.yaml".
- Matches are reported as path:line: content, capped at 100.`

// GrepTool searches file contents line by line.
type GrepTool struct {
	workDir string
}

type grepParams struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Include string `json:"include,omitempty"`
}

type grepMatch struct {
	File string
	Line int
	Text string
}

// NewGrepTool creates the grep tool rooted at workDir.
func NewGrepTool(workDir string) *GrepTool {
	return &GrepTool{workDir: workDir}
}

func (t *GrepTool) ID() string          { return "grep" }
func (t *GrepTool) Description() string { return grepDescription }

func (t *GrepTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "Regular expression to search for"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (defaults to the working directory)"
			},
			"include": {
				"type": "string",
				"description": "Glob restricting which files are searched, e.g. \"*.go\""
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GrepTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params grepParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	root := searchRoot(t.workDir, toolCtx, params.Path)
	matches, truncated, err := grepTree(ctx, root, re, params.Include)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return &Result{
			Title:    "No matches",
			Output:   "No matches found",
			Metadata: map[string]any{"pattern": params.Pattern, "count": 0},
		}, nil
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "%s:%d: %s\n", m.File, m.Line, m.Text)
	}
	if truncated {
		fmt.Fprintf(&sb, "\n(first %d matches shown; narrow the pattern for more)", grepMaxMatches)
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d matches", len(matches)),
		Output: sb.String(),
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(matches),
			"truncated": truncated,
		},
	}, nil
}

// grepTree walks root and scans every regular file (optionally filtered by
// the include glob), stopping once the match cap is hit.
func grepTree(ctx context.Context, root string, re *regexp.Regexp, include string) ([]grepMatch, bool, error) {
	var matches []grepMatch
	truncated := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirInSearch(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if include != "" {
			ok, err := doublestar.Match(include, rel)
			if err != nil {
				return fmt.Errorf("invalid include glob: %w", err)
			}
			if !ok {
				// Also try the basename so "*.go" works at any depth.
				if ok, _ = doublestar.Match(include, d.Name()); !ok {
					return nil
				}
			}
		}

		fileMatches, err := grepFile(path, rel, re, grepMaxMatches-len(matches))
		if err != nil {
			return nil // binary or unreadable file, skip
		}
		matches = append(matches, fileMatches...)
		if len(matches) >= grepMaxMatches {
			truncated = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return matches, truncated, nil
}

// grepFile scans one file, returning up to budget matches.
func grepFile(path, rel string, re *regexp.Regexp, budget int) ([]grepMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []grepMatch
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), grepMaxScannedLine)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.IndexByte(text, 0) >= 0 {
			return matches, nil // binary content, stop scanning this file
		}
		if re.MatchString(text) {
			matches = append(matches, grepMatch{File: rel, Line: line, Text: text})
			if len(matches) >= budget {
				break
			}
		}
	}
	return matches, nil
}

// skipDirInSearch filters directories no search should descend into.
func skipDirInSearch(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "__pycache__", ".venv", "dist", "target":
		return true
	}
	return false
}
