package tool

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolo-run/wolo/pkg/types"
)

const (
	readDefaultLimit = 2000
	readMaxLineLen   = 2000
)

const readDescription = `Read a file from the local filesystem.

- file_path must be absolute.
- Reads up to 2000 lines starting at the top of the file; pass offset and
  limit to page through longer files.
- Output is line-numbered so later edits can reference exact lines.
- Images are returned as base64 attachments instead of text.`

// ReadTool returns file contents to the model, line-numbered and paginated.
type ReadTool struct {
	workDir string
}

type readParams struct {
	FilePath string `json:"file_path"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// NewReadTool creates the read tool rooted at workDir.
func NewReadTool(workDir string) *ReadTool {
	return &ReadTool{workDir: workDir}
}

func (t *ReadTool) ID() string          { return "read" }
func (t *ReadTool) Description() string { return readDescription }

func (t *ReadTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {
				"type": "string",
				"description": "Absolute path of the file to read"
			},
			"offset": {
				"type": "integer",
				"description": "1-based line number to start from"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of lines to return (default 2000)"
			}
		},
		"required": ["file_path"]
	}`)
}

func (t *ReadTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params readParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Limit <= 0 {
		params.Limit = readDefaultLimit
	}

	if isSecretEnvPath(params.FilePath) {
		return nil, fmt.Errorf("reading %s is blocked: it looks like an environment secrets file. Do not retry", params.FilePath)
	}

	info, err := os.Stat(params.FilePath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", params.FilePath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", params.FilePath)
	}

	if mediaType := imageMediaType(params.FilePath); mediaType != "" {
		return t.readImage(params.FilePath, mediaType)
	}
	if looksBinary(params.FilePath) {
		return nil, fmt.Errorf("%s appears to be a binary file", params.FilePath)
	}

	window, err := readNumberedLines(params.FilePath, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("<file>\n")
	sb.WriteString(strings.Join(window.lines, "\n"))
	if window.more {
		fmt.Fprintf(&sb, "\n\n(truncated: pass offset=%d to continue reading)", window.lastLine+1)
	} else {
		fmt.Fprintf(&sb, "\n\n(end of file, %d lines total)", window.scanned)
	}
	sb.WriteString("\n</file>")

	return &Result{
		Title:  "Read " + filepath.Base(params.FilePath),
		Output: sb.String(),
		Metadata: map[string]any{
			"file":        params.FilePath,
			"lines_read":  len(window.lines),
			"lines_total": window.scanned,
		},
	}, nil
}

// lineWindow is one paginated slice of a file: the formatted lines, the
// number of the last line included, how many lines were scanned in total,
// and whether the file continues past the window.
type lineWindow struct {
	lines    []string
	lastLine int
	scanned  int
	more     bool
}

// readNumberedLines scans the file and formats the lines within the
// requested window. Scanning stops one line past the window, which is how
// `more` is detected without reading the rest of the file.
func readNumberedLines(path string, offset, limit int) (lineWindow, error) {
	f, err := os.Open(path)
	if err != nil {
		return lineWindow{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	var w lineWindow
	for sc.Scan() {
		w.scanned++
		if offset > 0 && w.scanned < offset {
			continue
		}
		if len(w.lines) >= limit {
			w.more = true
			break
		}
		line := sc.Text()
		if len(line) > readMaxLineLen {
			line = line[:readMaxLineLen] + "..."
		}
		w.lines = append(w.lines, fmt.Sprintf("%05d| %s", w.scanned, line))
		w.lastLine = w.scanned
	}
	return w, sc.Err()
}

func (t *ReadTool) readImage(path, mediaType string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Result{
		Title:  "Read " + filepath.Base(path),
		Output: "(Image file)",
		Attachments: []types.FilePart{{
			Type:      "file",
			Filename:  filepath.Base(path),
			MediaType: mediaType,
			URL:       "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
		}},
	}, nil
}

// imageMediaType maps a recognized image extension to its media type, or ""
// for non-image paths.
func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	}
	return ""
}

// looksBinary sniffs the first 8 KiB: a NUL byte or a high ratio of control
// characters means we refuse to dump the file at the model.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 8192)
	n, _ := f.Read(buf)
	if n == 0 {
		return false
	}

	control := 0
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			control++
		}
	}
	return float64(control)/float64(n) > 0.3
}

// isSecretEnvPath blocks dotenv-style secret files from being read into the
// conversation. Sample/template variants stay readable.
func isSecretEnvPath(path string) bool {
	for _, ok := range []string{".env.sample", ".env.example", ".example"} {
		if strings.HasSuffix(path, ok) {
			return false
		}
	}
	return strings.Contains(path, ".env")
}
