package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
)

const editDescription = `Replace an exact string in a file.

- file_path must be absolute.
- old_string must match the file contents exactly and, unless replace_all
  is set, must occur exactly once.
- When an exact match fails, a line-ending-normalized and then a fuzzy
  match are attempted before giving up.`

// editFuzzyThreshold is the minimum similarity for a fuzzy fallback match.
const editFuzzyThreshold = 0.7

// EditTool performs in-place string replacement with fuzzy fallback.
type EditTool struct {
	workDir string
}

type editParams struct {
	FilePath   string `json:"file_path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// NewEditTool creates the edit tool rooted at workDir.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{workDir: workDir}
}

func (t *EditTool) ID() string          { return "edit" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {
				"type": "string",
				"description": "Absolute path of the file to edit"
			},
			"old_string": {
				"type": "string",
				"description": "Exact text to replace"
			},
			"new_string": {
				"type": "string",
				"description": "Replacement text"
			},
			"replace_all": {
				"type": "boolean",
				"description": "Replace every occurrence instead of requiring uniqueness"
			}
		},
		"required": ["file_path", "old_string", "new_string"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params editParams
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.OldString == params.NewString {
		return nil, fmt.Errorf("old_string and new_string are identical")
	}

	canon, err := resolvePath(toolCtx, params.FilePath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(canon)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", canon, err)
	}
	before := string(raw)

	after, count, how, err := applyEdit(before, params)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(canon, []byte(after), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", canon, err)
	}
	publishFileEdited(toolCtx, canon)

	meta := map[string]any{
		"file":         canon,
		"replacements": count,
	}
	if how != "exact" {
		meta["match"] = how
	}
	if diff, added, removed := buildDiffMetadata(canon, before, after, t.workDir); diff != "" {
		meta["diff"] = diff
		meta["additions"] = added
		meta["deletions"] = removed
	}

	title := "Edited " + filepath.Base(canon)
	output := fmt.Sprintf("Replaced %d occurrence(s)", count)
	if how != "exact" {
		output += " (" + how + " match)"
	}
	return &Result{Title: title, Output: output, Metadata: meta}, nil
}

// applyEdit performs the replacement against text, reporting the resulting
// content, how many occurrences were replaced, and which matching strategy
// succeeded ("exact", "normalized", or "fuzzy").
func applyEdit(text string, params editParams) (after string, count int, how string, err error) {
	if n := strings.Count(text, params.OldString); n > 0 {
		if params.ReplaceAll {
			return strings.ReplaceAll(text, params.OldString, params.NewString), n, "exact", nil
		}
		if n > 1 {
			return "", 0, "", fmt.Errorf("old_string occurs %d times; add surrounding context or set replace_all", n)
		}
		return strings.Replace(text, params.OldString, params.NewString, 1), 1, "exact", nil
	}

	// CRLF-normalized pass.
	normText := strings.ReplaceAll(text, "\r\n", "\n")
	normOld := strings.ReplaceAll(params.OldString, "\r\n", "\n")
	if strings.Contains(normText, normOld) {
		return strings.Replace(normText, normOld, params.NewString, 1), 1, "normalized", nil
	}

	// Fuzzy pass over line blocks of the same height as old_string.
	if block, score := closestBlock(text, params.OldString); block != "" && score >= editFuzzyThreshold {
		return strings.Replace(text, block, params.NewString, 1), 1, "fuzzy", nil
	}

	return "", 0, "", fmt.Errorf("old_string not found in file; re-read the file, its content may have changed")
}

// closestBlock slides a window of len(old)-in-lines over the file and
// returns the most similar block with its similarity score.
func closestBlock(text, old string) (string, float64) {
	lines := strings.Split(text, "\n")
	oldLines := strings.Split(old, "\n")
	height := len(oldLines)
	if height > len(lines) {
		return "", 0
	}

	best, bestScore := "", 0.0
	for i := 0; i+height <= len(lines); i++ {
		block := strings.Join(lines[i:i+height], "\n")
		if s := blockSimilarity(block, old); s > bestScore {
			best, bestScore = block, s
		}
	}
	return best, bestScore
}

// blockSimilarity is Levenshtein distance normalized to [0,1]. Very large
// inputs fall back to a length-ratio estimate to bound the edit-distance
// cost at O(len²).
func blockSimilarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	longer := max(len(a), len(b))
	if longer > 10000 {
		return float64(min(len(a), len(b))) / float64(longer)
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}
