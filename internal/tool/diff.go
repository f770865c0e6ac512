package tool

import (
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// buildDiffMetadata renders a patch between two versions of a file plus
// added/removed line counts, for the write and edit tools' metadata. The
// patch is prefixed with ---/+++ headers naming the path relative to
// baseDir when possible. Identical content yields an empty diff.
func buildDiffMetadata(path, before, after, baseDir string) (diff string, additions, deletions int) {
	if before == after {
		return "", 0, 0
	}

	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += lineSpan(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += lineSpan(d.Text)
		}
	}

	patch := dmp.PatchToText(dmp.PatchMake(before, diffs))
	if patch == "" {
		return "", additions, deletions
	}

	header := displayPath(path, baseDir)
	if header == "" {
		return patch, additions, deletions
	}
	return "--- " + header + "\n+++ " + header + "\n" + patch, additions, deletions
}

// displayPath shortens path relative to baseDir for diff headers.
func displayPath(path, baseDir string) string {
	if path == "" || baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil {
		return rel
	}
	return path
}

// lineSpan counts the lines a diff hunk covers, treating a trailing
// unterminated line as a full line.
func lineSpan(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
