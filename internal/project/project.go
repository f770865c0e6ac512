// Package project derives a stable identity for the repository a session
// runs in. The identity feeds the LLM adapter's x-*-project correlation
// header, so sessions in the same checkout correlate across runs.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Info identifies one project root.
type Info struct {
	ID       string  `json:"id"`
	Worktree string  `json:"worktree"`
	VCSDir   *string `json:"vcs_dir,omitempty"`
	VCS      *string `json:"vcs,omitempty"`
}

// idCacheFile is the file inside .git where the computed ID is memoized,
// so later runs skip the rev-list walk.
const idCacheFile = "wolo"

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Info)
)

// FromDirectory resolves the project identity for a directory: walk up to
// the enclosing git repository and use its (alphabetically first) root
// commit SHA as the ID. Directories outside any repository share the
// "global" project.
func FromDirectory(directory string) (*Info, error) {
	directory, err := filepath.Abs(directory)
	if err != nil {
		return nil, err
	}

	cacheMu.RLock()
	info, hit := cache[directory]
	cacheMu.RUnlock()
	if hit {
		return info, nil
	}

	gitDir := discoverGitDir(directory)
	if gitDir == "" {
		info = &Info{ID: "global", Worktree: "/"}
		remember(directory, info)
		return info, nil
	}

	worktree, gitDir := resolveRepo(gitDir)
	id := readMemoizedID(gitDir)
	if id == "" {
		id = rootCommitID(worktree)
		if id == "" {
			id = "global"
		} else {
			_ = os.WriteFile(filepath.Join(gitDir, idCacheFile), []byte(id), 0o644)
		}
	}

	vcs := "git"
	info = &Info{ID: id, Worktree: worktree, VCSDir: &gitDir, VCS: &vcs}
	remember(directory, info)
	return info, nil
}

// GetProjectID resolves just the ID for a directory.
func GetProjectID(directory string) (string, error) {
	info, err := FromDirectory(directory)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// HashDirectory derives a path-hash fallback ID for directories where git
// identity is unavailable.
func HashDirectory(directory string) string {
	sum := sha256.Sum256([]byte(directory))
	return hex.EncodeToString(sum[:])[:16]
}

// discoverGitDir walks from start toward the filesystem root looking for a
// .git entry. A .git file (worktree/submodule) is followed to the real
// git dir it points at.
func discoverGitDir(start string) string {
	for current := start; ; current = filepath.Dir(current) {
		gitPath := filepath.Join(current, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return gitPath
			}
			if target := gitFileTarget(gitPath, current); target != "" {
				return target
			}
		}
		if filepath.Dir(current) == current {
			return ""
		}
	}
}

// gitFileTarget reads the "gitdir: ..." pointer from a .git file.
func gitFileTarget(gitPath, base string) string {
	content, err := os.ReadFile(gitPath)
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(content))
	target, ok := strings.CutPrefix(line, "gitdir: ")
	if !ok {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	return target
}

// resolveRepo asks git for the canonical worktree root and git dir,
// falling back to the discovered values when git isn't runnable.
func resolveRepo(gitDir string) (worktree, resolvedGitDir string) {
	worktree = filepath.Dir(gitDir)
	if out := gitOutput(worktree, "rev-parse", "--show-toplevel"); out != "" {
		worktree = out
	}

	resolvedGitDir = gitDir
	if out := gitOutput(worktree, "rev-parse", "--git-dir"); out != "" {
		if !filepath.IsAbs(out) {
			out = filepath.Join(worktree, out)
		}
		resolvedGitDir = out
	}
	return worktree, resolvedGitDir
}

// readMemoizedID returns a previously computed ID stored in the git dir.
func readMemoizedID(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, idCacheFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// rootCommitID returns the repository's first root commit SHA. Sorting
// makes the pick deterministic for repositories with several roots.
func rootCommitID(worktree string) string {
	out := gitOutput(worktree, "rev-list", "--max-parents=0", "--all")
	if out == "" {
		return ""
	}
	var roots []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			roots = append(roots, line)
		}
	}
	if len(roots) == 0 {
		return ""
	}
	sort.Strings(roots)
	return roots[0]
}

func gitOutput(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func remember(directory string, info *Info) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache[directory] = info
}

// ClearCache empties the in-memory cache. Test-only.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]*Info)
}
