package permission

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// BashCommand is one simple command pulled out of a shell line.
type BashCommand struct {
	Name       string
	Args       []string
	Subcommand string // first non-flag argument, e.g. "commit" in "git commit"
}

// ParseBashCommand walks the bash AST of a command line and returns every
// simple command it contains, so `a && b | c` yields three entries.
func ParseBashCommand(command string) ([]BashCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	var commands []BashCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd, ok := simpleCommand(call); ok {
				commands = append(commands, cmd)
			}
		}
		return true
	})
	return commands, nil
}

// simpleCommand flattens a CallExpr into name/args/subcommand form.
func simpleCommand(call *syntax.CallExpr) (BashCommand, bool) {
	if len(call.Args) == 0 {
		return BashCommand{}, false
	}

	cmd := BashCommand{Name: flattenWord(call.Args[0])}
	if cmd.Name == "" {
		return BashCommand{}, false
	}
	for _, arg := range call.Args[1:] {
		s := flattenWord(arg)
		cmd.Args = append(cmd.Args, s)
		if cmd.Subcommand == "" && !strings.HasPrefix(s, "-") {
			cmd.Subcommand = s
		}
	}
	return cmd, true
}

// flattenWord renders a shell word to plain text. Expansions keep a marker
// rather than a value: they are dynamic and must never look like a benign
// literal to the matcher.
func flattenWord(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				switch q := qp.(type) {
				case *syntax.Lit:
					sb.WriteString(q.Value)
				case *syntax.ParamExp:
					sb.WriteString("$" + q.Param.Value)
				case *syntax.CmdSubst:
					sb.WriteString("$()")
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// mutatingCommands need their path arguments validated against the working
// directory before they run.
var mutatingCommands = map[string]bool{
	"cd":    true,
	"rm":    true,
	"cp":    true,
	"mv":    true,
	"mkdir": true,
	"rmdir": true,
	"touch": true,
	"chmod": true,
	"chown": true,
	"dd":    true,
}

// IsDangerousCommand reports whether a command mutates the filesystem and
// needs path validation.
func IsDangerousCommand(name string) bool {
	return mutatingCommands[name]
}

// ExtractPaths returns the arguments of a mutating command that look like
// paths: everything that isn't a flag or, for chmod, a mode expression.
func ExtractPaths(cmd BashCommand) []string {
	var paths []string
	for _, arg := range cmd.Args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if cmd.Name == "chmod" && isChmodMode(arg) {
			continue
		}
		paths = append(paths, arg)
	}
	return paths
}

func isChmodMode(arg string) bool {
	if arg == "" {
		return false
	}
	switch arg[0] {
	case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'u', 'g', 'o', 'a', '+', '=':
		return true
	}
	return false
}

// ResolvePath makes a command argument absolute relative to workDir.
// Home-relative paths are returned untouched: expanding ~ here would guess
// at the wrong user.
func ResolvePath(ctx context.Context, path, workDir string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if strings.HasPrefix(path, "~") {
		return path, nil
	}

	// realpath -m resolves symlinks even for paths that don't exist yet.
	cmd := exec.CommandContext(ctx, "realpath", "-m", path)
	cmd.Dir = workDir
	if out, err := cmd.Output(); err == nil {
		return strings.TrimSpace(string(out)), nil
	}
	return filepath.Clean(filepath.Join(workDir, path)), nil
}

// IsWithinDir reports whether path sits at or under dir.
func IsWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}
