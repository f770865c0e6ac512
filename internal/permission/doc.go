// Package permission decides whether a tool call may run.
//
// Every gated operation resolves to one of three [PermissionAction]s:
// allow (run silently), deny (refuse with a typed [RejectedError]), or ask
// (block until the user answers). Operations are classified by
// [PermissionType]: file edits, webfetch, bash commands, access to paths
// outside the working directory, and doom-loop repetition.
//
// # The interactive checker
//
// [Checker] owns the ask path. Ask publishes an event.PermissionRequired
// on the bus and suspends the calling goroutine until a renderer feeds the
// answer back through [Checker.Respond] (or the context ends):
//
//	checker := permission.NewChecker()
//	err := checker.Ask(ctx, permission.Request{
//	    Type:      permission.PermBash,
//	    Pattern:   []string{"git push *"},
//	    SessionID: sessionID,
//	    Title:     "git push origin main",
//	})
//
// An "always" answer is remembered per session and pattern, so the same
// question is asked once. "reject" yields a *RejectedError the dispatcher
// turns into a status=error tool part.
//
// # Bash command analysis
//
// Shell lines are not matched as raw strings. [ParseBashCommand] walks the
// bash AST (mvdan.cc/sh), so every simple command inside pipes, lists, and
// substitutions is checked on its own, and `echo hi && rm -rf /` can't
// hide behind its harmless prefix. Parsed commands match against pattern
// tables via [MatchBashPermission] ("git commit *" before "git *" before
// "git" before "*"), and [BuildPattern] derives the pattern an approval is
// stored under.
//
// Commands that mutate the filesystem ([IsDangerousCommand]) additionally
// get their path arguments extracted and containment-checked against the
// session's working directory.
//
// # Doom-loop detection
//
// [DoomLoopDetector] fingerprints each (tool, input) pair and flags the
// third identical call in a row, letting the agent's doom_loop permission
// decide whether to keep going, ask, or stop.
package permission
