package agentloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/internal/pathguard"
	"github.com/wolo-run/wolo/internal/permission"
	"github.com/wolo-run/wolo/internal/tool"
	"github.com/wolo-run/wolo/pkg/types"
)

// executeToolCall runs exactly one ToolPart through the dispatcher
// contract: permission gate, running/start_time transition and a
// tool-start event, the actual dispatch, error classification, a terminal
// status set before any error propagates further, end_time, a tool-complete
// event, and persistence of the owning message after every transition. It
// reports terminate=true when the error is a typed path-safety
// cancellation, which ends the whole run rather than just this tool
// call: the user explicitly said no.
func (l *Loop) executeToolCall(ctx context.Context, msg *types.Message, part *types.ToolPart) (terminate bool, err error) {
	if action, denied := l.checkPermission(part); denied {
		return l.failToolPart(msg, part, fmt.Sprintf("Permission %s for tool %q", action, part.ToolName), false)
	}

	now := time.Now().UnixMilli()
	part.StartTime = &now
	if err := part.SetStatus(types.ToolStatusRunning); err != nil {
		return false, err
	}
	if err := l.deps.Store.SaveMessage(l.sessionID, msg); err != nil {
		return false, err
	}

	event.Publish(event.Event{Type: event.ToolStart, Data: event.ToolStartData{
		SessionID: l.sessionID, MessageID: msg.ID, CallID: part.ID, Tool: part.ToolName,
		Brief: l.formatStartBrief(part), Input: part.Input,
	}})

	toolCtx := &tool.Context{
		SessionID:       l.sessionID,
		MessageID:       msg.ID,
		CallID:          part.ID,
		WorkDir:         l.deps.WorkDir,
		PathGuard:       l.deps.PathGuard,
		CheckPermission: l.checkSubCallPermission,
	}
	if l.deps.Agent != nil {
		toolCtx.Agent = l.deps.Agent.Name
	}

	start := time.Now()
	result, dispatchErr := l.deps.Dispatcher.Dispatch(ctx, *part, toolCtx)
	l.deps.Metrics.RecordToolCall(l.sessionID, part.ToolName, time.Since(start))

	if dispatchErr != nil {
		message, term := classifyToolError(dispatchErr)
		return l.failToolPart(msg, part, message, term)
	}

	part.Output = result.Output
	if result.Metadata != nil {
		part.Metadata = result.Metadata
	}
	// Attachments the tool produced (e.g. an image the read tool decoded)
	// become file parts of the owning assistant message.
	for _, attachment := range result.Attachments {
		fp := attachment
		fp.ID = l.deps.NewID()
		if fp.Type == "" {
			fp.Type = "file"
		}
		msg.Parts = append(msg.Parts, &fp)
	}
	end := time.Now().UnixMilli()
	part.EndTime = &end
	status := batchAwareStatus(part.ToolName, result.Metadata)
	if timedOut, _ := result.Metadata["timed_out"].(bool); timedOut {
		// A tool that ran out of its own time budget is status=timeout,
		// not an interrupt.
		status = types.ToolStatusTimeout
	}
	if err := part.SetStatus(status); err != nil {
		return false, err
	}
	if err := l.deps.Store.SaveMessage(l.sessionID, msg); err != nil {
		return false, err
	}

	event.Publish(event.Event{Type: event.ToolComplete, Data: event.ToolCompleteData{
		SessionID: l.sessionID, MessageID: msg.ID, CallID: part.ID, Tool: part.ToolName, Status: part.Status,
		Brief:      l.formatCompleteBrief(part, result.Metadata),
		ShowOutput: l.showOutput(part.ToolName),
	}})
	event.Publish(event.Event{Type: event.ToolResult, Data: event.ToolResultData{
		SessionID: l.sessionID, MessageID: msg.ID, CallID: part.ID, Title: result.Title, Output: result.Output,
	}})

	return false, nil
}

// interruptRemainingTools marks every not-yet-terminal tool part in
// parts[from:] as interrupted, leaving its Output empty so internal/llm's
// projection substitutes its canned interrupted text, persisting once and
// publishing one tool-complete per affected part. Tool parts
// before the cut point are left untouched; a tool already executing runs
// to completion and is never forcibly cancelled.
func (l *Loop) interruptRemainingTools(msg *types.Message, parts []*types.ToolPart, from int) error {
	for _, part := range parts[from:] {
		if types.IsTerminalToolStatus(part.Status) {
			continue
		}
		end := time.Now().UnixMilli()
		part.EndTime = &end
		if err := part.SetStatus(types.ToolStatusInterrupted); err != nil {
			return err
		}
		event.Publish(event.Event{Type: event.ToolComplete, Data: event.ToolCompleteData{
			SessionID: l.sessionID, MessageID: msg.ID, CallID: part.ID, Tool: part.ToolName, Status: types.ToolStatusInterrupted,
			Brief:      l.formatCompleteBrief(part, nil),
			ShowOutput: l.showOutput(part.ToolName),
		}})
	}
	return l.deps.Store.SaveMessage(l.sessionID, msg)
}

// batchAwareStatus applies the batch status rule: the outer ToolPart is
// completed iff every sub-call succeeded, partial otherwise, including
// zero successes, which keeps error meaning "nothing happened" distinct
// from "we tried, here is what went wrong per sub-call". Any other tool
// is always completed on a non-error dispatch.
func batchAwareStatus(toolName string, metadata map[string]any) string {
	if toolName != "batch" {
		return types.ToolStatusCompleted
	}
	failed, _ := metadata["failed"].(int)
	if failed > 0 {
		return types.ToolStatusPartial
	}
	return types.ToolStatusCompleted
}

// checkSubCallPermission adapts checkPermission's agent-rule lookup to the
// tool.Context.CheckPermission hook the batch tool calls once per sub-call,
// so a batched sub-call is gated exactly like a top-level one.
func (l *Loop) checkSubCallPermission(toolName string, input map[string]any) (denied bool, reason string) {
	action, denied := l.checkPermission(&types.ToolPart{ToolName: toolName, Input: input})
	if !denied {
		return false, ""
	}
	return true, fmt.Sprintf("Permission %s for tool %q", action, toolName)
}

// failToolPart sets a ToolPart to status=error (before the caller sees any
// error), persists it, and publishes tool-complete; the "status
// set before propagation" requirement holds for both permission denials and
// dispatch failures.
func (l *Loop) failToolPart(msg *types.Message, part *types.ToolPart, message string, terminate bool) (bool, error) {
	part.Output = message
	end := time.Now().UnixMilli()
	part.EndTime = &end
	if err := part.SetStatus(types.ToolStatusError); err != nil {
		return false, err
	}
	if err := l.deps.Store.SaveMessage(l.sessionID, msg); err != nil {
		return false, err
	}

	event.Publish(event.Event{Type: event.ToolComplete, Data: event.ToolCompleteData{
		SessionID: l.sessionID, MessageID: msg.ID, CallID: part.ID, Tool: part.ToolName, Status: types.ToolStatusError,
		Brief:      l.formatCompleteBrief(part, part.Metadata),
		ShowOutput: l.showOutput(part.ToolName),
		Error:      message,
	}})

	return terminate, nil
}

// formatStartBrief asks the registry for the one-line tool-start brief.
func (l *Loop) formatStartBrief(part *types.ToolPart) string {
	if l.deps.ToolRegistry == nil {
		return part.ToolName
	}
	return l.deps.ToolRegistry.FormatToolStart(part.ToolName, part.Input)
}

// formatCompleteBrief asks the registry for the one-line outcome brief,
// deriving the call duration from the part's recorded start/end times.
func (l *Loop) formatCompleteBrief(part *types.ToolPart, metadata map[string]any) string {
	if l.deps.ToolRegistry == nil {
		return part.ToolName + " " + part.Status
	}
	var dur time.Duration
	if part.StartTime != nil && part.EndTime != nil {
		dur = time.Duration(*part.EndTime-*part.StartTime) * time.Millisecond
	}
	return l.deps.ToolRegistry.FormatToolComplete(part.ToolName, part.Output, part.Status, dur, metadata)
}

func (l *Loop) showOutput(toolName string) bool {
	if l.deps.ToolRegistry == nil {
		return true
	}
	return l.deps.ToolRegistry.ShowOutput(toolName)
}

// classifyToolError turns a dispatch error into the ToolPart's output text,
// and reports whether it's a typed path-safety cancellation that should
// unwind the whole Agent Loop rather than just this tool call.
func classifyToolError(err error) (message string, terminate bool) {
	var pathErr *pathguard.Error
	if errors.As(err, &pathErr) {
		return pathErr.Error(), true
	}

	var unknownErr *tool.UnknownToolError
	if errors.As(err, &unknownErr) {
		return unknownErr.Error(), false
	}

	if errors.Is(err, os.ErrNotExist) {
		return fmt.Sprintf("File not found: %s", err), false
	}

	return fmt.Sprintf("Unexpected error: %s", err), false
}

// checkPermission applies the active agent's permission policy to a tool
// call. Both ask and deny outcomes at this core
// dispatch layer are treated as denials: there is no interactive blocking
// prompt inside the loop's own contract, only in a richer outer renderer
// that isn't part of this package.
func (l *Loop) checkPermission(part *types.ToolPart) (permission.PermissionAction, bool) {
	if l.deps.Agent == nil {
		return permission.ActionAllow, false
	}

	var action permission.PermissionAction
	switch part.ToolName {
	case "bash":
		command, _ := part.Input["command"].(string)
		action = l.deps.Agent.CheckBashPermission(command)
	case "write", "edit", "patch":
		action = l.deps.Agent.GetPermission(permission.PermEdit)
	case "webfetch":
		action = l.deps.Agent.GetPermission(permission.PermWebFetch)
	default:
		if !l.deps.Agent.ToolEnabled(part.ToolName) {
			action = permission.ActionDeny
		} else {
			action = permission.ActionAllow
		}
	}

	if action == permission.ActionAllow && l.deps.DoomLoop != nil {
		if l.deps.DoomLoop.Check(l.sessionID, part.ToolName, part.Input) {
			if loopAction := l.deps.Agent.GetPermission(permission.PermDoomLoop); loopAction != permission.ActionAllow {
				return loopAction, true
			}
		}
	}

	return action, action != permission.ActionAllow
}
