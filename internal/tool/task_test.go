package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolo-run/wolo/internal/agent"
)

// recordingExecutor captures what the task tool hands to the subagent layer.
type recordingExecutor struct {
	gotSession string
	gotAgent   string
	gotPrompt  string
	gotOpts    TaskOptions
	result     *TaskResult
	err        error
}

func (r *recordingExecutor) ExecuteSubtask(ctx context.Context, sessionID, agentName, prompt string, opts TaskOptions) (*TaskResult, error) {
	r.gotSession, r.gotAgent, r.gotPrompt, r.gotOpts = sessionID, agentName, prompt, opts
	return r.result, r.err
}

func taskFixture(t *testing.T) (*TaskTool, *agent.Registry) {
	t.Helper()
	reg := agent.NewRegistry()
	return NewTaskTool(t.TempDir(), reg), reg
}

func taskInput(agentName, message, description string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{
		"agent":       agentName,
		"message":     message,
		"description": description,
	})
	return raw
}

func TestTask_DelegatesToExecutor(t *testing.T) {
	tool, _ := taskFixture(t)
	exec := &recordingExecutor{result: &TaskResult{
		Output:    "the function lives in internal/llm/client.go",
		SessionID: "child_260802_120000",
	}}
	tool.SetExecutor(exec)

	result, err := tool.Execute(context.Background(),
		taskInput("explore", "find the streaming client", "locate client"), testContext())
	require.NoError(t, err)

	assert.Equal(t, "sess-test", exec.gotSession)
	assert.Equal(t, "explore", exec.gotAgent)
	assert.Equal(t, "find the streaming client", exec.gotPrompt)
	assert.Equal(t, "locate client", exec.gotOpts.Description)

	assert.Equal(t, "Completed: locate client", result.Title)
	assert.Contains(t, result.Output, "internal/llm/client.go")
	assert.Equal(t, "child_260802_120000", result.Metadata["session_id"])
	assert.Equal(t, "completed", result.Metadata["status"])
}

func TestTask_ExecutorFailureBecomesToolOutput(t *testing.T) {
	tool, _ := taskFixture(t)
	tool.SetExecutor(&recordingExecutor{err: fmt.Errorf("child session crashed")})

	result, err := tool.Execute(context.Background(),
		taskInput("general", "do the thing", "doomed"), testContext())
	require.NoError(t, err, "executor failure is reported through the result, not raised")
	assert.Equal(t, "failed", result.Metadata["status"])
	assert.Contains(t, result.Output, "child session crashed")
}

func TestTask_UnknownAgent(t *testing.T) {
	tool, _ := taskFixture(t)
	tool.SetExecutor(&recordingExecutor{})

	_, err := tool.Execute(context.Background(),
		taskInput("wizard", "abracadabra", ""), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown agent type "wizard"`)
	assert.Contains(t, err.Error(), "explore")
}

func TestTask_PrimaryOnlyAgentRefused(t *testing.T) {
	tool, reg := taskFixture(t)
	tool.SetExecutor(&recordingExecutor{})
	reg.Register(&agent.Agent{Name: "driver", Mode: agent.ModePrimary})

	_, err := tool.Execute(context.Background(),
		taskInput("driver", "work", ""), testContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot run as a subagent")
}

func TestTask_RequiredFields(t *testing.T) {
	tool, _ := taskFixture(t)

	_, err := tool.Execute(context.Background(), taskInput("", "msg", ""), testContext())
	require.ErrorContains(t, err, "agent is required")

	_, err = tool.Execute(context.Background(), taskInput("general", "", ""), testContext())
	require.ErrorContains(t, err, "message is required")
}

func TestTask_NoExecutorYieldsPlaceholder(t *testing.T) {
	tool, _ := taskFixture(t)

	result, err := tool.Execute(context.Background(),
		taskInput("general", "orphaned work", "no executor"), testContext())
	require.NoError(t, err)
	assert.Equal(t, "skipped", result.Metadata["status"])
	assert.Contains(t, result.Output, "no subagent executor configured")
}

func TestTask_DescriptionDefaultsFromAgent(t *testing.T) {
	tool, _ := taskFixture(t)
	tool.SetExecutor(&recordingExecutor{result: &TaskResult{Output: "done"}})

	result, err := tool.Execute(context.Background(),
		taskInput("plan", "sketch the refactor", ""), testContext())
	require.NoError(t, err)
	assert.Equal(t, "Completed: plan task", result.Title)
}

func TestTask_SubagentNames(t *testing.T) {
	tool, _ := taskFixture(t)
	names := tool.subagentNames()
	assert.Contains(t, names, "general")
	assert.Contains(t, names, "explore")
	assert.Contains(t, names, "plan")
}
