package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolo-run/wolo/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestCreateAndGetSession(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "hello", CreatedAt: 1, UpdatedAt: 1}
	require.NoError(t, st.CreateSession(sess))
	assert.NotEmpty(t, sess.ID)

	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)
}

func TestGetSession_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetSession("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveMessageAndList(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))

	m1 := &types.Message{ID: "m1", Role: types.RoleUser, Timestamp: 1}
	m2 := &types.Message{ID: "m2", Role: types.RoleAssistant, Timestamp: 2}
	require.NoError(t, st.SaveMessage(sess.ID, m2))
	require.NoError(t, st.SaveMessage(sess.ID, m1))

	msgs, err := st.ListMessages(sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID, "messages must come back in timestamp order")
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))
	require.NoError(t, st.SaveMessage(sess.ID, &types.Message{ID: "m1"}))

	require.NoError(t, st.DeleteSession(sess.ID))
	_, err := st.GetSession(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTodosRoundTrip(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))

	empty, err := st.GetTodos(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	todos := []types.TodoInfo{{ID: "1", Content: "do thing", Status: types.TodoPending}}
	require.NoError(t, st.SaveTodos(sess.ID, todos))

	got, err := st.GetTodos(sess.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "do thing", got[0].Content)
}

func TestWriteJSONAtomic_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")
	require.NoError(t, writeJSONAtomic(path, map[string]int{"a": 1}))

	entries, err := filepathGlob(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the final file should remain, no .tmp-* leftovers")
}

func filepathGlob(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*"))
}

func TestClaimAndReleasePID(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))

	require.NoError(t, st.ClaimPID(sess.ID))
	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PID)

	require.NoError(t, st.ReleasePID(sess.ID))
	got, err = st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PID)
}

func TestDebouncedSaver_CoalescesWrites(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "v0"}
	require.NoError(t, st.CreateSession(sess))

	saver := NewDebouncedSaver(st, 20*time.Millisecond)
	sess.Title = "v1"
	saver.Save(sess)
	sess.Title = "v2"
	saver.Save(sess)

	require.NoError(t, saver.Flush(sess.ID))
	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
}

func TestClaimPID_DeadHolderIsReclaimable(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))

	// A PID far above any live process on the machine stands in for a
	// crashed owner; kernels cap pids well below this.
	dead := 1 << 22
	now := time.Now().UnixMilli()
	sess.PID = &dead
	sess.PIDUpdatedAt = &now
	require.NoError(t, st.SaveSession(sess))

	require.NoError(t, st.ClaimPID(sess.ID), "a dead holder must not block the claim")
	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PID)
	assert.Equal(t, os.Getpid(), *got.PID)
}

func TestClaimPID_LiveOtherProcessBlocks(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))

	// PID 1 is always alive and never this test process.
	one := 1
	sess.PID = &one
	require.NoError(t, st.SaveSession(sess))

	err := st.ClaimPID(sess.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already active")
}

func TestClaimPID_OwnPIDIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{Title: "t"}
	require.NoError(t, st.CreateSession(sess))

	require.NoError(t, st.ClaimPID(sess.ID))
	require.NoError(t, st.ClaimPID(sess.ID), "re-claiming with our own pid must succeed")
}

func TestIsRunning_NeverTrueForDeadOrUnclaimed(t *testing.T) {
	assert.False(t, IsRunning(&types.Session{}))

	dead := 1 << 22
	assert.False(t, IsRunning(&types.Session{PID: &dead}))

	self := os.Getpid()
	assert.True(t, IsRunning(&types.Session{PID: &self}))
}

func TestCreateSession_RefusesDuplicateID(t *testing.T) {
	st := newTestStore(t)
	sess := &types.Session{ID: "general_260802_101500", Title: "first"}
	require.NoError(t, st.CreateSession(sess))

	dup := &types.Session{ID: "general_260802_101500", Title: "second"}
	err := st.CreateSession(dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The original record must be untouched.
	got, err := st.GetSession("general_260802_101500")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}
