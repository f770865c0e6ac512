package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/pkg/types"
)

// ErrNotFound is returned when a session, message, or part does not exist.
var ErrNotFound = fmt.Errorf("session: not found")

// ErrAlreadyExists is returned by CreateSession when the requested session
// ID is already taken; creating never overwrites an existing record.
var ErrAlreadyExists = fmt.Errorf("session: already exists")

// Store persists sessions under basePath, one directory per session:
//
//	{basePath}/{id}/session.json
//	{basePath}/{id}/messages/{messageID}.json
//	{basePath}/{id}/todos.json
//
// Writes are atomic (temp file, fsync, rename) and cross-process-safe via
// per-file flock.
type Store struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*FileLock
}

// NewStore creates a Store rooted at basePath, creating it if needed.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("session store: create base dir: %w", err)
	}
	return &Store{basePath: basePath, locks: make(map[string]*FileLock)}, nil
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.basePath, id)
}

// SessionDir returns the on-disk directory for a session, the base for its
// watch.sock and any caller-side tooling that
// needs to locate a session's files directly.
func (s *Store) SessionDir(id string) string {
	return s.sessionDir(id)
}

func (s *Store) sessionFile(id string) string {
	return filepath.Join(s.sessionDir(id), "session.json")
}

func (s *Store) messagesDir(id string) string {
	return filepath.Join(s.sessionDir(id), "messages")
}

func (s *Store) messageFile(sessionID, messageID string) string {
	return filepath.Join(s.messagesDir(sessionID), messageID+".json")
}

func (s *Store) todosFile(id string) string {
	return filepath.Join(s.sessionDir(id), "todos.json")
}

func (s *Store) getLock(path string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = NewFileLock(path)
		s.locks[path] = l
	}
	return l
}

// writeJSONAtomic writes v to path via a temp-file-then-rename sequence, so
// a crash mid-write can never leave a half-written session file behind.
func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// CreateSession persists a new session record, failing with
// ErrAlreadyExists if the ID is taken.
func (s *Store) CreateSession(sess *types.Session) error {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	path := s.sessionFile(sess.ID)
	lock := s.getLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, sess.ID)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := writeJSONAtomic(path, sess); err != nil {
		return err
	}
	event.PublishSync(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{Info: sess}})
	return nil
}

// SaveSession persists an update to an existing session.
func (s *Store) SaveSession(sess *types.Session) error {
	path := s.sessionFile(sess.ID)
	lock := s.getLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := writeJSONAtomic(path, sess); err != nil {
		return err
	}
	event.Publish(event.Event{Type: event.SessionUpdated, Data: event.SessionUpdatedData{Info: sess}})
	return nil
}

// GetSession loads a session by ID, attempting a legacy single-file
// migration first if the layered layout isn't present yet.
func (s *Store) GetSession(id string) (*types.Session, error) {
	var sess types.Session
	err := readJSON(s.sessionFile(id), &sess)
	if err == ErrNotFound {
		if migrated, mErr := s.migrateLegacySession(id); mErr == nil && migrated != nil {
			return migrated, nil
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession removes a session directory and its contents.
func (s *Store) DeleteSession(id string) error {
	sess, err := s.GetSession(id)
	if err != nil && err != ErrNotFound {
		return err
	}
	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		return err
	}
	if sess != nil {
		event.Publish(event.Event{Type: event.SessionDeleted, Data: event.SessionDeletedData{Info: sess}})
	}
	return nil
}

// ListSessions returns every session under the store, sorted by CreatedAt
// descending (newest first).
func (s *Store) ListSessions() ([]*types.Session, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*types.Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sess, err := s.GetSession(e.Name())
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// SaveMessage persists a single message under its session's messages/ dir.
func (s *Store) SaveMessage(sessionID string, msg *types.Message) error {
	path := s.messageFile(sessionID, msg.ID)
	lock := s.getLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := writeJSONAtomic(path, msg); err != nil {
		return err
	}
	event.Publish(event.Event{Type: event.MessageUpdated, Data: event.MessageUpdatedData{Info: msg}})
	return nil
}

// GetMessage loads one message by ID.
func (s *Store) GetMessage(sessionID, messageID string) (*types.Message, error) {
	var msg types.Message
	if err := readJSON(s.messageFile(sessionID, messageID), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns every message for a session, sorted by Timestamp
// ascending (conversation order).
func (s *Store) ListMessages(sessionID string) ([]*types.Message, error) {
	entries, err := os.ReadDir(s.messagesDir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []*types.Message
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var msg types.Message
		if err := readJSON(filepath.Join(s.messagesDir(sessionID), e.Name()), &msg); err != nil {
			continue
		}
		out = append(out, &msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// DeleteMessage removes one message.
func (s *Store) DeleteMessage(sessionID, messageID string) error {
	if err := os.Remove(s.messageFile(sessionID, messageID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	event.Publish(event.Event{Type: event.MessageRemoved, Data: event.MessageRemovedData{SessionID: sessionID, MessageID: messageID}})
	return nil
}

// SaveTodos persists the todo list for a session.
func (s *Store) SaveTodos(sessionID string, todos []types.TodoInfo) error {
	path := s.todosFile(sessionID)
	lock := s.getLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	return writeJSONAtomic(path, todos)
}

// GetTodos loads the todo list for a session, returning an empty slice (not
// an error) if none has been saved yet.
func (s *Store) GetTodos(sessionID string) ([]types.TodoInfo, error) {
	var todos []types.TodoInfo
	err := readJSON(s.todosFile(sessionID), &todos)
	if err == ErrNotFound {
		return []types.TodoInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// NewID generates a new sortable session/message/part identifier.
func NewID() string {
	return ulid.Make().String()
}
