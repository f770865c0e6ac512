package session

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/wolo-run/wolo/pkg/types"
)

// migrateLegacySession handles the pre-layered single-file-per-session
// layout this store superseded: {basePath}/{id}.json holding the session
// plus an embedded "messages" array. It converts one such file to
// the current layout the first time it is encountered, then leaves it in
// place (read-only fallback) rather than deleting history on a read path.
func (s *Store) migrateLegacySession(id string) (*types.Session, error) {
	legacyPath := s.sessionDir(id) + ".json"

	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return nil, ErrNotFound
	}

	var legacy struct {
		types.Session
		Messages []*types.Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}

	sess := legacy.Session
	// A concurrent reader may have migrated the same file already; the
	// record it created is equivalent, so the collision is benign here.
	if err := s.CreateSession(&sess); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return nil, err
	}
	for _, msg := range legacy.Messages {
		if err := s.SaveMessage(sess.ID, msg); err != nil {
			return nil, err
		}
	}

	return &sess, nil
}
