package session

import (
	"sync"
	"time"

	"github.com/wolo-run/wolo/pkg/types"
)

// DebouncedSaver coalesces rapid SaveSession calls (one per streamed token
// during a turn would otherwise thrash the disk) into a write at most once
// per interval, always flushing the latest value.
type DebouncedSaver struct {
	store    *Store
	interval time.Duration

	mu      sync.Mutex
	pending map[string]*types.Session
	timers  map[string]*time.Timer
}

// NewDebouncedSaver wraps store with a coalescing window of interval.
func NewDebouncedSaver(store *Store, interval time.Duration) *DebouncedSaver {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &DebouncedSaver{
		store:    store,
		interval: interval,
		pending:  make(map[string]*types.Session),
		timers:   make(map[string]*time.Timer),
	}
}

// Save schedules sess to be written within the debounce window, replacing
// any earlier unflushed value for the same session ID.
func (d *DebouncedSaver) Save(sess *types.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[sess.ID] = sess
	if _, scheduled := d.timers[sess.ID]; scheduled {
		return
	}

	d.timers[sess.ID] = time.AfterFunc(d.interval, func() {
		d.flush(sess.ID)
	})
}

func (d *DebouncedSaver) flush(sessionID string) {
	d.mu.Lock()
	sess, ok := d.pending[sessionID]
	delete(d.pending, sessionID)
	delete(d.timers, sessionID)
	d.mu.Unlock()

	if ok {
		_ = d.store.SaveSession(sess)
	}
}

// Flush immediately writes any pending value for sessionID, bypassing the
// debounce window (used when a turn ends and callers need the final state
// durable before returning).
func (d *DebouncedSaver) Flush(sessionID string) error {
	d.mu.Lock()
	sess, ok := d.pending[sessionID]
	if t, scheduled := d.timers[sessionID]; scheduled {
		t.Stop()
		delete(d.timers, sessionID)
	}
	delete(d.pending, sessionID)
	d.mu.Unlock()

	if !ok {
		return nil
	}
	return d.store.SaveSession(sess)
}

// FlushAll flushes every pending session, used at process shutdown.
func (d *DebouncedSaver) FlushAll() {
	d.mu.Lock()
	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		_ = d.Flush(id)
	}
}
