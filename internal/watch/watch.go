// Package watch implements the per-session watch server: a
// read-only Unix-domain socket at {session_dir}/watch.sock, mode 0600,
// that broadcasts every bus event belonging to one session as
// newline-delimited JSON. The first event after accept is always a
// "connected" welcome event. An observer whose write fails is dropped; an
// observer whose queue is full misses that event (a warning is logged)
// rather than blocking the bus.
//
package watch

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolo-run/wolo/internal/event"
	"github.com/wolo-run/wolo/pkg/types"
)

// heartbeatInterval paces keepalive events so dead observers surface.
const heartbeatInterval = 30 * time.Second

// clientBuffer bounds how many events may queue for one slow observer;
// events arriving while its queue is full are discarded for that observer.
const clientBuffer = 32

// Server accepts connections on a session's watch socket and forwards
// every bus event that belongs to that session.
type Server struct {
	sessionID  string
	socketPath string
	bus        *event.Bus

	mu       sync.Mutex
	listener net.Listener
	unsub    func()
	clients  map[string]chan wireEvent
	stopped  bool
	done     chan struct{}
}

// wireEvent is one line of the newline-delimited JSON protocol.
type wireEvent struct {
	Type      event.EventType `json:"type"`
	Timestamp int64           `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Data      any             `json:"data,omitempty"`
}

// New creates a watch server for sessionID, listening at socketPath.
// bus defaults to the global event bus when nil.
func New(sessionID, socketPath string, bus *event.Bus) *Server {
	return &Server{
		sessionID:  sessionID,
		socketPath: socketPath,
		bus:        bus,
		clients:    make(map[string]chan wireEvent),
		done:       make(chan struct{}),
	}
}

// Start removes any stale socket file, listens, and begins accepting
// connections in the background. The socket is created with mode 0600.
func (s *Server) Start() error {
	_ = os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.unsub = s.subscribe()

	go s.acceptLoop()
	return nil
}

func (s *Server) subscribe() func() {
	if s.bus != nil {
		return s.bus.SubscribeAll(s.onEvent)
	}
	return event.SubscribeAll(s.onEvent)
}

func (s *Server) onEvent(e event.Event) {
	sid, ok := sessionIDOf(e)
	if !ok || sid != s.sessionID {
		return
	}

	we := wireEvent{
		Type:      e.Type,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sid,
		Data:      e.Data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.clients {
		select {
		case ch <- we:
		default:
			log.Warn().Str("client", id).Str("session", s.sessionID).Msg("watch event dropped: observer channel full")
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				return
			}
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	clientID := uuid.NewString()
	ch := make(chan wireEvent, clientBuffer)

	s.mu.Lock()
	s.clients[clientID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, clientID)
		s.mu.Unlock()
	}()

	enc := json.NewEncoder(conn)

	welcome := wireEvent{
		Type:      "connected",
		Timestamp: time.Now().UnixMilli(),
		SessionID: s.sessionID,
		Message:   "watching session " + s.sessionID,
	}
	if err := enc.Encode(welcome); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case we := <-ch:
			if err := enc.Encode(we); err != nil {
				return
			}
		case <-ticker.C:
			hb := wireEvent{Type: "heartbeat", Timestamp: time.Now().UnixMilli(), SessionID: s.sessionID}
			if err := enc.Encode(hb); err != nil {
				return
			}
		}
	}
}

// Stop closes the listener, unsubscribes from the bus, and removes the
// socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	ln := s.listener
	s.mu.Unlock()

	if s.unsub != nil {
		s.unsub()
	}
	if ln != nil {
		ln.Close()
	}
	_ = os.Remove(s.socketPath)
}

// sessionIDOf extracts the session a bus event belongs to. The second
// return is false for
// event types that carry no session scoping (e.g. file.edited), which the
// watch server then never forwards to a session-scoped socket.
func sessionIDOf(e event.Event) (string, bool) {
	switch data := e.Data.(type) {
	case event.SessionCreatedData:
		return sessionIDOrZero(data.Info), data.Info != nil
	case event.SessionUpdatedData:
		return sessionIDOrZero(data.Info), data.Info != nil
	case event.SessionDeletedData:
		return sessionIDOrZero(data.Info), data.Info != nil
	case event.SessionIdleData:
		return data.SessionID, true
	case event.SessionErrorData:
		return data.SessionID, data.SessionID != ""
	case event.MessageRemovedData:
		return data.SessionID, true
	case event.MessagePartRemovedData:
		return data.SessionID, true
	case event.PermissionRequiredData:
		return data.SessionID, true
	case event.PermissionResolvedData:
		return data.SessionID, true
	case event.TextDeltaData:
		return data.SessionID, true
	case event.ReasoningDeltaData:
		return data.SessionID, true
	case event.ToolStartData:
		return data.SessionID, true
	case event.ToolCompleteData:
		return data.SessionID, true
	case event.ToolResultData:
		return data.SessionID, true
	case event.FinishData:
		return data.SessionID, true
	case event.LoopErrorData:
		return data.SessionID, true
	case event.TodoUpdatedData:
		return data.SessionID, true
	}
	return "", false
}

func sessionIDOrZero(s *types.Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}
