// Package broadcast implements the fan-out side of the tracking pipeline:
// the in-process Hub that relays tracker messages to every connected live
// session, and the Redis bridge that carries messages between the API and
// gateway processes.
package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/manolocortes/evTrak/internal/metrics"
	"github.com/manolocortes/evTrak/internal/types"
)

// DefaultQueueSize is the default capacity of a session's outbound queue.
const DefaultQueueSize = 32

// Session is one live viewer registered with the Hub. Messages are consumed
// from Messages(); the channel is closed when the session is unregistered,
// either by the owner or by the Hub when the queue overflows.
type Session struct {
	id     string
	filter string
	out    chan types.TrackerMessage
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Filter returns the session's geofence filter, or "" when unfiltered.
func (s *Session) Filter() string { return s.filter }

// Messages returns the session's outbound message stream.
func (s *Session) Messages() <-chan types.TrackerMessage { return s.out }

// Hub is the process-wide relay from the distribution channel to live
// sessions. Publishing never blocks: each session has a bounded queue, and a
// session that cannot keep up is disconnected rather than propagating delay
// upstream (disconnect-on-overflow).
//
// Dispatch is serialized under the Hub mutex, so messages are forwarded to
// each session in publication order.
type Hub struct {
	queueSize int
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates a Hub. queueSize <= 0 selects DefaultQueueSize.
func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		queueSize: queueSize,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Register adds a live session to the fan-out set. filter restricts
// transition events to the named geofence; position updates are always
// delivered. The empty filter receives everything. Comparison is
// case-sensitive; normalization, if any, is the caller's responsibility.
func (h *Hub) Register(filter string) *Session {
	s := &Session{
		id:     uuid.New().String(),
		filter: filter,
		out:    make(chan types.TrackerMessage, h.queueSize),
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	metrics.SessionsConnected.Inc()
	h.logger.Info("session registered", "session_id", s.id, "filter", filter)
	return s
}

// Unregister removes a session and closes its message stream. Messages
// still queued for it are discarded by the consumer going away. Safe to
// call more than once.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	h.removeLocked(s)
	h.mu.Unlock()
}

// removeLocked deletes and closes a session. Caller holds h.mu, which
// guarantees no concurrent Publish can send on the closed channel.
func (h *Hub) removeLocked(s *Session) {
	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	delete(h.sessions, s.id)
	close(s.out)
	metrics.SessionsConnected.Dec()
	h.logger.Info("session unregistered", "session_id", s.id)
}

// Publish forwards a message to every registered session whose filter
// admits it, without ever blocking the caller. It implements the
// tracking.Publisher interface so a single-process deployment can wire the
// Hub directly behind ingestion.
func (h *Hub) Publish(_ context.Context, msg types.TrackerMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var overflowed []*Session
	for _, s := range h.sessions {
		if !h.admits(s, msg) {
			continue
		}
		select {
		case s.out <- msg:
		default:
			overflowed = append(overflowed, s)
		}
	}

	for _, s := range overflowed {
		metrics.SessionOverflowsTotal.Inc()
		h.logger.Warn("session queue overflow; disconnecting slow consumer", "session_id", s.id)
		h.removeLocked(s)
	}
	return nil
}

// admits applies the session filter: position updates reach every session;
// transition events reach sessions with no filter or a filter equal to the
// event's geofence name.
func (h *Hub) admits(s *Session, msg types.TrackerMessage) bool {
	if msg.Type != types.MessageTransitionEvent {
		return true
	}
	return s.filter == "" || s.filter == msg.GeofenceName
}

// SessionCount returns the number of currently registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
