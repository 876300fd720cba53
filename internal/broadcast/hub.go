package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

const (
	// DefaultOutboxSize bounds each connection's pending deliveries.
	DefaultOutboxSize = 256
	// dedupWindow is how many recent message ids each connection remembers.
	dedupWindow = 512
)

// Conn is one registered client connection. Events are read from Outbox by
// the transport's writer goroutine. Closed is closed exactly once, by the
// hub, when the connection is evicted or unregistered; transports watch it
// to tear down.
type Conn struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Outbox chan models.Event
	Closed chan struct{}

	closeOnce sync.Once

	// Recent message ids, for duplicate suppression when storage retries or
	// bus redelivery present the same message twice.
	seen     map[uuid.UUID]struct{}
	seenRing []uuid.UUID
	seenPos  int
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.Closed) })
}

// markSeen records a message id, evicting the oldest once the window is
// full. Returns false if the id was already present.
func (c *Conn) markSeen(id uuid.UUID) bool {
	if _, dup := c.seen[id]; dup {
		return false
	}
	if old := c.seenRing[c.seenPos]; old != (uuid.UUID{}) {
		delete(c.seen, old)
	}
	c.seen[id] = struct{}{}
	c.seenRing[c.seenPos] = id
	c.seenPos = (c.seenPos + 1) % dedupWindow
	return true
}

// Hub is the in-process connection registry and fan-out point. One hub per
// instance; the WebSocket transport registers here (the TCP command channel
// is pure request/response), and both local operations and bus deliveries
// flow through Deliver.
type Hub struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*Conn
	byUser  map[uuid.UUID]map[uuid.UUID]*Conn
	outboxN int
	logger  *zap.Logger
}

// NewHub creates a new instance of Hub. outboxSize <= 0 selects the default.
func NewHub(outboxSize int, logger *zap.Logger) *Hub {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Hub{
		conns:   make(map[uuid.UUID]*Conn),
		byUser:  make(map[uuid.UUID]map[uuid.UUID]*Conn),
		outboxN: outboxSize,
		logger:  logger,
	}
}

// Register adds a connection for the user and returns it.
func (h *Hub) Register(userID uuid.UUID) *Conn {
	conn := &Conn{
		ID:       uuid.New(),
		UserID:   userID,
		Outbox:   make(chan models.Event, h.outboxN),
		Closed:   make(chan struct{}),
		seen:     make(map[uuid.UUID]struct{}, dedupWindow),
		seenRing: make([]uuid.UUID, dedupWindow),
	}

	h.mu.Lock()
	h.conns[conn.ID] = conn
	userConns := h.byUser[userID]
	if userConns == nil {
		userConns = make(map[uuid.UUID]*Conn)
		h.byUser[userID] = userConns
	}
	userConns[conn.ID] = conn
	h.mu.Unlock()

	h.logger.Debug("Connection registered",
		zap.String("conn_id", conn.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return conn
}

// Unregister removes the connection and closes it. Synchronous: when this
// returns, no future Deliver will enqueue to the connection.
func (h *Hub) Unregister(conn *Conn) {
	h.mu.Lock()
	h.evictLocked(conn)
	h.mu.Unlock()
}

// evictLocked must run under h.mu.
func (h *Hub) evictLocked(conn *Conn) {
	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	delete(h.conns, conn.ID)
	if userConns := h.byUser[conn.UserID]; userConns != nil {
		delete(userConns, conn.ID)
		if len(userConns) == 0 {
			delete(h.byUser, conn.UserID)
		}
	}
	conn.close()
}

// Deliver fans an event out to every local connection of every recipient. A
// connection that cannot keep up (full outbox) is evicted rather than allowed
// to block the rest; a duplicate message id is dropped per connection.
//
// For chat messages the recipient set comes from the event itself. Presence
// and group events go to all connections.
func (h *Hub) Deliver(event models.Event) {
	if !event.Valid() {
		h.logger.Warn("Dropping malformed event", zap.String("event_kind", string(event.Kind)))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*Conn
	if event.Kind == models.EventChatMessage {
		for _, userID := range event.ChatMessage.Recipients {
			for _, conn := range h.byUser[userID] {
				targets = append(targets, conn)
			}
		}
	} else {
		for _, conn := range h.conns {
			targets = append(targets, conn)
		}
	}

	for _, conn := range targets {
		if event.Kind == models.EventChatMessage {
			if !conn.markSeen(event.ChatMessage.MessageID) {
				metrics.MessagesDroppedTotal.WithLabelValues("duplicate").Inc()
				continue
			}
		}
		select {
		case conn.Outbox <- event:
			if event.Kind == models.EventChatMessage {
				metrics.MessagesDeliveredTotal.Inc()
			}
		default:
			// Slow consumer. Evicting here keeps one stalled connection
			// from backing up delivery to everyone else.
			metrics.MessagesDroppedTotal.WithLabelValues("overflow").Inc()
			h.logger.Warn("Evicting slow connection",
				zap.String("conn_id", conn.ID.String()),
				zap.String("user_id", conn.UserID.String()),
			)
			h.evictLocked(conn)
		}
	}
}

// ConnectionsForUser reports how many local connections the user has.
func (h *Hub) ConnectionsForUser(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

// Connections reports the total number of local connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll evicts every connection. Used during shutdown after the
// listeners have stopped accepting.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		h.evictLocked(conn)
	}
}
