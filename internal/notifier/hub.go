// Package notifier fans ticket events out to connected users. Delivery is
// durable-first: every notification is persisted before any live push, so
// the store is the retry path for clients that were offline or whose socket
// broke mid-push.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/observability"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// Conn is the subset of a websocket connection the hub drives.
type Conn interface {
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Store persists notifications durably before live delivery is attempted.
type Store interface {
	Create(ctx context.Context, notification *domain.Notification) error
}

// UnreadCounter tracks per-user unread counts; best effort.
type UnreadCounter interface {
	IncrUnread(ctx context.Context, userID string) error
}

// Envelope is the server-to-client frame format.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	frameTypeNotification = "NOTIFICATION"
	frameTypeConnected    = "CONNECTED"
)

// session pairs a connection with its liveness flag. The underlying websocket
// tolerates a single writer, so every outbound frame for a connection goes
// through writeJSON/ping while holding writeMu.
type session struct {
	conn  Conn
	alive bool

	writeMu sync.Mutex
}

func (s *session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub is the process-wide connection registry. It is constructed once by the
// composition root and shared by request handlers and the heartbeat loop;
// every registry mutation holds the mutex.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session

	store    Store
	counters UnreadCounter
	logger   *zap.Logger
	metrics  *observability.Metrics

	heartbeat time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewHub constructs the hub. counters and metrics may be nil.
func NewHub(store Store, counters UnreadCounter, logger *zap.Logger, metrics *observability.Metrics, heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		sessions:  make(map[string]*session),
		store:     store,
		counters:  counters,
		logger:    logger,
		metrics:   metrics,
		heartbeat: heartbeat,
		stop:      make(chan struct{}),
	}
}

// Register attaches a live connection for a user. An existing connection is
// forcibly closed first: one live target per user, never two.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	previous, exists := h.sessions[userID]
	h.sessions[userID] = &session{conn: conn, alive: true}
	h.mu.Unlock()

	if exists {
		_ = previous.conn.Close()
		h.logger.Info("replaced live connection", zap.String("user_id", userID))
	}
}

var errConnReplaced = errors.New("connection no longer registered")

// Greet writes the post-handshake frame on the user's registered connection.
// The write shares the session's write lock with pushes and heartbeat pings.
func (h *Hub) Greet(userID string, conn Conn) error {
	h.mu.Lock()
	current, ok := h.sessions[userID]
	h.mu.Unlock()
	if !ok || current.conn != conn {
		return apperrors.NewDeliveryError(userID, errConnReplaced)
	}
	return current.writeJSON(ConnectedEnvelope(userID))
}

// Unregister drops the user's connection if it is the one registered.
func (h *Hub) Unregister(userID string, conn Conn) {
	h.mu.Lock()
	current, exists := h.sessions[userID]
	if exists && current.conn == conn {
		delete(h.sessions, userID)
	} else {
		exists = false
	}
	h.mu.Unlock()

	if exists {
		_ = conn.Close()
	}
}

// MarkAlive records a pong from the user's connection.
func (h *Hub) MarkAlive(userID string) {
	h.mu.Lock()
	if current, ok := h.sessions[userID]; ok {
		current.alive = true
	}
	h.mu.Unlock()
}

// Connected reports whether the user has a live connection.
func (h *Hub) Connected(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[userID]
	return ok
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Send persists the notification, then attempts a live push. A push failure
// purges the broken connection and is absorbed; only the durable write can
// fail the call.
func (h *Hub) Send(ctx context.Context, notification *domain.Notification) error {
	if err := h.store.Create(ctx, notification); err != nil {
		return apperrors.NewPersistenceError("notification", err)
	}
	if h.counters != nil {
		if err := h.counters.IncrUnread(ctx, notification.UserID); err != nil {
			h.logger.Debug("unread counter update failed", zap.Error(err))
		}
	}

	h.mu.Lock()
	current, ok := h.sessions[notification.UserID]
	h.mu.Unlock()
	if !ok {
		h.metrics.RecordDelivery("offline")
		return nil
	}

	envelope := Envelope{
		Type:      frameTypeNotification,
		Data:      notification,
		Timestamp: time.Now(),
	}
	if err := current.writeJSON(envelope); err != nil {
		h.metrics.RecordDelivery("push_failed")
		h.logger.Warn("live push failed; purging connection",
			zap.String("user_id", notification.UserID),
			zap.Error(apperrors.NewDeliveryError(notification.UserID, err)))
		h.Unregister(notification.UserID, current.conn)
		return nil
	}
	h.metrics.RecordDelivery("pushed")
	return nil
}

// Broadcast sends one copy of the notification per recipient. A failure for
// one recipient is logged and does not affect the others.
func (h *Hub) Broadcast(ctx context.Context, userIDs []string, template domain.Notification) {
	for _, userID := range userIDs {
		notification := template
		notification.UserID = userID
		notification.ID = ""
		if err := h.Send(ctx, &notification); err != nil {
			h.logger.Error("notification dropped",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
}

// Run drives the heartbeat cycle until Stop or context cancellation. Any
// connection that did not answer the previous ping is presumed dead and
// purged before the next ping goes out.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// Stop terminates the heartbeat loop and closes all connections.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })

	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, current := range sessions {
		_ = current.conn.Close()
	}
}

// sweep is one heartbeat cycle: purge silent connections, ping the rest.
func (h *Hub) sweep() {
	type target struct {
		userID  string
		session *session
	}

	h.mu.Lock()
	dead := make([]target, 0)
	live := make([]target, 0, len(h.sessions))
	for userID, current := range h.sessions {
		if !current.alive {
			dead = append(dead, target{userID, current})
			delete(h.sessions, userID)
			continue
		}
		current.alive = false
		live = append(live, target{userID, current})
	}
	h.mu.Unlock()

	for _, t := range dead {
		_ = t.session.conn.Close()
		h.logger.Info("heartbeat missed; connection purged", zap.String("user_id", t.userID))
	}
	for _, t := range live {
		if err := t.session.ping(); err != nil {
			h.Unregister(t.userID, t.session.conn)
		}
	}
}

// ConnectedEnvelope is the frame sent right after a successful handshake.
func ConnectedEnvelope(userID string) Envelope {
	return Envelope{
		Type:      frameTypeConnected,
		Data:      map[string]string{"user_id": userID},
		Timestamp: time.Now(),
	}
}
