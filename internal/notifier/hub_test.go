package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/observability"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   []Envelope
	pings    int
	closed   bool
	writeErr error
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	if envelope, ok := v.(Envelope); ok {
		c.frames = append(c.frames, envelope)
	}
	return nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeStore struct {
	mu      sync.Mutex
	created []domain.Notification
	failFor map[string]error
}

func (s *fakeStore) Create(ctx context.Context, notification *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[notification.UserID]; ok {
		return err
	}
	notification.ID = "n-" + notification.UserID
	s.created = append(s.created, *notification)
	return nil
}

func (s *fakeStore) countFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.created {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

func newTestHub(store Store) *Hub {
	return NewHub(store, nil, zap.NewNop(), observability.NewMetrics(), time.Second)
}

func notificationFor(userID string) *domain.Notification {
	return &domain.Notification{
		UserID:  userID,
		Title:   "Ticket updated",
		Message: "status changed",
		Type:    domain.NotificationTypeStatusChange,
	}
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)

	first := &fakeConn{}
	second := &fakeConn{}
	hub.Register("u1", first)
	hub.Register("u1", second)

	if !first.isClosed() {
		t.Fatalf("first connection must be force-closed on replacement")
	}

	if err := hub.Send(context.Background(), notificationFor("u1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if first.frameCount() != 0 {
		t.Errorf("stale connection received a frame")
	}
	if second.frameCount() != 1 {
		t.Errorf("replacement connection got %d frames, want 1", second.frameCount())
	}
}

func TestSendPersistsBeforePush(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)
	conn := &fakeConn{}
	hub.Register("u1", conn)

	if err := hub.Send(context.Background(), notificationFor("u1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if store.countFor("u1") != 1 {
		t.Fatalf("notification not persisted")
	}
	if conn.frameCount() != 1 {
		t.Fatalf("live push missing")
	}
}

func TestSendWithoutConnectionStillPersists(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)

	if err := hub.Send(context.Background(), notificationFor("offline")); err != nil {
		t.Fatalf("send to offline user must succeed: %v", err)
	}
	if store.countFor("offline") != 1 {
		t.Fatalf("durable fallback record missing")
	}
}

func TestSendDurableWriteFailureIsFatal(t *testing.T) {
	store := &fakeStore{failFor: map[string]error{"u1": errors.New("db down")}}
	hub := newTestHub(store)
	conn := &fakeConn{}
	hub.Register("u1", conn)

	if err := hub.Send(context.Background(), notificationFor("u1")); err == nil {
		t.Fatalf("durable write failure must surface")
	}
	if conn.frameCount() != 0 {
		t.Fatalf("push must not be attempted when durability failed")
	}
}

func TestPushFailurePurgesConnection(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	hub.Register("u1", conn)

	if err := hub.Send(context.Background(), notificationFor("u1")); err != nil {
		t.Fatalf("push failure must not fail the call: %v", err)
	}
	if hub.Connected("u1") {
		t.Fatalf("broken connection should be purged")
	}
	if store.countFor("u1") != 1 {
		t.Fatalf("durable record must survive the failed push")
	}
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	store := &fakeStore{failFor: map[string]error{"u2": errors.New("db glitch")}}
	hub := newTestHub(store)
	c1 := &fakeConn{}
	c3 := &fakeConn{}
	hub.Register("u1", c1)
	hub.Register("u3", c3)

	hub.Broadcast(context.Background(), []string{"u1", "u2", "u3"}, *notificationFor(""))

	if store.countFor("u1") != 1 || store.countFor("u3") != 1 {
		t.Fatalf("failure for one recipient leaked into others")
	}
	if c1.frameCount() != 1 || c3.frameCount() != 1 {
		t.Fatalf("live delivery missing for healthy recipients")
	}
}

func TestHeartbeatPurgesSilentConnections(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)
	silent := &fakeConn{}
	chatty := &fakeConn{}
	hub.Register("silent", silent)
	hub.Register("chatty", chatty)

	// First cycle pings everyone and clears liveness flags.
	hub.sweep()
	if silent.pings != 1 || chatty.pings != 1 {
		t.Fatalf("both connections should be pinged on the first cycle")
	}

	// Only chatty answers.
	hub.MarkAlive("chatty")
	hub.sweep()

	if hub.Connected("silent") {
		t.Fatalf("silent connection must be purged after a missed pong")
	}
	if !silent.isClosed() {
		t.Fatalf("purged connection must be closed")
	}
	if !hub.Connected("chatty") {
		t.Fatalf("answering connection must survive")
	}
}

func TestUnregisterIgnoresStaleConnection(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)
	first := &fakeConn{}
	second := &fakeConn{}
	hub.Register("u1", first)
	hub.Register("u1", second)

	// Unregister with the replaced handle must not drop the live one.
	hub.Unregister("u1", first)
	if !hub.Connected("u1") {
		t.Fatalf("stale unregister removed the live connection")
	}

	hub.Unregister("u1", second)
	if hub.Connected("u1") {
		t.Fatalf("live connection should be gone after its own unregister")
	}
}

// overlapConn fails the moment two writes run at the same time, the way the
// real websocket connection would.
type overlapConn struct {
	inFlight int32
	overlaps int32
	writes   int32
}

func (c *overlapConn) enter() {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		atomic.AddInt32(&c.overlaps, 1)
	}
	time.Sleep(50 * time.Microsecond)
}

func (c *overlapConn) leave() {
	atomic.AddInt32(&c.writes, 1)
	atomic.AddInt32(&c.inFlight, -1)
}

func (c *overlapConn) WriteJSON(v any) error {
	c.enter()
	defer c.leave()
	return nil
}

func (c *overlapConn) WriteMessage(messageType int, data []byte) error {
	c.enter()
	defer c.leave()
	return nil
}

func (c *overlapConn) Close() error { return nil }

func TestConnectionWritesAreSerialized(t *testing.T) {
	store := &fakeStore{}
	hub := newTestHub(store)
	conn := &overlapConn{}
	hub.Register("u1", conn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := hub.Send(context.Background(), notificationFor("u1")); err != nil {
					t.Errorf("send failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			hub.MarkAlive("u1")
			hub.sweep()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = hub.Greet("u1", conn)
		}
	}()
	wg.Wait()

	if got := atomic.LoadInt32(&conn.overlaps); got != 0 {
		t.Fatalf("observed %d overlapping writes to one connection", got)
	}
	if atomic.LoadInt32(&conn.writes) == 0 {
		t.Fatalf("expected writes to reach the connection")
	}
}
