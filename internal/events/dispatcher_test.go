package events

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	received := 0
	dispatcher.Subscribe(EventTicketStatusChanged, func(ctx context.Context, event Event) error {
		received++
		return nil
	})
	dispatcher.Subscribe(EventTicketStatusChanged, func(ctx context.Context, event Event) error {
		received++
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventTicketStatusChanged}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if received != 2 {
		t.Fatalf("expected 2 deliveries, got %d", received)
	}
}

func TestDispatcherIsolatesHandlerFailures(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	reached := false
	dispatcher.Subscribe(EventSlaStatusChanged, func(ctx context.Context, event Event) error {
		return errors.New("boom")
	})
	dispatcher.Subscribe(EventSlaStatusChanged, func(ctx context.Context, event Event) error {
		reached = true
		return nil
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventSlaStatusChanged}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !reached {
		t.Fatalf("a failing handler must not stop later handlers")
	}
}

func TestDispatcherIgnoresUnknownType(t *testing.T) {
	dispatcher := NewInMemoryDispatcher(nil)
	if err := dispatcher.Publish(context.Background(), Event{Type: EventTicketEscalated}); err != nil {
		t.Fatalf("publish with no subscribers: %v", err)
	}
}

func TestDispatcherLogsHandlerFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := NewInMemoryDispatcher(zap.New(core))
	dispatcher.Subscribe(EventTicketEscalated, func(ctx context.Context, event Event) error {
		return errors.New("side channel down")
	})

	if err := dispatcher.Publish(context.Background(), Event{Type: EventTicketEscalated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if logs.FilterMessage("event handler failed").Len() != 1 {
		t.Fatalf("handler failure must be logged, not swallowed")
	}
}
