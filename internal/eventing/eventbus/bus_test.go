package eventbus

import (
	"context"
	"errors"
	"testing"
)

type sampleEvent struct {
	Name string
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewInMemoryBus()
	var got []string
	bus.Subscribe(EventTypeOf[sampleEvent](), func(_ context.Context, event any) error {
		evt := event.(sampleEvent)
		got = append(got, "a:"+evt.Name)
		return nil
	})
	bus.Subscribe(EventTypeOf[sampleEvent](), func(_ context.Context, event any) error {
		evt := event.(sampleEvent)
		got = append(got, "b:"+evt.Name)
		return nil
	})

	if err := bus.Publish(context.Background(), sampleEvent{Name: "x"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 2 || got[0] != "a:x" || got[1] != "b:x" {
		t.Fatalf("deliveries = %v", got)
	}
}

func TestPublishNilEvent(t *testing.T) {
	bus := NewInMemoryBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Fatalf("expected ErrNilEvent, got %v", err)
	}
}

func TestPublishReturnsFirstHandlerError(t *testing.T) {
	bus := NewInMemoryBus()
	wantErr := errors.New("boom")
	calls := 0
	bus.Subscribe(EventTypeOf[sampleEvent](), func(context.Context, any) error {
		calls++
		return wantErr
	})
	bus.Subscribe(EventTypeOf[sampleEvent](), func(context.Context, any) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), sampleEvent{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected first handler error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2 (errors must not stop delivery)", calls)
	}
}

func TestEventTypeResolvesPointers(t *testing.T) {
	if EventType(sampleEvent{}) != EventType(&sampleEvent{}) {
		t.Fatal("pointer and value events must share the type name")
	}
	if EventType(sampleEvent{}) != EventTypeOf[sampleEvent]() {
		t.Fatal("EventTypeOf must match EventType")
	}
}
