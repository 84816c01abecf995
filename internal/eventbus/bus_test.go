package eventbus

import (
	"testing"
	"time"

	"pkt.systems/tabstrip/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	defer cancel()

	event := schema.TabEvent{Identity: "alice", Type: schema.TabEventClosed, TabID: "help"}
	bus.OnTabEvent(event)

	select {
	case got := <-ch:
		if got.Type != EventTabs {
			t.Fatalf("expected tabs event, got %v", got.Type)
		}
		if got.Tabs.Identity != event.Identity || got.Tabs.TabID != event.TabID {
			t.Fatalf("unexpected payload: %+v", got.Tabs)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishIsScopedByIdentity(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	defer cancel()
	bus.OnTabEvent(schema.TabEvent{Identity: "bob"})
	select {
	case got := <-ch:
		t.Fatalf("unexpected event for alice: %+v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("alice")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	if bus.Subscribers("alice") != 0 {
		t.Fatalf("expected no subscribers")
	}
	bus.OnTabEvent(schema.TabEvent{Identity: "alice"})
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe("alice")
	defer cancel()

	bus.OnTabEvent(schema.TabEvent{Identity: "alice"})
	done := make(chan struct{})
	go func() {
		bus.OnTabEvent(schema.TabEvent{Identity: "alice"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full subscriber")
	}
}
