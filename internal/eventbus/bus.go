package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventTabs carries a changed tab list.
	EventTabs EventType = "tabs"
)

// Event represents a UI-facing event emitted by the tab service.
type Event struct {
	Type EventType
	Tabs schema.TabEvent
}

// Bus fans out events to per-identity subscribers.
type Bus struct {
	mu    sync.RWMutex
	subs  map[schema.IdentityID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.IdentityID]map[chan Event]struct{}),
		log:   logger,
		depth: 64,
	}
}

// Subscribe registers a subscriber for the identity and returns a channel + cancel.
func (b *Bus) Subscribe(id schema.IdentityID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	subs := b.subs[id]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		b.subs[id] = subs
	}
	subs[ch] = struct{}{}
	count := len(subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "identity", id, "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[id]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, id)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.Debug("eventbus unsubscribe", "identity", id)
		})
	}
}

// OnTabEvent publishes a tab list change.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(event.Identity, Event{Type: EventTabs, Tabs: event})
}

// Subscribers returns the number of live subscribers for id.
func (b *Bus) Subscribers(id schema.IdentityID) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[id])
}

func (b *Bus) publish(id schema.IdentityID, event Event) {
	if b == nil {
		return
	}
	// sends happen under the read lock so cancel cannot close a channel mid-send
	b.mu.RLock()
	dropped := 0
	for sub := range b.subs[id] {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.RUnlock()
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "identity", id, "count", dropped)
	}
}
