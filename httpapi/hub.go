package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64           `json:"seq"`
	Type      string           `json:"type"`
	TabEvent  string           `json:"tab_event,omitempty"`
	TabID     schema.TabID     `json:"tab_id,omitempty"`
	Tabs      []schema.Tab     `json:"tabs,omitempty"`
	Snapshot  *SnapshotPayload `json:"snapshot,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Identity  schema.IdentityID `json:"identity"`
	Tabs      []schema.TabView  `json:"tabs"`
	ActiveTab schema.TabID      `json:"active_tab,omitempty"`
	Theme     schema.ThemeName  `json:"theme,omitempty"`
}

// Hub broadcasts tab events per identity and keeps a short history for
// Last-Event-ID replay.
type Hub struct {
	mu          sync.Mutex
	identities  map[schema.IdentityID]*identityHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hub{
		identities:  make(map[schema.IdentityID]*identityHub),
		historySize: historySize,
	}
}

// OnTabEvent implements core.EventSink.
func (h *Hub) OnTabEvent(event schema.TabEvent) {
	log := logx.WithIdentity(context.Background(), event.Identity)
	log.Trace("hub tab event", "type", event.Type, "tab", event.TabID, "tabs", len(event.Tabs))
	h.publish(event.Identity, StreamEvent{
		Type:      "tabs",
		TabEvent:  string(event.Type),
		TabID:     event.TabID,
		Tabs:      schema.CloneTabs(event.Tabs),
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber for an identity.
func (h *Hub) Subscribe(id schema.IdentityID) (<-chan StreamEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ih := h.getOrCreateLocked(id)
	ch := make(chan StreamEvent, 256)
	ih.subs[ch] = struct{}{}
	log := logx.WithIdentity(context.Background(), id)
	log.Debug("hub subscribe", "subs", len(ih.subs))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(ih.subs, ch)
			close(ch)
			remaining := len(ih.subs)
			h.mu.Unlock()
			log.Debug("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(id schema.IdentityID, after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ih := h.identities[id]
	if ih == nil {
		return nil
	}
	events := make([]StreamEvent, 0, len(ih.history))
	for _, event := range ih.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(id schema.IdentityID, event StreamEvent) {
	h.mu.Lock()
	ih := h.getOrCreateLocked(id)
	ih.seq++
	event.Seq = ih.seq
	ih.history = append(ih.history, event)
	if len(ih.history) > h.historySize {
		ih.history = ih.history[len(ih.history)-h.historySize:]
	}
	dropped := 0
	for sub := range ih.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		logx.WithIdentity(context.Background(), id).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func (h *Hub) getOrCreateLocked(id schema.IdentityID) *identityHub {
	ih := h.identities[id]
	if ih == nil {
		ih = &identityHub{subs: make(map[chan StreamEvent]struct{})}
		h.identities[id] = ih
	}
	return ih
}

type identityHub struct {
	seq     uint64
	history []StreamEvent
	subs    map[chan StreamEvent]struct{}
}
