package schema

// TabEventType describes what changed in a tab list.
type TabEventType string

const (
	// TabEventLoaded indicates an identity was opened.
	TabEventLoaded TabEventType = "loaded"
	// TabEventReordered indicates a tab was moved.
	TabEventReordered TabEventType = "reordered"
	// TabEventPinned indicates a tab was pinned or unpinned.
	TabEventPinned TabEventType = "pinned"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventSelected indicates a tab was selected.
	TabEventSelected TabEventType = "selected"
	// TabEventReset indicates the list was re-seeded from the catalog.
	TabEventReset TabEventType = "reset"
	// TabEventRemote indicates the stored list changed out-of-band.
	TabEventRemote TabEventType = "remote"
)

// TabEvent carries the full list after a change.
type TabEvent struct {
	Identity IdentityID   `json:"identity"`
	Type     TabEventType `json:"type"`
	TabID    TabID        `json:"tab_id,omitempty"`
	Tabs     []Tab        `json:"tabs"`
}
