package core

import "pkt.systems/tabstrip/schema"

// EventSink receives tab list changes from the core service.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
}
