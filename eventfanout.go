package tabstrip

import (
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/schema"
)

// eventFanout delivers each tab event to every sink in order.
type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTabEvent(event)
	}
}
