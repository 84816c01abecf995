package core

import (
	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/persist"
)

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	// Adapter persists tab lists. Without it the service keeps state in memory only.
	Adapter   persist.Adapter
	Icons     IconLookup
	EventSink EventSink
	Logger    pslog.Logger
}
