package core

import (
	"context"

	"pkt.systems/tabstrip/schema"
)

// Service is the transport-agnostic API for an identity's tab list.
type Service interface {
	Open(ctx context.Context, req schema.OpenRequest) (schema.OpenResponse, error)
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	ReorderTab(ctx context.Context, req schema.ReorderTabRequest) (schema.ReorderTabResponse, error)
	TogglePin(ctx context.Context, req schema.TogglePinRequest) (schema.TogglePinResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	SelectTab(ctx context.Context, req schema.SelectTabRequest) (schema.SelectTabResponse, error)
	ResetTabs(ctx context.Context, req schema.ResetTabsRequest) (schema.ResetTabsResponse, error)
	// Flush waits until every queued save has been attempted.
	Flush(ctx context.Context) error
	// Close flushes pending saves and stops change subscriptions.
	Close() error
}

// IconLookup maps a tab id to its icon name.
type IconLookup interface {
	IconFor(id schema.TabID) string
}
