package schema

// Identity lifecycle.

// OpenRequest asks the service to migrate, load, and seed an identity.
type OpenRequest struct {
	Identity IdentityID
}

// OpenResponse reports how the identity's tab list was produced.
type OpenResponse struct {
	Tabs     []Tab
	Seeded   bool
	Migrated bool
	// LoadFailed is set when stored data was unreadable and the catalog was used instead.
	LoadFailed bool
}

// ListTabsRequest describes a request to list tabs.
// Location overrides the location carried in the request context.
type ListTabsRequest struct {
	Identity IdentityID
	Location string
}

// ListTabsResponse reports tabs in order and the tab matching the location.
type ListTabsResponse struct {
	Tabs      []TabView
	ActiveTab TabID
}

// Mutations.

// ReorderTabRequest moves From to the index currently held by To.
type ReorderTabRequest struct {
	Identity IdentityID
	From     TabID
	To       TabID
}

// ReorderTabResponse reports the list after the move.
type ReorderTabResponse struct {
	Tabs    []Tab
	Changed bool
}

// TogglePinRequest flips the pinned flag of a tab.
type TogglePinRequest struct {
	Identity IdentityID
	TabID    TabID
}

// TogglePinResponse reports the toggled tab and the repartitioned list.
type TogglePinResponse struct {
	Tab  Tab
	Tabs []Tab
}

// CloseTabRequest removes a tab from the working list.
type CloseTabRequest struct {
	Identity IdentityID
	TabID    TabID
}

// CloseTabResponse reports the list after the close.
type CloseTabResponse struct {
	Tabs   []Tab
	Closed bool
}

// SelectTabRequest activates a tab. FromOverflow promotes it into the visible window.
type SelectTabRequest struct {
	Identity     IdentityID
	TabID        TabID
	FromOverflow bool
}

// SelectTabResponse reports the selected tab; callers navigate to Tab.URL.
type SelectTabResponse struct {
	Tab  Tab
	Tabs []Tab
}

// ResetTabsRequest re-seeds an identity from the default catalog.
type ResetTabsRequest struct {
	Identity IdentityID
}

// ResetTabsResponse reports the re-seeded list.
type ResetTabsResponse struct {
	Tabs []Tab
}
