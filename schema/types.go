package schema

// IdentityID identifies the owner of a persisted tab list.
type IdentityID string

// TabID identifies a tab. It is the only key tabs are compared by.
type TabID string

// ThemeName identifies a UI theme.
type ThemeName string

// Tab is the plain-data tab record. It is what gets persisted.
type Tab struct {
	ID     TabID  `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	URL    string `json:"url" yaml:"url"`
	Pinned bool   `json:"pinned" yaml:"pinned"`
}

// CloneTabs returns a copy of tabs that shares no backing array.
func CloneTabs(tabs []Tab) []Tab {
	if tabs == nil {
		return nil
	}
	out := make([]Tab, len(tabs))
	copy(out, tabs)
	return out
}

// IndexOf returns the position of id in tabs or -1.
func IndexOf(tabs []Tab, id TabID) int {
	for i, tab := range tabs {
		if tab.ID == id {
			return i
		}
	}
	return -1
}
