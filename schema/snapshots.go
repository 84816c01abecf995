package schema

// TabView is a read-only projection of a tab for transports.
// Icon and Active are derived at read time and never stored.
type TabView struct {
	ID     TabID  `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Pinned bool   `json:"pinned"`
	Icon   string `json:"icon"`
	Active bool   `json:"active"`
}

// LayoutSnapshot is a tab list split into the inline and overflow sets.
type LayoutSnapshot struct {
	Width     int       `json:"width"`
	Visible   []TabView `json:"visible"`
	Overflow  []TabView `json:"overflow"`
	ActiveTab TabID     `json:"active_tab,omitempty"`
}
