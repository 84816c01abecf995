// Package layout splits an ordered tab list into the tabs that fit inline and
// the tabs that overflow into a menu.
package layout

import (
	"net/url"
	"strings"

	"pkt.systems/tabstrip/schema"
)

// Default widths in terminal cells.
const (
	DefaultPinnedWidth = 6
	DefaultTabWidth    = 18
	DefaultReserve     = 6
)

// Engine holds the fixed width estimates used by Partition.
type Engine struct {
	// PinnedWidth is the width of a compact pinned tab.
	PinnedWidth int
	// TabWidth is the width of an unpinned tab.
	TabWidth int
	// Reserve is kept free for the overflow trigger.
	Reserve int
}

// Result is the outcome of a partition. Both slices keep list order.
type Result struct {
	Visible  []schema.Tab
	Overflow []schema.Tab
}

// NewEngine returns an engine, replacing non-positive widths with defaults.
// A negative reserve is treated as zero.
func NewEngine(pinnedWidth, tabWidth, reserve int) Engine {
	if pinnedWidth <= 0 {
		pinnedWidth = DefaultPinnedWidth
	}
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}
	if reserve < 0 {
		reserve = 0
	}
	return Engine{PinnedWidth: pinnedWidth, TabWidth: tabWidth, Reserve: reserve}
}

// DefaultEngine returns an engine using the default widths.
func DefaultEngine() Engine {
	return Engine{PinnedWidth: DefaultPinnedWidth, TabWidth: DefaultTabWidth, Reserve: DefaultReserve}
}

// WidthOf returns the estimated width of tab.
func (e Engine) WidthOf(tab schema.Tab) int {
	if tab.Pinned {
		return e.PinnedWidth
	}
	return e.TabWidth
}

// Partition walks tabs once, left to right. A tab is visible while the running
// width including it stays strictly below containerWidth minus the reserve.
// The first tab that does not fit and every tab after it overflow.
func (e Engine) Partition(tabs []schema.Tab, containerWidth int) Result {
	available := containerWidth - e.Reserve
	running := 0
	cut := len(tabs)
	for i, tab := range tabs {
		w := e.WidthOf(tab)
		if running+w >= available {
			cut = i
			break
		}
		running += w
	}
	return Result{
		Visible:  schema.CloneTabs(tabs[:cut]),
		Overflow: schema.CloneTabs(tabs[cut:]),
	}
}

// ActiveID returns the id of the first tab whose url matches location.
// Query strings, fragments and trailing slashes are ignored.
func ActiveID(tabs []schema.Tab, location string) (schema.TabID, bool) {
	want := normalizePath(location)
	if want == "" {
		return "", false
	}
	for _, tab := range tabs {
		if normalizePath(tab.URL) == want {
			return tab.ID, true
		}
	}
	return "", false
}

func normalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, err := url.Parse(raw); err == nil {
		raw = parsed.Path
	}
	if raw != "/" {
		raw = strings.TrimRight(raw, "/")
	}
	if raw == "" {
		return "/"
	}
	return raw
}

// Snapshot partitions views the same way Partition does and reports the
// result for transports.
func (e Engine) Snapshot(views []schema.TabView, containerWidth int) schema.LayoutSnapshot {
	tabs := make([]schema.Tab, len(views))
	for i, v := range views {
		tabs[i] = schema.Tab{ID: v.ID, Title: v.Title, URL: v.URL, Pinned: v.Pinned}
	}
	cut := len(e.Partition(tabs, containerWidth).Visible)
	snap := schema.LayoutSnapshot{
		Width:    containerWidth,
		Visible:  append([]schema.TabView{}, views[:cut]...),
		Overflow: append([]schema.TabView{}, views[cut:]...),
	}
	for _, v := range views {
		if v.Active {
			snap.ActiveTab = v.ID
			break
		}
	}
	return snap
}
