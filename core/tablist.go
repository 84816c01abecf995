package core

import "pkt.systems/tabstrip/schema"

// Initialize builds the working list from the catalog and a persisted list.
// A non-empty persisted list keeps its order; catalog tabs missing from it are
// appended in catalog order. Otherwise the catalog is used verbatim and seeded
// reports true.
func Initialize(catalog, persisted []schema.Tab) (tabs []schema.Tab, seeded bool) {
	if len(persisted) == 0 {
		return schema.CloneTabs(catalog), true
	}
	seen := make(map[schema.TabID]struct{}, len(persisted)+len(catalog))
	out := make([]schema.Tab, 0, len(persisted)+len(catalog))
	for _, tab := range persisted {
		if tab.ID == "" {
			continue
		}
		if _, ok := seen[tab.ID]; ok {
			continue
		}
		seen[tab.ID] = struct{}{}
		out = append(out, tab)
	}
	for _, tab := range catalog {
		if _, ok := seen[tab.ID]; ok {
			continue
		}
		seen[tab.ID] = struct{}{}
		out = append(out, tab)
	}
	return out, false
}

// Reorder moves from to the index currently held by to, shifting the tabs in
// between. It reports false when from equals to or either id is absent.
func Reorder(tabs []schema.Tab, from, to schema.TabID) ([]schema.Tab, bool) {
	if from == to {
		return tabs, false
	}
	oldIndex := schema.IndexOf(tabs, from)
	newIndex := schema.IndexOf(tabs, to)
	if oldIndex < 0 || newIndex < 0 {
		return tabs, false
	}
	out := make([]schema.Tab, 0, len(tabs))
	moved := tabs[oldIndex]
	for i, tab := range tabs {
		if i == oldIndex {
			continue
		}
		out = append(out, tab)
	}
	out = insertAt(out, newIndex, moved)
	return out, true
}

// TogglePin flips the pinned flag of id and stably partitions the list so
// pinned tabs precede unpinned ones.
func TogglePin(tabs []schema.Tab, id schema.TabID) ([]schema.Tab, schema.Tab, bool) {
	idx := schema.IndexOf(tabs, id)
	if idx < 0 {
		return tabs, schema.Tab{}, false
	}
	out := schema.CloneTabs(tabs)
	out[idx].Pinned = !out[idx].Pinned
	return PartitionPinned(out), out[idx], true
}

// PartitionPinned returns tabs with pinned entries first, each group keeping
// its relative order.
func PartitionPinned(tabs []schema.Tab) []schema.Tab {
	out := make([]schema.Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.Pinned {
			out = append(out, tab)
		}
	}
	for _, tab := range tabs {
		if !tab.Pinned {
			out = append(out, tab)
		}
	}
	return out
}

// Close removes the tab with id. Absent ids leave the list unchanged.
func Close(tabs []schema.Tab, id schema.TabID) ([]schema.Tab, bool) {
	idx := schema.IndexOf(tabs, id)
	if idx < 0 {
		return tabs, false
	}
	out := make([]schema.Tab, 0, len(tabs)-1)
	out = append(out, tabs[:idx]...)
	out = append(out, tabs[idx+1:]...)
	return out, true
}

// PromoteOnSelect relocates a tab chosen from the overflow set. Pinned tabs go
// to the front; unpinned tabs go directly before the first remaining unpinned
// tab, or to the end when none remains.
func PromoteOnSelect(tabs []schema.Tab, id schema.TabID) ([]schema.Tab, bool) {
	idx := schema.IndexOf(tabs, id)
	if idx < 0 {
		return tabs, false
	}
	selected := tabs[idx]
	rest := make([]schema.Tab, 0, len(tabs)-1)
	rest = append(rest, tabs[:idx]...)
	rest = append(rest, tabs[idx+1:]...)
	if selected.Pinned {
		return insertAt(rest, 0, selected), true
	}
	target := len(rest)
	for i, tab := range rest {
		if !tab.Pinned {
			target = i
			break
		}
	}
	return insertAt(rest, target, selected), true
}

func insertAt(tabs []schema.Tab, idx int, tab schema.Tab) []schema.Tab {
	if idx < 0 {
		idx = 0
	}
	if idx > len(tabs) {
		idx = len(tabs)
	}
	out := make([]schema.Tab, 0, len(tabs)+1)
	out = append(out, tabs[:idx]...)
	out = append(out, tab)
	out = append(out, tabs[idx:]...)
	return out
}
