package tui

import (
	"strings"

	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/schema"
)

// Menu is the overflow dropdown. Entries follow the layout engine's overflow
// order.
type Menu struct {
	open    bool
	entries []schema.TabView
	cursor  int
}

// IsOpen reports whether the menu is shown.
func (m *Menu) IsOpen() bool { return m.open }

// Open shows the menu. An empty overflow set keeps it closed.
func (m *Menu) Open() bool {
	if len(m.entries) == 0 {
		m.open = false
		return false
	}
	m.open = true
	m.cursor = 0
	return true
}

// Close hides the menu.
func (m *Menu) Close() { m.open = false }

// Toggle flips the open state.
func (m *Menu) Toggle() bool {
	if m.open {
		m.Close()
		return false
	}
	return m.Open()
}

// SetEntries replaces the entries, keeping the cursor on the same tab when
// it is still present.
func (m *Menu) SetEntries(entries []schema.TabView) {
	var current schema.TabID
	if sel, ok := m.Selected(); ok {
		current = sel.ID
	}
	m.entries = append([]schema.TabView{}, entries...)
	m.cursor = 0
	for i, e := range m.entries {
		if e.ID == current {
			m.cursor = i
			break
		}
	}
	if len(m.entries) == 0 {
		m.open = false
	}
}

// Entries returns the current entries.
func (m *Menu) Entries() []schema.TabView { return m.entries }

// Move shifts the cursor by delta, wrapping around.
func (m *Menu) Move(delta int) {
	n := len(m.entries)
	if n == 0 {
		return
	}
	m.cursor = ((m.cursor+delta)%n + n) % n
}

// Selected returns the entry under the cursor.
func (m *Menu) Selected() (schema.TabView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return schema.TabView{}, false
	}
	return m.entries[m.cursor], true
}

func (m *Menu) render(st styles, mark func(id, s string) string) string {
	lines := make([]string, 0, len(m.entries))
	for i, e := range m.entries {
		label := catalog.Glyph(e.Icon) + " " + e.Title
		if e.Pinned {
			label += " ⊙"
		}
		style := st.menuItem
		if i == m.cursor {
			style = st.menuSel
		}
		line := mark(menuZone(e.ID), style.Render(label))
		if !e.Pinned {
			line += " " + mark(menuCloseZone(e.ID), st.meta.Render("×"))
		}
		lines = append(lines, line)
	}
	return mark(zoneMenu, st.menu.Render(strings.Join(lines, "\n")))
}
