package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/tabstrip/schema"
)

const (
	zoneTrigger = "overflow-trigger"
	zoneMenu    = "overflow-menu"
)

func tabZone(id schema.TabID) string       { return "tab:" + string(id) }
func closeZone(id schema.TabID) string     { return "close:" + string(id) }
func menuZone(id schema.TabID) string      { return "menu:" + string(id) }
func menuCloseZone(id schema.TabID) string { return "menu-close:" + string(id) }

// handleMouse turns clicks into the same actions as the keyboard. A press on
// a tab starts a drag; the release decides between select and reorder.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	if m.zones == nil {
		return
	}
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		m.press(msg)
	case tea.MouseActionRelease:
		m.release(msg)
	}
}

func (m *Model) press(msg tea.MouseMsg) {
	onTrigger := m.zones.Get(zoneTrigger).InBounds(msg)
	if m.menu.IsOpen() {
		if id, ok := m.hit(msg, menuCloseZone, m.menu.Entries()); ok {
			m.closeTab(id)
			return
		}
		if id, ok := m.hit(msg, menuZone, m.menu.Entries()); ok {
			m.selectTab(id, true)
			return
		}
		if onTrigger || !m.zones.Get(zoneMenu).InBounds(msg) {
			m.menu.Close()
		}
		return
	}
	if onTrigger {
		m.menu.Open()
		return
	}
	if id, ok := m.hit(msg, closeZone, m.visible); ok {
		m.closeTab(id)
		return
	}
	if id, ok := m.hit(msg, tabZone, m.visible); ok {
		m.beginDrag(id)
	}
}

func (m *Model) release(msg tea.MouseMsg) {
	if m.dragging == "" {
		return
	}
	if id, ok := m.hit(msg, tabZone, m.visible); ok {
		m.drop(id)
		return
	}
	m.dragging = ""
	m.status = ""
}

// beginDrag marks id as being dragged.
func (m *Model) beginDrag(id schema.TabID) {
	m.dragging = id
	m.status = "dragging " + string(id)
	m.log.Debug("tui drag started", "tab", id)
}

// drop ends a drag over target. Releasing on the dragged tab is a click.
func (m *Model) drop(target schema.TabID) {
	from := m.dragging
	m.dragging = ""
	if from == target {
		m.selectTab(from, false)
		return
	}
	m.reorder(from, target)
}

func (m *Model) hit(msg tea.MouseMsg, zoneID func(schema.TabID) string, views []schema.TabView) (schema.TabID, bool) {
	for _, v := range views {
		if m.zones.Get(zoneID(v.ID)).InBounds(msg) {
			return v.ID, true
		}
	}
	return "", false
}
