package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/internal/identity"
	"pkt.systems/tabstrip/schema"
)

// View renders the bar, the open menu, the location and the status line.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderBar())
	if m.menu.IsOpen() {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Right, m.menu.render(m.st, m.mark)))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	if m.zones == nil {
		return b.String()
	}
	return m.zones.Scan(b.String())
}

func (m *Model) mark(id, s string) string {
	if m.zones == nil {
		return s
	}
	return m.zones.Mark(id, s)
}

func (m *Model) renderBar() string {
	parts := make([]string, 0, len(m.visible)+1)
	for i, v := range m.visible {
		parts = append(parts, m.renderTab(v, i == m.focus))
	}
	if len(m.overflow) > 0 {
		style := m.st.trigger
		if m.focusOnTrigger() {
			style = style.Underline(true)
		}
		label := fit(fmt.Sprintf(" »%d", len(m.overflow)), m.engine.Reserve)
		parts = append(parts, m.mark(zoneTrigger, style.Render(label)))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	pad := m.width - lipgloss.Width(row)
	if pad > 0 {
		row += m.st.bar.Render(strings.Repeat(" ", pad))
	}
	return row
}

func (m *Model) renderTab(v schema.TabView, focused bool) string {
	style := m.st.inactive
	switch {
	case v.ID == m.dragging:
		style = m.st.dragging
	case v.Active:
		style = m.st.active
	case focused:
		style = m.st.focused
	case v.Pinned:
		style = m.st.pinned
	}
	width := m.engine.WidthOf(schema.Tab{Pinned: v.Pinned})
	glyph := catalog.Glyph(v.Icon)
	if v.Pinned {
		return m.mark(tabZone(v.ID), style.Render(fit(" "+glyph, width)))
	}
	if width < 4 {
		return m.mark(tabZone(v.ID), style.Render(fit(glyph, width)))
	}
	label := fit(" "+glyph+" "+v.Title, width-2)
	return m.mark(tabZone(v.ID), style.Render(label)) + m.mark(closeZone(v.ID), style.Render("× "))
}

func (m *Model) renderBody() string {
	loc := m.location()
	if loc == "" {
		loc = "(none)"
	}
	lines := []string{m.st.meta.Render("location ") + loc}
	if m.active == "" {
		lines = append(lines, m.st.meta.Render("no tab matches this location"))
	} else {
		for _, v := range m.tabs {
			if v.ID == m.active {
				lines = append(lines, m.st.meta.Render("active   ")+catalog.Glyph(v.Icon)+" "+v.Title)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatus() string {
	state, id, stateErr := m.session.State()
	parts := []string{sessionLabel(state, id, stateErr)}
	parts = append(parts, fmt.Sprintf("%d tabs", len(m.tabs)))
	if n := len(m.overflow); n > 0 {
		parts = append(parts, fmt.Sprintf("%d hidden", n))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	line := m.st.meta.Render(strings.Join(parts, " · "))
	if m.err != nil {
		line += " " + m.st.err.Render(m.err.Error())
	}
	return line
}

func sessionLabel(state core.SessionState, id schema.IdentityID, err error) string {
	switch state {
	case core.SessionBound:
		if identity.IsAnonymous(id) {
			return "● device " + shortID(id)
		}
		return "● " + string(id)
	case core.SessionDegraded:
		if err != nil {
			return "○ not saved"
		}
		return "○ local only"
	default:
		return "◌ signing in"
	}
}

func shortID(id schema.IdentityID) string {
	s := string(id)
	if len(s) > 13 {
		return s[:13]
	}
	return s
}

// fit truncates or pads s to exactly width cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "…")
	return runewidth.FillRight(s, width)
}
