// Package tui renders the tab bar as a bubbletea program.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/core"
	"pkt.systems/tabstrip/internal/eventbus"
	"pkt.systems/tabstrip/internal/layout"
	"pkt.systems/tabstrip/internal/nav"
	"pkt.systems/tabstrip/internal/sessionprefs"
	"pkt.systems/tabstrip/schema"
)

const defaultWidth = 80

// Options configures a Model.
type Options struct {
	Session   *core.Session
	// Identity is resolved by Init when set. Leave nil for sessions that are
	// already bound.
	Identity  core.IdentitySource
	// Subscribe delivers tab events for the bound identity.
	Subscribe func(schema.IdentityID) (<-chan eventbus.Event, func())
	Navigator nav.Navigator
	Layout    layout.Engine
	Prefs     *sessionprefs.Prefs
	Logger    pslog.Logger
	KeyMap    *KeyMap
	// Renderer targets the client terminal. Nil uses stdout.
	Renderer  *lipgloss.Renderer
	Width     int
	Height    int
}

// Model is the tab bar program state.
type Model struct {
	ctx       context.Context
	session   *core.Session
	identity  core.IdentitySource
	subscribe func(schema.IdentityID) (<-chan eventbus.Event, func())
	nav       nav.Navigator
	engine    layout.Engine
	prefs     *sessionprefs.Prefs
	log       pslog.Logger
	keys      KeyMap
	help      help.Model
	zones     *zone.Manager
	renderer  *lipgloss.Renderer

	themeName schema.ThemeName
	st        styles

	width  int
	height int

	tabs     []schema.TabView
	visible  []schema.TabView
	overflow []schema.TabView
	active   schema.TabID
	focus    int
	menu     Menu
	dragging schema.TabID

	events      <-chan eventbus.Event
	unsubscribe func()

	status   string
	err      error
	showHelp bool
}

type identityResolvedMsg struct{ err error }

type tabEventMsg struct{ event eventbus.Event }

type eventsClosedMsg struct{}

// New builds a Model over opts.Session.
func New(ctx context.Context, opts Options) (*Model, error) {
	if opts.Session == nil {
		return nil, errors.New("tui: session is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	navigator := opts.Navigator
	if navigator == nil {
		navigator = nav.NewHistory("")
	}
	engine := opts.Layout
	if engine.TabWidth == 0 {
		engine = layout.DefaultEngine()
	}
	keys := DefaultKeyMap()
	if opts.KeyMap != nil {
		keys = *opts.KeyMap
	}
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	themeName := schema.DefaultTheme
	if opts.Prefs != nil {
		themeName = opts.Prefs.Theme()
	}
	m := &Model{
		ctx:       ctx,
		session:   opts.Session,
		identity:  opts.Identity,
		subscribe: opts.Subscribe,
		nav:       navigator,
		engine:    engine,
		prefs:     opts.Prefs,
		log:       logger,
		keys:      keys,
		help:      help.New(),
		zones:     zone.New(),
		themeName: themeName,
		renderer:  opts.Renderer,
		st:        newStyles(opts.Renderer, ThemeFor(themeName)),
		width:     width,
		height:    opts.Height,
	}
	m.reload()
	return m, nil
}

// Init starts identity resolution or, for bound sessions, the event stream.
func (m *Model) Init() tea.Cmd {
	if m.identity != nil {
		session, source, ctx := m.session, m.identity, m.ctx
		return func() tea.Msg {
			return identityResolvedMsg{err: session.Resolve(ctx, source)}
		}
	}
	return m.startEvents()
}

// Close releases the event subscription and mouse zones.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.events = nil
	if m.zones != nil {
		m.zones.Close()
		m.zones = nil
	}
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.relayout()
		return m, nil
	case identityResolvedMsg:
		if msg.err != nil {
			m.setErr(msg.err)
		}
		m.reload()
		return m, m.startEvents()
	case tabEventMsg:
		m.reload()
		if msg.event.Tabs.Type == schema.TabEventRemote {
			m.status = "updated from another session"
		}
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		m.events = nil
		return m, nil
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tea.KeyMsg:
		if m.menu.IsOpen() {
			return m.updateMenu(msg)
		}
		return m.updateBar(msg)
	}
	return m, nil
}

func (m *Model) updateBar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.moveFocus(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveFocus(1)
	case key.Matches(msg, m.keys.Select):
		if m.focusOnTrigger() {
			m.menu.Open()
		} else if tab, ok := m.focused(); ok {
			m.selectTab(tab.ID, false)
		}
	case key.Matches(msg, m.keys.Jump):
		idx := int(msg.String()[0] - '1')
		if idx >= 0 && idx < len(m.visible) {
			m.selectTab(m.visible[idx].ID, false)
		}
	case key.Matches(msg, m.keys.Pin):
		if tab, ok := m.focused(); ok {
			m.togglePin(tab.ID)
		}
	case key.Matches(msg, m.keys.Close):
		if tab, ok := m.focused(); ok && !tab.Pinned {
			m.closeTab(tab.ID)
		}
	case key.Matches(msg, m.keys.MoveLeft):
		m.moveFocused(-1)
	case key.Matches(msg, m.keys.MoveRight):
		m.moveFocused(1)
	case key.Matches(msg, m.keys.Overflow):
		m.menu.Toggle()
	case key.Matches(msg, m.keys.Back):
		if h, ok := m.nav.(interface{ Back() bool }); ok && h.Back() {
			m.locationChanged()
		}
	case key.Matches(msg, m.keys.Forward):
		if h, ok := m.nav.(interface{ Forward() bool }); ok && h.Forward() {
			m.locationChanged()
		}
	case key.Matches(msg, m.keys.Reset):
		if err := m.session.Reset(m.ctx); err != nil {
			m.setErr(err)
			return m, nil
		}
		m.status = "tabs reset"
		m.reload()
	case key.Matches(msg, m.keys.Theme):
		m.cycleTheme()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return m, nil
}

func (m *Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.menu.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.menu.Move(1)
	case key.Matches(msg, m.keys.Select):
		if sel, ok := m.menu.Selected(); ok {
			m.selectTab(sel.ID, true)
		}
	case key.Matches(msg, m.keys.Pin):
		if sel, ok := m.menu.Selected(); ok {
			m.togglePin(sel.ID)
		}
	case key.Matches(msg, m.keys.Close):
		if sel, ok := m.menu.Selected(); ok && !sel.Pinned {
			m.closeTab(sel.ID)
		}
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Overflow):
		m.menu.Close()
	}
	return m, nil
}

func (m *Model) startEvents() tea.Cmd {
	if m.subscribe == nil || m.events != nil {
		return nil
	}
	state, id, _ := m.session.State()
	if state != core.SessionBound {
		return nil
	}
	ch, cancel := m.subscribe(id)
	m.events = ch
	m.unsubscribe = cancel
	return waitForEvent(ch)
}

func waitForEvent(ch <-chan eventbus.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return tabEventMsg{event: ev}
	}
}

func (m *Model) location() string {
	return m.nav.Location()
}

func (m *Model) locationChanged() {
	if m.prefs != nil {
		m.prefs.SetLocation(m.location())
	}
	m.reload()
}

func (m *Model) reload() {
	views, active, err := m.session.Tabs(m.ctx, m.location())
	if err != nil {
		m.setErr(err)
		return
	}
	m.tabs = views
	m.active = active
	m.relayout()
}

func (m *Model) relayout() {
	snap := m.engine.Snapshot(m.tabs, m.width)
	m.visible = snap.Visible
	m.overflow = snap.Overflow
	m.menu.SetEntries(m.overflow)
	maxFocus := len(m.visible) - 1
	if len(m.overflow) > 0 {
		maxFocus++
	}
	if m.focus > maxFocus {
		m.focus = maxFocus
	}
	if m.focus < 0 {
		m.focus = 0
	}
}

func (m *Model) moveFocus(delta int) {
	limit := len(m.visible)
	if len(m.overflow) > 0 {
		limit++
	}
	if limit == 0 {
		return
	}
	m.focus = ((m.focus+delta)%limit + limit) % limit
}

func (m *Model) focusOnTrigger() bool {
	return len(m.overflow) > 0 && m.focus == len(m.visible)
}

func (m *Model) focused() (schema.TabView, bool) {
	if m.focus < 0 || m.focus >= len(m.visible) {
		return schema.TabView{}, false
	}
	return m.visible[m.focus], true
}

func (m *Model) focusTab(id schema.TabID) {
	for i, v := range m.visible {
		if v.ID == id {
			m.focus = i
			return
		}
	}
}

func (m *Model) moveFocused(delta int) {
	tab, ok := m.focused()
	if !ok {
		return
	}
	target := m.focus + delta
	if target < 0 || target >= len(m.tabs) {
		return
	}
	m.reorder(tab.ID, m.tabs[target].ID)
}

// selectTab navigates to id. Tabs picked from the overflow set are promoted
// into the visible region first.
func (m *Model) selectTab(id schema.TabID, fromOverflow bool) {
	tab, err := m.session.Select(m.ctx, id, fromOverflow)
	if err != nil {
		m.setErr(err)
		return
	}
	m.err = nil
	m.menu.Close()
	m.nav.Navigate(tab.URL)
	if m.prefs != nil {
		m.prefs.SetLocation(tab.URL)
	}
	m.status = "opened " + tab.Title
	m.log.Debug("tui tab selected", "tab", tab.ID, "from_overflow", fromOverflow)
	m.reload()
	m.focusTab(tab.ID)
}

func (m *Model) togglePin(id schema.TabID) {
	if err := m.session.TogglePin(m.ctx, id); err != nil {
		m.setErr(err)
		return
	}
	m.err = nil
	m.reload()
	m.focusTab(id)
	for _, v := range m.tabs {
		if v.ID == id {
			if v.Pinned {
				m.status = "pinned " + v.Title
			} else {
				m.status = "unpinned " + v.Title
			}
		}
	}
}

func (m *Model) closeTab(id schema.TabID) {
	title := string(id)
	for _, v := range m.tabs {
		if v.ID == id {
			title = v.Title
		}
	}
	if err := m.session.Close(m.ctx, id); err != nil {
		m.setErr(err)
		return
	}
	m.err = nil
	m.status = "closed " + title
	m.reload()
}

func (m *Model) reorder(from, to schema.TabID) {
	if err := m.session.Reorder(m.ctx, from, to); err != nil {
		m.setErr(err)
		return
	}
	m.err = nil
	m.reload()
	m.focusTab(from)
	m.status = fmt.Sprintf("moved %s", from)
}

func (m *Model) cycleTheme() {
	next := schema.NextTheme(m.themeName)
	if m.prefs != nil {
		m.prefs.SetTheme(string(next))
	}
	m.themeName = next
	m.st = newStyles(m.renderer, ThemeFor(next))
	m.status = "theme " + string(next)
}

func (m *Model) setErr(err error) {
	m.err = err
	m.log.Warn("tui action failed", "err", err)
}
