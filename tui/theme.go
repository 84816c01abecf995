package tui

import (
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/tabstrip/schema"
)

// Theme holds the colors of the tab bar.
type Theme struct {
	Name          schema.ThemeName
	BarBG         lipgloss.Color
	ActiveBG      lipgloss.Color
	ActiveFG      lipgloss.Color
	InactiveBG    lipgloss.Color
	InactiveFG    lipgloss.Color
	FocusFG       lipgloss.Color
	PinnedFG      lipgloss.Color
	MenuBorder    lipgloss.Color
	ErrorFG       lipgloss.Color
	MetaFG        lipgloss.Color
	DragFG        lipgloss.Color
	OverflowBadge lipgloss.Color
}

var themes = map[schema.ThemeName]Theme{
	"outrun": {
		Name:          "outrun",
		BarBG:         "#200838",
		ActiveBG:      "#00e5ff",
		ActiveFG:      "#0a0d17",
		InactiveBG:    "#200838",
		InactiveFG:    "#f0f1ff",
		FocusFG:       "#ff5bbd",
		PinnedFG:      "#70d6ff",
		MenuBorder:    "#6e88ff",
		ErrorFG:       "#ff6b6b",
		MetaFG:        "#9aa3b2",
		DragFG:        "#ff5bbd",
		OverflowBadge: "#9ab6ff",
	},
	"gruvbox": {
		Name:          "gruvbox",
		BarBG:         "#3c3836",
		ActiveBG:      "#fabd2f",
		ActiveFG:      "#282828",
		InactiveBG:    "#3c3836",
		InactiveFG:    "#ebdbb2",
		FocusFG:       "#d65d0e",
		PinnedFG:      "#83a598",
		MenuBorder:    "#83a598",
		ErrorFG:       "#fb4934",
		MetaFG:        "#928374",
		DragFG:        "#d3869b",
		OverflowBadge: "#83a598",
	},
	"tokyo-midnight": {
		Name:          "tokyo-midnight",
		BarBG:         "#1a1b26",
		ActiveBG:      "#7aa2f7",
		ActiveFG:      "#1a1b26",
		InactiveBG:    "#1a1b26",
		InactiveFG:    "#c0caf5",
		FocusFG:       "#bb9af7",
		PinnedFG:      "#9ece6a",
		MenuBorder:    "#7aa2f7",
		ErrorFG:       "#f7768e",
		MetaFG:        "#7f85a3",
		DragFG:        "#bb9af7",
		OverflowBadge: "#7dcfff",
	},
}

// ThemeFor returns the named theme, falling back to the default theme.
func ThemeFor(name schema.ThemeName) Theme {
	if name == "" {
		name = schema.DefaultTheme
	}
	if theme, ok := themes[name]; ok {
		return theme
	}
	return themes[schema.DefaultTheme]
}

type styles struct {
	bar      lipgloss.Style
	active   lipgloss.Style
	inactive lipgloss.Style
	focused  lipgloss.Style
	pinned   lipgloss.Style
	dragging lipgloss.Style
	trigger  lipgloss.Style
	menu     lipgloss.Style
	menuItem lipgloss.Style
	menuSel  lipgloss.Style
	meta     lipgloss.Style
	err      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, t Theme) styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return styles{
		bar:      r.NewStyle().Background(t.BarBG),
		active:   r.NewStyle().Background(t.ActiveBG).Foreground(t.ActiveFG).Bold(true),
		inactive: r.NewStyle().Background(t.InactiveBG).Foreground(t.InactiveFG),
		focused:  r.NewStyle().Background(t.InactiveBG).Foreground(t.FocusFG).Underline(true),
		pinned:   r.NewStyle().Background(t.InactiveBG).Foreground(t.PinnedFG),
		dragging: r.NewStyle().Background(t.InactiveBG).Foreground(t.DragFG).Italic(true),
		trigger:  r.NewStyle().Background(t.BarBG).Foreground(t.OverflowBadge).Bold(true),
		menu:     r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.MenuBorder).Padding(0, 1),
		menuItem: r.NewStyle().Foreground(t.InactiveFG),
		menuSel:  r.NewStyle().Background(t.ActiveBG).Foreground(t.ActiveFG),
		meta:     r.NewStyle().Foreground(t.MetaFG),
		err:      r.NewStyle().Foreground(t.ErrorFG),
	}
}
