// Package catalog holds the fixed default tab list and the id to icon table.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pkt.systems/tabstrip/schema"
)

// Icon names. Glyphs are resolved by Glyph.
const (
	IconPackage       = "package"
	IconDashboard     = "layout-dashboard"
	IconLandmark      = "landmark"
	IconPhone         = "phone"
	IconUserRound     = "user-round"
	IconShoppingBag   = "shopping-bag"
	IconPieChart      = "pie-chart"
	IconMail          = "mail"
	IconSettings      = "settings"
	IconHelpCircle    = "help-circle"
	IconListTodo      = "list-todo"
	IconShoppingCart  = "shopping-cart"
	IconReceipt       = "receipt"
	DefaultIcon       = IconPackage
	defaultGlyphValue = "▤"
)

var glyphs = map[string]string{
	IconPackage:      "▤",
	IconDashboard:    "▦",
	IconLandmark:     "⌂",
	IconPhone:        "☏",
	IconUserRound:    "☺",
	IconShoppingBag:  "◈",
	IconPieChart:     "◔",
	IconMail:         "✉",
	IconSettings:     "⚙",
	IconHelpCircle:   "?",
	IconListTodo:     "☰",
	IconShoppingCart: "⊻",
	IconReceipt:      "§",
}

// Glyph returns the terminal glyph for an icon name.
func Glyph(icon string) string {
	if g, ok := glyphs[icon]; ok {
		return g
	}
	return defaultGlyphValue
}

// Entry is one catalog tab plus its icon name.
type Entry struct {
	ID     schema.TabID `yaml:"id"`
	Title  string       `yaml:"title"`
	URL    string       `yaml:"url"`
	Pinned bool         `yaml:"pinned"`
	Icon   string       `yaml:"icon"`
}

// Catalog is an ordered default tab list with an id to icon lookup.
type Catalog struct {
	tabs  []schema.Tab
	icons map[schema.TabID]string
}

var defaultEntries = []Entry{
	{ID: "lagerverwaltung", Title: "Lagerverwaltung", URL: "/lagerverwaltung", Pinned: true, Icon: IconPackage},
	{ID: "dashboard", Title: "Dashboard", URL: "/dashboard", Icon: IconDashboard},
	{ID: "banking", Title: "Banking", URL: "/banking", Icon: IconLandmark},
	{ID: "telefonie", Title: "Telefonie", URL: "/telefonie", Icon: IconPhone},
	{ID: "accounting", Title: "Accounting", URL: "/accounting", Icon: IconUserRound},
	{ID: "verkauf", Title: "Verkauf", URL: "/verkauf", Icon: IconShoppingBag},
	{ID: "statistik", Title: "Statistik", URL: "/statistik", Icon: IconPieChart},
	{ID: "post-office", Title: "Post Office", URL: "/post-office", Icon: IconMail},
	{ID: "administration", Title: "Administration", URL: "/administration", Icon: IconSettings},
	{ID: "help", Title: "Help", URL: "/help", Icon: IconHelpCircle},
	{ID: "warenbestand", Title: "Warenbestand", URL: "/warenbestand", Icon: IconPackage},
	{ID: "auswahllisten", Title: "Auswahllisten", URL: "/auswahllisten", Icon: IconListTodo},
	{ID: "einkauf", Title: "Einkauf", URL: "/einkauf", Icon: IconShoppingCart},
	{ID: "rechn", Title: "Rechn", URL: "/rechn", Icon: IconReceipt},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultEntries)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in entries invalid: %v", err))
	}
	return c
}

// New builds a catalog from entries. Entries without an icon use DefaultIcon.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, schema.ErrEmptyCatalog
	}
	c := &Catalog{
		tabs:  make([]schema.Tab, 0, len(entries)),
		icons: make(map[schema.TabID]string, len(entries)),
	}
	for _, entry := range entries {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			url = "/" + string(entry.ID)
		}
		c.tabs = append(c.tabs, schema.Tab{ID: entry.ID, Title: entry.Title, URL: url, Pinned: entry.Pinned})
		icon := strings.TrimSpace(entry.Icon)
		if icon == "" {
			icon = DefaultIcon
		}
		c.icons[entry.ID] = icon
	}
	if err := schema.ValidateTabs(c.tabs); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a YAML catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file struct {
		Tabs []Entry `yaml:"tabs"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	c, err := New(file.Tabs)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Tabs returns a copy of the catalog in order.
func (c *Catalog) Tabs() []schema.Tab {
	return schema.CloneTabs(c.tabs)
}

// Len returns the number of catalog tabs.
func (c *Catalog) Len() int { return len(c.tabs) }

// IconFor returns the icon name for id, or DefaultIcon for unknown ids.
func (c *Catalog) IconFor(id schema.TabID) string {
	if c != nil {
		if icon, ok := c.icons[id]; ok {
			return icon
		}
	}
	return DefaultIcon
}

// View projects a tab for transports, attaching its icon.
func (c *Catalog) View(tab schema.Tab, active bool) schema.TabView {
	return schema.TabView{
		ID:     tab.ID,
		Title:  tab.Title,
		URL:    tab.URL,
		Pinned: tab.Pinned,
		Icon:   c.IconFor(tab.ID),
		Active: active,
	}
}

// Entries returns the catalog as writable entries, for dumping to YAML.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.tabs))
	for _, tab := range c.tabs {
		out = append(out, Entry{ID: tab.ID, Title: tab.Title, URL: tab.URL, Pinned: tab.Pinned, Icon: c.IconFor(tab.ID)})
	}
	return out
}
