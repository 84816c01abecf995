package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/tabstrip/schema"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := Default()
	tabs := c.Tabs()
	if len(tabs) != 14 {
		t.Fatalf("expected 14 tabs, got %d", len(tabs))
	}
	if tabs[0].ID != "lagerverwaltung" || !tabs[0].Pinned {
		t.Fatalf("expected pinned lagerverwaltung first, got %+v", tabs[0])
	}
	for _, tab := range tabs[1:] {
		if tab.Pinned {
			t.Fatalf("only the first tab should be pinned, got %+v", tab)
		}
		if tab.URL != "/"+string(tab.ID) {
			t.Fatalf("unexpected url for %s: %s", tab.ID, tab.URL)
		}
	}
	if tabs[len(tabs)-1].ID != "rechn" {
		t.Fatalf("expected rechn last, got %s", tabs[len(tabs)-1].ID)
	}
}

func TestTabsReturnsCopy(t *testing.T) {
	c := Default()
	tabs := c.Tabs()
	tabs[0].Title = "changed"
	if c.Tabs()[0].Title == "changed" {
		t.Fatalf("catalog mutated through returned slice")
	}
}

func TestIconFallback(t *testing.T) {
	c := Default()
	if got := c.IconFor("post-office"); got != IconMail {
		t.Fatalf("expected mail icon, got %q", got)
	}
	if got := c.IconFor("unknown"); got != DefaultIcon {
		t.Fatalf("expected default icon, got %q", got)
	}
	if Glyph("nope") == "" {
		t.Fatalf("expected fallback glyph")
	}
	view := c.View(schema.Tab{ID: "banking", Title: "Banking"}, true)
	if view.Icon != IconLandmark || !view.Active {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "tabs:\n  - id: home\n    title: Home\n    pinned: true\n    icon: settings\n  - id: mail\n    title: Mail\n    url: /inbox\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tabs := c.Tabs()
	if len(tabs) != 2 || tabs[0].URL != "/home" || tabs[1].URL != "/inbox" {
		t.Fatalf("unexpected tabs: %+v", tabs)
	}
	if c.IconFor("home") != IconSettings || c.IconFor("mail") != DefaultIcon {
		t.Fatalf("unexpected icons")
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "tabs:\n  - id: a\n  - id: a\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 14 {
		t.Fatalf("expected default catalog")
	}
}
