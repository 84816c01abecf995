package schema

import (
	"errors"
	"testing"
)

func TestValidateIdentity(t *testing.T) {
	valid := []IdentityID{"alice", "anon-3f2a9c1e-0000-4000-8000-000000000000", "a.b_c"}
	for _, id := range valid {
		if err := ValidateIdentity(id); err != nil {
			t.Fatalf("expected %q to be valid: %v", id, err)
		}
	}
	invalid := []IdentityID{"", " alice", "Alice", "a/b", "a b"}
	for _, id := range invalid {
		if err := ValidateIdentity(id); !errors.Is(err, ErrInvalidIdentity) {
			t.Fatalf("expected %q to be invalid, got %v", id, err)
		}
	}
}

func TestValidateTabsRejectsDuplicates(t *testing.T) {
	tabs := []Tab{{ID: "a"}, {ID: "b"}, {ID: "a"}}
	if err := ValidateTabs(tabs); !errors.Is(err, ErrInvalidTab) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if err := ValidateTabs([]Tab{{ID: ""}}); !errors.Is(err, ErrInvalidTab) {
		t.Fatalf("expected empty id error, got %v", err)
	}
	if err := ValidateTabs(nil); err != nil {
		t.Fatalf("empty list should validate: %v", err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	var err error = &SaveError{Identity: "alice", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("expected save error to unwrap to cause")
	}
	var saveErr *SaveError
	if !errors.As(err, &saveErr) || saveErr.Identity != "alice" {
		t.Fatalf("expected errors.As to find SaveError")
	}
	if !errors.Is(&AuthError{Err: cause}, cause) {
		t.Fatalf("expected auth error to unwrap")
	}
}

func TestNormalizeServiceConfigRequiresCatalog(t *testing.T) {
	if _, err := NormalizeServiceConfig(ServiceConfig{}); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected empty catalog error, got %v", err)
	}
	catalog := []Tab{{ID: "a"}}
	cfg, err := NormalizeServiceConfig(ServiceConfig{Catalog: catalog})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	catalog[0].ID = "changed"
	if len(cfg.Catalog) != 1 || cfg.Catalog[0].ID != "a" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestNormalizeThemeName(t *testing.T) {
	cases := map[string]ThemeName{
		"outrun":           "outrun",
		" Tokyo Midnight ": "tokyo-midnight",
		"tokyo_midnight":   "tokyo-midnight",
		"TOKYO":            "tokyo-midnight",
		"outrun-electric":  "outrun",
		"Gruvbox":          "gruvbox",
	}
	for in, want := range cases {
		got, ok := NormalizeThemeName(in)
		if !ok || got != want {
			t.Fatalf("%q: expected %q, got %q (%v)", in, want, got, ok)
		}
	}
	if _, ok := NormalizeThemeName("neon"); ok {
		t.Fatalf("expected unknown theme rejected")
	}
}

func TestNextThemeCycles(t *testing.T) {
	seen := map[ThemeName]bool{}
	name := DefaultTheme
	for range AvailableThemes() {
		seen[name] = true
		name = NextTheme(name)
	}
	if name != DefaultTheme || len(seen) != len(AvailableThemes()) {
		t.Fatalf("expected a full cycle back to %q, got %q after %v", DefaultTheme, name, seen)
	}
	if NextTheme("neon") != AvailableThemes()[0] {
		t.Fatalf("expected unknown theme to restart the cycle")
	}
}
