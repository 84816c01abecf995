package core

import (
	"fmt"
	"math/rand"
	"testing"

	"pkt.systems/tabstrip/internal/catalog"
	"pkt.systems/tabstrip/schema"
)

func ids(tabs []schema.Tab) []schema.TabID {
	out := make([]schema.TabID, len(tabs))
	for i, tab := range tabs {
		out[i] = tab.ID
	}
	return out
}

func sameIDs(a, b []schema.TabID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func randomTabs(r *rand.Rand, n int) []schema.Tab {
	tabs := make([]schema.Tab, n)
	for i := range tabs {
		tabs[i] = schema.Tab{ID: schema.TabID(fmt.Sprintf("t%02d", i)), Pinned: r.Intn(3) == 0}
	}
	return tabs
}

func TestInitializeSeedsCatalog(t *testing.T) {
	cat := catalog.Default().Tabs()
	tabs, seeded := Initialize(cat, nil)
	if !seeded {
		t.Fatalf("expected seeded for absent data")
	}
	if !sameIDs(ids(tabs), ids(cat)) {
		t.Fatalf("expected catalog verbatim, got %v", ids(tabs))
	}
	if tabs[0].ID != "lagerverwaltung" || !tabs[0].Pinned {
		t.Fatalf("expected pinned catalog tab first")
	}
	_, seeded = Initialize(cat, []schema.Tab{})
	if !seeded {
		t.Fatalf("empty persisted list must seed")
	}
}

func TestInitializeAppendsMissingInCatalogOrder(t *testing.T) {
	cat := []schema.Tab{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	persisted := []schema.Tab{{ID: "c", Title: "renamed"}, {ID: "x"}, {ID: "a"}}
	tabs, seeded := Initialize(cat, persisted)
	if seeded {
		t.Fatalf("did not expect seeding")
	}
	want := []schema.TabID{"c", "x", "a", "b", "d"}
	if !sameIDs(ids(tabs), want) {
		t.Fatalf("expected %v, got %v", want, ids(tabs))
	}
	if tabs[0].Title != "renamed" {
		t.Fatalf("persisted fields should win over catalog")
	}
}

func TestInitializeDropsDuplicateIDs(t *testing.T) {
	tabs, _ := Initialize([]schema.Tab{{ID: "a"}}, []schema.Tab{{ID: "b"}, {ID: "b"}, {ID: ""}})
	if !sameIDs(ids(tabs), []schema.TabID{"b", "a"}) {
		t.Fatalf("unexpected list %v", ids(tabs))
	}
}

func TestTogglePinCatalogScenario(t *testing.T) {
	cat := catalog.Default().Tabs()
	tabs, _ := Initialize(cat, nil)
	next, toggled, ok := TogglePin(tabs, "dashboard")
	if !ok || !toggled.Pinned {
		t.Fatalf("expected dashboard pinned")
	}
	if next[0].ID != "lagerverwaltung" || next[1].ID != "dashboard" {
		t.Fatalf("expected dashboard at index 1, got %v", ids(next))
	}
	if !sameIDs(ids(next), ids(cat)) {
		t.Fatalf("expected relative order unchanged, got %v", ids(next))
	}
	if tabs[1].Pinned {
		t.Fatalf("input list must not be mutated")
	}
}

func TestTogglePinPartitionProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		tabs := PartitionPinned(randomTabs(r, 1+r.Intn(15)))
		target := tabs[r.Intn(len(tabs))].ID
		next, _, ok := TogglePin(tabs, target)
		if !ok {
			t.Fatalf("toggle failed for %s", target)
		}
		lastPinned, firstUnpinned := -1, len(next)
		for i, tab := range next {
			if tab.Pinned {
				lastPinned = i
			} else if i < firstUnpinned {
				firstUnpinned = i
			}
		}
		if lastPinned > firstUnpinned {
			t.Fatalf("pinned tab after unpinned: %+v", next)
		}
		// relative order within each group follows the pre-toggle list
		flipped := schema.CloneTabs(tabs)
		flipped[schema.IndexOf(flipped, target)].Pinned = !flipped[schema.IndexOf(flipped, target)].Pinned
		for _, pinned := range []bool{true, false} {
			var before, after []schema.TabID
			for _, tab := range flipped {
				if tab.Pinned == pinned {
					before = append(before, tab.ID)
				}
			}
			for _, tab := range next {
				if tab.Pinned == pinned {
					after = append(after, tab.ID)
				}
			}
			if !sameIDs(before, after) {
				t.Fatalf("group order changed: %v vs %v", before, after)
			}
		}
	}
}

func TestTogglePinMissing(t *testing.T) {
	tabs := []schema.Tab{{ID: "a"}}
	if _, _, ok := TogglePin(tabs, "zz"); ok {
		t.Fatalf("expected missing id to report false")
	}
}

func TestCloseRemovesExactlyOne(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 100; round++ {
		tabs := randomTabs(r, 1+r.Intn(10))
		target := tabs[r.Intn(len(tabs))].ID
		next, ok := Close(tabs, target)
		if !ok || len(next) != len(tabs)-1 || schema.IndexOf(next, target) >= 0 {
			t.Fatalf("close %s: got %v", target, ids(next))
		}
		same, ok := Close(tabs, "absent")
		if ok || len(same) != len(tabs) {
			t.Fatalf("absent close must be a no-op")
		}
	}
	empty, ok := Close(nil, "a")
	if ok || len(empty) != 0 {
		t.Fatalf("closing on empty list must be a no-op")
	}
}

func TestReorderSpliceSemantics(t *testing.T) {
	tabs := []schema.Tab{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	next, ok := Reorder(tabs, "a", "c")
	if !ok || !sameIDs(ids(next), []schema.TabID{"b", "c", "a", "d"}) {
		t.Fatalf("forward move: %v", ids(next))
	}
	next, ok = Reorder(tabs, "d", "b")
	if !ok || !sameIDs(ids(next), []schema.TabID{"a", "d", "b", "c"}) {
		t.Fatalf("backward move: %v", ids(next))
	}
	if _, ok := Reorder(tabs, "a", "a"); ok {
		t.Fatalf("same id must be a no-op")
	}
	if _, ok := Reorder(tabs, "a", "zz"); ok {
		t.Fatalf("missing target must be a no-op")
	}
	if _, ok := Reorder(tabs, "zz", "a"); ok {
		t.Fatalf("missing source must be a no-op")
	}
}

func TestReorderRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for round := 0; round < 100; round++ {
		tabs := randomTabs(r, 2+r.Intn(10))
		i := r.Intn(len(tabs) - 1)
		a, b := tabs[i].ID, tabs[i+1].ID
		if r.Intn(2) == 0 {
			a, b = b, a
		}
		once, ok := Reorder(tabs, a, b)
		if !ok {
			t.Fatalf("reorder failed")
		}
		back, ok := Reorder(once, b, a)
		if !ok || !sameIDs(ids(back), ids(tabs)) {
			t.Fatalf("round trip %s<->%s: %v -> %v", a, b, ids(tabs), ids(back))
		}
	}
}

func TestPromoteOnSelect(t *testing.T) {
	tabs := []schema.Tab{
		{ID: "p1", Pinned: true},
		{ID: "p2", Pinned: true},
		{ID: "a"},
		{ID: "b"},
		{ID: "c"},
	}
	next, ok := PromoteOnSelect(tabs, "c")
	if !ok || !sameIDs(ids(next), []schema.TabID{"p1", "p2", "c", "a", "b"}) {
		t.Fatalf("unpinned promote: %v", ids(next))
	}
	next, _ = PromoteOnSelect(tabs, "p2")
	if !sameIDs(ids(next), []schema.TabID{"p2", "p1", "a", "b", "c"}) {
		t.Fatalf("pinned promote: %v", ids(next))
	}
	onlyPinned := []schema.Tab{{ID: "p", Pinned: true}, {ID: "x"}}
	next, _ = PromoteOnSelect(onlyPinned, "x")
	if !sameIDs(ids(next), []schema.TabID{"p", "x"}) {
		t.Fatalf("expected append when no unpinned remains: %v", ids(next))
	}
	if _, ok := PromoteOnSelect(tabs, "zz"); ok {
		t.Fatalf("missing id must be a no-op")
	}
}
