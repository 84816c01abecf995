package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	old := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = old })
}

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
	if got := CurrentWithDirty(); got != "v1.2.3+dirty" {
		t.Fatalf("expected dirty build version, got %q", got)
	}
}

func TestPseudoVersionFromVCS(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	stubBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "pkt.systems/tabstrip", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	want := "v0.0.0-20250102030405-1234567890ab"
	if got := Current(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := CurrentWithDirty(); got != want+"+dirty" {
		t.Fatalf("expected dirty suffix, got %q", got)
	}
	info := Read()
	if !info.Dirty || info.Revision != "1234567890abcdef" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !strings.Contains(info.String(), "(1234567890ab, dirty)") {
		t.Fatalf("unexpected string: %q", info.String())
	}
}

func TestModuleFallsBackWithoutBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil)
	if got := Module(); got != defaultModule {
		t.Fatalf("expected %q, got %q", defaultModule, got)
	}
	if got := Current(); got != "v0.0.0-unknown" {
		t.Fatalf("expected unknown version, got %q", got)
	}
}
