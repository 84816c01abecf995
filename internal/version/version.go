package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/tabstrip"

// buildVersion is set via -ldflags "-X pkt.systems/tabstrip/internal/version.buildVersion=...".
var buildVersion = ""

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running binary.
type Info struct {
	Version  string `json:"version"`
	Module   string `json:"module"`
	Revision string `json:"revision,omitempty"`
	Dirty    bool   `json:"dirty,omitempty"`
	Go       string `json:"go"`
}

// String renders the info on one line for `tabstrip version`.
func (i Info) String() string {
	out := i.Module + " " + i.Version
	if i.Revision != "" {
		rev := i.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		out += " (" + rev
		if i.Dirty {
			out += ", dirty"
		}
		out += ")"
	}
	return fmt.Sprintf("%s %s", out, i.Go)
}

// Read collects version details from ldflags and build info.
func Read() Info {
	info := Info{
		Version: Current(),
		Module:  Module(),
		Go:      runtime.Version(),
	}
	if bi, ok := readBuildInfo(); ok {
		vcs := vcsSettings(bi)
		info.Revision = vcs.revision
		info.Dirty = vcs.modified
	}
	return info
}

// Current returns the best available version string without a dirty suffix.
func Current() string {
	return current(false)
}

// CurrentWithDirty returns the best available version string including the dirty suffix.
func CurrentWithDirty() string {
	return current(true)
}

// Module returns the module path from build info when available.
func Module() string {
	if bi, ok := readBuildInfo(); ok {
		if path := strings.TrimSpace(bi.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

func current(includeDirty bool) string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return trimDirty(v, includeDirty)
	}
	if bi, ok := readBuildInfo(); ok {
		if v := strings.TrimSpace(bi.Main.Version); v != "" && v != "(devel)" {
			return trimDirty(v, includeDirty)
		}
		if v := pseudoVersion(bi, includeDirty); v != "" {
			return v
		}
	}
	return "v0.0.0-unknown"
}

func trimDirty(v string, includeDirty bool) string {
	if includeDirty {
		return v
	}
	return strings.TrimSuffix(v, "+dirty")
}

type vcs struct {
	revision string
	time     string
	modified bool
}

func vcsSettings(bi *debug.BuildInfo) vcs {
	var out vcs
	if bi == nil {
		return out
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			out.time = setting.Value
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

func pseudoVersion(bi *debug.BuildInfo, includeDirty bool) string {
	settings := vcsSettings(bi)
	if settings.revision == "" || settings.time == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, settings.time)
	if err != nil {
		return ""
	}
	rev := settings.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	ver := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + rev
	if settings.modified && includeDirty {
		ver += "+dirty"
	}
	return ver
}
