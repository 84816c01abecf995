package schema

import "strings"

// DefaultTheme is the default UI theme name.
const DefaultTheme ThemeName = "outrun"

// themeNames is also the order the tab bar cycles through.
var themeNames = []ThemeName{
	"outrun",
	"gruvbox",
	"tokyo-midnight",
}

var themeAliases = map[string]ThemeName{
	"outrun-electric": "outrun",
	"tokyo":           "tokyo-midnight",
	"tokyonight":      "tokyo-midnight",
	"dark":            "gruvbox",
}

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	out := make([]ThemeName, len(themeNames))
	copy(out, themeNames)
	return out
}

// NormalizeThemeName returns a canonical theme name if supported. Case,
// underscores and inner spaces are ignored.
func NormalizeThemeName(name string) (ThemeName, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	key = strings.ReplaceAll(key, "_", "-")
	for _, known := range themeNames {
		if ThemeName(key) == known {
			return known, true
		}
	}
	if alias, ok := themeAliases[key]; ok {
		return alias, true
	}
	return "", false
}

// NextTheme returns the theme after current, wrapping around. Unknown names
// start the cycle over.
func NextTheme(current ThemeName) ThemeName {
	for i, name := range themeNames {
		if name == current {
			return themeNames[(i+1)%len(themeNames)]
		}
	}
	return themeNames[0]
}
