package style

import "github.com/clutterstack/flymap/pkg/core"

// themePresets holds the named surface themes. A room can start from a
// preset and override individual keys.
var themePresets = map[string]core.Theme{
	"dark": {
		"background": "#1f2937",
		"border":     "#374151",
		"land":       "#4b5563",
		"text":       "#e5e7eb",
	},
	"light": {
		"background": "#f9fafb",
		"border":     "#d1d5db",
		"land":       "#e5e7eb",
		"text":       "#111827",
	},
	"terminal": {
		"background": "#000000",
		"border":     "#00ff41",
		"land":       "#003b00",
		"text":       "#00ff41",
	},
	"ocean": {
		"background": "#0c4a6e",
		"border":     "#0284c7",
		"land":       "#075985",
		"text":       "#e0f2fe",
	},
}

// ThemePreset resolves a named theme. The returned theme is a copy, safe
// to mutate.
func ThemePreset(name string) (core.Theme, bool) {
	t, ok := themePresets[name]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}
