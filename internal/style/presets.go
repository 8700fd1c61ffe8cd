package style

import "github.com/clutterstack/flymap/pkg/core"

// presets is the fixed table of symbolic style presets. It is read-only;
// Normalize copies values out before applying overrides.
var presets = map[string]core.Style{
	"operational": {Colour: "#10b981", Size: 8, Animation: core.AnimationPulse},
	"warning":     {Colour: "#f59e0b", Size: 8, Animation: core.AnimationPulse},
	"danger":      {Colour: "#ef4444", Size: 10, Animation: core.AnimationPulse, Glow: true},
	"info":        {Colour: "#3b82f6", Size: 6, Animation: core.AnimationNone},
	"inactive":    {Colour: "#6b7280", Size: 5, Animation: core.AnimationNone},
	"primary":     {Colour: "var(--colour-primary)", Size: 8, Animation: core.AnimationNone},
	"secondary":   {Colour: "var(--colour-secondary)", Size: 6, Animation: core.AnimationNone},
	"accent":      {Colour: "var(--colour-accent)", Size: 8, Animation: core.AnimationFade, Gradient: true},
}

// Preset resolves a preset name to its style.
func Preset(name string) (core.Style, bool) {
	s, ok := presets[name]
	return s, ok
}

// PresetNames returns the known preset names, for diagnostics.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	return out
}
