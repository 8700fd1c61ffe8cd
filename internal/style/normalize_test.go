package style

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clutterstack/flymap/pkg/core"
)

func TestNormalizePreset(t *testing.T) {
	s, err := Normalize(PresetInput("operational"))
	require.NoError(t, err)
	assert.Equal(t, "#10b981", s.Colour)
	assert.Equal(t, 8, s.Size)
	assert.Equal(t, core.AnimationPulse, s.Animation)
}

func TestNormalizeUnknownPreset(t *testing.T) {
	_, err := Normalize(PresetInput("bogus"))
	require.Error(t, err)

	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, core.ErrUnknownPreset, verr.Code)
}

func TestNormalizeAttrOverridesPreset(t *testing.T) {
	off := false
	s, err := Normalize(AttrInput("danger", Attrs{Size: 12, Glow: &off}))
	require.NoError(t, err)
	// preset colour survives, overrides apply
	assert.Equal(t, "#ef4444", s.Colour)
	assert.Equal(t, 12, s.Size)
	assert.False(t, s.Glow)
}

func TestNormalizeDefaults(t *testing.T) {
	s, err := Normalize(AttrInput("", Attrs{Colour: "#123abc"}))
	require.NoError(t, err)
	assert.Equal(t, "#123abc", s.Colour)
	assert.Equal(t, core.DefaultMarkerSize, s.Size)
	assert.Equal(t, core.AnimationNone, s.Animation)
}

func TestNormalizeFieldValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		field string
	}{
		{"size too small", AttrInput("", Attrs{Size: -3}), "size"},
		{"size too large", AttrInput("", Attrs{Size: 5000}), "size"},
		{"bad animation", AttrInput("", Attrs{Animation: "wobble"}), "animation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			require.Error(t, err)
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, core.ErrInvalidField, verr.Code)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNormalizeOpaqueColourPassthrough(t *testing.T) {
	// free-form tokens are intentionally not over-validated
	s, err := Normalize(AttrInput("", Attrs{Colour: "var(--colour-accent)"}))
	require.NoError(t, err)
	assert.Equal(t, "var(--colour-accent)", s.Colour)

	s, err = Normalize(AttrInput("", Attrs{Colour: "chartreuse"}))
	require.NoError(t, err)
	assert.Equal(t, "chartreuse", s.Colour)
}

func TestNormalizeMapInput(t *testing.T) {
	s, err := Normalize(MapInput(map[string]any{
		"preset":   "info",
		"size":     float64(10), // JSON numbers decode to float64
		"glow":     true,
		"ignored":  "whatever",
		"gradient": false,
	}))
	require.NoError(t, err)
	assert.Equal(t, "#3b82f6", s.Colour)
	assert.Equal(t, 10, s.Size)
	assert.True(t, s.Glow)
	assert.False(t, s.Gradient)
}

func TestNormalizeMapBadTypes(t *testing.T) {
	_, err := Normalize(MapInput(map[string]any{"size": "big"}))
	require.Error(t, err)

	_, err = Normalize(MapInput(map[string]any{"colour": 7}))
	require.Error(t, err)

	_, err = Normalize(MapInput(map[string]any{"size": 6.5}))
	require.Error(t, err)
}

func TestThemePresetCopies(t *testing.T) {
	a, ok := ThemePreset("dark")
	require.True(t, ok)
	a["background"] = "#altered"

	b, ok := ThemePreset("dark")
	require.True(t, ok)
	assert.Equal(t, "#1f2937", b["background"])

	_, ok = ThemePreset("nope")
	assert.False(t, ok)
}
