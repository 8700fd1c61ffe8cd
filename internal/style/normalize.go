// Package style turns heterogeneous style inputs into the canonical
// core.Style record. Raw input variants never travel past this package.
package style

import (
	"github.com/clutterstack/flymap/pkg/core"
)

// MaxMarkerSize bounds the accepted size range. Anything outside
// [1, MaxMarkerSize] is rejected rather than clamped.
const MaxMarkerSize = 100

// Attrs is the explicit attribute-set input variant. Zero values mean
// "unset, take the default"; Gradient and Glow use pointers so false can
// override a preset's true.
type Attrs struct {
	Colour    string
	Size      int
	Animation core.Animation
	Gradient  *bool
	Glow      *bool
}

// Input is the closed set of style input variants: a symbolic preset
// name, an attribute set, a free-form map, or a preset merged with
// partial attribute overrides.
type Input struct {
	Preset string
	Attrs  *Attrs
	Map    map[string]any
}

// PresetInput references a symbolic preset by name.
func PresetInput(name string) Input { return Input{Preset: name} }

// AttrInput carries explicit attributes, optionally on top of a preset.
func AttrInput(preset string, a Attrs) Input { return Input{Preset: preset, Attrs: &a} }

// MapInput carries a loosely-typed map, as produced by config files or
// page payloads.
func MapInput(m map[string]any) Input { return Input{Map: m} }

// defaultStyle is the base every normalization starts from when no preset
// is named.
var defaultStyle = core.Style{
	Colour:    "#3b82f6",
	Size:      core.DefaultMarkerSize,
	Animation: core.AnimationNone,
}

// Normalize folds any input variant into one canonical Style. It is a
// pure function; on failure it returns a *core.ValidationError and no
// style.
func Normalize(in Input) (core.Style, error) {
	attrs := in.Attrs
	preset := in.Preset

	if in.Map != nil {
		m, p, err := attrsFromMap(in.Map)
		if err != nil {
			return core.Style{}, err
		}
		attrs = m
		if p != "" {
			preset = p
		}
	}

	base := defaultStyle
	if preset != "" {
		p, ok := Preset(preset)
		if !ok {
			return core.Style{}, core.Validationf(core.ErrUnknownPreset, "preset", "no preset named %q", preset)
		}
		base = p
	}

	if attrs != nil {
		if attrs.Colour != "" {
			base.Colour = attrs.Colour
		}
		if attrs.Size != 0 {
			base.Size = attrs.Size
		}
		if attrs.Animation != "" {
			base.Animation = attrs.Animation
		}
		if attrs.Gradient != nil {
			base.Gradient = *attrs.Gradient
		}
		if attrs.Glow != nil {
			base.Glow = *attrs.Glow
		}
	}

	if base.Size < 1 || base.Size > MaxMarkerSize {
		return core.Style{}, core.Validationf(core.ErrInvalidField, "size", "size %d outside [1, %d]", base.Size, MaxMarkerSize)
	}
	if !core.ValidAnimation(base.Animation) {
		return core.Style{}, core.Validationf(core.ErrInvalidField, "animation", "unknown animation %q", base.Animation)
	}
	// Colour is deliberately under-validated: anything non-empty passes
	// through opaquely so themes can substitute their own tokens.
	if base.Colour == "" {
		return core.Style{}, core.Validationf(core.ErrInvalidField, "colour", "colour must not be empty")
	}

	return base, nil
}

// attrsFromMap coerces a free-form map into Attrs. Unknown keys are
// ignored; known keys with uncoercible values are rejected.
func attrsFromMap(m map[string]any) (*Attrs, string, error) {
	var a Attrs
	var preset string

	for k, v := range m {
		switch k {
		case "preset":
			s, ok := v.(string)
			if !ok {
				return nil, "", core.Validationf(core.ErrInvalidField, "preset", "preset must be a string, got %T", v)
			}
			preset = s
		case "colour", "color":
			s, ok := v.(string)
			if !ok {
				return nil, "", core.Validationf(core.ErrInvalidField, k, "colour must be a string, got %T", v)
			}
			a.Colour = s
		case "size":
			n, ok := coerceInt(v)
			if !ok {
				return nil, "", core.Validationf(core.ErrInvalidField, "size", "size must be numeric, got %T", v)
			}
			a.Size = n
		case "animation":
			s, ok := v.(string)
			if !ok {
				return nil, "", core.Validationf(core.ErrInvalidField, "animation", "animation must be a string, got %T", v)
			}
			a.Animation = core.Animation(s)
		case "gradient":
			b, ok := v.(bool)
			if !ok {
				return nil, "", core.Validationf(core.ErrInvalidField, "gradient", "gradient must be a bool, got %T", v)
			}
			a.Gradient = &b
		case "glow":
			b, ok := v.(bool)
			if !ok {
				return nil, "", core.Validationf(core.ErrInvalidField, "glow", "glow must be a bool, got %T", v)
			}
			a.Glow = &b
		}
	}
	return &a, preset, nil
}

// coerceInt accepts the numeric types JSON decoding and config layers
// actually produce.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
