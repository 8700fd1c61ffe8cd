package core

// Theme is a flat key to colour-string mapping for the drawing surface
// (background, border, and so on). Presets live in the style package;
// free-form overrides are allowed.
type Theme map[string]string

// Clone returns a copy of the theme. A nil theme clones to nil.
func (t Theme) Clone() Theme {
	if t == nil {
		return nil
	}
	out := make(Theme, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge applies the keys present in other on top of t and returns the
// result. Keys absent from other are left untouched.
func (t Theme) Merge(other Theme) Theme {
	out := t.Clone()
	if out == nil {
		out = make(Theme, len(other))
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
