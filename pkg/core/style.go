package core

// Animation is the closed set of marker animations.
type Animation string

const (
	AnimationNone   Animation = "none"
	AnimationPulse  Animation = "pulse"
	AnimationFade   Animation = "fade"
	AnimationBounce Animation = "bounce"
)

// ValidAnimation reports whether a is one of the accepted animation values.
func ValidAnimation(a Animation) bool {
	switch a {
	case AnimationNone, AnimationPulse, AnimationFade, AnimationBounce:
		return true
	}
	return false
}

// DefaultMarkerSize is used when a style input omits size.
const DefaultMarkerSize = 6

// Style is the canonical visual record for a marker group. It is produced
// once by the normalizer and never mutated afterwards.
type Style struct {
	Colour    string    `json:"colour"`
	Size      int       `json:"size"`
	Animation Animation `json:"animation"`
	Gradient  bool      `json:"gradient"`
	Glow      bool      `json:"glow"`
}
