// Package util provides small helpers shared across the map sync service.
package util

import "strings"

// NormalizeKey canonicalizes a location or room key: trimmed, lower-cased.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsHexColour reports whether s is a #-prefixed 6-hex-digit colour string.
func IsHexColour(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsThemeVariable reports whether s looks like a CSS custom property
// reference, e.g. "var(--colour-primary)" or a bare "--token".
func IsThemeVariable(s string) bool {
	if strings.HasPrefix(s, "--") {
		return true
	}
	return strings.HasPrefix(s, "var(--") && strings.HasSuffix(s, ")")
}
