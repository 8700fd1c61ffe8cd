package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "ams", NormalizeKey("  AMS "))
	assert.Equal(t, "dev", NormalizeKey("dev"))
	assert.Equal(t, "", NormalizeKey("   "))
}

func TestIsHexColour(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"#77b5fe", true},
		{"#FFFFFF", true},
		{"#fff", false},
		{"77b5fe", false},
		{"#77b5fg", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsHexColour(tt.in), tt.in)
	}
}

func TestIsThemeVariable(t *testing.T) {
	assert.True(t, IsThemeVariable("var(--colour-primary)"))
	assert.True(t, IsThemeVariable("--marker-accent"))
	assert.False(t, IsThemeVariable("blue"))
	assert.False(t, IsThemeVariable("var(colour)"))
}
