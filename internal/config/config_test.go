package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	require.NoError(t, Load(t.TempDir()))

	assert.Equal(t, ":4180", GetString("server.addr"))
	assert.Equal(t, 30, GetInt("room.graceSeconds"))
	assert.Equal(t, "equirect", GetString("map.projection"))
	assert.Equal(t, 800.0, GetFloat("map.bbox.width"))
	assert.False(t, GetBool("otel.enabled"))

	s := Store()
	assert.Equal(t, "memory", s.Type)
	assert.Equal(t, "localhost:6379", s.Addr)
}
