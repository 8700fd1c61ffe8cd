// Package config loads service configuration from defaults plus an
// optional JSON file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	Type     string `json:"type" mapstructure:"type"`
	Path     string `json:"path" mapstructure:"path"`         // sqlite file path
	DSN      string `json:"dsn" mapstructure:"dsn"`           // postgres DSN
	Addr     string `json:"addr" mapstructure:"addr"`         // redis address
	Password string `json:"password" mapstructure:"password"` // redis password
	DB       int    `json:"db" mapstructure:"db"`             // redis database index
}

// Load reads configuration from the JSON config file and sets default
// values. configDir is the directory containing the config file; the file
// is optional and defaults apply when it is absent.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./flymaplogs")

	viper.SetDefault("server.addr", ":4180")

	viper.SetDefault("room.graceSeconds", 30)
	viper.SetDefault("room.throttleMillis", 100)
	viper.SetDefault("room.outboxSize", 256)

	viper.SetDefault("map.bbox.width", 800.0)
	viper.SetDefault("map.bbox.height", 400.0)
	viper.SetDefault("map.projection", "equirect")
	viper.SetDefault("map.legacyOffFrame", false)

	viper.SetDefault("client.reconnectBaseMillis", 1000)
	viper.SetDefault("client.reconnectMaxMillis", 30000)
	viper.SetDefault("client.reconnectAttempts", 10)

	viper.SetDefault("store.type", "memory")
	viper.SetDefault("store.path", "./flymap.db")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.addr", "localhost:6379")
	viper.SetDefault("store.password", "")
	viper.SetDefault("store.db", 0)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "flymapd")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "flymap-metrics")
	viper.SetDefault("influx.intervalSeconds", 15)

	viper.SetConfigName("flymapd.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil // defaults only
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration builds a duration from a millisecond or second count key.
func GetDuration(key string, unit time.Duration) time.Duration {
	return time.Duration(viper.GetInt(key)) * unit
}

// Store assembles the snapshot store configuration.
func Store() StoreConfig {
	return StoreConfig{
		Type:     viper.GetString("store.type"),
		Path:     viper.GetString("store.path"),
		DSN:      viper.GetString("store.dsn"),
		Addr:     viper.GetString("store.addr"),
		Password: viper.GetString("store.password"),
		DB:       viper.GetInt("store.db"),
	}
}
