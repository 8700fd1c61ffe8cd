// Package store provides optional scene snapshot persistence so rooms can
// be rehydrated after a server restart. Persistence is best-effort: the
// hub treats every failure here as a logged diagnostic, never an outage.
package store

import (
	"context"
	"fmt"

	"github.com/clutterstack/flymap/internal/config"
	"github.com/clutterstack/flymap/internal/store/gormstore"
	"github.com/clutterstack/flymap/internal/store/memory"
	"github.com/clutterstack/flymap/internal/store/redisstore"
	"github.com/clutterstack/flymap/pkg/core"
)

// Store is the interface all snapshot backends satisfy. LoadScene returns
// (nil, nil) when no snapshot exists for the room.
type Store interface {
	Init() error
	SaveScene(ctx context.Context, roomKey string, s *core.SceneState) error
	LoadScene(ctx context.Context, roomKey string) (*core.SceneState, error)
	DeleteScene(ctx context.Context, roomKey string) error
	Close() error
}

// Compile-time interface checks for all backends.
var (
	_ Store = (*memory.Backend)(nil)
	_ Store = (*gormstore.Backend)(nil)
	_ Store = (*redisstore.Backend)(nil)
)

// NewStore creates a snapshot store from configuration.
func NewStore(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return gormstore.NewSqlite(cfg.Path)
	case "postgres":
		return gormstore.NewPostgres(cfg.DSN)
	case "redis":
		return redisstore.New(redisstore.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
