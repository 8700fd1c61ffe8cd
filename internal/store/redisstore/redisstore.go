// Package redisstore keeps scene snapshots in Redis so several server
// instances can share rehydration state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/clutterstack/flymap/pkg/core"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Backend is a Redis-backed snapshot store.
type Backend struct {
	cfg    Config
	client *redis.Client
}

// New creates a Redis backend; the connection is established in Init.
func New(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Init connects and verifies the server is reachable.
func (b *Backend) Init() error {
	b.client = redis.NewClient(&redis.Options{
		Addr:     b.cfg.Addr,
		Password: b.cfg.Password,
		DB:       b.cfg.DB,
	})
	if err := b.client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func sceneKey(roomKey string) string {
	return "flymap:scene:" + roomKey
}

// SaveScene stores the scene as JSON under the room's key.
func (b *Backend) SaveScene(ctx context.Context, roomKey string, s *core.SceneState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scene for %q: %w", roomKey, err)
	}
	return b.client.Set(ctx, sceneKey(roomKey), data, 0).Err()
}

// LoadScene returns the saved scene, or nil when the key is absent.
func (b *Backend) LoadScene(ctx context.Context, roomKey string) (*core.SceneState, error) {
	data, err := b.client.Get(ctx, sceneKey(roomKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s core.SceneState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot for %q: %w", roomKey, err)
	}
	return &s, nil
}

// DeleteScene removes the room's key; missing keys are a no-op.
func (b *Backend) DeleteScene(ctx context.Context, roomKey string) error {
	return b.client.Del(ctx, sceneKey(roomKey)).Err()
}
