// Package memory is the default snapshot backend: a process-local map.
// It survives room reaping but not a restart.
package memory

import (
	"context"
	"sync"

	"github.com/clutterstack/flymap/pkg/core"
)

// Backend stores scene snapshots in memory.
type Backend struct {
	mu     sync.RWMutex
	scenes map[string]core.SceneState
}

// New creates a new memory backend.
func New() *Backend {
	return &Backend{
		scenes: make(map[string]core.SceneState),
	}
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources.
func (b *Backend) Close() error {
	return nil
}

// SaveScene stores a deep copy of the scene.
func (b *Backend) SaveScene(ctx context.Context, roomKey string, s *core.SceneState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scenes[roomKey] = s.Clone()
	return nil
}

// LoadScene returns a copy of the saved scene, or nil when absent.
func (b *Backend) LoadScene(ctx context.Context, roomKey string) (*core.SceneState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.scenes[roomKey]
	if !ok {
		return nil, nil
	}
	out := s.Clone()
	return &out, nil
}

// DeleteScene removes a snapshot; deleting a missing one is a no-op.
func (b *Backend) DeleteScene(ctx context.Context, roomKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scenes, roomKey)
	return nil
}
