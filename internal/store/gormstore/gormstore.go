// Package gormstore persists scene snapshots through GORM, with SQLite
// for single-file deployments and Postgres for shared ones. Snapshots are
// stored as canonical JSON rather than a relational breakdown; the scene
// is only ever read and written whole.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/clutterstack/flymap/pkg/core"
)

// SceneSnapshot is the GORM model: one row per room.
type SceneSnapshot struct {
	ID        uint           `gorm:"primarykey"`
	RoomKey   string         `gorm:"uniqueIndex;size:128"`
	Data      datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// Backend is a GORM-backed snapshot store.
type Backend struct {
	db *gorm.DB
}

// NewSqlite opens (or creates) a SQLite snapshot database at path.
func NewSqlite(path string) (*Backend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite snapshot db: %w", err)
	}
	return &Backend{db: db}, nil
}

// NewPostgres connects to a Postgres snapshot database.
func NewPostgres(dsn string) (*Backend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres snapshot db: %w", err)
	}
	return &Backend{db: db}, nil
}

// Init migrates the snapshot table.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(&SceneSnapshot{}); err != nil {
		return fmt.Errorf("migrate snapshot table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveScene upserts the room's snapshot.
func (b *Backend) SaveScene(ctx context.Context, roomKey string, s *core.SceneState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scene for %q: %w", roomKey, err)
	}
	row := SceneSnapshot{RoomKey: roomKey, Data: datatypes.JSON(data)}
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
}

// LoadScene returns the saved scene, or nil when the room has none.
func (b *Backend) LoadScene(ctx context.Context, roomKey string) (*core.SceneState, error) {
	var row SceneSnapshot
	err := b.db.WithContext(ctx).Where("room_key = ?", roomKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s core.SceneState
	if err := json.Unmarshal(row.Data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot for %q: %w", roomKey, err)
	}
	return &s, nil
}

// DeleteScene removes the room's snapshot row.
func (b *Backend) DeleteScene(ctx context.Context, roomKey string) error {
	return b.db.WithContext(ctx).
		Where("room_key = ?", roomKey).
		Delete(&SceneSnapshot{}).Error
}
