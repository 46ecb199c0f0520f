package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

const snapshotKey = "workspaces"

// kvEntry is one row of the key/value table.
type kvEntry struct {
	Name      string `gorm:"primaryKey"`
	Value     datatypes.JSON
	UpdatedAt time.Time
}

func (kvEntry) TableName() string { return "kv_store" }

// SQLiteRepository implements Repository on a pure-Go SQLite database,
// storing the aggregate as one JSON value.
type SQLiteRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dsn.
func NewSQLiteRepository(dsn string, log *slog.Logger) (*SQLiteRepository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.KindStorage, "Storage Unavailable",
			fmt.Errorf("%w: open database: %v", apperrors.ErrStorageUnavailable, err))
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, apperrors.New(apperrors.KindStorage, "Storage Unavailable",
			fmt.Errorf("%w: migrate database: %v", apperrors.ErrStorageUnavailable, err))
	}

	log.Debug("opened sqlite storage", slog.String("dsn", dsn))
	return &SQLiteRepository{db: db, logger: log}, nil
}

// SaveSnapshot upserts the aggregate.
func (r *SQLiteRepository) SaveSnapshot(snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return apperrors.New(apperrors.KindStorage, "Save Failed",
			fmt.Errorf("marshal snapshot: %w", err))
	}

	entry := kvEntry{Name: snapshotKey, Value: datatypes.JSON(data), UpdatedAt: time.Now()}
	err = r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error
	if err != nil {
		return apperrors.New(apperrors.KindStorage, "Save Failed",
			fmt.Errorf("upsert snapshot: %w", err))
	}

	r.logger.Debug("saved snapshot", slog.Int("workspaces", len(snap.Workspaces)))
	return nil
}

// LoadSnapshot reads the aggregate.
func (r *SQLiteRepository) LoadSnapshot() (domain.Snapshot, error) {
	var entry kvEntry
	err := r.db.Where("name = ?", snapshotKey).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Snapshot{}, apperrors.New(apperrors.KindStorage, "No Stored Data", apperrors.ErrNoSnapshot)
	}
	if err != nil {
		return domain.Snapshot{}, apperrors.New(apperrors.KindStorage, "Load Failed",
			fmt.Errorf("query snapshot: %w", err))
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(entry.Value, &snap); err != nil {
		return domain.Snapshot{}, apperrors.New(apperrors.KindCorruptData, "Corrupt Data",
			fmt.Errorf("unmarshal snapshot: %w", err))
	}

	r.logger.Debug("loaded snapshot", slog.Int("workspaces", len(snap.Workspaces)))
	return snap.Normalize(), nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
