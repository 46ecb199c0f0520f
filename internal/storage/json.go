package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

const (
	snapshotFile   = "workspaces.json"
	legacyFile     = "requests.json"
	filePermission = 0644
	dirPermission  = 0755
)

// JSONRepository implements Repository with one JSON file on an afero
// filesystem.
type JSONRepository struct {
	fs       afero.Fs
	basePath string
	logger   *slog.Logger
}

// NewJSONRepository creates a new JSON-based storage repository rooted at
// basePath.
func NewJSONRepository(fsys afero.Fs, basePath string, logger *slog.Logger) *JSONRepository {
	return &JSONRepository{
		fs:       fsys,
		basePath: basePath,
		logger:   logger,
	}
}

// SaveSnapshot writes the aggregate, replacing the previous file.
func (r *JSONRepository) SaveSnapshot(snap domain.Snapshot) error {
	if err := r.fs.MkdirAll(r.basePath, dirPermission); err != nil {
		return apperrors.New(apperrors.KindStorage, "Save Failed",
			fmt.Errorf("create storage directory: %w", err))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.KindStorage, "Save Failed",
			fmt.Errorf("marshal snapshot: %w", err))
	}

	path := r.snapshotPath()
	if err := WriteFileAtomic(r.fs, path, data, filePermission); err != nil {
		return apperrors.New(apperrors.KindStorage, "Save Failed",
			fmt.Errorf("write snapshot file: %w", err))
	}

	r.logger.Debug("saved snapshot",
		slog.String("path", path),
		slog.Int("workspaces", len(snap.Workspaces)))

	return nil
}

// LoadSnapshot reads the aggregate. When only a legacy flat request list
// exists it is migrated into the default workspace.
func (r *JSONRepository) LoadSnapshot() (domain.Snapshot, error) {
	path := r.snapshotPath()
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r.loadLegacy()
		}
		return domain.Snapshot{}, apperrors.New(apperrors.KindStorage, "Load Failed",
			fmt.Errorf("read snapshot file: %w", err))
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, apperrors.New(apperrors.KindCorruptData, "Corrupt Data",
			fmt.Errorf("unmarshal snapshot %s: %w", path, err))
	}

	r.logger.Debug("loaded snapshot",
		slog.String("path", path),
		slog.Int("workspaces", len(snap.Workspaces)))

	return snap.Normalize(), nil
}

// Close is a no-op; every write is complete when SaveSnapshot returns.
func (r *JSONRepository) Close() error {
	return nil
}

// loadLegacy reads requests.json, written before workspaces existed. It
// holds either a bare request array or {requests, selected_request_id}.
func (r *JSONRepository) loadLegacy() (domain.Snapshot, error) {
	path := filepath.Join(r.basePath, legacyFile)
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Snapshot{}, apperrors.New(apperrors.KindStorage, "No Stored Data", apperrors.ErrNoSnapshot)
		}
		return domain.Snapshot{}, apperrors.New(apperrors.KindStorage, "Load Failed",
			fmt.Errorf("read legacy requests file: %w", err))
	}

	var legacy struct {
		Requests          []domain.Request `json:"requests"`
		SelectedRequestID *int64           `json:"selected_request_id"`
	}
	if err := json.Unmarshal(data, &legacy.Requests); err != nil {
		if err := json.Unmarshal(data, &legacy); err != nil {
			return domain.Snapshot{}, apperrors.New(apperrors.KindCorruptData, "Corrupt Data",
				fmt.Errorf("unmarshal legacy requests %s: %w", path, err))
		}
	}

	snap := domain.NewSnapshot()
	snap.RequestsByWorkspace[domain.DefaultWorkspaceID] = legacy.Requests
	snap.SelectedRequestIDByWorkspace[domain.DefaultWorkspaceID] = legacy.SelectedRequestID

	r.logger.Info("migrated legacy requests into the default workspace",
		slog.String("path", path),
		slog.Int("requests", len(legacy.Requests)))

	return snap.Normalize(), nil
}

func (r *JSONRepository) snapshotPath() string {
	return filepath.Join(r.basePath, snapshotFile)
}
