package storage

import "github.com/shhac/battp/internal/domain"

// Repository persists the whole workspace aggregate.
type Repository interface {
	// LoadSnapshot returns the stored aggregate. It fails with
	// errors.ErrNoSnapshot when nothing has been stored yet.
	LoadSnapshot() (domain.Snapshot, error)
	SaveSnapshot(snap domain.Snapshot) error
	Close() error
}
