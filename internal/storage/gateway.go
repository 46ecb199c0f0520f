package storage

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/hashicorp/go-multierror"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

// DefaultSaveDelay is the quiet period before a burst of saves is written.
const DefaultSaveDelay = 500 * time.Millisecond

// Gateway sits between the in-memory stores and a Repository. Saves are
// debounced and gated on the initial Load.
type Gateway struct {
	repo      Repository
	logger    *slog.Logger
	debounced func(f func())

	mu      sync.Mutex
	loaded  bool
	closed  bool
	initial domain.Snapshot
	pending *domain.Snapshot
	seq     uint64
	onError func(error)

	// writeMu orders writes; written is the seq of the last one attempted.
	writeMu sync.Mutex
	written uint64
	// writes counts snapshots taken from pending but not yet written.
	writes sync.WaitGroup
}

// NewGateway creates a gateway writing to repo after delay of quiet.
func NewGateway(repo Repository, delay time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		repo:      repo,
		logger:    logger,
		debounced: debounce.New(delay),
	}
}

// SetOnError registers fn to receive failures of debounced writes, which
// have no caller to return to.
func (g *Gateway) SetOnError(fn func(error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onError = fn
}

// Load reads the stored aggregate and opens the gate for Save. Missing or
// unreadable data yields the default aggregate; it is never fatal. Only the
// first call touches the repository.
func (g *Gateway) Load() domain.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return g.initial.Clone()
	}

	snap, err := g.repo.LoadSnapshot()
	switch {
	case err == nil:
		g.logger.Info("loaded workspaces", slog.Int("count", len(snap.Workspaces)))
	case errors.Is(err, apperrors.ErrNoSnapshot):
		g.logger.Info("no stored workspaces, starting fresh")
		snap = domain.NewSnapshot()
	default:
		g.logger.Warn("stored workspaces unreadable, starting fresh",
			slog.String("kind", string(apperrors.KindOf(err))),
			slog.Any("error", err))
		snap = domain.NewSnapshot()
	}

	g.initial = snap.Normalize()
	g.loaded = true
	return g.initial.Clone()
}

// Loaded reports whether Load has completed.
func (g *Gateway) Loaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

// Save schedules snap to be written once saves stop arriving for the
// gateway's delay. Only the last snapshot of a burst is written. Saves
// before Load or after Close are dropped.
func (g *Gateway) Save(snap domain.Snapshot) {
	g.mu.Lock()
	if loaded, closed := g.loaded, g.closed; !loaded || closed {
		g.mu.Unlock()
		g.logger.Debug("save dropped",
			slog.Bool("loaded", loaded),
			slog.Bool("closed", closed))
		return
	}
	cp := snap.Clone()
	g.pending = &cp
	g.seq++
	g.mu.Unlock()

	g.debounced(g.flushPending)
}

// Flush writes the pending snapshot now, if there is one.
func (g *Gateway) Flush() error {
	seq, snap := g.takePending()
	if snap == nil {
		return nil
	}
	defer g.writes.Done()
	return g.write(seq, *snap)
}

// Close disarms the pending timer, writes whatever is pending and closes
// the repository. Saves after Close are dropped.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	// Replace the armed callback so a timer firing later finds nothing to do.
	g.debounced(func() {})

	var result *multierror.Error
	if err := g.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	// A timer-driven write may have taken the snapshot before Flush did.
	g.writes.Wait()
	if err := g.repo.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (g *Gateway) flushPending() {
	seq, snap := g.takePending()
	if snap == nil {
		return
	}
	defer g.writes.Done()
	if err := g.write(seq, *snap); err != nil {
		g.mu.Lock()
		fn := g.onError
		g.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// takePending claims the pending snapshot. A non-nil result must be
// released with g.writes.Done once written.
func (g *Gateway) takePending() (uint64, *domain.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := g.pending
	if snap != nil {
		g.pending = nil
		g.writes.Add(1)
	}
	return g.seq, snap
}

// write persists snap unless a newer snapshot has already been written.
func (g *Gateway) write(seq uint64, snap domain.Snapshot) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	if seq <= g.written {
		return nil
	}
	g.written = seq

	if err := g.repo.SaveSnapshot(snap); err != nil {
		g.logger.Error("failed to save workspaces",
			slog.Any("error", err))
		return err
	}
	return nil
}
