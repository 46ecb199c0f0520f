package syncfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	apperrors "github.com/shhac/battp/internal/errors"
	"github.com/shhac/battp/internal/storage"
)

const (
	filePermission = 0644
	dirPermission  = 0755
)

// Engine reads and writes sync files on a filesystem. Exports can run
// synchronously (Export) or on the engine's background worker (Schedule).
type Engine struct {
	fs       afero.Fs
	fileName string
	logger   *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	pending  map[string]*File
	order    []string
	inFlight int
	closed   bool
	onError  func(path string, err error)
	stopped  chan struct{}
}

// NewEngine starts an engine on fsys. fileName is the file used inside sync
// directories; empty means DefaultFileName.
func NewEngine(fsys afero.Fs, fileName string, logger *slog.Logger) *Engine {
	if fileName == "" {
		fileName = DefaultFileName
	}
	e := &Engine{
		fs:       fsys,
		fileName: fileName,
		logger:   logger,
		pending:  make(map[string]*File),
		stopped:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

// SetOnError registers fn to receive background export failures.
func (e *Engine) SetOnError(fn func(path string, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// Resolve returns the sync file location for path. Paths ending in .json,
// .yaml or .yml are the file itself; anything else is a directory holding
// the engine's file name.
func (e *Engine) Resolve(path string) string {
	if isFilePath(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(path, e.fileName)
}

// Export writes f to path, replacing any existing file. The write goes
// through a temp file and a rename, so readers never see a partial file.
func (e *Engine) Export(path string, f *File) error {
	if path == "" {
		return apperrors.New(apperrors.KindInvalidInput, "No Sync Path", apperrors.ErrNoSyncPath)
	}
	target := e.Resolve(path)

	out := *f
	if out.Version == "" {
		out.Version = Version
	}
	data, err := encode(&out, formatFor(target))
	if err != nil {
		return apperrors.New(apperrors.KindStorage, "Sync Export Failed",
			fmt.Errorf("encode sync file: %w", err))
	}

	if err := e.fs.MkdirAll(filepath.Dir(target), dirPermission); err != nil {
		return apperrors.New(apperrors.KindStorage, "Sync Export Failed",
			fmt.Errorf("create sync directory: %w", err))
	}
	if err := storage.WriteFileAtomic(e.fs, target, data, filePermission); err != nil {
		return apperrors.New(apperrors.KindStorage, "Sync Export Failed",
			fmt.Errorf("write sync file %s: %w", target, err))
	}

	e.logger.Debug("exported sync file",
		slog.String("path", target),
		slog.String("workspace", f.Name),
		slog.Int("requests", len(f.Requests)),
	)
	return nil
}

// Import reads the sync file at path. A missing file is a storage
// failure; an unparsable file or an unknown version is corrupt data.
func (e *Engine) Import(path string) (*File, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.KindInvalidInput, "No Sync Path", apperrors.ErrNoSyncPath)
	}
	target := e.Resolve(path)

	data, err := afero.ReadFile(e.fs, target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.New(apperrors.KindStorage, "Sync File Not Found",
				fmt.Errorf("%w: %s", apperrors.ErrSyncFileNotFound, target))
		}
		return nil, apperrors.New(apperrors.KindStorage, "Sync Import Failed",
			fmt.Errorf("read sync file %s: %w", target, err))
	}

	f, err := decode(data, formatFor(target))
	if err != nil {
		e.logger.Warn("rejected sync file",
			slog.String("path", target),
			slog.Any("error", err),
		)
		return nil, err
	}

	e.logger.Debug("imported sync file",
		slog.String("path", target),
		slog.String("workspace", f.Name),
		slog.Int("requests", len(f.Requests)),
	)
	return f, nil
}

// Schedule queues an export of f to path on the background worker and
// returns immediately. A newer schedule for the same path replaces a
// pending one. Failures go to the log and the OnError hook.
func (e *Engine) Schedule(path string, f *File) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		if err := e.Export(path, f); err != nil {
			e.report(path, err)
		}
		return
	}
	if _, queued := e.pending[path]; !queued {
		e.order = append(e.order, path)
	}
	e.pending[path] = f
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Wait blocks until every scheduled export has been attempted.
func (e *Engine) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.order) > 0 || e.inFlight > 0 {
		e.cond.Wait()
	}
}

// Close drains pending exports and stops the worker. Exports scheduled
// after Close run synchronously.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	<-e.stopped
	return nil
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		e.mu.Lock()
		for len(e.order) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.order) == 0 {
			e.mu.Unlock()
			return
		}
		path := e.order[0]
		e.order = e.order[1:]
		f := e.pending[path]
		delete(e.pending, path)
		e.inFlight++
		e.mu.Unlock()

		if err := e.Export(path, f); err != nil {
			e.report(path, err)
		}

		e.mu.Lock()
		e.inFlight--
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

func (e *Engine) report(path string, err error) {
	e.logger.Error("sync export failed",
		slog.String("path", path),
		slog.Any("error", err),
	)
	e.mu.Lock()
	fn := e.onError
	e.mu.Unlock()
	if fn != nil {
		fn(path, err)
	}
}
