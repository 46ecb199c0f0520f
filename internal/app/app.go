package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
	"github.com/shhac/battp/internal/httpclient"
	"github.com/shhac/battp/internal/logging"
	"github.com/shhac/battp/internal/storage"
	"github.com/shhac/battp/internal/syncfile"
	"github.com/shhac/battp/internal/workspace"
)

const (
	appName        = "battp"
	sqliteFileName = "battp.db"
)

// DirectoryPicker asks the user for a directory. ok is false when the user
// dismissed the picker without choosing one.
type DirectoryPicker func(ctx context.Context) (path string, ok bool, err error)

// Options overrides the collaborators New would otherwise build from the
// configuration. Zero values mean "build the default".
type Options struct {
	Logger     *slog.Logger
	Fs         afero.Fs
	Repository storage.Repository
	HTTPClient httpclient.Doer
}

// App is the main application coordinator, responsible for wiring
// together all components and managing their lifecycle.
type App struct {
	config     *Config
	logger     *slog.Logger
	logCloser  io.Closer
	gateway    *storage.Gateway
	engine     *syncfile.Engine
	workspaces *workspace.Manager
	invoker    *httpclient.Invoker
	calls      *Calls

	mu      sync.Mutex
	onError func(source string, err error)

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new App instance with the given configuration.
// This performs all dependency injection and wiring, and loads the stored
// workspaces.
func New(cfg *Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	a := &App{config: cfg, calls: NewCalls()}

	a.logger = opts.Logger
	if a.logger == nil {
		logger, closer, err := logging.Init(appName, logging.Options{Debug: cfg.Debug, Stderr: cfg.LogStderr})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger, a.logCloser = logger, closer
	}

	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	a.logger.Info("initializing battp",
		slog.Bool("debug", cfg.Debug),
		slog.String("storage_path", cfg.StoragePath),
		slog.String("backend", cfg.Backend),
	)

	repo := opts.Repository
	if repo == nil {
		var err error
		repo, err = openRepository(cfg, fsys, a.logger)
		if err != nil {
			a.closeLog()
			return nil, err
		}
	}

	a.gateway = storage.NewGateway(repo, cfg.SaveDelay, a.logger)
	a.gateway.SetOnError(func(err error) { a.report("persistence", err) })

	a.engine = syncfile.NewEngine(fsys, cfg.SyncFileName, a.logger)
	a.engine.SetOnError(func(path string, err error) { a.report("sync "+path, err) })

	a.workspaces = workspace.NewManager(a.gateway.Load(), a.engine, a.gateway, a.logger)
	a.workspaces.SetOnSyncError(func(id string, err error) { a.report("sync "+id, err) })

	client := opts.HTTPClient
	if client == nil {
		client = httpclient.NewClient(0)
	}
	a.invoker = httpclient.NewInvoker(client, a.logger)

	a.logger.Info("application initialized successfully",
		slog.Int("workspaces", len(a.workspaces.Workspaces())))
	return a, nil
}

func openRepository(cfg *Config, fsys afero.Fs, logger *slog.Logger) (storage.Repository, error) {
	path, err := cfg.ResolvedStoragePath()
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", path, err)
		}
		return storage.NewSQLiteRepository(filepath.Join(path, sqliteFileName), logger)
	case BackendJSON, "":
		return storage.NewJSONRepository(fsys, path, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Config returns the configuration the app was built with.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Workspaces returns the workspace store.
func (a *App) Workspaces() *workspace.Manager {
	return a.workspaces
}

// Calls returns the in-flight call tracker.
func (a *App) Calls() *Calls {
	return a.calls
}

// SetOnError registers fn to receive failures of background work
// (debounced saves, scheduled sync exports, imports on workspace creation).
// source names what failed.
func (a *App) SetOnError(fn func(source string, err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

func (a *App) report(source string, err error) {
	a.mu.Lock()
	fn := a.onError
	a.mu.Unlock()
	if fn != nil {
		fn(source, err)
	}
}

// Execute runs one ad-hoc execution, bounded by the configured request
// timeout when one is set.
func (a *App) Execute(ctx context.Context, exec domain.Execution) (*domain.Response, error) {
	if a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}
	return a.invoker.Invoke(ctx, exec)
}

// Send executes a saved request of a workspace. The call is tracked under a
// fresh invocation id; a result overtaken by a newer Send of the same
// request comes back Stale.
func (a *App) Send(ctx context.Context, workspaceID string, requestID int64) CallResult {
	res := CallResult{WorkspaceID: workspaceID, RequestID: requestID}

	store, ok := a.workspaces.Requests(workspaceID)
	if !ok {
		res.Err = apperrors.New(apperrors.KindInvalidInput, "Workspace Not Found",
			fmt.Errorf("%w: %s", apperrors.ErrWorkspaceNotFound, workspaceID))
		return res
	}
	req, ok := store.Get(requestID)
	if !ok {
		res.Err = apperrors.New(apperrors.KindInvalidInput, "Request Not Found",
			fmt.Errorf("%w: %d", apperrors.ErrRequestNotFound, requestID))
		return res
	}

	id, callCtx := a.calls.Begin(ctx, workspaceID, requestID)
	res.InvocationID = id

	a.logger.Debug("sending request",
		slog.String("invocation", id),
		slog.String("workspace", workspaceID),
		slog.Int64("request", requestID))

	res.Response, res.Err = a.Execute(callCtx, req.Execution())
	res = a.calls.Finish(res)
	if res.Stale {
		a.logger.Debug("discarding stale result", slog.String("invocation", id))
	}
	return res
}

// SendSelected executes the selected request of the current workspace.
func (a *App) SendSelected(ctx context.Context) CallResult {
	ws := a.workspaces.CurrentWorkspace()
	req, ok := a.workspaces.CurrentRequests().Selected()
	if !ok {
		return CallResult{
			WorkspaceID: ws.ID,
			Err: apperrors.New(apperrors.KindInvalidInput, "No Request Selected",
				fmt.Errorf("%w: nothing selected in workspace %s", apperrors.ErrRequestNotFound, ws.ID)),
		}
	}
	return a.Send(ctx, ws.ID, req.ID)
}

// CreateWorkspaceWithPicker asks picker for a sync directory, then creates
// the workspace. A dismissed picker creates the workspace without sync.
func (a *App) CreateWorkspaceWithPicker(ctx context.Context, name string, picker DirectoryPicker) (domain.Workspace, error) {
	path, ok, err := picker(ctx)
	if err != nil {
		return domain.Workspace{}, apperrors.New(apperrors.KindInvalidInput, "Directory Selection Failed", err)
	}
	if !ok {
		path = ""
	}
	return a.workspaces.CreateWorkspace(name, strings.TrimSpace(path))
}

// Shutdown cancels in-flight calls, writes pending state and releases
// resources. It is safe to call more than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down")
		a.calls.CancelAll()

		var result *multierror.Error
		if err := a.engine.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close sync engine: %w", err))
		}
		if err := a.gateway.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close storage: %w", err))
		}
		a.shutdownErr = result.ErrorOrNil()

		if a.shutdownErr != nil {
			a.logger.Error("shutdown incomplete", slog.Any("error", a.shutdownErr))
		} else {
			a.logger.Info("application shutdown complete")
		}
		a.closeLog()
	})
	return a.shutdownErr
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}
