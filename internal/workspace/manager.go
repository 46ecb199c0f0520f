// Package workspace manages the set of workspaces, each owning one request
// store, and keeps persistence and sync folders up to date.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
	"github.com/shhac/battp/internal/requests"
	"github.com/shhac/battp/internal/syncfile"
)

const (
	minNameLength = 2
	maxNameLength = 50
)

// Syncer transfers a workspace to and from its sync path.
type Syncer interface {
	Import(path string) (*syncfile.File, error)
	Export(path string, f *syncfile.File) error
	Schedule(path string, f *syncfile.File)
}

// Persister receives the whole aggregate after every change.
type Persister interface {
	Save(snap domain.Snapshot)
}

// Manager owns the workspaces and their request stores.
//
// Lock order is Manager.mu before any store's lock. Store listeners run
// outside the store lock, so the manager never mutates a store while
// holding mu.
type Manager struct {
	mu          sync.Mutex
	workspaces  []domain.Workspace
	stores      map[string]*requests.Store
	current     string
	syncer      Syncer
	persister   Persister
	logger      *slog.Logger
	onSyncError func(workspaceID string, err error)
	newID       func() string
	now         func() time.Time
}

// NewManager builds a manager from a loaded snapshot. syncer and persister
// may be nil.
func NewManager(snap domain.Snapshot, syncer Syncer, persister Persister, logger *slog.Logger) *Manager {
	snap = snap.Normalize()
	m := &Manager{
		workspaces: snap.Workspaces,
		stores:     make(map[string]*requests.Store, len(snap.Workspaces)),
		current:    snap.CurrentWorkspaceID,
		syncer:     syncer,
		persister:  persister,
		logger:     logger,
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, ws := range snap.Workspaces {
		store := requests.NewStore(snap.RequestsByWorkspace[ws.ID], snap.SelectedRequestIDByWorkspace[ws.ID])
		m.attachLocked(ws.ID, store)
	}
	return m
}

// SetOnSyncError registers fn to receive sync failures that have no caller
// to return to, such as a failed import during CreateWorkspace.
func (m *Manager) SetOnSyncError(fn func(workspaceID string, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncError = fn
}

// Workspaces returns all workspaces in creation order.
func (m *Manager) Workspaces() []domain.Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.workspaces)
}

// Workspace looks up a workspace by id.
func (m *Manager) Workspace(id string) (domain.Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return domain.Workspace{}, false
	}
	return m.workspaces[i], true
}

// CurrentWorkspace returns the current workspace. A current id naming no
// workspace resolves to the default workspace.
func (m *Manager) CurrentWorkspace() domain.Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspaces[m.currentIndexLocked()]
}

// Requests returns the request store of a workspace. Mutations made
// through it are persisted and synced like any other change.
func (m *Manager) Requests(id string) (*requests.Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[id]
	return store, ok
}

// CurrentRequests returns the request store of the current workspace.
func (m *Manager) CurrentRequests() *requests.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores[m.workspaces[m.currentIndexLocked()].ID]
}

// CreateWorkspace adds a workspace named name. With a sync path, requests
// are imported from it; an import failure is reported through the sync
// error hook and the workspace starts empty. The folder is seeded with an
// export unless the import failed on a file that exists.
func (m *Manager) CreateWorkspace(name, syncPath string) (domain.Workspace, error) {
	name = strings.TrimSpace(name)
	syncPath = strings.TrimSpace(syncPath)

	m.mu.Lock()
	err := m.validateNameLocked(name, "")
	m.mu.Unlock()
	if err != nil {
		return domain.Workspace{}, err
	}

	ws := domain.Workspace{
		ID:        m.newID(),
		Name:      name,
		CreatedAt: domain.Timestamp(m.now()),
		SyncPath:  syncPath,
	}

	var (
		imported []domain.Request
		selected *int64
		seed     = ws.Synced()
	)
	if ws.Synced() && m.syncer != nil {
		f, err := m.syncer.Import(syncPath)
		if err != nil {
			// Only an absent file may be seeded. An unreadable or newer one
			// belongs to someone else and stays as it is.
			seed = errors.Is(err, apperrors.ErrSyncFileNotFound)
			m.logger.Warn("import on workspace creation failed, starting empty",
				slog.String("workspace", ws.ID),
				slog.String("path", syncPath),
				slog.Bool("seed", seed),
				slog.Any("error", err))
			m.reportSyncError(ws.ID, err)
		} else {
			imported, selected = f.Requests, f.SelectedRequestID
		}
	}
	store := requests.NewStore(imported, selected)

	m.mu.Lock()
	defer m.mu.Unlock()

	// The name may have been taken while importing.
	if err := m.validateNameLocked(name, ""); err != nil {
		return domain.Workspace{}, err
	}
	m.workspaces = append(m.workspaces, ws)
	m.attachLocked(ws.ID, store)

	m.logger.Info("created workspace",
		slog.String("id", ws.ID),
		slog.String("name", ws.Name),
		slog.Int("requests", len(imported)))

	if seed {
		m.commitLocked(ws.ID)
	} else {
		m.commitLocked()
	}
	return ws, nil
}

// DeleteWorkspace removes a workspace and its requests. The default
// workspace cannot be deleted. Deleting the current workspace makes the
// default one current. A sync folder is left untouched.
func (m *Manager) DeleteWorkspace(id string) error {
	if id == domain.DefaultWorkspaceID {
		return apperrors.New(apperrors.KindForbidden, "Forbidden Operation", apperrors.ErrDefaultWorkspace)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return notFound(id)
	}
	m.workspaces = slices.Delete(m.workspaces, i, i+1)
	m.stores[id].SetOnChange(nil)
	delete(m.stores, id)
	if m.current == id {
		m.current = domain.DefaultWorkspaceID
	}

	m.logger.Info("deleted workspace", slog.String("id", id))
	m.commitLocked()
	return nil
}

// SwitchWorkspace makes id current without checking it exists. A dangling
// current id reads as the default workspace.
func (m *Manager) SwitchWorkspace(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = id
	m.commitLocked()
}

// SwitchExisting is SwitchWorkspace that fails for unknown ids.
func (m *Manager) SwitchExisting(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(id) < 0 {
		return notFound(id)
	}
	m.current = id
	m.commitLocked()
	return nil
}

// RenameWorkspace renames a workspace. The name rules are those of
// CreateWorkspace, except that the workspace's own name is not a clash.
func (m *Manager) RenameWorkspace(id, name string) error {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return notFound(id)
	}
	if err := m.validateNameLocked(name, id); err != nil {
		return err
	}
	m.workspaces[i].Name = name
	m.commitLocked(id)
	return nil
}

// SetSyncPath attaches a workspace to a sync path, or detaches it when path
// is empty. An attached workspace is exported right away.
func (m *Manager) SetSyncPath(id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return notFound(id)
	}
	m.workspaces[i].SyncPath = strings.TrimSpace(path)
	m.commitLocked(id)
	return nil
}

// ImportRequests replaces a workspace's requests and selection with the
// contents of the sync file at path, or at the workspace's own sync path
// when path is empty. Unlike the import in CreateWorkspace, any failure is
// returned and nothing changes.
func (m *Manager) ImportRequests(id, path string) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return notFound(id)
	}
	if path = strings.TrimSpace(path); path == "" {
		path = m.workspaces[i].SyncPath
	}
	store := m.stores[id]
	syncer := m.syncer
	m.mu.Unlock()

	if path == "" || syncer == nil {
		return apperrors.New(apperrors.KindInvalidInput, "No Sync Path",
			fmt.Errorf("%w: %s", apperrors.ErrNoSyncPath, id))
	}

	f, err := syncer.Import(path)
	if err != nil {
		return err
	}
	store.Replace(f.Requests, f.SelectedRequestID)

	m.logger.Info("imported requests",
		slog.String("workspace", id),
		slog.String("path", path),
		slog.Int("requests", len(f.Requests)))
	return nil
}

// ExportWorkspace writes a synced workspace to its sync path now and
// returns the outcome.
func (m *Manager) ExportWorkspace(id string) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return notFound(id)
	}
	ws := m.workspaces[i]
	f := m.fileLocked(ws)
	syncer := m.syncer
	m.mu.Unlock()

	if !ws.Synced() || syncer == nil {
		return apperrors.New(apperrors.KindInvalidInput, "No Sync Path",
			fmt.Errorf("%w: %s", apperrors.ErrNoSyncPath, id))
	}
	return syncer.Export(ws.SyncPath, f)
}

// Snapshot returns the aggregate in its durable form.
func (m *Manager) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) attachLocked(id string, store *requests.Store) {
	m.stores[id] = store
	store.SetOnChange(func() { m.storeChanged(id) })
}

func (m *Manager) storeChanged(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[id]; !ok {
		return
	}
	m.commitLocked(id)
}

// commitLocked hands the current aggregate to the persister and schedules
// an export for each named workspace that has a sync path. Both happen
// under mu, so the last state scheduled is always the newest.
func (m *Manager) commitLocked(changed ...string) {
	if m.persister != nil {
		m.persister.Save(m.snapshotLocked())
	}
	if m.syncer == nil {
		return
	}
	for _, id := range changed {
		i := m.indexLocked(id)
		if i < 0 || !m.workspaces[i].Synced() {
			continue
		}
		ws := m.workspaces[i]
		m.syncer.Schedule(ws.SyncPath, m.fileLocked(ws))
	}
}

func (m *Manager) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Workspaces:                   slices.Clone(m.workspaces),
		CurrentWorkspaceID:           m.workspaces[m.currentIndexLocked()].ID,
		RequestsByWorkspace:          make(map[string][]domain.Request, len(m.workspaces)),
		SelectedRequestIDByWorkspace: make(map[string]*int64, len(m.workspaces)),
	}
	for _, ws := range m.workspaces {
		reqs, sel := m.requestsLocked(ws.ID)
		snap.RequestsByWorkspace[ws.ID] = reqs
		snap.SelectedRequestIDByWorkspace[ws.ID] = sel
	}
	return snap
}

func (m *Manager) fileLocked(ws domain.Workspace) *syncfile.File {
	reqs, sel := m.requestsLocked(ws.ID)
	return syncfile.New(ws, reqs, sel)
}

// requestsLocked reads a store, dropping a selection that names no request.
func (m *Manager) requestsLocked(id string) ([]domain.Request, *int64) {
	reqs, sel := m.stores[id].Snapshot()
	if sel != nil && !slices.ContainsFunc(reqs, func(r domain.Request) bool { return r.ID == *sel }) {
		sel = nil
	}
	return reqs, sel
}

func (m *Manager) indexLocked(id string) int {
	return slices.IndexFunc(m.workspaces, func(ws domain.Workspace) bool { return ws.ID == id })
}

// currentIndexLocked resolves the current workspace, falling back to the
// default one, which always exists.
func (m *Manager) currentIndexLocked() int {
	if i := m.indexLocked(m.current); i >= 0 {
		return i
	}
	return m.indexLocked(domain.DefaultWorkspaceID)
}

func (m *Manager) validateNameLocked(name, selfID string) error {
	err := validation.Validate(name,
		validation.Required.Error("workspace name is required"),
		validation.RuneLength(minNameLength, maxNameLength).
			Error(fmt.Sprintf("workspace name must be between %d and %d characters", minNameLength, maxNameLength)),
	)
	if err != nil {
		return apperrors.New(apperrors.KindValidation, "Invalid Workspace Name",
			apperrors.ValidationError{Field: "name", Message: err.Error()})
	}

	for _, ws := range m.workspaces {
		if ws.ID != selfID && ws.Name == name {
			return apperrors.New(apperrors.KindValidation, "Invalid Workspace Name",
				apperrors.ValidationError{Field: "name", Message: fmt.Sprintf("a workspace named %q already exists", name)})
		}
	}
	return nil
}

func (m *Manager) reportSyncError(id string, err error) {
	m.mu.Lock()
	fn := m.onSyncError
	m.mu.Unlock()
	if fn != nil {
		fn(id, err)
	}
}

func notFound(id string) error {
	return apperrors.New(apperrors.KindInvalidInput, "Workspace Not Found",
		fmt.Errorf("%w: %s", apperrors.ErrWorkspaceNotFound, id))
}
