package workspace

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
	"github.com/shhac/battp/internal/logging"
	"github.com/shhac/battp/internal/syncfile"
)

// recordingPersister keeps every snapshot it is handed.
type recordingPersister struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
}

func (p *recordingPersister) Save(snap domain.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap.Clone())
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func (p *recordingPersister) last() domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snaps[len(p.snaps)-1]
}

// stubSyncer serves imports from a map and records schedules.
type stubSyncer struct {
	mu        sync.Mutex
	files     map[string]*syncfile.File
	importErr error
	scheduled map[string]*syncfile.File
	exported  map[string]*syncfile.File
}

func newStubSyncer() *stubSyncer {
	return &stubSyncer{
		files:     make(map[string]*syncfile.File),
		scheduled: make(map[string]*syncfile.File),
		exported:  make(map[string]*syncfile.File),
	}
}

func (s *stubSyncer) Import(path string) (*syncfile.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.importErr != nil {
		return nil, s.importErr
	}
	f, ok := s.files[path]
	if !ok {
		return nil, apperrors.New(apperrors.KindStorage, "Sync File Not Found", apperrors.ErrSyncFileNotFound)
	}
	return f, nil
}

func (s *stubSyncer) Export(path string, f *syncfile.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported[path] = f
	return nil
}

func (s *stubSyncer) Schedule(path string, f *syncfile.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[path] = f
}

func (s *stubSyncer) lastScheduled(path string) (*syncfile.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.scheduled[path]
	return f, ok
}

func newTestManager(t *testing.T) (*Manager, *recordingPersister, *stubSyncer) {
	t.Helper()
	p := &recordingPersister{}
	s := newStubSyncer()
	return NewManager(domain.NewSnapshot(), s, p, logging.NewNopLogger()), p, s
}

func TestNewManagerStartsWithDefault(t *testing.T) {
	m, _, _ := newTestManager(t)

	all := m.Workspaces()
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDefault())
	assert.Equal(t, domain.DefaultWorkspaceName, all[0].Name)
	assert.Equal(t, domain.DefaultWorkspaceID, m.CurrentWorkspace().ID)
	assert.Equal(t, 0, m.CurrentRequests().Len())
}

func TestNewManagerRepairsSnapshot(t *testing.T) {
	snap := domain.Snapshot{
		Workspaces:         []domain.Workspace{{ID: "team", Name: "Team"}},
		CurrentWorkspaceID: "gone",
		RequestsByWorkspace: map[string][]domain.Request{
			"team": {domain.NewRequest(7)},
		},
	}

	m := NewManager(snap, nil, nil, logging.NewNopLogger())

	assert.Equal(t, domain.DefaultWorkspaceID, m.CurrentWorkspace().ID)
	_, ok := m.Workspace(domain.DefaultWorkspaceID)
	assert.True(t, ok)
	team, ok := m.Requests("team")
	require.True(t, ok)
	assert.Equal(t, 1, team.Len())
}

func TestCreateWorkspace(t *testing.T) {
	m, p, _ := newTestManager(t)

	ws, err := m.CreateWorkspace("  Team  ", "")
	require.NoError(t, err)

	assert.NotEmpty(t, ws.ID)
	assert.NotEqual(t, domain.DefaultWorkspaceID, ws.ID)
	assert.Equal(t, "Team", ws.Name)
	assert.False(t, ws.CreatedAt.IsZero())
	assert.Len(t, m.Workspaces(), 2)
	assert.Equal(t, domain.DefaultWorkspaceID, m.CurrentWorkspace().ID, "creating does not switch")

	store, ok := m.Requests(ws.ID)
	require.True(t, ok)
	assert.Equal(t, 0, store.Len())

	require.Equal(t, 1, p.count())
	_, ok = p.last().Workspace(ws.ID)
	assert.True(t, ok)
}

func TestWorkspaceNameRules(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"two characters", "ab", false},
		{"fifty characters", strings.Repeat("x", 50), false},
		{"one character", "a", true},
		{"empty", "", true},
		{"only spaces", "    ", true},
		{"trimmed to one", " a ", true},
		{"fifty one characters", strings.Repeat("x", 51), true},
		{"multibyte counts runes", strings.Repeat("é", 50), false},
		{"clashes with default", domain.DefaultWorkspaceName, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager(t)

			_, err := m.CreateWorkspace(tt.input, "")

			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
			var verr apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "name", verr.Field)
			assert.Len(t, m.Workspaces(), 1)
		})
	}
}

func TestCreateWorkspaceDuplicateName(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.CreateWorkspace("Team", "")
	require.NoError(t, err)

	_, err = m.CreateWorkspace("Team", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Contains(t, err.Error(), "already exists")

	// Names are compared exactly.
	_, err = m.CreateWorkspace("team", "")
	assert.NoError(t, err)
}

func TestCreateWorkspaceImportsFromSyncPath(t *testing.T) {
	m, _, s := newTestManager(t)
	r := domain.NewRequest(5)
	r.Name = "Shared"
	sel := int64(5)
	s.files["/shared"] = &syncfile.File{Name: "Other", Requests: []domain.Request{r}, SelectedRequestID: &sel, Version: syncfile.Version}

	ws, err := m.CreateWorkspace("Team", "/shared")
	require.NoError(t, err)

	assert.Equal(t, "/shared", ws.SyncPath)
	assert.Equal(t, "Team", ws.Name, "the given name wins over the file's")
	store, _ := m.Requests(ws.ID)
	got, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "Shared", got.Name)

	f, ok := s.lastScheduled("/shared")
	require.True(t, ok, "the folder is seeded with an export")
	assert.Equal(t, "Team", f.Name)
	assert.Len(t, f.Requests, 1)
}

func TestCreateWorkspaceImportFailureStartsEmpty(t *testing.T) {
	m, _, s := newTestManager(t)
	s.importErr = apperrors.New(apperrors.KindCorruptData, "Corrupt Sync File", errors.New("bad"))

	var reported []string
	m.SetOnSyncError(func(id string, err error) {
		reported = append(reported, id)
		assert.True(t, apperrors.IsKind(err, apperrors.KindCorruptData))
	})

	ws, err := m.CreateWorkspace("Team", "/broken")
	require.NoError(t, err)

	store, _ := m.Requests(ws.ID)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []string{ws.ID}, reported)

	_, scheduled := s.lastScheduled("/broken")
	assert.False(t, scheduled, "an unreadable sync file must not be overwritten")
}

func TestCreateWorkspaceSeedsMissingSyncFile(t *testing.T) {
	m, p, s := newTestManager(t)

	ws, err := m.CreateWorkspace("Team", "/empty")
	require.NoError(t, err)

	f, ok := s.lastScheduled("/empty")
	require.True(t, ok)
	assert.Equal(t, "Team", f.Name)
	assert.Empty(t, f.Requests)

	require.Positive(t, p.count())
	_, found := p.last().Workspace(ws.ID)
	assert.True(t, found)
}

func TestCreateWorkspaceKeepsNewerSyncFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	engine := syncfile.NewEngine(fsys, "", logging.NewNopLogger())
	defer engine.Close()
	m := NewManager(domain.NewSnapshot(), engine, nil, logging.NewNopLogger())

	target := "/shared/" + syncfile.DefaultFileName
	newer := `{"version":"2","requests":[{"id":1,"name":"keep me"}]}`
	require.NoError(t, afero.WriteFile(fsys, target, []byte(newer), 0o644))

	var reported []error
	m.SetOnSyncError(func(_ string, err error) { reported = append(reported, err) })

	ws, err := m.CreateWorkspace("Team", "/shared")
	require.NoError(t, err)
	engine.Wait()

	require.Len(t, reported, 1)
	assert.True(t, apperrors.IsKind(reported[0], apperrors.KindCorruptData))

	got, err := afero.ReadFile(fsys, target)
	require.NoError(t, err)
	assert.Equal(t, newer, string(got))

	store, _ := m.Requests(ws.ID)
	assert.Equal(t, 0, store.Len())
}

func TestDeleteDefaultForbidden(t *testing.T) {
	m, p, _ := newTestManager(t)

	err := m.DeleteWorkspace(domain.DefaultWorkspaceID)

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	assert.ErrorIs(t, err, apperrors.ErrDefaultWorkspace)
	assert.Len(t, m.Workspaces(), 1)
	assert.Equal(t, 0, p.count())
}

func TestDeleteUnknownWorkspace(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.DeleteWorkspace("nope")

	assert.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestDeleteCurrentFallsBackToDefault(t *testing.T) {
	m, p, _ := newTestManager(t)
	ws, err := m.CreateWorkspace("Team", "")
	require.NoError(t, err)
	m.SwitchWorkspace(ws.ID)
	store, _ := m.Requests(ws.ID)
	store.Create()

	require.NoError(t, m.DeleteWorkspace(ws.ID))

	assert.Equal(t, domain.DefaultWorkspaceID, m.CurrentWorkspace().ID)
	_, ok := m.Requests(ws.ID)
	assert.False(t, ok)

	last := p.last()
	assert.Equal(t, domain.DefaultWorkspaceID, last.CurrentWorkspaceID)
	assert.NotContains(t, last.RequestsByWorkspace, ws.ID)
	assert.NotContains(t, last.SelectedRequestIDByWorkspace, ws.ID)

	// The detached store no longer reaches the manager.
	before := p.count()
	store.Create()
	assert.Equal(t, before, p.count())
}

func TestDeleteOtherKeepsCurrent(t *testing.T) {
	m, _, _ := newTestManager(t)
	a, _ := m.CreateWorkspace("Alpha", "")
	b, _ := m.CreateWorkspace("Beta", "")
	m.SwitchWorkspace(a.ID)

	require.NoError(t, m.DeleteWorkspace(b.ID))
	assert.Equal(t, a.ID, m.CurrentWorkspace().ID)
}

func TestSwitchWorkspace(t *testing.T) {
	m, p, _ := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "")

	m.SwitchWorkspace(ws.ID)
	assert.Equal(t, ws.ID, m.CurrentWorkspace().ID)
	assert.Equal(t, ws.ID, p.last().CurrentWorkspaceID)

	// Unknown ids are accepted and read as the default workspace.
	m.SwitchWorkspace("missing")
	assert.Equal(t, domain.DefaultWorkspaceID, m.CurrentWorkspace().ID)
	assert.Equal(t, domain.DefaultWorkspaceID, p.last().CurrentWorkspaceID)

	err := m.SwitchExisting("missing")
	assert.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)
	require.NoError(t, m.SwitchExisting(ws.ID))
	assert.Equal(t, ws.ID, m.CurrentWorkspace().ID)
}

func TestCurrentRequestsFollowsSwitch(t *testing.T) {
	m, _, _ := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "")

	m.CurrentRequests().Create()
	m.SwitchWorkspace(ws.ID)
	assert.Equal(t, 0, m.CurrentRequests().Len())
	m.SwitchWorkspace(domain.DefaultWorkspaceID)
	assert.Equal(t, 1, m.CurrentRequests().Len())
}

func TestRenameWorkspace(t *testing.T) {
	m, _, s := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "/sync")
	_, _ = m.CreateWorkspace("Other", "")

	require.NoError(t, m.RenameWorkspace(ws.ID, "Team"), "own name is not a clash")
	require.NoError(t, m.RenameWorkspace(ws.ID, " Renamed "))

	got, _ := m.Workspace(ws.ID)
	assert.Equal(t, "Renamed", got.Name)
	f, _ := s.lastScheduled("/sync")
	assert.Equal(t, "Renamed", f.Name)

	err := m.RenameWorkspace(ws.ID, "Other")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	err = m.RenameWorkspace(ws.ID, "x")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	err = m.RenameWorkspace("missing", "Fine name")
	assert.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)

	got, _ = m.Workspace(ws.ID)
	assert.Equal(t, "Renamed", got.Name)
}

func TestRenameDefaultWorkspaceAllowed(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.RenameWorkspace(domain.DefaultWorkspaceID, "Personal"))
	assert.Equal(t, "Personal", m.CurrentWorkspace().Name)
}

func TestStoreChangesPersistAndSync(t *testing.T) {
	m, p, s := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "/sync")
	store, _ := m.Requests(ws.ID)
	before := p.count()

	r := store.Create()
	store.Update(r.ID, domain.SetName("Login"))

	assert.Equal(t, before+2, p.count())
	reqs := p.last().RequestsByWorkspace[ws.ID]
	require.Len(t, reqs, 1)
	assert.Equal(t, "Login", reqs[0].Name)

	f, ok := s.lastScheduled("/sync")
	require.True(t, ok)
	require.Len(t, f.Requests, 1)
	assert.Equal(t, "Login", f.Requests[0].Name)
	require.NotNil(t, f.SelectedRequestID)
	assert.Equal(t, r.ID, *f.SelectedRequestID)
}

func TestUnsyncedChangesAreNotExported(t *testing.T) {
	m, p, s := newTestManager(t)

	m.CurrentRequests().Create()

	assert.Equal(t, 1, p.count())
	assert.Empty(t, s.scheduled)
}

func TestDanglingSelectionNotPersisted(t *testing.T) {
	m, p, _ := newTestManager(t)
	store := m.CurrentRequests()
	store.Create()

	store.Select(999)

	assert.Nil(t, p.last().SelectedRequestIDByWorkspace[domain.DefaultWorkspaceID])
}

func TestSetSyncPath(t *testing.T) {
	m, _, s := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "")
	store, _ := m.Requests(ws.ID)
	store.Create()
	assert.Empty(t, s.scheduled)

	require.NoError(t, m.SetSyncPath(ws.ID, " /shared/team.yaml "))

	got, _ := m.Workspace(ws.ID)
	assert.Equal(t, "/shared/team.yaml", got.SyncPath)
	f, ok := s.lastScheduled("/shared/team.yaml")
	require.True(t, ok)
	assert.Len(t, f.Requests, 1)

	require.NoError(t, m.SetSyncPath(ws.ID, ""))
	got, _ = m.Workspace(ws.ID)
	assert.False(t, got.Synced())

	assert.ErrorIs(t, m.SetSyncPath("missing", "/x"), apperrors.ErrWorkspaceNotFound)
}

func TestImportRequests(t *testing.T) {
	m, p, s := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "/sync")
	store, _ := m.Requests(ws.ID)
	store.Create()

	incoming := []domain.Request{domain.NewRequest(40), domain.NewRequest(41)}
	sel := int64(41)
	s.files["/sync"] = &syncfile.File{Name: "Team", Requests: incoming, SelectedRequestID: &sel, Version: syncfile.Version}

	require.NoError(t, m.ImportRequests(ws.ID, ""))

	assert.Equal(t, []int64{40, 41}, requestIDs(store.List()))
	assert.Equal(t, int64(41), *store.SelectedID())
	assert.Equal(t, []int64{40, 41}, requestIDs(p.last().RequestsByWorkspace[ws.ID]))
}

func TestImportRequestsFailuresChangeNothing(t *testing.T) {
	m, _, s := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "")
	store, _ := m.Requests(ws.ID)
	store.Create()

	err := m.ImportRequests(ws.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrNoSyncPath)

	err = m.ImportRequests(ws.ID, "/missing")
	assert.ErrorIs(t, err, apperrors.ErrSyncFileNotFound)

	s.importErr = apperrors.New(apperrors.KindCorruptData, "Unsupported Sync File", apperrors.ErrUnsupportedVersion)
	err = m.ImportRequests(ws.ID, "/any")
	assert.True(t, apperrors.IsKind(err, apperrors.KindCorruptData))

	err = m.ImportRequests("missing", "/any")
	assert.ErrorIs(t, err, apperrors.ErrWorkspaceNotFound)

	assert.Equal(t, 1, store.Len())
}

func TestExportWorkspace(t *testing.T) {
	m, _, s := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "/sync")

	require.NoError(t, m.ExportWorkspace(ws.ID))
	assert.Contains(t, s.exported, "/sync")

	err := m.ExportWorkspace(domain.DefaultWorkspaceID)
	assert.ErrorIs(t, err, apperrors.ErrNoSyncPath)
}

func TestExportImportRoundTripThroughEngine(t *testing.T) {
	fsys := afero.NewMemMapFs()
	engine := syncfile.NewEngine(fsys, "", logging.NewNopLogger())
	defer engine.Close()
	m := NewManager(domain.NewSnapshot(), engine, nil, logging.NewNopLogger())

	src, err := m.CreateWorkspace("Source", "/shared")
	require.NoError(t, err)
	store, _ := m.Requests(src.ID)
	first := store.Create()
	store.Update(first.ID, domain.SetURL("https://example.com/a"), domain.SetMethod(domain.MethodPost))
	second := store.Create()
	store.Update(second.ID, domain.SetName("Second"), domain.SetFavorite(true))
	store.Select(first.ID)
	engine.Wait()
	require.NoError(t, m.ExportWorkspace(src.ID))

	dst, err := m.CreateWorkspace("Copy", "/shared")
	require.NoError(t, err)

	got, _ := m.Requests(dst.ID)
	want := store.List()
	require.Equal(t, requestIDs(want), requestIDs(got.List()))
	for i, r := range got.List() {
		assert.Equal(t, want[i].Name, r.Name)
		assert.Equal(t, want[i].Method, r.Method)
		assert.Equal(t, want[i].URL, r.URL)
		assert.Equal(t, want[i].Favorite, r.Favorite)
	}
	require.NotNil(t, got.SelectedID())
	assert.Equal(t, first.ID, *got.SelectedID())
}

func TestSnapshotMatchesState(t *testing.T) {
	m, _, _ := newTestManager(t)
	ws, _ := m.CreateWorkspace("Team", "")
	store, _ := m.Requests(ws.ID)
	r := store.Create()
	m.SwitchWorkspace(ws.ID)

	snap := m.Snapshot()

	assert.Len(t, snap.Workspaces, 2)
	assert.Equal(t, ws.ID, snap.CurrentWorkspaceID)
	assert.Equal(t, []int64{r.ID}, requestIDs(snap.RequestsByWorkspace[ws.ID]))
	assert.Empty(t, snap.RequestsByWorkspace[domain.DefaultWorkspaceID])
	assert.Equal(t, r.ID, *snap.SelectedRequestIDByWorkspace[ws.ID])
	assert.Nil(t, snap.SelectedRequestIDByWorkspace[domain.DefaultWorkspaceID])
}

func TestConcurrentUse(t *testing.T) {
	m, _, _ := newTestManager(t)
	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := m.CreateWorkspace(fmt.Sprintf("Workspace %d", i), fmt.Sprintf("/sync/%d", i))
			if !assert.NoError(t, err) {
				return
			}
			store, _ := m.Requests(ws.ID)
			for range 10 {
				r := store.Create()
				store.Update(r.ID, domain.SetName("n"))
				m.SwitchWorkspace(ws.ID)
				_ = m.Snapshot()
			}
			_ = m.RenameWorkspace(ws.ID, fmt.Sprintf("Renamed %d", i))
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Len(t, snap.Workspaces, 9)
	total := 0
	for _, reqs := range snap.RequestsByWorkspace {
		total += len(reqs)
	}
	assert.Equal(t, 80, total)
}

func requestIDs(reqs []domain.Request) []int64 {
	out := make([]int64, len(reqs))
	for i, r := range reqs {
		out[i] = r.ID
	}
	return out
}
