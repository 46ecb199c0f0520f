package domain

import "slices"

// Snapshot is the durable form of the whole workspace store.
type Snapshot struct {
	Workspaces                   []Workspace          `json:"workspaces"`
	CurrentWorkspaceID           string               `json:"current_workspace_id"`
	RequestsByWorkspace          map[string][]Request `json:"requests_by_workspace"`
	SelectedRequestIDByWorkspace map[string]*int64    `json:"selected_request_id_by_workspace"`
}

// NewSnapshot returns the empty aggregate: only the default workspace,
// which is current and has no requests.
func NewSnapshot() Snapshot {
	return Snapshot{
		Workspaces:                   []Workspace{NewDefaultWorkspace()},
		CurrentWorkspaceID:           DefaultWorkspaceID,
		RequestsByWorkspace:          map[string][]Request{DefaultWorkspaceID: {}},
		SelectedRequestIDByWorkspace: map[string]*int64{DefaultWorkspaceID: nil},
	}
}

// Normalize repairs a loaded snapshot so it satisfies the aggregate
// invariants:
//   - the default workspace exists and workspace ids are unique
//   - map keys only name existing workspaces
//   - a selected id is nil or names a request of that workspace
//   - the current workspace exists, otherwise it is the default one
//
// Normalize returns the repaired copy; s is not modified.
func (s Snapshot) Normalize() Snapshot {
	out := Snapshot{
		CurrentWorkspaceID:           s.CurrentWorkspaceID,
		RequestsByWorkspace:          make(map[string][]Request),
		SelectedRequestIDByWorkspace: make(map[string]*int64),
	}

	seen := make(map[string]bool)
	for _, ws := range s.Workspaces {
		if ws.ID == "" || seen[ws.ID] {
			continue
		}
		seen[ws.ID] = true
		out.Workspaces = append(out.Workspaces, ws)
	}
	if !seen[DefaultWorkspaceID] {
		out.Workspaces = append([]Workspace{NewDefaultWorkspace()}, out.Workspaces...)
		seen[DefaultWorkspaceID] = true
	}

	for _, ws := range out.Workspaces {
		reqs := make([]Request, 0, len(s.RequestsByWorkspace[ws.ID]))
		ids := make(map[int64]bool)
		for _, r := range s.RequestsByWorkspace[ws.ID] {
			if ids[r.ID] {
				continue
			}
			ids[r.ID] = true
			reqs = append(reqs, r.Clone())
		}
		out.RequestsByWorkspace[ws.ID] = reqs

		var selected *int64
		if id := s.SelectedRequestIDByWorkspace[ws.ID]; id != nil && ids[*id] {
			v := *id
			selected = &v
		}
		out.SelectedRequestIDByWorkspace[ws.ID] = selected
	}

	if !seen[out.CurrentWorkspaceID] {
		out.CurrentWorkspaceID = DefaultWorkspaceID
	}
	return out
}

// Workspace looks up a workspace by id.
func (s Snapshot) Workspace(id string) (Workspace, bool) {
	for _, ws := range s.Workspaces {
		if ws.ID == id {
			return ws, true
		}
	}
	return Workspace{}, false
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Workspaces:         slices.Clone(s.Workspaces),
		CurrentWorkspaceID: s.CurrentWorkspaceID,
	}
	if s.RequestsByWorkspace != nil {
		out.RequestsByWorkspace = make(map[string][]Request, len(s.RequestsByWorkspace))
		for id, reqs := range s.RequestsByWorkspace {
			cp := make([]Request, len(reqs))
			for i, r := range reqs {
				cp[i] = r.Clone()
			}
			out.RequestsByWorkspace[id] = cp
		}
	}
	if s.SelectedRequestIDByWorkspace != nil {
		out.SelectedRequestIDByWorkspace = make(map[string]*int64, len(s.SelectedRequestIDByWorkspace))
		for id, sel := range s.SelectedRequestIDByWorkspace {
			if sel != nil {
				v := *sel
				sel = &v
			}
			out.SelectedRequestIDByWorkspace[id] = sel
		}
	}
	return out
}
