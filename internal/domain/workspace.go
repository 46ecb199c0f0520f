package domain

import "time"

const (
	// DefaultWorkspaceID is reserved for the workspace that always exists.
	DefaultWorkspaceID = "default"
	// DefaultWorkspaceName is the display name of the default workspace.
	DefaultWorkspaceName = "Default"
)

// Workspace holds the metadata of a named collection of requests.
// The requests themselves live in the workspace's request store.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	SyncPath  string    `json:"sync_path,omitempty"`
}

// IsDefault reports whether w is the reserved default workspace.
func (w Workspace) IsDefault() bool {
	return w.ID == DefaultWorkspaceID
}

// Synced reports whether the workspace mirrors itself to a sync path.
func (w Workspace) Synced() bool {
	return w.SyncPath != ""
}

// NewDefaultWorkspace returns the reserved default workspace.
func NewDefaultWorkspace() Workspace {
	return Workspace{
		ID:        DefaultWorkspaceID,
		Name:      DefaultWorkspaceName,
		CreatedAt: Timestamp(time.Now()),
	}
}
