// Package syncfile mirrors a workspace's requests to a versioned file in an
// external folder, and reads such files back.
package syncfile

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shhac/battp/internal/domain"
	apperrors "github.com/shhac/battp/internal/errors"
)

// Version is the only sync file format version this build reads and writes.
const Version = "1"

// DefaultFileName is the file written inside a sync directory.
const DefaultFileName = "battp-workspace.json"

// File is the on-disk form of one workspace.
type File struct {
	Name              string           `json:"name" yaml:"name"`
	Requests          []domain.Request `json:"requests" yaml:"requests"`
	SelectedRequestID *int64           `json:"selected_request_id" yaml:"selected_request_id"`
	CreatedAt         time.Time        `json:"created_at" yaml:"created_at"`
	Version           string           `json:"version" yaml:"version"`
}

// New builds the sync file for a workspace and its current requests.
func New(ws domain.Workspace, requests []domain.Request, selected *int64) *File {
	out := make([]domain.Request, len(requests))
	for i, r := range requests {
		out[i] = r.Clone()
	}
	var sel *int64
	if selected != nil {
		v := *selected
		sel = &v
	}
	return &File{
		Name:              ws.Name,
		Requests:          out,
		SelectedRequestID: sel,
		CreatedAt:         ws.CreatedAt,
		Version:           Version,
	}
}

// Format is a sync file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// formatFor picks the encoding from the file extension. Unknown extensions
// are JSON.
func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// isFilePath reports whether path names a sync file rather than a folder.
func isFilePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func encode(f *File, format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(f)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// decode parses data, checking the version before the rest of the
// document so that files from other versions are never half-read.
func decode(data []byte, format Format) (*File, error) {
	var probe struct {
		Version string `json:"version" yaml:"version"`
	}
	unmarshal := json.Unmarshal
	if format == FormatYAML {
		unmarshal = yaml.Unmarshal
	}

	if err := unmarshal(data, &probe); err != nil {
		return nil, apperrors.New(apperrors.KindCorruptData, "Corrupt Sync File",
			fmt.Errorf("parse %s sync file: %w", format, err))
	}
	if probe.Version != Version {
		found := probe.Version
		if found == "" {
			found = "missing"
		}
		return nil, apperrors.New(apperrors.KindCorruptData, "Unsupported Sync File",
			fmt.Errorf("%w: version %q, this build reads version %q",
				apperrors.ErrUnsupportedVersion, found, Version))
	}

	var f File
	if err := unmarshal(data, &f); err != nil {
		return nil, apperrors.New(apperrors.KindCorruptData, "Corrupt Sync File",
			fmt.Errorf("parse %s sync file: %w", format, err))
	}
	if f.Requests == nil {
		f.Requests = []domain.Request{}
	}
	return &f, nil
}
