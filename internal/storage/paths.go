package storage

import (
	"os"
	"path/filepath"
)

const appDir = ".battp"

// DefaultStoragePath returns the default storage location for battp
// Platform-specific paths:
//   - macOS/Linux: ~/.battp
//   - Windows: %USERPROFILE%\.battp
func DefaultStoragePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDir), nil
}
