package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

const (
	// maxLogSize is the maximum log file size before rotation (5 MB).
	maxLogSize = 5 * 1024 * 1024
	// maxLogBackups is the number of rotated log files to keep.
	maxLogBackups = 3
)

// Options controls how Init builds the logger.
type Options struct {
	// Debug lowers the level to DEBUG and adds source locations.
	Debug bool
	// Stderr additionally writes human-readable records to standard error.
	Stderr bool
	// Path overrides the platform log file location.
	Path string
}

// Init initializes a structured logger with platform-specific log file paths.
// Records are written as JSON to opts.Path, or to the platform location
// chosen by getLogFilePath. The returned closer closes the log file.
func Init(appName string, opts Options) (*slog.Logger, io.Closer, error) {
	logPath := opts.Path
	if logPath == "" {
		var err error
		logPath, err = getLogFilePath(appName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get log file path: %w", err)
		}
	}

	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	if err := rotateIfNeeded(logPath); err != nil {
		return nil, nil, fmt.Errorf("failed to rotate log file: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Debug,
	}

	var handler slog.Handler = slog.NewJSONHandler(logFile, handlerOpts)
	if opts.Stderr {
		handler = fanout{handler, slog.NewTextHandler(os.Stderr, handlerOpts)}
	}

	return slog.New(handler), logFile, nil
}

// fanout sends every record to each of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// rotateIfNeeded moves a log file of maxLogSize or more aside as logPath.1.
// Older backups shift up one number and anything past maxLogBackups is
// dropped. A missing file needs no rotation.
func rotateIfNeeded(logPath string) error {
	info, err := os.Stat(logPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxLogSize {
		return nil
	}

	backup := func(n int) string { return logPath + "." + strconv.Itoa(n) }

	// Backups are best effort; only moving the live file aside must succeed.
	_ = os.Remove(backup(maxLogBackups))
	for n := maxLogBackups - 1; n >= 1; n-- {
		_ = os.Rename(backup(n), backup(n+1))
	}
	if err := os.Rename(logPath, backup(1)); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

// getLogFilePath picks where appName logs by default:
//
//	macOS    ~/Library/Logs/<app>/<app>.log
//	Linux    $XDG_STATE_HOME/<app>/<app>.log, else ~/.local/state/<app>/<app>.log
//	Windows  %LOCALAPPDATA%\<app>\Logs\<app>.log
func getLogFilePath(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	file := appName + ".log"

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", appName, file), nil
	case "linux":
		state := os.Getenv("XDG_STATE_HOME")
		if state == "" || !filepath.IsAbs(state) {
			state = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(state, appName, file), nil
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			local = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(local, appName, "Logs", file), nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// NewNopLogger returns a logger that discards everything, for tests.
func NewNopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
