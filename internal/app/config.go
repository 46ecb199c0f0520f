package app

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shhac/battp/internal/storage"
	"github.com/shhac/battp/internal/syncfile"
)

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds application-wide configuration.
type Config struct {
	// Debug enables debug logging and additional diagnostics
	Debug bool `mapstructure:"debug"`

	// LogStderr mirrors log records to standard error
	LogStderr bool `mapstructure:"log_stderr"`

	// StoragePath is the directory where workspaces are stored
	StoragePath string `mapstructure:"storage_path"`

	// Backend selects the repository: "json" or "sqlite"
	Backend string `mapstructure:"backend"`

	// SaveDelay is the quiet period before a burst of changes is written
	SaveDelay time.Duration `mapstructure:"save_delay"`

	// RequestTimeout bounds each HTTP execution; zero means no limit
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// SyncFileName is the file written inside sync directories
	SyncFileName string `mapstructure:"sync_file_name"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StoragePath:  "", // Resolved by ResolvedStoragePath
		Backend:      BackendJSON,
		SaveDelay:    storage.DefaultSaveDelay,
		SyncFileName: syncfile.DefaultFileName,
	}
}

// LoadConfig builds the configuration from defaults, an optional config
// file and BATTP_* environment variables, in increasing priority. A .env
// file in the working directory is loaded into the environment first.
// configFile may be empty, in which case battp.yaml is looked up in the
// working directory and the default storage directory.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("debug", def.Debug)
	v.SetDefault("log_stderr", def.LogStderr)
	v.SetDefault("storage_path", def.StoragePath)
	v.SetDefault("backend", def.Backend)
	v.SetDefault("save_delay", def.SaveDelay)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("sync_file_name", def.SyncFileName)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("battp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := storage.DefaultStoragePath(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BATTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendJSON, BackendSQLite)),
		validation.Field(&c.SaveDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.SyncFileName, validation.Required, validation.By(syncFileName)),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func syncFileName(value any) error {
	name, _ := value.(string)
	if err := storage.ValidateFileName(name); err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return errors.New("must end in .json, .yaml or .yml")
	}
}

// ResolvedStoragePath returns StoragePath, or the platform default when it
// is empty.
func (c *Config) ResolvedStoragePath() (string, error) {
	if c.StoragePath != "" {
		return c.StoragePath, nil
	}
	path, err := storage.DefaultStoragePath()
	if err != nil {
		return "", fmt.Errorf("failed to determine storage path: %w", err)
	}
	return path, nil
}
