package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittofiles/pkg/content/hash"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage)
	applyMetadataDefaults(&cfg.Metadata)
	applyPermissionsDefaults(&cfg.Permissions)
	applyGCDefaults(&cfg.GC)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStorageDefaults sets site root and content rule defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.SiteRoot == "" {
		cfg.SiteRoot = filepath.Join(getDataDir(), "site")
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = string(hash.DefaultAlgorithm)
	}
	cfg.HashAlgorithm = strings.ToLower(cfg.HashAlgorithm)

	if cfg.MaxFileSize == "" {
		cfg.MaxFileSize = "10MB"
	}

	if cfg.Thumbnail.Width == 0 {
		cfg.Thumbnail.Width = 300
	}
	if cfg.Thumbnail.Height == 0 {
		cfg.Thumbnail.Height = 300
	}
	if cfg.Thumbnail.Suffix == "" {
		cfg.Thumbnail.Suffix = "small"
	}

	if cfg.Optimize.MaxWidth == 0 {
		cfg.Optimize.MaxWidth = 1920
	}
	if cfg.Optimize.MaxHeight == 0 {
		cfg.Optimize.MaxHeight = 1080
	}
	if cfg.Optimize.Quality == 0 {
		cfg.Optimize.Quality = 85
	}
}

// applyMetadataDefaults sets metadata store defaults.
//
// The badger path is left unset here: it defaults to a directory inside the
// site root, resolved when the store is created.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	// Initialize maps if nil
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Second
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
}

// applyPermissionsDefaults sets the permission gate default.
func applyPermissionsDefaults(cfg *PermissionsConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "owner"
	}
}

// applyGCDefaults sets garbage collection defaults.
func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = time.Hour
	}
}

// applyMetricsDefaults sets metrics endpoint defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// getDataDir returns the default data directory.
//
// Uses $XDG_DATA_HOME/dittofiles if set, otherwise ~/.local/share/dittofiles.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "dittofiles")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "dittofiles")
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
