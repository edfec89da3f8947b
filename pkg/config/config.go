package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete dittofiles configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOFILES_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// The metadata section holds one option map per store type and only the map
// matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Storage describes the managed site root and the content rules applied to it
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Permissions selects the gate that authorizes operations
	Permissions PermissionsConfig `mapstructure:"permissions" yaml:"permissions"`

	// GC configures orphan collection
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server contains settings of the long-running serve command
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StorageConfig describes where bytes live and how they are accepted.
type StorageConfig struct {
	// SiteRoot holds public/files and private/files
	SiteRoot string `mapstructure:"site_root" yaml:"site_root" validate:"required"`

	// HashAlgorithm names the content digest (md5, sha256, xxhash, blake3)
	HashAlgorithm string `mapstructure:"hash_algorithm" yaml:"hash_algorithm" validate:"required"`

	// MaxFileSize is a human size ("10MB"). "0" disables the limit.
	MaxFileSize string `mapstructure:"max_file_size" yaml:"max_file_size" validate:"required"`

	// AttachmentLimits caps attachments per document, by doctype.
	// A list rather than a map: viper lowercases map keys and doctypes are case-sensitive.
	AttachmentLimits []AttachmentLimitConfig `mapstructure:"attachment_limits" yaml:"attachment_limits" validate:"dive"`

	Thumbnail ThumbnailConfig `mapstructure:"thumbnail" yaml:"thumbnail"`
	Optimize  OptimizeConfig  `mapstructure:"optimize" yaml:"optimize"`
}

// AttachmentLimitConfig is the attachment cap of one doctype.
type AttachmentLimitConfig struct {
	Doctype string `mapstructure:"doctype" yaml:"doctype" validate:"required"`
	Limit   int    `mapstructure:"limit" yaml:"limit" validate:"gt=0"`
}

// ThumbnailConfig controls generated thumbnails.
type ThumbnailConfig struct {
	Width  int    `mapstructure:"width" yaml:"width" validate:"gt=0"`
	Height int    `mapstructure:"height" yaml:"height" validate:"gt=0"`
	Suffix string `mapstructure:"suffix" yaml:"suffix" validate:"required,excludesall=/\\"`
}

// OptimizeConfig controls in-place image optimization.
type OptimizeConfig struct {
	MaxWidth  int `mapstructure:"max_width" yaml:"max_width" validate:"gt=0"`
	MaxHeight int `mapstructure:"max_height" yaml:"max_height" validate:"gt=0"`
	Quality   int `mapstructure:"quality" yaml:"quality" validate:"min=1,max=100"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration (path, in_memory)
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// Cache configures the folder listing cache in front of the store
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`
}

// CacheConfig configures the folder listing cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries" validate:"gte=0"`
}

// PermissionsConfig selects the permission gate.
type PermissionsConfig struct {
	// Mode is "allow_all" or "owner"
	Mode string `mapstructure:"mode" yaml:"mode" validate:"required,oneof=allow_all owner"`
}

// GCConfig configures orphan collection.
type GCConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period" validate:"gte=0"`
	DryRun      bool          `mapstructure:"dry_run" yaml:"dry_run"`

	// DeletesPerSecond paces orphan deletion (0 = unpaced)
	DeletesPerSecond uint `mapstructure:"deletes_per_second" yaml:"deletes_per_second"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen is the address of the /metrics HTTP listener
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required_if=Enabled true"`
}

// ServerConfig contains settings of the serve command.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// Load loads configuration from file, environment variables, and defaults.
//
// Parameters:
//   - configPath: Optional path to config file. If empty, uses default location.
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file (if exists)
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables
	v.SetEnvPrefix("DITTOFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Scalar keys must be known to viper for AutomaticEnv to see them
	// during Unmarshal.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the settings overridable through DITTOFILES_* variables.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"storage.site_root",
	"storage.hash_algorithm",
	"storage.max_file_size",
	"metadata.type",
	"permissions.mode",
	"gc.enabled",
	"gc.interval",
	"gc.dry_run",
	"metrics.enabled",
	"metrics.listen",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK if using defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// Explicit path that doesn't exist is also OK
		if configPath != "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses $XDG_CONFIG_HOME/dittofiles if set, otherwise ~/.config/dittofiles.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittofiles")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittofiles")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
