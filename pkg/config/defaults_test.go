package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestApplyDefaults_Storage(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Storage.SiteRoot != filepath.Join("/data", "dittofiles", "site") {
		t.Errorf("Expected site root under XDG_DATA_HOME, got %q", cfg.Storage.SiteRoot)
	}
	if cfg.Storage.HashAlgorithm != "md5" {
		t.Errorf("Expected default hash 'md5', got %q", cfg.Storage.HashAlgorithm)
	}
	if cfg.Storage.Thumbnail.Width != 300 || cfg.Storage.Thumbnail.Height != 300 || cfg.Storage.Thumbnail.Suffix != "small" {
		t.Errorf("Unexpected thumbnail defaults %+v", cfg.Storage.Thumbnail)
	}
	if cfg.Storage.Optimize.MaxWidth != 1920 || cfg.Storage.Optimize.MaxHeight != 1080 {
		t.Errorf("Unexpected optimize defaults %+v", cfg.Storage.Optimize)
	}
}

func TestApplyDefaults_Metadata(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metadata.Type != "badger" {
		t.Errorf("Expected default metadata type 'badger', got %q", cfg.Metadata.Type)
	}
	if cfg.Metadata.Memory == nil || cfg.Metadata.Badger == nil {
		t.Error("Expected option maps to be initialized")
	}
	if cfg.Metadata.Cache.Enabled {
		t.Error("Expected listing cache disabled by default")
	}
	if cfg.Metadata.Cache.MaxEntries != 1000 {
		t.Errorf("Expected default cache max entries 1000, got %d", cfg.Metadata.Cache.MaxEntries)
	}
}

func TestApplyDefaults_GC(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.GC.Enabled {
		t.Error("Expected GC disabled by default")
	}
	if cfg.GC.Interval != 24*time.Hour {
		t.Errorf("Expected default interval 24h, got %v", cfg.GC.Interval)
	}
	if cfg.GC.GracePeriod != time.Hour {
		t.Errorf("Expected default grace period 1h, got %v", cfg.GC.GracePeriod)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "stderr",
		},
		Storage: StorageConfig{
			SiteRoot:      "/srv/site",
			HashAlgorithm: "SHA256",
			MaxFileSize:   "0",
			Thumbnail:     ThumbnailConfig{Width: 10, Height: 20, Suffix: "t"},
		},
		Permissions: PermissionsConfig{Mode: "allow_all"},
		GC:          GCConfig{Interval: time.Minute},
		Metrics:     MetricsConfig{Listen: "127.0.0.1:9999"},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level to be normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Expected explicit logging values preserved, got %+v", cfg.Logging)
	}
	if cfg.Storage.SiteRoot != "/srv/site" || cfg.Storage.MaxFileSize != "0" {
		t.Errorf("Expected explicit storage values preserved, got %+v", cfg.Storage)
	}
	if cfg.Storage.HashAlgorithm != "sha256" {
		t.Errorf("Expected hash normalized to 'sha256', got %q", cfg.Storage.HashAlgorithm)
	}
	if cfg.Storage.Thumbnail.Suffix != "t" || cfg.Storage.Thumbnail.Height != 20 {
		t.Errorf("Expected explicit thumbnail preserved, got %+v", cfg.Storage.Thumbnail)
	}
	if cfg.Permissions.Mode != "allow_all" {
		t.Errorf("Expected explicit permissions preserved, got %q", cfg.Permissions.Mode)
	}
	if cfg.GC.Interval != time.Minute {
		t.Errorf("Expected explicit interval preserved, got %v", cfg.GC.Interval)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9999" {
		t.Errorf("Expected explicit listen preserved, got %q", cfg.Metrics.Listen)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}
