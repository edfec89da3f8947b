package config

import (
	"strings"
	"testing"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{Storage: StorageConfig{SiteRoot: t.TempDir()}}
	ApplyDefaults(cfg)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig(t)); err != nil {
		t.Errorf("Expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "TRACE" }, "Level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"metadata type", func(c *Config) { c.Metadata.Type = "postgres" }, "Type"},
		{"permission mode", func(c *Config) { c.Permissions.Mode = "everyone" }, "Mode"},
		{"hash algorithm", func(c *Config) { c.Storage.HashAlgorithm = "crc32" }, "hash_algorithm"},
		{"max file size", func(c *Config) { c.Storage.MaxFileSize = "lots" }, "max_file_size"},
		{"thumbnail suffix separator", func(c *Config) { c.Storage.Thumbnail.Suffix = "a/b" }, "Suffix"},
		{"thumbnail width", func(c *Config) { c.Storage.Thumbnail.Width = -1 }, "Width"},
		{"quality", func(c *Config) { c.Storage.Optimize.Quality = 101 }, "Quality"},
		{"gc interval", func(c *Config) { c.GC.Interval = -1 }, "Interval"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "ShutdownTimeout"},
		{"metrics listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, "Listen"},
		{"attachment limit", func(c *Config) {
			c.Storage.AttachmentLimits = []AttachmentLimitConfig{{Doctype: "ToDo", Limit: 0}}
		}, "Limit"},
		{"duplicate doctype", func(c *Config) {
			c.Storage.AttachmentLimits = []AttachmentLimitConfig{{Doctype: "ToDo", Limit: 1}, {Doctype: "ToDo", Limit: 2}}
		}, "duplicate doctype"},
		{"badger options", func(c *Config) {
			c.Metadata.Type = "badger"
			c.Metadata.Badger = map[string]any{"in_memory": "maybe"}
		}, "metadata.badger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_BadgerInMemory(t *testing.T) {
	cfg := validConfig(t)
	cfg.Metadata.Type = "badger"
	cfg.Metadata.Badger = map[string]any{"in_memory": "true"}

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected in-memory badger without path to be valid, got: %v", err)
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "ERROR"} {
		cfg := validConfig(t)
		cfg.Logging.Level = level
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected level %q to be valid, got: %v", level, err)
		}
	}
}

func TestMaxFileSizeBytes(t *testing.T) {
	tests := map[string]int64{
		"0":      0,
		"10MB":   10 * 1000 * 1000,
		"1MiB":   1 << 20,
		"512 KB": 512 * 1000,
	}
	for in, want := range tests {
		got, err := StorageConfig{MaxFileSize: in}.MaxFileSizeBytes()
		if err != nil {
			t.Errorf("MaxFileSizeBytes(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("MaxFileSizeBytes(%q) = %d, want %d", in, got, want)
		}
	}
}
