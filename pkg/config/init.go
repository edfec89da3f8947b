package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittofiles Configuration File
#
# Every setting can be overridden with an environment variable:
# DITTOFILES_<SECTION>_<KEY>, e.g. DITTOFILES_STORAGE_SITE_ROOT.
#
# storage.max_file_size accepts human sizes ("10MB", "512KiB"); "0" disables the limit.
# metadata.type is "memory" (lost on exit) or "badger" (persistent).
# permissions.mode is "owner" or "allow_all".

`

// InitConfig writes the default configuration to the default location.
//
// Returns the path written. An existing file is an error unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}
	return WriteDefault(path)
}

// WriteDefault writes GetDefaultConfig as commented YAML to path,
// creating parent directories as needed.
func WriteDefault(path string) error {
	data, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg with a leading comment block.
func generateYAMLWithComments(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
