package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittofiles/pkg/content/hash"
	"github.com/mitchellh/mapstructure"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	// Run struct tag validation
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	// Custom validation rules that can't be expressed in tags
	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if _, err := hash.New(hash.Algorithm(cfg.Storage.HashAlgorithm)); err != nil {
		return fmt.Errorf("storage.hash_algorithm: %w", err)
	}

	if _, err := cfg.Storage.MaxFileSizeBytes(); err != nil {
		return fmt.Errorf("storage.max_file_size: %w", err)
	}

	// Validate attachment doctypes are unique
	doctypes := make(map[string]bool)
	for i, l := range cfg.Storage.AttachmentLimits {
		if doctypes[l.Doctype] {
			return fmt.Errorf("storage.attachment_limits[%d]: duplicate doctype %q", i, l.Doctype)
		}
		doctypes[l.Doctype] = true
	}

	if cfg.Metadata.Type == "badger" {
		if _, err := decodeBadgerOptions(cfg.Metadata.Badger); err != nil {
			return fmt.Errorf("metadata.badger: %w", err)
		}
	}

	return nil
}

// MaxFileSizeBytes parses MaxFileSize. "0" means unlimited.
func (s StorageConfig) MaxFileSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(s.MaxFileSize)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// badgerOptions is the decoded metadata.badger section.
type badgerOptions struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

func decodeBadgerOptions(options map[string]any) (badgerOptions, error) {
	var opts badgerOptions
	if err := mapstructure.WeakDecode(options, &opts); err != nil {
		return opts, fmt.Errorf("failed to decode badger metadata store config: %w", err)
	}
	return opts, nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
