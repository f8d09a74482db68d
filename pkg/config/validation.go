package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tag validation handles the declarative constraints; custom rules
// cover relationships between fields that tags cannot express. Log level
// normalization happens in ApplyDefaults, so validation accepts both cases.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A burst with no rate is meaningless and most likely a typo for the
	// opposite intent.
	if cfg.Server.ConnsPerSecond == 0 && cfg.Server.Burst > 0 {
		return fmt.Errorf("server: burst is set but conns_per_second is 0 (rate limiting disabled)")
	}

	// The selected source type must have its section present. ApplyDefaults
	// initializes all sections, so a nil one means the caller built the
	// Config by hand and skipped defaults.
	switch cfg.Source.Type {
	case "filesystem":
		if cfg.Source.Filesystem == nil {
			return fmt.Errorf("source: filesystem section missing for type %q", cfg.Source.Type)
		}
	case "badger":
		if cfg.Source.Badger == nil {
			return fmt.Errorf("source: badger section missing for type %q", cfg.Source.Type)
		}
	case "s3":
		if cfg.Source.S3 == nil {
			return fmt.Errorf("source: s3 section missing for type %q", cfg.Source.Type)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
