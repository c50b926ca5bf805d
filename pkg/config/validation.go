package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittopad/internal/telemetry"
	"github.com/marmos91/dittopad/pkg/store/badger"
)

var validate = newValidator()

// newValidator reports fields by their config key rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks cfg. Struct tags are checked first, then the rules that
// span several fields. Validate never modifies cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	checks := []func(*Config) error{
		validateTelemetry,
		validateAdapters,
		validateAPI,
		validateStorage,
	}
	var errs []error
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// formatValidationError turns validator errors into one line per field,
// e.g. "logging.level: failed 'oneof' (value: XML)".
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msg := fmt.Sprintf("%s: failed '%s'", field, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed '%s=%s'", field, fe.Tag(), fe.Param())
		}
		msgs = append(msgs, fmt.Sprintf("%s (value: %v)", msg, fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func validateTelemetry(cfg *Config) error {
	t := cfg.Telemetry
	if t.Enabled && t.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	p := t.Profiling
	if !p.Enabled {
		return nil
	}
	if p.Endpoint == "" {
		return errors.New("telemetry.profiling.endpoint is required when profiling is enabled")
	}
	for _, name := range p.ProfileTypes {
		if !telemetry.ValidProfileType(name) {
			return fmt.Errorf("telemetry.profiling.profile_types: unknown profile type %q", name)
		}
	}
	return nil
}

func validateAdapters(cfg *Config) error {
	if err := cfg.Adapters.Notepad.Validate(); err != nil {
		return fmt.Errorf("adapters.notepad: %w", err)
	}
	return nil
}

func validateAPI(cfg *Config) error {
	n := cfg.Adapters.Notepad
	if cfg.API.Enabled && n.Enabled && cfg.API.Port == n.Port {
		return fmt.Errorf("api.port %d conflicts with adapters.notepad.port", cfg.API.Port)
	}
	return nil
}

func validateStorage(cfg *Config) error {
	s := cfg.Storage
	switch s.Type {
	case StorageFilesystem:
		if s.Filesystem.Root == "" {
			return errors.New("storage.filesystem.root is required for filesystem storage")
		}
	case StorageS3:
		if s.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for s3 storage")
		}
	case StorageBadger:
		var bc badger.Config
		if err := decodeBadgerConfig(s.Badger, &bc); err != nil {
			return fmt.Errorf("storage.badger: %w", err)
		}
		if bc.Path == "" && !bc.InMemory {
			return errors.New("storage.badger.path is required unless in_memory is set")
		}
	}
	return nil
}
