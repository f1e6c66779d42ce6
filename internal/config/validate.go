package config

import (
	"fmt"

	"github.com/stewardhq/steward/internal/errors"
)

// Validate checks a loaded configuration for values that would break the
// engine at runtime. It returns the first problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if cfg.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", errors.ErrConfigInvalid)
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url is required", errors.ErrConfigInvalid)
	}
	if cfg.NATS.MaxDeliver < 1 {
		return fmt.Errorf("%w: nats.max_deliver must be at least 1", errors.ErrConfigInvalid)
	}
	if cfg.Model.APIKeyEnvVar == "" {
		return fmt.Errorf("%w: model.api_key_env_var is required", errors.ErrConfigInvalid)
	}
	if cfg.Model.Name == "" {
		return fmt.Errorf("%w: model.name is required", errors.ErrConfigInvalid)
	}
	if cfg.Model.Timeout <= 0 {
		return fmt.Errorf("%w: model.timeout must be positive", errors.ErrConfigInvalid)
	}
	if cfg.Worker.Concurrency < 1 {
		return fmt.Errorf("%w: worker.concurrency must be at least 1", errors.ErrConfigInvalid)
	}
	if cfg.Worker.MaxSteps < 1 {
		return fmt.Errorf("%w: worker.max_steps must be at least 1", errors.ErrConfigInvalid)
	}
	if cfg.Worker.StepDelay < 0 {
		return fmt.Errorf("%w: worker.step_delay cannot be negative", errors.ErrConfigInvalid)
	}
	if cfg.Worker.ToolTimeout <= 0 {
		return fmt.Errorf("%w: worker.tool_timeout must be positive", errors.ErrConfigInvalid)
	}

	if err := validateLogLevel(cfg.Log.Level); err != nil {
		return err
	}

	return nil
}

// validateLogLevel accepts the zerolog level names used in config.
func validateLogLevel(level string) error {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("%w: log.level must be one of trace, debug, info, warn, error (got %q)",
			errors.ErrConfigInvalid, level)
	}
}
