package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for:
//   - A non-empty auth header (without it every webhook would be rejected)
//   - A positive window capacity and a storage path
//   - A webhook path rooted at "/"
//   - Known logging level and format
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Auth.Header == "" {
		errs = append(errs, "auth.header is required (or set AUTH_HEADER)")
	}
	if cfg.Log.Capacity < 1 {
		errs = append(errs, fmt.Sprintf("log.capacity must be at least 1, got %d", cfg.Log.Capacity))
	}
	if cfg.Log.Path == "" {
		errs = append(errs, "log.path is required")
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		errs = append(errs, fmt.Sprintf("server.webhook_path %q must start with /", cfg.Server.WebhookPath))
	}
	if cfg.Server.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Sprintf("server.max_body_bytes must be positive, got %d", cfg.Server.MaxBodyBytes))
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not one of text, json", cfg.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
