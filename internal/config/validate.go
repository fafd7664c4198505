package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// tablePrefixAllowed restricts the prefix to characters safe in an unquoted
// PostgreSQL identifier.
const tablePrefixAllowed = "abcdefghijklmnopqrstuvwxyz0123456789_"

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	if _, err := url.ParseRequestURI(c.Directory.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("DIRECTORY_BASE_URL is not a valid URL: %v", err))
	}

	for _, r := range c.Audit.TablePrefix {
		if !strings.ContainsRune(tablePrefixAllowed, r) {
			errs = append(errs, fmt.Sprintf("AUDIT_TABLE_PREFIX contains invalid character %q", r))
			break
		}
	}
	if c.Audit.TTLDays < 1 {
		errs = append(errs, fmt.Sprintf("AUDIT_RECORD_TTL_DAYS must be at least 1, got %d", c.Audit.TTLDays))
	}
	if c.Audit.MaxLimit < 1 {
		errs = append(errs, fmt.Sprintf("AUDIT_MAX_LIMIT must be at least 1, got %d", c.Audit.MaxLimit))
	}
	if c.Audit.DefaultLimit > c.Audit.MaxLimit {
		errs = append(errs, fmt.Sprintf("AUDIT_DEFAULT_LIMIT (%d) must not exceed AUDIT_MAX_LIMIT (%d)",
			c.Audit.DefaultLimit, c.Audit.MaxLimit))
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	if c.Retention.Interval <= 0 {
		errs = append(errs, "RETENTION_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
