// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/planpress/planpress/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Section checks run first so that errors name the environment variable
// to fix; the struct-tag sweep catches anything they miss.
func (c *Config) Validate() error {
	if err := c.validateIngest(); err != nil {
		return err
	}

	if err := c.validateSchedule(); err != nil {
		return err
	}

	if err := c.validateBackup(); err != nil {
		return err
	}

	if err := c.validateWordPress(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid configuration: %w", verr)
	}
	return nil
}

// validateIngest validates the ingestion auth token. The token protects the
// push endpoint, so a missing or trivially short value is a hard error.
func (c *Config) validateIngest() error {
	if c.Ingest.AuthToken == "" {
		return fmt.Errorf("VPLAN_AUTH_TOKEN is required")
	}
	if len(c.Ingest.AuthToken) < 16 {
		return fmt.Errorf("VPLAN_AUTH_TOKEN appears invalid (too short, expected 16+ characters)")
	}
	if c.Ingest.MaxBodyBytes <= 0 {
		return fmt.Errorf("VPLAN_MAX_BODY_BYTES must be positive")
	}
	return nil
}

// validateSchedule validates the cutoff hour and time zone
func (c *Config) validateSchedule() error {
	if c.Schedule.CutoffHour < 0 || c.Schedule.CutoffHour > 23 {
		return fmt.Errorf("CUTOFF_HOUR must be between 0 and 23")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	return nil
}

// validateBackup validates the backup store selection
func (c *Config) validateBackup() error {
	switch c.Backup.Store {
	case "file":
		if c.Backup.Dir == "" {
			return fmt.Errorf("BACKUP_DIR is required when BACKUP_STORE=file")
		}
	case "badger":
		if c.Backup.BadgerPath == "" {
			return fmt.Errorf("BACKUP_BADGER_PATH is required when BACKUP_STORE=badger")
		}
	default:
		return fmt.Errorf("BACKUP_STORE must be 'file' or 'badger', got: %s", c.Backup.Store)
	}
	return nil
}

// validateWordPress validates WordPress configuration (only if enabled)
func (c *Config) validateWordPress() error {
	if !c.WordPress.Enabled {
		return nil // publishing is optional, dry-run mode needs no credentials
	}

	if c.WordPress.URL == "" {
		return fmt.Errorf("WORDPRESS_URL is required when WORDPRESS_ENABLED=true")
	}
	if err := validateHTTPURL(c.WordPress.URL, "WORDPRESS_URL"); err != nil {
		return err
	}
	if c.WordPress.Username == "" {
		return fmt.Errorf("WORDPRESS_USERNAME is required when WORDPRESS_ENABLED=true")
	}
	if c.WordPress.AppPassword == "" {
		return fmt.Errorf("WORDPRESS_APP_PASSWORD is required when WORDPRESS_ENABLED=true")
	}
	if c.WordPress.PageID <= 0 {
		return fmt.Errorf("WORDPRESS_PAGE_ID must be a positive page ID")
	}
	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, disabled")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console'")
	}
	return nil
}

// validateHTTPURL validates that a URL is a plain http(s) base URL.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	// Allow trailing slash but no other paths
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}
