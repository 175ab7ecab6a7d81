// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package config holds all application configuration loaded from environment
// variables and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Backup    BackupConfig    `koanf:"backup"`
	WordPress WordPressConfig `koanf:"wordpress"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 6767)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// IngestConfig holds settings for the plan ingestion endpoint.
//
// Environment Variables:
//   - VPLAN_AUTH_TOKEN: Shared secret the pushing system must present in
//     the Authorization header (required)
//   - VPLAN_MAX_BODY_BYTES: Maximum accepted document size (default: 1 MiB)
type IngestConfig struct {
	AuthToken    string `koanf:"auth_token" validate:"required,min=16"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" validate:"gt=0"`
}

// ScheduleConfig holds the publication timing settings.
//
// CutoffHour is the local hour after which a same-day plan is no longer
// published automatically,  and at which a tomorrow-plan's deferred publish
// fires.
//
// Environment Variables:
//   - CUTOFF_HOUR: Publish cutoff hour, 0-23 (default: 15)
//   - TIMEZONE: IANA zone for all calendar decisions (default: Europe/Berlin)
type ScheduleConfig struct {
	CutoffHour int    `koanf:"cutoff_hour" validate:"gte=0,lte=23"`
	Timezone   string `koanf:"timezone" validate:"required,timezone"`
}

// BackupConfig holds backup store settings.
//
// Environment Variables:
//   - BACKUP_STORE: "file" or "badger" (default: file)
//   - BACKUP_DIR: Directory for per-slot backup files (default: /data/plans)
//   - BACKUP_BADGER_PATH: BadgerDB directory when store=badger
type BackupConfig struct {
	Store      string `koanf:"store" validate:"oneof=file badger"`
	Dir        string `koanf:"dir" validate:"required"`
	BadgerPath string `koanf:"badger_path"`
}

// WordPressConfig holds the publish-sink connection settings.
//
// Publishing goes through the WordPress REST API using an application
// password. Disabling publishing keeps ingestion, backups, and the query
// boundary fully functional (useful for dry runs).
//
// Environment Variables:
//   - WORDPRESS_ENABLED: Enable publishing (default: true)
//   - WORDPRESS_URL: Site base URL, e.g. https://school.example.com
//   - WORDPRESS_USERNAME: API user
//   - WORDPRESS_APP_PASSWORD: Application password for the API user
//   - WORDPRESS_PAGE_ID: ID of the page holding the plan
//   - WORDPRESS_TIMEOUT: Request timeout (default: 15s)
type WordPressConfig struct {
	Enabled     bool          `koanf:"enabled"`
	URL         string        `koanf:"url"`
	Username    string        `koanf:"username"`
	AppPassword string        `koanf:"app_password"`
	PageID      int           `koanf:"page_id"`
	Timeout     time.Duration `koanf:"timeout"`
}

// SecurityConfig holds rate limiting and CORS settings.
//
// Environment Variables:
//   - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, RATE_LIMIT_DISABLED
//   - CORS_ORIGINS: Comma-separated allowed origins
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: Include caller file/line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Location resolves the configured time zone. Validate() guarantees the
// name loads, so errors here indicate the config was mutated after load.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Schedule.Timezone)
}
