// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Ingest.AuthToken = "0123456789abcdef0123456789abcdef"
	cfg.WordPress.Enabled = false
	return cfg
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
	if cfg.Server.Port != 6767 {
		t.Errorf("expected default port 6767, got %d", cfg.Server.Port)
	}
	if cfg.Schedule.CutoffHour != 15 {
		t.Errorf("expected default cutoff hour 15, got %d", cfg.Schedule.CutoffHour)
	}
	if cfg.Schedule.Timezone != "Europe/Berlin" {
		t.Errorf("expected default timezone Europe/Berlin, got %s", cfg.Schedule.Timezone)
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	cfg := validTestConfig()
	cfg.Ingest.AuthToken = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing auth token")
	}
}

func TestValidateRejectsShortToken(t *testing.T) {
	cfg := validTestConfig()
	cfg.Ingest.AuthToken = "short"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for short auth token")
	}
	if !strings.Contains(err.Error(), "VPLAN_AUTH_TOKEN") {
		t.Errorf("error should name the env var, got: %v", err)
	}
}

func TestValidateRejectsBadCutoffHour(t *testing.T) {
	cfg := validTestConfig()
	cfg.Schedule.CutoffHour = 24
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for cutoff hour 24")
	}
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	cfg := validTestConfig()
	cfg.Schedule.Timezone = "Mars/Olympus_Mons"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestValidateRejectsUnknownBackupStore(t *testing.T) {
	cfg := validTestConfig()
	cfg.Backup.Store = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backup store")
	}
}

func TestValidateWordPressRequiredWhenEnabled(t *testing.T) {
	cfg := validTestConfig()
	cfg.WordPress.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when WordPress enabled without URL")
	}

	cfg.WordPress.URL = "https://school.example.com"
	cfg.WordPress.Username = "planbot"
	cfg.WordPress.AppPassword = "abcd efgh ijkl mnop"
	cfg.WordPress.PageID = 42
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid WordPress config, got: %v", err)
	}
}

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://school.example.com", false},
		{"valid http with port", "http://localhost:8080", false},
		{"trailing slash ok", "https://school.example.com/", false},
		{"path rejected", "https://school.example.com/wp-json", true},
		{"query rejected", "https://school.example.com?x=1", true},
		{"bad scheme", "ftp://school.example.com", true},
		{"no host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPURL(tt.url, "TEST_URL")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"VPLAN_AUTH_TOKEN", "ingest.auth_token"},
		{"CUTOFF_HOUR", "schedule.cutoff_hour"},
		{"TIMEZONE", "schedule.timezone"},
		{"WORDPRESS_URL", "wordpress.url"},
		{"WORDPRESS_PAGE_ID", "wordpress.page_id"},
		{"BACKUP_DIR", "backup.dir"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	t.Setenv("VPLAN_AUTH_TOKEN", "0123456789abcdef0123456789abcdef")
	t.Setenv("WORDPRESS_ENABLED", "false")
	t.Setenv("CUTOFF_HOUR", "12")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Schedule.CutoffHour != 12 {
		t.Errorf("expected cutoff hour 12, got %d", cfg.Schedule.CutoffHour)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://a.example.com" {
		t.Errorf("expected two CORS origins, got %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
ingest:
  auth_token: 0123456789abcdef0123456789abcdef
wordpress:
  enabled: false
schedule:
  cutoff_hour: 10
  timezone: Europe/Berlin
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}
	if cfg.Schedule.CutoffHour != 10 {
		t.Errorf("expected cutoff hour 10 from file, got %d", cfg.Schedule.CutoffHour)
	}
}

func TestLocation(t *testing.T) {
	cfg := validTestConfig()
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Errorf("expected Europe/Berlin, got %s", loc)
	}
}
