// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package publish pushes rendered plans to the WordPress page that
// displays them.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/planpress/planpress/internal/config"
)

// Page is the subset of the WordPress page resource the service reads.
type Page struct {
	ID      int `json:"id"`
	Content struct {
		Raw      string `json:"raw,omitempty"`
		Rendered string `json:"rendered"`
	} `json:"content"`
	Modified string `json:"modified"`
}

// PageEditor is the publish sink. UpdatePageContent replaces the whole
// page body with the given HTML fragment.
type PageEditor interface {
	GetPage(ctx context.Context) (*Page, error)
	UpdatePageContent(ctx context.Context, html string) error
}

// WordPressClient talks to the WordPress REST API using an application
// password.
type WordPressClient struct {
	baseURL  string
	username string
	password string
	pageID   int
	client   *http.Client
}

// NewWordPressClient builds a client from configuration.
func NewWordPressClient(cfg config.WordPressConfig) *WordPressClient {
	return &WordPressClient{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.AppPassword,
		pageID:   cfg.PageID,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *WordPressClient) pageURL() string {
	return fmt.Sprintf("%s/wp-json/wp/v2/pages/%d", c.baseURL, c.pageID)
}

// GetPage fetches the plan page.
func (c *WordPressClient) GetPage(ctx context.Context) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL()+"?context=edit", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("fetch page", resp)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}

// UpdatePageContent replaces the page body.
func (c *WordPressClient) UpdatePageContent(ctx context.Context, html string) error {
	body, err := json.Marshal(map[string]string{"content": html})
	if err != nil {
		return fmt.Errorf("failed to encode page update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pageURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("update page", resp)
	}
	return nil
}

// apiError extracts a short error snippet from a non-200 response. The
// body is truncated so a WordPress HTML error page cannot flood the logs.
func apiError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("%s: wordpress returned %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

// NoopEditor discards updates. Used when publishing is disabled so the
// rest of the pipeline behaves exactly as in production.
type NoopEditor struct{}

func (NoopEditor) GetPage(ctx context.Context) (*Page, error) {
	return &Page{}, nil
}

func (NoopEditor) UpdatePageContent(ctx context.Context, html string) error {
	return nil
}

var _ PageEditor = (*WordPressClient)(nil)
var _ PageEditor = NoopEditor{}
