// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package publish

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/planpress/planpress/internal/config"
	"github.com/planpress/planpress/internal/models"
)

func testPlan(t *testing.T) *models.Plan {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return &models.Plan{
		EffectiveDate: time.Date(2026, 3, 12, 0, 0, 0, 0, loc),
		Columns:       []string{"stunde", "klasse", "info"},
		Table: []models.Row{
			{"stunde": "1", "klasse": "7a", "info": "EVA"},
		},
	}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *WordPressClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewWordPressClient(config.WordPressConfig{
		Enabled:     true,
		URL:         srv.URL,
		Username:    "planbot",
		AppPassword: "secret",
		PageID:      42,
		Timeout:     5 * time.Second,
	})
	return srv, client
}

func TestWordPressClientGetPage(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/wp-json/wp/v2/pages/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "planbot" || pass != "secret" {
			t.Error("missing or wrong basic auth")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42, "content": {"rendered": "<p>old</p>"}, "modified": "2026-03-11T10:00:00"}`))
	})

	page, err := client.GetPage(context.Background())
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page.ID != 42 {
		t.Errorf("expected page 42, got %d", page.ID)
	}
	if page.Content.Rendered != "<p>old</p>" {
		t.Errorf("unexpected content: %q", page.Content.Rendered)
	}
}

func TestWordPressClientUpdatePageContent(t *testing.T) {
	var gotBody map[string]string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"id": 42}`))
	})

	if err := client.UpdatePageContent(context.Background(), "<h2>neu</h2>"); err != nil {
		t.Fatalf("UpdatePageContent failed: %v", err)
	}
	if gotBody["content"] != "<h2>neu</h2>" {
		t.Errorf("unexpected update payload: %v", gotBody)
	}
}

func TestWordPressClientErrorStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Sorry, you are not allowed to do that.", http.StatusForbidden)
	})

	err := client.UpdatePageContent(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error should carry status code, got: %v", err)
	}
}

func TestPublisherSuccess(t *testing.T) {
	var published string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		published = body["content"]
		w.Write([]byte(`{"id": 42}`))
	})

	pub := NewPublisher(client)
	if err := pub.Publish(context.Background(), testPlan(t), TriggerImmediate); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !strings.Contains(published, "Donnerstag, 12. März 2026") {
		t.Errorf("published content missing heading: %s", published)
	}
}

func TestPublisherRenderError(t *testing.T) {
	pub := NewPublisher(NoopEditor{})
	p := testPlan(t)
	p.Table = nil
	if err := pub.Publish(context.Background(), p, TriggerImmediate); err == nil {
		t.Fatal("expected render error for empty table")
	}
}

func TestPublisherSinkError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	pub := NewPublisher(client)
	if err := pub.Publish(context.Background(), testPlan(t), TriggerDeferred); err == nil {
		t.Fatal("expected error when sink is down")
	}
}

type failingEditor struct {
	calls int
}

func (f *failingEditor) GetPage(ctx context.Context) (*Page, error) {
	return nil, errors.New("down")
}

func (f *failingEditor) UpdatePageContent(ctx context.Context, html string) error {
	f.calls++
	return errors.New("down")
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingEditor{}
	editor := NewCircuitBreakerEditor(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := editor.UpdatePageContent(ctx, "x"); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Circuit is open now, the inner editor must not be called again.
	before := inner.calls
	err := editor.UpdatePageContent(ctx, "x")
	if err == nil {
		t.Fatal("expected open-circuit error")
	}
	if inner.calls != before {
		t.Errorf("inner editor called while circuit open")
	}
}

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	editor := NewCircuitBreakerEditor(NoopEditor{})
	if err := editor.UpdatePageContent(context.Background(), "x"); err != nil {
		t.Fatalf("UpdatePageContent failed: %v", err)
	}
	page, err := editor.GetPage(context.Background())
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page == nil {
		t.Fatal("expected page")
	}
}
