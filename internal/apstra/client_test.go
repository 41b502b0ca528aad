// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package apstra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
)

// newTestClient starts a TLS test server with the given handler and returns
// a client pointed at it. The self-signed test certificate passes because
// verification is off by default, same as against a real controller.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)
	return NewClient(strings.TrimPrefix(server.URL, "https://"), 5*time.Second, false)
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/aaa/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decode credentials: %v", err)
		}
		if creds["username"] != "admin" || creds["password"] != "secret" {
			t.Errorf("unexpected credentials %v", creds)
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	})

	token, err := client.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("expected token tok-123, got %q", token)
	}
}

func TestLoginRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := client.Login(context.Background(), "admin", "wrong")
	if !errors.Is(err, errdefs.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestLoginEmptyToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": ""})
	})
	_, err := client.Login(context.Background(), "admin", "secret")
	if !errors.Is(err, errdefs.ErrAuth) {
		t.Fatalf("expected ErrAuth for empty token, got %v", err)
	}
}

func TestBlueprints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/blueprints" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("AuthToken"); got != "tok" {
			t.Errorf("expected AuthToken header, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"id": "bp1", "label": "Production"},
				{"id": "bp2", "label": "Staging"},
			},
		})
	})

	items, err := client.Blueprints(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Blueprints returned error: %v", err)
	}
	if len(items) != 2 || items[0].ID != "bp1" || items[0].Label != "Production" {
		t.Errorf("unexpected items %v", items)
	}
}

func TestBlueprintsFailureIsDiscoveryError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.Blueprints(context.Background(), "tok")
	if !errors.Is(err, errdefs.ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
}

func TestRevisions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/blueprints/bp1/revisions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"revision_id": "4", "description": "change"},
				{"revision_id": "5"},
			},
		})
	})

	// Endpoint without a leading slash still resolves.
	revisions, err := client.Revisions(context.Background(), "tok", "api/blueprints/bp1/revisions")
	if err != nil {
		t.Fatalf("Revisions returned error: %v", err)
	}
	if len(revisions) != 2 || revisions[1].RevisionID != "5" {
		t.Errorf("unexpected revisions %v", revisions)
	}
}

func TestRevisionsFailureIsPollError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := client.Revisions(context.Background(), "tok", "/api/blueprints/gone/revisions")
	if !errors.Is(err, errdefs.ErrPoll) {
		t.Fatalf("expected ErrPoll, got %v", err)
	}
}
