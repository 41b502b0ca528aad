// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/apstra"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

type fakeLister struct {
	items []apstra.BlueprintItem
	err   error
}

func (f *fakeLister) Blueprints(context.Context, string) ([]apstra.BlueprintItem, error) {
	return f.items, f.err
}

func TestShouldRefresh(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	r := New(nil, "")
	if !r.ShouldRefresh(5*time.Minute, now) {
		t.Error("a registry that never refreshed should refresh")
	}

	r = New(nil, now.Add(-1*time.Minute).Format(time.RFC3339))
	if r.ShouldRefresh(5*time.Minute, now) {
		t.Error("a recent refresh should not trigger another")
	}

	r = New(nil, now.Add(-10*time.Minute).Format(time.RFC3339))
	if !r.ShouldRefresh(5*time.Minute, now) {
		t.Error("a stale refresh should trigger another")
	}

	r = New(nil, "not-a-timestamp")
	if !r.ShouldRefresh(5*time.Minute, now) {
		t.Error("an unparsable timestamp should force a refresh")
	}
}

func TestForceNext(t *testing.T) {
	now := time.Now()
	r := New(nil, now.Format(time.RFC3339))
	if r.ShouldRefresh(time.Hour, now) {
		t.Fatal("fresh registry unexpectedly due for refresh")
	}
	r.ForceNext()
	if !r.ShouldRefresh(time.Hour, now) {
		t.Error("ForceNext should make the next check refresh")
	}
}

func TestDiscoverMapsItems(t *testing.T) {
	lister := &fakeLister{items: []apstra.BlueprintItem{
		{ID: "bp1", Label: "Production"},
		{ID: "bp2"},
		{Label: "no id, skipped"},
	}}

	blueprints, err := Discover(context.Background(), lister, "tok")
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if len(blueprints) != 2 {
		t.Fatalf("expected 2 blueprints, got %d", len(blueprints))
	}
	if blueprints[0].Name != "Production" {
		t.Errorf("expected label as name, got %q", blueprints[0].Name)
	}
	if blueprints[1].Name != "bp2" {
		t.Errorf("expected name to fall back to id, got %q", blueprints[1].Name)
	}
	if blueprints[0].Endpoint != "/api/blueprints/bp1/revisions" {
		t.Errorf("unexpected endpoint %q", blueprints[0].Endpoint)
	}
}

func TestRefreshReplacesList(t *testing.T) {
	now := time.Now()
	r := New([]model.Blueprint{{ID: "old", Name: "old"}}, "")
	lister := &fakeLister{items: []apstra.BlueprintItem{{ID: "new", Label: "New"}}}

	if err := r.Refresh(context.Background(), lister, "tok", now); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	blueprints := r.Blueprints()
	if len(blueprints) != 1 || blueprints[0].ID != "new" {
		t.Errorf("expected list to be replaced, got %v", blueprints)
	}
	if !r.LastRefresh().Equal(now) {
		t.Errorf("expected refresh timestamp %v, got %v", now, r.LastRefresh())
	}
}

func TestRefreshKeepsListOnEmptyDiscovery(t *testing.T) {
	now := time.Now()
	r := New([]model.Blueprint{{ID: "bp1", Name: "one"}}, "")
	lister := &fakeLister{}

	if err := r.Refresh(context.Background(), lister, "tok", now); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if len(r.Blueprints()) != 1 {
		t.Error("an empty discovery must keep the configured list")
	}
	if r.ShouldRefresh(time.Hour, now) {
		t.Error("an empty discovery still counts as a refresh")
	}
}

func TestRefreshKeepsListOnError(t *testing.T) {
	r := New([]model.Blueprint{{ID: "bp1", Name: "one"}}, "")
	lister := &fakeLister{err: errors.New("controller down")}

	if err := r.Refresh(context.Background(), lister, "tok", time.Now()); err == nil {
		t.Fatal("expected the lister error to surface")
	}
	if len(r.Blueprints()) != 1 {
		t.Error("a failed discovery must keep the prior list")
	}
}
