// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package registry tracks the controller's current set of blueprints and
// decides when that set needs re-discovering.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/apstra"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

// BlueprintLister is the slice of the controller client the registry needs.
type BlueprintLister interface {
	Blueprints(ctx context.Context, token string) ([]apstra.BlueprintItem, error)
}

// Registry holds the active blueprint list. A successful refresh replaces
// the list wholesale: blueprints the controller stopped reporting are no
// longer polled, though their persisted state is retained elsewhere.
type Registry struct {
	blueprints  []model.Blueprint
	lastRefresh time.Time
}

// New seeds a registry from configuration. lastDiscovery is the persisted
// discovery timestamp, if any; an unparsable value is treated as "never
// discovered" so the next cycle refreshes. Staleness is worse than an extra
// API call.
func New(initial []model.Blueprint, lastDiscovery string) *Registry {
	r := &Registry{blueprints: initial}
	if lastDiscovery != "" {
		if t, err := time.Parse(time.RFC3339, lastDiscovery); err == nil {
			r.lastRefresh = t
		} else {
			logging.Warnf("unparsable last discovery timestamp %q, forcing refresh", lastDiscovery)
		}
	}
	return r
}

// Blueprints returns the active blueprint list.
func (r *Registry) Blueprints() []model.Blueprint {
	return r.blueprints
}

// LastRefresh returns the time of the last successful discovery, zero if
// none happened yet.
func (r *Registry) LastRefresh() time.Time {
	return r.lastRefresh
}

// ForceNext discards the discovery timestamp so the next ShouldRefresh
// reports true. Used at startup.
func (r *Registry) ForceNext() {
	r.lastRefresh = time.Time{}
}

// ShouldRefresh reports whether a discovery is due at now, given the
// configured interval.
func (r *Registry) ShouldRefresh(interval time.Duration, now time.Time) bool {
	if r.lastRefresh.IsZero() {
		return true
	}
	return now.Sub(r.lastRefresh) >= interval
}

// Refresh discovers the controller's blueprints and replaces the active
// list. An empty discovery result keeps the prior list; so does any error.
// The caller treats failure as non-fatal.
func (r *Registry) Refresh(ctx context.Context, lister BlueprintLister, token string, now time.Time) error {
	discovered, err := Discover(ctx, lister, token)
	if err != nil {
		return err
	}
	if len(discovered) == 0 {
		logging.Warnf("no blueprints discovered, keeping current list of %d", len(r.blueprints))
		r.lastRefresh = now
		return nil
	}

	logChanges(r.blueprints, discovered)
	r.blueprints = discovered
	r.lastRefresh = now
	logging.Infof("blueprint discovery completed, %d blueprints active", len(discovered))
	return nil
}

// Discover fetches the blueprint collection and maps each entry to the
// canonical Blueprint shape. Entries without an ID are skipped rather than
// failing the whole discovery; the revisions endpoint is derived from the
// ID deterministically.
func Discover(ctx context.Context, lister BlueprintLister, token string) ([]model.Blueprint, error) {
	items, err := lister.Blueprints(ctx, token)
	if err != nil {
		return nil, err
	}

	blueprints := make([]model.Blueprint, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			logging.Warnf("blueprint entry missing id, skipping")
			continue
		}
		name := item.Label
		if name == "" {
			name = item.ID
		}
		blueprints = append(blueprints, model.Blueprint{
			ID:       item.ID,
			Name:     name,
			Endpoint: fmt.Sprintf("/api/blueprints/%s/revisions", item.ID),
		})
	}
	return blueprints, nil
}

// logChanges reports blueprints appearing in or dropping out of the active
// list across a refresh.
func logChanges(current, discovered []model.Blueprint) {
	currentIDs := make(map[string]bool, len(current))
	for _, bp := range current {
		currentIDs[bp.ID] = true
	}
	discoveredIDs := make(map[string]bool, len(discovered))
	for _, bp := range discovered {
		discoveredIDs[bp.ID] = true
		if !currentIDs[bp.ID] {
			logging.Infof("new blueprint discovered: %s", bp)
		}
	}
	for _, bp := range current {
		if !discoveredIDs[bp.ID] {
			logging.Infof("blueprint no longer reported by controller: %s", bp)
		}
	}
}
