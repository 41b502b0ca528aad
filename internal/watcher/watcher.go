// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package watcher detects new configuration revisions per blueprint and
// aggregates the per-cycle results into one change decision.
package watcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

// RevisionFetcher is the slice of the controller client the watcher needs.
type RevisionFetcher interface {
	Revisions(ctx context.Context, token, endpoint string) ([]model.Revision, error)
}

// CycleResult is the outcome of polling every active blueprint once.
// Changed maps blueprint ID to whether a new revision was seen. State is
// the tentative working copy with new revision IDs and poll times filled
// in; it is not committed until the cycle's backup decision succeeds.
type CycleResult struct {
	Changed map[string]bool
	State   *model.GlobalState
}

// ChangedBlueprints returns the blueprints flagged as changed, in the order
// they were polled. Aggregation is a set union, so ordering never affects
// the backup decision.
func (r *CycleResult) ChangedBlueprints(blueprints []model.Blueprint) []model.Blueprint {
	var out []model.Blueprint
	for _, bp := range blueprints {
		if r.Changed[bp.ID] {
			out = append(out, bp)
		}
	}
	return out
}

// SelectLatest returns the revision with the numerically greatest
// revision_id. IDs compare as integers, never as strings, so "10" beats
// "9". Ties keep the first occurrence. Returns nil for an empty list.
func SelectLatest(revisions []model.Revision) *model.Revision {
	var latest *model.Revision
	best := 0
	for i := range revisions {
		n, err := strconv.Atoi(revisions[i].RevisionID)
		if err != nil {
			logging.Debugf("ignoring non-numeric revision_id %q", revisions[i].RevisionID)
			continue
		}
		if latest == nil || n > best {
			latest = &revisions[i]
			best = n
		}
	}
	return latest
}

// Check fetches the revision collection and decides whether the latest
// revision is new relative to lastRevisionID. An empty collection is not an
// error by itself but is logged, since it usually means endpoint trouble;
// the result is (false, nil). A nil lastRevisionID means this blueprint has
// never been observed, which always counts as new so a backup is taken at
// least once per discovered blueprint.
func Check(ctx context.Context, fetcher RevisionFetcher, token, endpoint string, lastRevisionID *string) (bool, *model.Revision, error) {
	revisions, err := fetcher.Revisions(ctx, token, endpoint)
	if err != nil {
		return false, nil, err
	}
	if len(revisions) == 0 {
		logging.Warnf("no revisions retrieved from %s, cannot check for changes", endpoint)
		return false, nil, nil
	}

	latest := SelectLatest(revisions)
	if latest == nil {
		logging.Warnf("failed to determine latest revision for %s", endpoint)
		return false, nil, nil
	}

	if lastRevisionID == nil {
		logging.Infof("first observation, latest revision is %s", latest.RevisionID)
		return true, latest, nil
	}

	latestN, err := strconv.Atoi(latest.RevisionID)
	if err != nil {
		return false, nil, fmt.Errorf("%w: non-numeric revision_id %q", errdefs.ErrPoll, latest.RevisionID)
	}
	lastN, err := strconv.Atoi(*lastRevisionID)
	if err != nil {
		return false, nil, fmt.Errorf("%w: non-numeric persisted revision_id %q", errdefs.ErrPoll, *lastRevisionID)
	}

	if latestN > lastN {
		logging.Infof("new revision detected: %s (previous: %s)", latest.RevisionID, *lastRevisionID)
		return true, latest, nil
	}
	logging.Debugf("no new revision (latest: %s, previous: %s)", latest.RevisionID, *lastRevisionID)
	return false, latest, nil
}

// PollAll runs Check for every blueprint under one shared token and builds
// the cycle's tentative state. A fetch error aborts the whole cycle; the
// committed state is left untouched. The watcher never regresses a
// persisted revision ID even if the controller reports a lower one.
func PollAll(ctx context.Context, fetcher RevisionFetcher, token string, blueprints []model.Blueprint, state *model.GlobalState) (*CycleResult, error) {
	result := &CycleResult{
		Changed: make(map[string]bool, len(blueprints)),
		State:   state.Clone(),
	}
	now := time.Now().Format(time.RFC3339)
	result.State.LastPollTime = now

	for _, bp := range blueprints {
		if bp.ID == "" {
			logging.Warnf("blueprint configuration missing id, skipping")
			continue
		}
		logging.Infof("polling blueprint: %s", bp)

		prior := result.State.Get(bp)
		hasNew, latest, err := Check(ctx, fetcher, token, bp.Endpoint, prior.LastRevisionID)
		if err != nil {
			return nil, err
		}

		entry := &model.BlueprintState{
			BlueprintID:    bp.ID,
			BlueprintName:  bp.Name,
			LastRevisionID: prior.LastRevisionID,
			LastPollTime:   &now,
		}
		if latest != nil && !regresses(prior.LastRevisionID, latest.RevisionID) {
			id := latest.RevisionID
			entry.LastRevisionID = &id
		}
		result.State.Blueprints[bp.ID] = entry
		result.Changed[bp.ID] = hasNew
	}
	return result, nil
}

// regresses reports whether moving from the persisted id to the observed id
// would decrease it.
func regresses(prior *string, observed string) bool {
	if prior == nil {
		return false
	}
	priorN, err1 := strconv.Atoi(*prior)
	observedN, err2 := strconv.Atoi(observed)
	if err1 != nil || err2 != nil {
		return false
	}
	return observedN < priorN
}
