// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package scheduler runs the agent's main loop: refresh the blueprint
// registry, authenticate, poll every blueprint, decide whether a backup is
// due, orchestrate it, commit state, sleep. Cancellation rides the context;
// the loop observes it at every sleep slice so a termination signal is
// honored within a second.
package scheduler

import (
	"context"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/apstra"
	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
	"github.com/vignitin/apstra-commit-backup/internal/metrics"
	"github.com/vignitin/apstra-commit-backup/internal/model"
	"github.com/vignitin/apstra-commit-backup/internal/registry"
	"github.com/vignitin/apstra-commit-backup/internal/state"
	"github.com/vignitin/apstra-commit-backup/internal/watcher"
)

// errorBackoff is the fixed delay after an aborted cycle.
const errorBackoff = 5 * time.Second

// sleepSlice is the granularity at which sleeps observe cancellation.
const sleepSlice = time.Second

// Controller is the slice of the Apstra client the scheduler and its
// collaborators consume.
type Controller interface {
	Login(ctx context.Context, username, password string) (string, error)
	Blueprints(ctx context.Context, token string) ([]apstra.BlueprintItem, error)
	Revisions(ctx context.Context, token, endpoint string) ([]model.Revision, error)
}

// BackupOrchestrator is the backup decision executor.
type BackupOrchestrator interface {
	ProcessFullSystem(ctx context.Context, changed []model.Blueprint) error
	ProcessBlueprint(ctx context.Context, bp model.Blueprint) error
}

// Scheduler owns the in-memory state and drives cycles until cancelled.
type Scheduler struct {
	cfg        *config.Config
	controller Controller
	registry   *registry.Registry
	store      *state.Store
	orch       BackupOrchestrator

	// ConfigPath, when set together with discovery.persist, is where the
	// effective config (with discovered blueprints) is written back.
	ConfigPath string

	state *model.GlobalState
}

// New assembles a scheduler. The persisted state is loaded immediately; a
// load failure logs and starts from empty state rather than refusing to
// run.
func New(cfg *config.Config, controller Controller, reg *registry.Registry, store *state.Store, orch BackupOrchestrator) *Scheduler {
	st, err := store.Load()
	if err != nil {
		logging.Errorf("loading state: %v (starting with empty state)", err)
	}
	return &Scheduler{
		cfg:        cfg,
		controller: controller,
		registry:   reg,
		store:      store,
		orch:       orch,
		state:      st,
	}
}

// State exposes the committed in-memory state. Tests only.
func (s *Scheduler) State() *model.GlobalState {
	return s.state
}

// Run loops until ctx is cancelled. Transient errors never terminate the
// loop; they log, back off briefly and retry from registry refresh.
func (s *Scheduler) Run(ctx context.Context) {
	logging.Infof("starting API polling and backup service")
	for {
		if ctx.Err() != nil {
			logging.Infof("service shutting down gracefully")
			return
		}

		if err := s.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			metrics.CycleErrorsTotal.Inc()
			logging.Errorf("error in poll cycle: %v", err)
			sleep(ctx, errorBackoff)
			continue
		}

		logging.Debugf("waiting %s before next poll", s.cfg.PollingInterval())
		sleep(ctx, s.cfg.PollingInterval())
	}
}

// Cycle runs one full pass of the state machine. An authentication or poll
// failure aborts the cycle and is returned; a backup failure is handled
// here (logged, state withheld for the affected blueprints) because the
// next cycle re-detects the same change.
func (s *Scheduler) Cycle(ctx context.Context) error {
	metrics.CyclesTotal.Inc()

	s.refreshRegistry(ctx)

	blueprints := s.registry.Blueprints()
	if len(blueprints) == 0 {
		logging.Warnf("no blueprints configured or discovered, nothing to poll")
		return nil
	}

	token, err := s.controller.Login(ctx, s.cfg.API.Username, s.cfg.API.Password)
	if err != nil {
		return err
	}

	result, err := watcher.PollAll(ctx, s.controller, token, blueprints, s.state)
	if err != nil {
		return err
	}

	changed := result.ChangedBlueprints(blueprints)
	metrics.ChangedBlueprintsTotal.Add(float64(len(changed)))

	if len(changed) == 0 {
		// Timestamp-only drift still gets committed.
		s.commit(result, nil)
		return nil
	}

	logging.Infof("changes detected in %d blueprint(s)", len(changed))
	switch s.cfg.Backup.Mode {
	case config.ModePerBlueprint:
		s.runPerBlueprint(ctx, result, changed)
	default:
		s.runFullSystem(ctx, result, changed)
	}
	return nil
}

// refreshRegistry re-discovers blueprints when due. Discovery uses its own
// short-lived token. Failure keeps the prior registry and is non-fatal.
func (s *Scheduler) refreshRegistry(ctx context.Context) {
	if !s.registry.ShouldRefresh(s.cfg.RefreshInterval(), time.Now()) {
		return
	}
	logging.Infof("starting blueprint discovery")

	token, err := s.controller.Login(ctx, s.cfg.API.Username, s.cfg.API.Password)
	if err != nil {
		logging.Errorf("authentication for blueprint discovery failed: %v", err)
		return
	}
	if err := s.registry.Refresh(ctx, s.controller, token, time.Now()); err != nil {
		logging.Errorf("blueprint discovery failed, keeping prior registry: %v", err)
		return
	}

	if s.cfg.Discovery.Persist && s.ConfigPath != "" {
		s.cfg.API.Blueprints = s.registry.Blueprints()
		s.cfg.API.LastBlueprintDiscovery = s.registry.LastRefresh().Format(time.RFC3339)
		if err := s.cfg.WriteEffective(s.ConfigPath); err != nil {
			logging.Errorf("persisting discovered blueprints: %v", err)
		}
	}
}

// runFullSystem takes one full-fabric backup covering every changed
// blueprint. All changed blueprints commit together on success; none on
// failure, so they are re-detected next cycle.
func (s *Scheduler) runFullSystem(ctx context.Context, result *watcher.CycleResult, changed []model.Blueprint) {
	err := s.orch.ProcessFullSystem(ctx, changed)
	metrics.RecordBackup(err)
	if err != nil {
		logging.Errorf("full system backup failed: %v", err)
		s.commit(result, excluding(changed))
		return
	}
	logging.Infof("full system backup completed successfully")
	s.commit(result, nil)
}

// runPerBlueprint backs up each changed blueprint independently and
// commits state per blueprint.
func (s *Scheduler) runPerBlueprint(ctx context.Context, result *watcher.CycleResult, changed []model.Blueprint) {
	failed := make(map[string]bool)
	for _, bp := range changed {
		err := s.orch.ProcessBlueprint(ctx, bp)
		metrics.RecordBackup(err)
		if err != nil {
			logging.Errorf("backup failed for %s: %v", bp, err)
			failed[bp.ID] = true
		}
	}
	s.commit(result, func(id string) bool { return failed[id] })
}

// commit folds the cycle's tentative state into the committed state and
// persists it. Entries for which withhold reports true keep their prior
// revision ID and poll time, so the change is re-detected next cycle. A
// save failure is logged; the next successful cycle retries it.
func (s *Scheduler) commit(result *watcher.CycleResult, withhold func(id string) bool) {
	for id, entry := range result.State.Blueprints {
		if withhold != nil && withhold(id) {
			continue
		}
		s.state.Blueprints[id] = entry
	}
	s.state.LastPollTime = result.State.LastPollTime

	if err := s.store.Save(s.state); err != nil {
		logging.Errorf("saving state: %v", err)
	}
}

// excluding returns a withhold predicate covering the given blueprints.
func excluding(blueprints []model.Blueprint) func(id string) bool {
	ids := make(map[string]bool, len(blueprints))
	for _, bp := range blueprints {
		ids[bp.ID] = true
	}
	return func(id string) bool { return ids[id] }
}

// sleep waits for d in one-second slices, returning early on cancellation.
func sleep(ctx context.Context, d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		remaining := time.Until(deadline)
		if remaining > sleepSlice {
			remaining = sleepSlice
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(remaining):
		}
	}
}
