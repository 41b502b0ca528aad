// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vignitin/apstra-commit-backup/internal/config"
	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

// blueprintFlag scopes a backup program invocation to one blueprint.
const blueprintFlag = "--blueprint"

// Shipper moves a resolved payload to off-box retention storage. The tag
// ends up in the remote filename; an empty tag is omitted there.
type Shipper interface {
	Transfer(ctx context.Context, localPath, tag string) error
}

// ScriptRunner matches Run and exists so tests can substitute the backup
// program invocation.
type ScriptRunner func(ctx context.Context, scriptPath string, parameters []string) (string, string, error)

// Orchestrator drives one backup decision: invoke the backup program,
// resolve the artifact, ship the payload. It holds no per-cycle state.
type Orchestrator struct {
	cfg      config.BackupConfig
	resolver Resolver
	run      ScriptRunner
	shipper  Shipper
}

// NewOrchestrator wires an orchestrator for the configured backup program
// and shipper.
func NewOrchestrator(cfg config.BackupConfig, shipper Shipper) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		resolver: NewResolver(cfg.SnapshotRoot),
		run:      Run,
		shipper:  shipper,
	}
}

// SetRunner substitutes the backup program invocation. Tests only.
func (o *Orchestrator) SetRunner(run ScriptRunner) {
	o.run = run
}

// ProcessFullSystem takes one full-fabric backup covering every changed
// blueprint in the cycle: a single invocation with any blueprint scoping
// stripped, one artifact, one transfer tagged with the change count. On
// success all changed blueprints count as backed up together; on any
// failure none do.
func (o *Orchestrator) ProcessFullSystem(ctx context.Context, changed []model.Blueprint) error {
	logging.Infof("starting full system backup for %d changed blueprint(s)", len(changed))
	for _, bp := range changed {
		logging.Infof("  - %s", bp)
	}

	params := stripBlueprintFlag(o.cfg.Parameters)
	tag := strconv.Itoa(len(changed)) + "_blueprints_changed"
	return o.execute(ctx, params, tag)
}

// ProcessBlueprint takes a backup scoped to a single changed blueprint. The
// --blueprint argument is appended unless the configured parameters already
// carry one. The synthetic default blueprint ships untagged so its remote
// filenames stay free of a meaningless suffix.
func (o *Orchestrator) ProcessBlueprint(ctx context.Context, bp model.Blueprint) error {
	logging.Infof("processing changes for blueprint: %s", bp)

	params := append([]string(nil), o.cfg.Parameters...)
	if !containsBlueprintFlag(params) {
		params = append(params, blueprintFlag, bp.ID)
	}
	return o.execute(ctx, params, TagFor(bp))
}

// ProcessManual takes an operator-triggered full-fabric backup outside the
// change-detection loop. Polling state is unaffected.
func (o *Orchestrator) ProcessManual(ctx context.Context) error {
	logging.Infof("starting manual full system backup")
	return o.execute(ctx, stripBlueprintFlag(o.cfg.Parameters), "manual")
}

// execute runs the backup program, resolves the artifact and payload, and
// ships it. Each failure mode surfaces under its own error class.
func (o *Orchestrator) execute(ctx context.Context, params []string, tag string) error {
	stdout, _, err := o.run(ctx, o.cfg.ScriptPath, params)
	if err != nil {
		return err
	}

	artifact, ok := o.resolver.Locate(stdout)
	if !ok {
		return fmt.Errorf("%w: script succeeded but produced no locatable artifact", errdefs.ErrArtifactNotFound)
	}
	payload, ok := o.resolver.Payload(artifact)
	if !ok {
		return fmt.Errorf("%w: no usable payload in artifact %s", errdefs.ErrArtifactNotFound, artifact)
	}

	logging.Infof("transferring backup payload: %s", payload)
	if err := o.shipper.Transfer(ctx, payload, tag); err != nil {
		return err
	}
	logging.Infof("backup process completed successfully")
	return nil
}

// TagFor returns the remote-filename tag for a blueprint. The synthetic
// default blueprint gets no tag.
func TagFor(bp model.Blueprint) string {
	if bp.ID == "default" || bp.Name == "Default Blueprint" {
		return ""
	}
	return bp.ID
}

// containsBlueprintFlag reports whether the parameter list already scopes
// the invocation to a blueprint.
func containsBlueprintFlag(params []string) bool {
	for _, p := range params {
		if p == blueprintFlag {
			return true
		}
	}
	return false
}

// stripBlueprintFlag removes any --blueprint argument and its value, so a
// full-system run is never accidentally scoped.
func stripBlueprintFlag(params []string) []string {
	out := make([]string, 0, len(params))
	for i := 0; i < len(params); i++ {
		if params[i] == blueprintFlag {
			if i+1 < len(params) {
				i++
			}
			continue
		}
		out = append(out, params[i])
	}
	return out
}
