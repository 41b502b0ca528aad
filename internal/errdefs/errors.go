// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package errdefs holds the agent's error taxonomy. Every failure the poll
// loop can encounter maps to one of these sentinels so the scheduler can log
// the phase and decide whether the cycle aborts, retries, or the process
// refuses to start.
package errdefs

import "errors"

// ErrConfig marks missing credentials or required settings. It is the only
// error class that is fatal at startup; the loop never begins.
var ErrConfig = errors.New("configuration error")

// ErrAuth marks a failed login to the controller. Non-fatal; the next cycle
// re-authenticates.
var ErrAuth = errors.New("authentication failed")

// ErrDiscovery marks a failed blueprint discovery. Non-fatal; the prior
// registry stays in effect.
var ErrDiscovery = errors.New("blueprint discovery failed")

// ErrPoll marks a failed revision poll. Non-fatal; aborts only the current
// cycle.
var ErrPoll = errors.New("revision poll failed")

// ErrBackupScript marks a backup program failure: missing script, non-zero
// exit, or timeout. State is not committed for the affected blueprints.
var ErrBackupScript = errors.New("backup script failed")

// ErrArtifactNotFound marks the case where the backup program exited zero
// but no usable artifact could be resolved from its output. Deliberately a
// distinct class from ErrBackupScript.
var ErrArtifactNotFound = errors.New("backup artifact not found")

// Transfer failures. The caller must be able to tell "we never tried"
// (ErrTransferConfig), "we tried and auth failed" (ErrTransferAuth),
// "the network failed" (ErrTransferConnect), and "the resolved file was
// gone" (ErrTransferMissing) apart.
var (
	ErrTransferConfig  = errors.New("transfer not configured")
	ErrTransferAuth    = errors.New("transfer authentication failed")
	ErrTransferConnect = errors.New("transfer connection failed")
	ErrTransferMissing = errors.New("transfer source file missing")
)

// ErrStateIO marks a state file load or save failure. Load failures fall
// back to an empty initial state; save failures are retried on the next
// successful cycle.
var ErrStateIO = errors.New("state file I/O failed")
