// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup invokes the external backup-capture program, resolves the
// artifact it produced and orchestrates backup-plus-transfer per cycle.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

// scriptTimeout bounds one backup program invocation. A run that exceeds it
// is killed and treated as failed, never left running.
const scriptTimeout = 10 * time.Minute

// systemBinDirs lists the path prefixes under which the backup program is
// invoked with elevated privilege. This is a path-prefix policy, not a
// configuration knob.
var systemBinDirs = []string{"/usr/sbin/", "/sbin/", "/usr/local/sbin/"}

// Run executes the backup program with the given parameters and returns its
// captured stdout and stderr. A missing script, non-zero exit, or timeout
// all map to ErrBackupScript.
func Run(ctx context.Context, scriptPath string, parameters []string) (string, string, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return "", "", fmt.Errorf("%w: script not found at %s", errdefs.ErrBackupScript, scriptPath)
	}

	name := scriptPath
	args := parameters
	if needsElevation(scriptPath) {
		name = "sudo"
		args = append([]string{"-n", scriptPath}, parameters...)
	}

	runCtx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Infof("executing backup script: %s %s", scriptPath, strings.Join(parameters, " "))
	err := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return stdout.String(), stderr.String(),
			fmt.Errorf("%w: timed out after %s", errdefs.ErrBackupScript, scriptTimeout)
	}
	if err != nil {
		return stdout.String(), stderr.String(),
			fmt.Errorf("%w: %v: %s", errdefs.ErrBackupScript, err, strings.TrimSpace(stderr.String()))
	}

	logging.Debugf("backup script output: %s", strings.TrimSpace(stdout.String()))
	if stderr.Len() > 0 {
		logging.Warnf("backup script error output: %s", strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), nil
}

// needsElevation reports whether the script lives under a system binary
// directory.
func needsElevation(scriptPath string) bool {
	for _, dir := range systemBinDirs {
		if strings.HasPrefix(scriptPath, dir) {
			return true
		}
	}
	return false
}
