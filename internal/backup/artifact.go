// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/logging"
)

// DefaultSnapshotRoot is where the AOS backup program deposits snapshots.
const DefaultSnapshotRoot = "/var/lib/aos/snapshot"

// payloadName is the known payload filename inside a snapshot directory.
const payloadName = "aos.data.tar.gz"

// recentWindow bounds the last-resort directory scan: only snapshot
// directories created within this window of the scan count as "just
// produced by the run we triggered".
const recentWindow = 60 * time.Second

// snapshotMarker is the stdout line prefix the backup program prints for a
// freshly created snapshot.
const snapshotMarker = "New AOS snapshot:"

// datePatterns are the timestamp shapes a snapshot directory name can take,
// tried in order. The last match of the first matching pattern wins.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{8}-\d{6}`),
	regexp.MustCompile(`snapshot-\d{8}-\d{6}`),
	regexp.MustCompile(`aos-snapshot-\d{8}-\d{6}`),
}

// pathPattern matches absolute-path-shaped substrings in free text.
var pathPattern = regexp.MustCompile(`/[/\w\.-]+`)

// Resolver locates backup artifacts from the backup program's free-text
// output. The sniffing is inherently best-effort, so it lives behind this
// narrow type with an explicit strategy order; orchestration never looks at
// script output itself.
type Resolver struct {
	SnapshotRoot string
}

// NewResolver returns a resolver rooted at root, or at the standard AOS
// snapshot location when root is empty.
func NewResolver(root string) Resolver {
	if root == "" {
		root = DefaultSnapshotRoot
	}
	return Resolver{SnapshotRoot: root}
}

// Locate finds the artifact referenced by the backup program's output. The
// strategies run in priority order: the explicit snapshot marker line, a
// timestamp-shaped token resolved under the snapshot root, any existing
// absolute path in the output (most recently modified wins), and finally a
// scan of the snapshot root for directories created in the last minute.
// Returns ("", false) when nothing usable is found; the caller must treat
// that as a failure distinct from a script failure.
func (r Resolver) Locate(output string) (string, bool) {
	if p, ok := r.fromMarkerLine(output); ok {
		return p, true
	}
	if p, ok := r.fromDateToken(output); ok {
		return p, true
	}
	if p, ok := r.fromAnyPath(output); ok {
		return p, true
	}
	if p, ok := r.fromRecentDir(); ok {
		return p, true
	}
	logging.Warnf("could not determine backup artifact from script output")
	return "", false
}

// fromMarkerLine handles the "New AOS snapshot: <token>" line. An absolute
// token must exist as-is; a bare name is resolved under the snapshot root.
func (r Resolver) fromMarkerLine(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, snapshotMarker) {
			continue
		}
		token := strings.TrimSpace(strings.TrimPrefix(line, snapshotMarker))
		if token == "" {
			continue
		}
		if filepath.IsAbs(token) {
			if exists(token) {
				logging.Infof("found backup artifact (absolute path): %s", token)
				return token, true
			}
			continue
		}
		full := filepath.Join(r.SnapshotRoot, token)
		if exists(full) {
			logging.Infof("found backup artifact: %s", full)
			return full, true
		}
	}
	return "", false
}

// fromDateToken resolves a timestamp-shaped token under the snapshot root.
func (r Resolver) fromDateToken(output string) (string, bool) {
	for _, pattern := range datePatterns {
		matches := pattern.FindAllString(output, -1)
		if len(matches) == 0 {
			continue
		}
		candidate := filepath.Join(r.SnapshotRoot, matches[len(matches)-1])
		if exists(candidate) {
			logging.Infof("found backup artifact via timestamp match: %s", candidate)
			return candidate, true
		}
	}
	return "", false
}

// fromAnyPath collects every existing absolute path mentioned in the output
// and picks the most recently modified.
func (r Resolver) fromAnyPath(output string) (string, bool) {
	var best string
	var bestMod time.Time
	for _, candidate := range pathPattern.FindAllString(output, -1) {
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = candidate
			bestMod = info.ModTime()
		}
	}
	if best == "" {
		return "", false
	}
	logging.Infof("found backup artifact via path extraction: %s", best)
	return best, true
}

// fromRecentDir scans the snapshot root for subdirectories created within
// the last minute and picks the newest.
func (r Resolver) fromRecentDir() (string, bool) {
	entries, err := os.ReadDir(r.SnapshotRoot)
	if err != nil {
		return "", false
	}

	now := time.Now()
	var best string
	var bestMod time.Time
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) >= recentWindow {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(r.SnapshotRoot, entry.Name())
			bestMod = info.ModTime()
		}
	}
	if best == "" {
		return "", false
	}
	logging.Infof("found recent backup directory: %s", best)
	return best, true
}

// Payload returns the file to ship for a resolved artifact. A plain file is
// shipped as-is. Inside a directory the priority is the known payload name,
// then the first *.tar.gz, then the first regular file. Returns ("", false)
// when the artifact holds nothing shippable.
func (r Resolver) Payload(artifact string) (string, bool) {
	info, err := os.Stat(artifact)
	if err != nil {
		return "", false
	}
	if !info.IsDir() {
		return artifact, true
	}

	known := filepath.Join(artifact, payloadName)
	if exists(known) {
		return known, true
	}

	entries, err := os.ReadDir(artifact)
	if err != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasSuffix(name, ".tar.gz") {
			return filepath.Join(artifact, name), true
		}
	}
	if len(names) > 0 {
		return filepath.Join(artifact, names[0]), true
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
