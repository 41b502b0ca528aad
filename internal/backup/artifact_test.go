// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdir(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocateFromMarkerLine(t *testing.T) {
	root := t.TempDir()
	snapshot := mkdir(t, filepath.Join(root, "2026-08-28_10-00-00"))

	r := NewResolver(root)
	got, ok := r.Locate("some preamble\nNew AOS snapshot: 2026-08-28_10-00-00\ntrailing")
	if !ok {
		t.Fatal("expected the marker line to resolve")
	}
	if got != snapshot {
		t.Errorf("expected %s, got %s", snapshot, got)
	}
}

func TestLocateMarkerLineAbsolutePath(t *testing.T) {
	root := t.TempDir()
	elsewhere := mkdir(t, filepath.Join(t.TempDir(), "snap"))

	r := NewResolver(root)
	got, ok := r.Locate("New AOS snapshot: " + elsewhere)
	if !ok || got != elsewhere {
		t.Fatalf("expected absolute marker path %s, got %q ok=%v", elsewhere, got, ok)
	}
}

func TestLocateMarkerFallsThroughToDateToken(t *testing.T) {
	root := t.TempDir()
	snapshot := mkdir(t, filepath.Join(root, "20260828-100000"))

	// The marker names a snapshot that does not exist; the timestamp token
	// elsewhere in the output still resolves.
	r := NewResolver(root)
	output := "New AOS snapshot: gone-missing\ncreated 20260828-100000 ok"
	got, ok := r.Locate(output)
	if !ok {
		t.Fatal("expected the timestamp token to resolve")
	}
	if got != snapshot {
		t.Errorf("expected %s, got %s", snapshot, got)
	}
}

func TestLocateDateTokenLastMatchWins(t *testing.T) {
	root := t.TempDir()
	mkdir(t, filepath.Join(root, "2026-08-28_09-00-00"))
	last := mkdir(t, filepath.Join(root, "2026-08-28_10-00-00"))

	r := NewResolver(root)
	got, ok := r.Locate("old 2026-08-28_09-00-00 then 2026-08-28_10-00-00")
	if !ok || got != last {
		t.Fatalf("expected last match %s, got %q ok=%v", last, got, ok)
	}
}

func TestLocateFromAnyExistingPath(t *testing.T) {
	root := t.TempDir()
	artifact := touch(t, filepath.Join(t.TempDir(), "backup.tar.gz"))

	r := NewResolver(root)
	got, ok := r.Locate("wrote archive to " + artifact + " in 3s")
	if !ok || got != artifact {
		t.Fatalf("expected %s, got %q ok=%v", artifact, got, ok)
	}
}

func TestLocateFromRecentDirectory(t *testing.T) {
	root := t.TempDir()
	recent := mkdir(t, filepath.Join(root, "fresh-snapshot"))

	r := NewResolver(root)
	got, ok := r.Locate("no usable tokens here")
	if !ok || got != recent {
		t.Fatalf("expected recent directory %s, got %q ok=%v", recent, got, ok)
	}
}

func TestLocateNothingUsable(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "does-not-exist"))
	if got, ok := r.Locate("nothing to see"); ok {
		t.Fatalf("expected no artifact, got %s", got)
	}
}

func TestPayloadPlainFile(t *testing.T) {
	file := touch(t, filepath.Join(t.TempDir(), "backup.tgz"))
	r := NewResolver("")
	got, ok := r.Payload(file)
	if !ok || got != file {
		t.Fatalf("expected the file itself, got %q ok=%v", got, ok)
	}
}

func TestPayloadPrefersKnownName(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "aaa.tar.gz"))
	known := touch(t, filepath.Join(dir, "aos.data.tar.gz"))

	r := NewResolver("")
	got, ok := r.Payload(dir)
	if !ok || got != known {
		t.Fatalf("expected %s, got %q ok=%v", known, got, ok)
	}
}

func TestPayloadFallsBackToTarball(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "notes.txt"))
	tarball := touch(t, filepath.Join(dir, "bundle.tar.gz"))

	r := NewResolver("")
	got, ok := r.Payload(dir)
	if !ok || got != tarball {
		t.Fatalf("expected %s, got %q ok=%v", tarball, got, ok)
	}
}

func TestPayloadFallsBackToFirstFile(t *testing.T) {
	dir := t.TempDir()
	first := touch(t, filepath.Join(dir, "aaa.bin"))
	touch(t, filepath.Join(dir, "zzz.bin"))
	mkdir(t, filepath.Join(dir, "subdir"))

	r := NewResolver("")
	got, ok := r.Payload(dir)
	if !ok || got != first {
		t.Fatalf("expected %s, got %q ok=%v", first, got, ok)
	}
}

func TestPayloadEmptyDirectory(t *testing.T) {
	r := NewResolver("")
	if got, ok := r.Payload(t.TempDir()); ok {
		t.Fatalf("expected no payload in empty directory, got %s", got)
	}
}
