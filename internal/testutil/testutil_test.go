package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRepoRoot(t *testing.T) {
	t.Parallel()

	root := RepoRoot(t)
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		t.Fatalf("RepoRoot() = %s has no go.mod: %v", root, err)
	}
}

func TestFixtures(t *testing.T) {
	t.Parallel()

	paths := Fixtures(t, DataCalibrationFiles...)
	if len(paths) != len(DataCalibrationFiles) {
		t.Fatalf("got %d paths, want %d", len(paths), len(DataCalibrationFiles))
	}
	for i, p := range paths {
		if filepath.Base(p) != DataCalibrationFiles[i] {
			t.Errorf("path[%d] = %s, want basename %s", i, p, DataCalibrationFiles[i])
		}
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := WriteFile(t, "x.txt", "hello")
	b, err := os.ReadFile(path)
	AssertNoError(t, err)
	if string(b) != "hello" {
		t.Errorf("content = %q, want %q", b, "hello")
	}
}

func TestAssertClose(t *testing.T) {
	t.Parallel()

	AssertClose(t, "v", 1.0000001, 1, 1e-6)
}
