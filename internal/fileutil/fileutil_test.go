package fileutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	defer file.Close()

	writer := zip.NewWriter(file)
	for name, body := range entries {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(body)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestUnzipAndFindFile(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "result.zip")
	writeZip(t, archive, map[string]string{
		"out/images/fig1.png": "png",
		"out/full.md":         "# Title\nbody\n",
	})

	dest := filepath.Join(dir, "unpacked")
	if err := Unzip(archive, dest); err != nil {
		t.Fatalf("Unzip: %v", err)
	}

	found, err := FindFile(dest, "full.md")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	if found == "" {
		t.Fatal("expected to locate full.md")
	}
	data, err := os.ReadFile(found)
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "# Title\nbody\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestUnzipRejectsEscapingEntry(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../evil.txt": "nope"})

	if err := Unzip(archive, filepath.Join(dir, "unpacked")); err == nil {
		t.Fatal("expected zip-slip entry to be rejected")
	}
}

func TestFindFileMissing(t *testing.T) {
	found, err := FindFile(t.TempDir(), "full.md")
	if err != nil {
		t.Fatalf("FindFile: %v", err)
	}
	if found != "" {
		t.Fatalf("expected empty result, got %q", found)
	}
}

func TestRelToRootForwardSlashes(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "task", "out", "full.md")
	rel, err := RelToRoot(root, nested)
	if err != nil {
		t.Fatalf("RelToRoot: %v", err)
	}
	if rel != "task/out/full.md" {
		t.Fatalf("expected canonical separators, got %q", rel)
	}
}

func TestResolveUnderRoot(t *testing.T) {
	root := t.TempDir()
	resolved := ResolveUnderRoot(root, `task\out\full.md`)
	if resolved != filepath.Join(root, "task", "out", "full.md") {
		t.Fatalf("unexpected resolution: %q", resolved)
	}
	abs := filepath.Join(root, "x.md")
	if got := ResolveUnderRoot(root, abs); got != abs {
		t.Fatalf("absolute path should pass through, got %q", got)
	}
}
