// Package fileutil provides filesystem helpers for the working directory:
// archive extraction, file search, and canonical relative paths.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFile walks root and returns the full path of the first file whose base
// name equals name. It returns an empty string when no match exists.
func FindFile(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}
	return found, nil
}

// RelToRoot returns path relative to root in canonical forward-slash form.
func RelToRoot(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s against %s: %w", path, root, err)
	}
	return filepath.ToSlash(rel), nil
}

// ResolveUnderRoot joins a stored relative path (either separator form)
// to root. Absolute inputs are returned unchanged after normalization.
func ResolveUnderRoot(root, stored string) string {
	normalized := filepath.FromSlash(strings.ReplaceAll(stored, "\\", "/"))
	if filepath.IsAbs(normalized) {
		return normalized
	}
	return filepath.Join(root, normalized)
}

// EnsureDir creates dir (and parents) when missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
