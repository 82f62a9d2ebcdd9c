// Package security confines certwatch's on-disk documents to the data directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidDocumentName indicates a name that is not a plain file name.
	ErrInvalidDocumentName = errors.New("invalid document name")
	// ErrPathEscape indicates a document that resolves outside the data directory.
	ErrPathEscape = errors.New("path escapes data directory")
)

// DocumentPath returns the absolute path of the named document inside dataDir.
// The name must be a plain file name: separators and dot segments are rejected.
// An existing document that is a symlink must resolve inside dataDir as well.
func DocumentPath(dataDir, name string) (string, error) {
	if strings.TrimSpace(dataDir) == "" {
		return "", errors.New("data directory is required")
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentName, name)
	}

	root, err := filepath.Abs(dataDir)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	path := filepath.Join(root, name)

	info, err := os.Lstat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return path, nil
	case err != nil:
		return "", fmt.Errorf("stat %s: %w", path, err)
	case info.Mode()&os.ModeSymlink == 0:
		return path, nil
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve data directory: %w", err)
	}
	if !within(realRoot, resolved) {
		return "", fmt.Errorf("%w: %s -> %s", ErrPathEscape, path, resolved)
	}
	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
