package instructions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSubdir is the workspace-relative directory artifacts are written
// under when no override is configured (INSTRUCTIONS_SUBDIR policy key).
const DefaultSubdir = "instructions"

// Materialize writes pkg's artifacts as read-only (0444) files under
// workspaceRoot/subdir, returning the materialized paths sorted by file
// name. subdir defaults to DefaultSubdir when empty. Every resolved path is
// confined to stay within workspaceRoot; a file name that would escape it
// (e.g. via "../") is rejected rather than silently clamped.
func Materialize(workspaceRoot, subdir string, pkg CompiledPackage) ([]string, error) {
	if subdir == "" {
		subdir = DefaultSubdir
	}

	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("instructions: resolving workspace root: %w", err)
	}
	targetDir := filepath.Join(root, subdir)
	if !withinRoot(root, targetDir) {
		return nil, fmt.Errorf("instructions: subdir %q escapes workspace root", subdir)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("instructions: creating %s: %w", targetDir, err)
	}

	names := make([]string, 0, len(pkg.Artifacts))
	for name := range pkg.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(targetDir, name)
		if !withinRoot(targetDir, path) {
			return nil, fmt.Errorf("instructions: artifact name %q escapes workspace root", name)
		}

		if err := os.WriteFile(path, []byte(pkg.Artifacts[name]), 0644); err != nil {
			return nil, fmt.Errorf("instructions: writing %s: %w", path, err)
		}
		if err := os.Chmod(path, 0444); err != nil {
			return nil, fmt.Errorf("instructions: setting read-only on %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
