package instructions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialize_WritesReadOnlyFilesUnderSubdir(t *testing.T) {
	root := t.TempDir()
	pkg, err := Compile(CompileInput{RunMode: "task", Provider: "claude", GeneratedAt: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)

	paths, err := Materialize(root, "", pkg)
	require.NoError(t, err)
	require.Len(t, paths, len(pkg.Artifacts))

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0444), info.Mode().Perm())
		assert.True(t, filepath.Dir(p) == filepath.Join(root, DefaultSubdir))
	}
}

func TestMaterialize_RejectsPathEscapingWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	pkg := CompiledPackage{Artifacts: map[string]string{"../escape.md": "oops"}}

	_, err := Materialize(root, "instructions", pkg)
	require.Error(t, err)
}
