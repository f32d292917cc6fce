package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSet(t *testing.T, skillMD string) ResolvedSkillSet {
	t.Helper()
	set, err := ResolveOrderedSkillSet([]SkillVersionInput{
		{SkillID: 1, Name: "reviewer", DisplayName: "Reviewer", VersionID: 10, Version: "1.0.0",
			Files: []SkillFile{{Path: "SKILL.md", Content: skillMD}}},
	})
	require.NoError(t, err)
	return set
}

func TestMaterializeSkillSet_EmptySetReturnsEmptyResult(t *testing.T) {
	result, err := MaterializeSkillSet(ResolvedSkillSet{}, "claude", t.TempDir(), HomeRoots{})
	require.NoError(t, err)
	assert.Empty(t, result.MaterializedPaths)
	assert.Empty(t, result.FallbackEntries)
}

func TestMaterializeSkillSet_NativeProviderCopiesIntoProviderHome(t *testing.T) {
	workspace := t.TempDir()
	home := t.TempDir()
	set := buildSet(t, "# Reviewer\n\nReview the diff.")

	result, err := MaterializeSkillSet(set, "claude", workspace, HomeRoots{RuntimeHome: home})
	require.NoError(t, err)
	assert.Equal(t, "native", result.Mode)
	assert.Equal(t, "claude_code", result.Adapter)
	assert.Empty(t, result.FallbackEntries)

	nativeFile := filepath.Join(home, ".claude", "skills", "reviewer", "SKILL.md")
	info, err := os.Stat(nativeFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0444), info.Mode().Perm())

	workspaceFile := filepath.Join(workspace, ".llmctl", "skills", "reviewer", "SKILL.md")
	_, err = os.Stat(workspaceFile)
	require.NoError(t, err)
}

func TestMaterializeSkillSet_FallbackProviderBuildsEntries(t *testing.T) {
	workspace := t.TempDir()
	set := buildSet(t, "# Reviewer\n\nReview the diff.")

	result, err := MaterializeSkillSet(set, "llama", workspace, HomeRoots{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Mode)
	require.Len(t, result.FallbackEntries, 1)
	assert.Equal(t, "reviewer", result.FallbackEntries[0].Name)
	assert.Contains(t, result.FallbackEntries[0].Content, "Review the diff.")
}

func TestBuildSkillFallbackEntries_TruncatesPerSkillLimit(t *testing.T) {
	long := make([]byte, FallbackMaxPerSkillChars+500)
	for i := range long {
		long[i] = 'a'
	}
	set := buildSet(t, string(long))

	entries := BuildSkillFallbackEntries(set)
	require.Len(t, entries, 1)
	assert.LessOrEqual(t, len(entries[0].Content), FallbackMaxPerSkillChars)
}

func TestBuildSkillFallbackEntries_StopsAtTotalBudget(t *testing.T) {
	big := make([]byte, FallbackMaxPerSkillChars)
	for i := range big {
		big[i] = 'b'
	}
	set, err := ResolveOrderedSkillSet([]SkillVersionInput{
		{SkillID: 1, Name: "first", VersionID: 10, Version: "1.0.0",
			Files: []SkillFile{{Path: "SKILL.md", Content: string(big)}}},
		{SkillID: 3, Name: "first-b", VersionID: 30, Version: "1.0.0",
			Files: []SkillFile{{Path: "SKILL.md", Content: string(big)}}},
		{SkillID: 4, Name: "first-c", VersionID: 40, Version: "1.0.0",
			Files: []SkillFile{{Path: "SKILL.md", Content: string(big)}}},
		{SkillID: 2, Name: "second", VersionID: 20, Version: "1.0.0",
			Files: []SkillFile{{Path: "SKILL.md", Content: "short but unreachable"}}},
	})
	require.NoError(t, err)

	entries := BuildSkillFallbackEntries(set)
	assert.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Name)
}
