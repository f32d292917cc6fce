package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skillInput(id int, name string, position *int) SkillVersionInput {
	return SkillVersionInput{
		SkillID: id, Name: name, DisplayName: name, VersionID: id * 10, Version: "1.0.0",
		Files: []SkillFile{{Path: "SKILL.md", Content: "# " + name}},
		Position: position,
	}
}

func intPtr(n int) *int { return &n }

func TestResolveOrderedSkillSet_SortsByPositionThenNameThenID(t *testing.T) {
	inputs := []SkillVersionInput{
		skillInput(3, "zebra", intPtr(1)),
		skillInput(1, "apple", nil),
		skillInput(2, "mango", intPtr(0)),
	}

	set, err := ResolveOrderedSkillSet(inputs)
	require.NoError(t, err)
	require.Len(t, set.Skills, 3)
	assert.Equal(t, "mango", set.Skills[0].Name)
	assert.Equal(t, "zebra", set.Skills[1].Name)
	assert.Equal(t, "apple", set.Skills[2].Name)
}

func TestResolveOrderedSkillSet_MissingSkillMDFails(t *testing.T) {
	inputs := []SkillVersionInput{
		{SkillID: 1, Name: "no-md", VersionID: 10, Files: []SkillFile{{Path: "README.md", Content: "x"}}},
	}
	_, err := ResolveOrderedSkillSet(inputs)
	require.Error(t, err)
}

func TestResolveOrderedSkillSet_RejectsUnsafePath(t *testing.T) {
	inputs := []SkillVersionInput{
		{SkillID: 1, Name: "bad", VersionID: 10, Files: []SkillFile{
			{Path: "SKILL.md", Content: "ok"},
			{Path: "../escape.txt", Content: "x"},
		}},
	}
	_, err := ResolveOrderedSkillSet(inputs)
	require.Error(t, err)
}

func TestResolveOrderedSkillSet_ManifestHashStableForSameInput(t *testing.T) {
	inputs := []SkillVersionInput{skillInput(1, "apple", nil)}
	set1, err := ResolveOrderedSkillSet(inputs)
	require.NoError(t, err)
	set2, err := ResolveOrderedSkillSet(inputs)
	require.NoError(t, err)
	assert.Equal(t, set1.ManifestHash, set2.ManifestHash)
}

func TestSelectSkillAdapter_NativeProviders(t *testing.T) {
	mode, adapter := SelectSkillAdapter("Claude")
	assert.Equal(t, "native", mode)
	assert.Equal(t, "claude_code", adapter)
}

func TestSelectSkillAdapter_UnknownProviderFallsBack(t *testing.T) {
	mode, adapter := SelectSkillAdapter("llama")
	assert.Equal(t, "fallback", mode)
	assert.Equal(t, "prompt_fallback", adapter)
}
