// Package skills implements the Skill Resolver & Adapter (C7): ordered
// resolution of an agent's or flowchart node's bound skills into a
// deterministic, manifest-hashed set, followed by either native-adapter
// materialization (codex/claude_code/gemini_cli) or prompt-fallback
// truncation for providers without a native skill mechanism. Ported from
// services/skill_adapters.py; the SQLAlchemy-backed lookups
// (resolve_agent_skills / resolve_flowchart_node_skills) are generalized into
// ResolveOrderedSkillSet, which takes already-loaded skill data — the
// database query itself belongs to the persistence layer.
package skills

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	FallbackMaxPerSkillChars = 12_000
	FallbackMaxTotalChars    = 32_000
)

// NativeProviderAdapters maps a provider name to its native skill adapter.
var NativeProviderAdapters = map[string]string{
	"codex":  "codex",
	"claude": "claude_code",
	"gemini": "gemini_cli",
}

// WorkspaceSkillsRoot is the workspace-relative directory skills are staged
// under before (optionally) being copied into a provider's native home.
const WorkspaceSkillsRoot = ".llmctl/skills"

// SkillFile is a single file belonging to a skill version.
type SkillFile struct {
	Path      string
	Content   string
	Checksum  string
	SizeBytes int
}

// SkillVersionInput is the raw, already-loaded data for one skill's latest
// version — the caller (persistence layer) is responsible for selecting the
// highest-numbered version and supplying its files.
type SkillVersionInput struct {
	SkillID      int
	Name         string
	DisplayName  string
	Description  string
	VersionID    int
	Version      string
	ManifestHash string // explicit hash, if the version carries one
	Files        []SkillFile
	Position     *int // nil = unordered, sorts after all ordered entries
}

// ResolvedSkillFile mirrors ResolvedSkillFile.
type ResolvedSkillFile struct {
	Path      string
	Content   string
	Checksum  string
	SizeBytes int
}

// ResolvedSkill mirrors ResolvedSkill.
type ResolvedSkill struct {
	SkillID      int
	Name         string
	DisplayName  string
	Description  string
	VersionID    int
	Version      string
	ManifestHash string
	Files        []ResolvedSkillFile
}

// ResolvedSkillSet mirrors ResolvedSkillSet.
type ResolvedSkillSet struct {
	Skills       []ResolvedSkill
	ManifestHash string
}

func sha256Text(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// safeSkillRelativePath rejects absolute paths and "." / ".." segments,
// matching _safe_skill_relative_path.
func safeSkillRelativePath(path string) (string, error) {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("skills: file path must be relative: %s", path)
	}
	parts := strings.Split(normalized, "/")
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "") {
		return "", fmt.Errorf("skills: file path is empty")
	}
	for _, segment := range parts {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("skills: file path is not path-safe: %s", path)
		}
	}
	return strings.Join(parts, "/"), nil
}

func resolveSkillFiles(in SkillVersionInput) ([]ResolvedSkillFile, error) {
	files := make([]SkillFile, len(in.Files))
	copy(files, in.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	resolved := make([]ResolvedSkillFile, 0, len(files))
	hasSkillMD := false
	for _, entry := range files {
		safePath, err := safeSkillRelativePath(entry.Path)
		if err != nil {
			return nil, err
		}
		checksum := strings.TrimSpace(entry.Checksum)
		if checksum == "" {
			checksum = sha256Text(entry.Content)
		}
		sizeBytes := entry.SizeBytes
		if sizeBytes == 0 {
			sizeBytes = len(entry.Content)
		}
		resolved = append(resolved, ResolvedSkillFile{
			Path:      safePath,
			Content:   entry.Content,
			Checksum:  checksum,
			SizeBytes: sizeBytes,
		})
		if safePath == "SKILL.md" {
			hasSkillMD = true
		}
	}
	if !hasSkillMD {
		return nil, fmt.Errorf("skills: version %d is missing SKILL.md and cannot be resolved", in.VersionID)
	}
	return resolved, nil
}

func effectiveManifestHash(in SkillVersionInput, files []ResolvedSkillFile) string {
	if explicit := strings.TrimSpace(in.ManifestHash); explicit != "" {
		return explicit
	}
	type fileEntry struct {
		Path      string `json:"path"`
		Checksum  string `json:"checksum"`
		SizeBytes int    `json:"size_bytes"`
	}
	entries := make([]fileEntry, len(files))
	for i, f := range files {
		entries[i] = fileEntry{Path: f.Path, Checksum: f.Checksum, SizeBytes: f.SizeBytes}
	}
	payload := map[string]interface{}{
		"version_id": in.VersionID,
		"version":    in.Version,
		"files":      entries,
	}
	b, _ := json.Marshal(payload)
	return sha256Text(string(b))
}

func resolvedManifestHash(resolved []ResolvedSkill) string {
	type fileEntry struct {
		Path      string `json:"path"`
		Checksum  string `json:"checksum"`
		SizeBytes int    `json:"size_bytes"`
	}
	type skillEntry struct {
		SkillID      int         `json:"skill_id"`
		Name         string      `json:"name"`
		VersionID    int         `json:"version_id"`
		Version      string      `json:"version"`
		ManifestHash string      `json:"manifest_hash"`
		Files        []fileEntry `json:"files"`
	}

	skillEntries := make([]skillEntry, len(resolved))
	for i, s := range resolved {
		files := make([]fileEntry, len(s.Files))
		for j, f := range s.Files {
			files[j] = fileEntry{Path: f.Path, Checksum: f.Checksum, SizeBytes: f.SizeBytes}
		}
		skillEntries[i] = skillEntry{
			SkillID: s.SkillID, Name: s.Name, VersionID: s.VersionID,
			Version: s.Version, ManifestHash: s.ManifestHash, Files: files,
		}
	}
	payload := map[string]interface{}{"skills": skillEntries}
	b, _ := json.Marshal(payload)
	return sha256Text(string(b))
}

// ResolveOrderedSkillSet sorts inputs by (position, name lowercase, skill id)
// — absent positions sort last — then resolves each into a ResolvedSkill and
// computes the set-level manifest hash.
func ResolveOrderedSkillSet(inputs []SkillVersionInput) (ResolvedSkillSet, error) {
	sorted := make([]SkillVersionInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sortPosition(sorted[i].Position), sortPosition(sorted[j].Position)
		if pi != pj {
			return pi < pj
		}
		ni, nj := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].SkillID < sorted[j].SkillID
	})

	resolved := make([]ResolvedSkill, 0, len(sorted))
	for _, in := range sorted {
		files, err := resolveSkillFiles(in)
		if err != nil {
			return ResolvedSkillSet{}, err
		}
		manifestHash := effectiveManifestHash(in, files)
		resolved = append(resolved, ResolvedSkill{
			SkillID: in.SkillID, Name: in.Name, DisplayName: in.DisplayName,
			Description: in.Description, VersionID: in.VersionID, Version: in.Version,
			ManifestHash: manifestHash, Files: files,
		})
	}

	return ResolvedSkillSet{Skills: resolved, ManifestHash: resolvedManifestHash(resolved)}, nil
}

func sortPosition(p *int) int {
	if p == nil {
		return math.MaxInt32
	}
	return *p
}

// SelectSkillAdapter mirrors select_skill_adapter: returns (mode, adapter).
func SelectSkillAdapter(provider string) (mode string, adapter string) {
	normalized := strings.ToLower(strings.TrimSpace(provider))
	if a, ok := NativeProviderAdapters[normalized]; ok {
		return "native", a
	}
	return "fallback", "prompt_fallback"
}

// SkillIDsPayload mirrors skill_ids_payload.
func SkillIDsPayload(set ResolvedSkillSet) []int {
	ids := make([]int, len(set.Skills))
	for i, s := range set.Skills {
		ids[i] = s.SkillID
	}
	return ids
}

// SkillVersionsPayload mirrors skill_versions_payload.
func SkillVersionsPayload(set ResolvedSkillSet) []map[string]interface{} {
	out := make([]map[string]interface{}, len(set.Skills))
	for i, s := range set.Skills {
		out[i] = map[string]interface{}{
			"skill_id": s.SkillID, "name": s.Name, "version_id": s.VersionID, "version": s.Version,
		}
	}
	return out
}
