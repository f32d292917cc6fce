// Package instructions implements the Instruction Compiler (C6): it renders
// a run's resolved role/agent/priorities/runtime-override markdown into a
// deterministic INSTRUCTIONS.md plus a content-fingerprinted manifest, and
// materializes the resulting artifact tree as read-only files under the
// run's workspace. Ported from
// services/instructions/compiler.py's compile_instruction_package, kept
// byte-for-byte faithful to its normalization, section ordering, and
// manifest fingerprinting rules.
package instructions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	RoleFilename         = "ROLE.md"
	AgentFilename        = "AGENT.md"
	PrioritiesFilename   = "PRIORITIES.md"
	InstructionsFilename = "INSTRUCTIONS.md"
)

// CompileInput mirrors InstructionCompileInput.
type CompileInput struct {
	RunMode           string
	Provider          string
	RoleMarkdown      string
	AgentMarkdown     string
	Priorities        []string
	RuntimeOverrides  []string
	ProviderHeader    string
	ProviderSuffix    string
	SourceIDs         map[string]*int
	SourceVersions    map[string]*string
	GeneratedAt       string // optional RFC3339; defaults to now when empty
}

// CompiledPackage mirrors CompiledInstructionPackage.
type CompiledPackage struct {
	RunMode      string
	Provider     string
	Artifacts    map[string]string
	Manifest     map[string]interface{}
	ManifestHash string
}

// normalizeMarkdown collapses CRLF/CR to LF, right-trims every line, strips
// leading/trailing blank lines, and appends a single trailing newline unless
// the content is empty.
func normalizeMarkdown(value string) string {
	normalized := strings.ReplaceAll(value, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\f\v")
	}
	normalized = strings.Trim(strings.Join(lines, "\n"), "\n")
	if normalized == "" {
		return ""
	}
	return normalized + "\n"
}

func normalizeList(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		cleaned := strings.TrimSpace(normalizeMarkdown(entry))
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func renderPriorities(priorities []string) string {
	var b strings.Builder
	b.WriteString("# Priorities\n\n")
	for i, entry := range priorities {
		fmt.Fprintf(&b, "## Priority %d\n\n%s\n\n", i+1, entry)
	}
	return normalizeMarkdown(b.String())
}

func renderRuntimeOverrides(overrides []string) string {
	var b strings.Builder
	b.WriteString("## Runtime Overrides\n\n")
	for i, entry := range overrides {
		fmt.Fprintf(&b, "### Override %d\n\n%s\n\n", i+1, entry)
	}
	return normalizeMarkdown(b.String())
}

func renderInstructions(runMode, provider, roleMarkdown, agentMarkdown, prioritiesMarkdown string, runtimeOverrides []string, providerHeader, providerSuffix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Compiled Instructions\n\nRun mode: `%s`\nProvider: `%s`\n\n", runMode, provider)
	if providerHeader != "" {
		fmt.Fprintf(&b, "## Provider Header\n\n%s\n\n", providerHeader)
	}
	fmt.Fprintf(&b, "## Role Source\n\n%s\n\n", strings.TrimSpace(roleMarkdown))
	fmt.Fprintf(&b, "## Agent Source\n\n%s\n\n", strings.TrimSpace(agentMarkdown))
	if prioritiesMarkdown != "" {
		fmt.Fprintf(&b, "## Priorities Source\n\n%s\n\n", strings.TrimSpace(prioritiesMarkdown))
	}
	if len(runtimeOverrides) > 0 {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(renderRuntimeOverrides(runtimeOverrides)))
	}
	if providerSuffix != "" {
		fmt.Fprintf(&b, "## Provider Suffix\n\n%s\n\n", providerSuffix)
	}
	return normalizeMarkdown(b.String())
}

func sha256Text(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// sortedIDMap renders a map[string]*int as an ordered-key JSON-friendly map.
// Go's encoding/json already sorts map[string]... keys when marshaling, so
// the only job here is to normalize nil pointers; the explicit sort is kept
// to mirror the Python source's documented `sorted(...)` intent for clarity.
func sortedIDMap(m map[string]*int) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := m[k]; v != nil {
			out[k] = *v
		} else {
			out[k] = nil
		}
	}
	return out
}

func sortedVersionMap(m map[string]*string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := m[k]; v != nil {
			out[k] = *v
		} else {
			out[k] = nil
		}
	}
	return out
}

// Compile builds the instruction package for in.
func Compile(in CompileInput) (CompiledPackage, error) {
	runMode := strings.TrimSpace(in.RunMode)
	if runMode == "" {
		runMode = "task"
	}
	provider := strings.TrimSpace(in.Provider)
	if provider == "" {
		provider = "unknown"
	}

	roleMarkdown := normalizeMarkdown(in.RoleMarkdown)
	if roleMarkdown == "" {
		roleMarkdown = "# Role\n\nNo role instructions resolved.\n"
	}
	agentMarkdown := normalizeMarkdown(in.AgentMarkdown)
	if agentMarkdown == "" {
		agentMarkdown = "# Agent\n\nNo agent instructions resolved.\n"
	}

	runtimeOverrides := normalizeList(in.RuntimeOverrides)
	priorities := normalizeList(in.Priorities)

	var prioritiesMarkdown string
	includesPriorities := runMode == "autorun" && len(priorities) > 0
	if includesPriorities {
		prioritiesMarkdown = renderPriorities(priorities)
	}

	providerHeader := strings.TrimSpace(normalizeMarkdown(in.ProviderHeader))
	providerSuffix := strings.TrimSpace(normalizeMarkdown(in.ProviderSuffix))

	instructionsMarkdown := renderInstructions(runMode, provider, roleMarkdown, agentMarkdown, prioritiesMarkdown, runtimeOverrides, providerHeader, providerSuffix)

	artifacts := map[string]string{
		RoleFilename:         roleMarkdown,
		AgentFilename:        agentMarkdown,
		InstructionsFilename: instructionsMarkdown,
	}
	if includesPriorities {
		artifacts[PrioritiesFilename] = prioritiesMarkdown
	}

	fileNames := make([]string, 0, len(artifacts))
	for name := range artifacts {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	artifactManifest := make(map[string]interface{}, len(artifacts))
	totalSizeBytes := 0
	for _, name := range fileNames {
		content := artifacts[name]
		sizeBytes := len(content)
		totalSizeBytes += sizeBytes
		artifactManifest[name] = map[string]interface{}{
			"path":       name,
			"sha256":     sha256Text(content),
			"size_bytes": sizeBytes,
		}
	}

	sourceIDs := sortedIDMap(in.SourceIDs)
	sourceVersions := sortedVersionMap(in.SourceVersions)

	fingerprint := map[string]interface{}{
		"package_version":   1,
		"run_mode":          runMode,
		"provider":          provider,
		"source_ids":        sourceIDs,
		"source_versions":   sourceVersions,
		"artifact_manifest": artifactManifest,
	}
	fingerprintJSON, err := canonicalJSON(fingerprint)
	if err != nil {
		return CompiledPackage{}, fmt.Errorf("instructions: encoding fingerprint: %w", err)
	}
	manifestHash := sha256Text(fingerprintJSON)

	generatedAt := in.GeneratedAt
	if generatedAt == "" {
		generatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	instructionsEntry := artifactManifest[InstructionsFilename].(map[string]interface{})
	manifest := map[string]interface{}{
		"package_version":        1,
		"generated_at":           generatedAt,
		"hash_algorithm":         "sha256",
		"manifest_hash":          manifestHash,
		"run_mode":               runMode,
		"provider":               provider,
		"source_ids":             sourceIDs,
		"source_versions":        sourceVersions,
		"includes_priorities":    includesPriorities,
		"instruction_size_bytes": instructionsEntry["size_bytes"],
		"total_size_bytes":       totalSizeBytes,
		"artifacts":              artifactManifest,
	}

	return CompiledPackage{
		RunMode:      runMode,
		Provider:     provider,
		Artifacts:    artifacts,
		Manifest:     manifest,
		ManifestHash: manifestHash,
	}, nil
}

// canonicalJSON marshals v with sorted object keys and no extraneous
// whitespace, matching json.dumps(..., sort_keys=True, separators=(",", ":")).
// encoding/json already sorts map keys on marshal, so a direct Marshal is
// sufficient here.
func canonicalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
