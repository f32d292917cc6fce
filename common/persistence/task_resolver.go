package persistence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/lyzr/orchestrator/common/db"
	"github.com/lyzr/orchestrator/common/instructions"
	"github.com/lyzr/orchestrator/common/noderuntime"
	"github.com/lyzr/orchestrator/common/skills"
)

// TaskResolver bridges C12's Agent/Role/Skill tables into the shapes C6
// (instructions) and C7 (skills) expect, implementing
// noderuntime.TaskResolver. A task node's config carries the agent_id (and,
// for node-scoped skill bindings, relies on req.NodeID) that this resolver
// looks up. Each resolve opens its own SessionScope (matching
// RunScheduleStore's read pattern) rather than holding repositories bound
// to one long-lived transaction.
type TaskResolver struct {
	database *db.DB
}

func NewTaskResolver(database *db.DB) *TaskResolver {
	return &TaskResolver{database: database}
}

var _ noderuntime.TaskResolver = (*TaskResolver)(nil)

func configString(cfg map[string]interface{}, key string) string {
	v, _ := cfg[key].(string)
	return v
}

func configStringList(cfg map[string]interface{}, key string) []string {
	raw, ok := cfg[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ResolveInstructionInput loads the agent (and its bound role, if any) named
// by req.Config["agent_id"] and assembles C6's CompileInput. agent_id/role_id
// are UUIDs in this schema rather than the plain ints spec.md's source_ids
// example shows, so they are carried in SourceVersions (string-valued) instead
// of SourceIDs (which stays reserved for genuinely int-keyed sources).
func (r *TaskResolver) ResolveInstructionInput(ctx context.Context, req noderuntime.Request) (instructions.CompileInput, error) {
	agentIDRaw := configString(req.Config, "agent_id")
	if agentIDRaw == "" {
		return instructions.CompileInput{}, fmt.Errorf("persistence: task node %s has no agent_id configured", req.NodeID)
	}
	agentID, err := uuid.Parse(agentIDRaw)
	if err != nil {
		return instructions.CompileInput{}, fmt.Errorf("persistence: invalid agent_id %q: %w", agentIDRaw, err)
	}

	var input instructions.CompileInput
	err = SessionScope(ctx, r.database, func(ctx context.Context, sess *Session) error {
		agents := NewAgentRepository(sess)
		agent, err := agents.GetByID(ctx, agentID)
		if err != nil {
			return fmt.Errorf("persistence: resolving agent %s: %w", agentID, err)
		}

		agentIDStr := agent.AgentID.String()
		versions := map[string]*string{"agent_id": &agentIDStr}

		var roleMarkdown string
		if agent.RoleID != nil {
			role, err := agents.GetRoleByID(ctx, *agent.RoleID)
			if err != nil {
				return fmt.Errorf("persistence: resolving role %s: %w", *agent.RoleID, err)
			}
			roleMarkdown = role.Markdown
			roleIDStr := role.RoleID.String()
			versions["role_id"] = &roleIDStr
		}

		input = instructions.CompileInput{
			RunMode:          configString(req.Config, "run_mode"),
			Provider:         agent.Provider,
			RoleMarkdown:     roleMarkdown,
			AgentMarkdown:    agent.Markdown,
			Priorities:       configStringList(req.Config, "priorities"),
			RuntimeOverrides: configStringList(req.Config, "runtime_overrides"),
			ProviderHeader:   configString(req.Config, "provider_header"),
			ProviderSuffix:   configString(req.Config, "provider_suffix"),
			SourceVersions:   versions,
		}
		return nil
	})
	return input, err
}

// ResolveSkillSet loads skills bound to the task's flowchart node and, if an
// agent_id is configured, the skills bound to that agent too, merges them
// (node bindings first), and resolves each to its latest version and files
// (§3, §4.7).
func (r *TaskResolver) ResolveSkillSet(ctx context.Context, req noderuntime.Request) (skills.ResolvedSkillSet, error) {
	nodeID, err := uuid.Parse(req.NodeID)
	if err != nil {
		return skills.ResolvedSkillSet{}, fmt.Errorf("persistence: invalid node id %q: %w", req.NodeID, err)
	}

	var set skills.ResolvedSkillSet
	err = SessionScope(ctx, r.database, func(ctx context.Context, sess *Session) error {
		skillRepo := NewSkillRepository(sess)

		var bound []*Skill
		nodeSkills, err := skillRepo.ListForNode(ctx, nodeID)
		if err != nil {
			return fmt.Errorf("persistence: listing node skills: %w", err)
		}
		bound = append(bound, nodeSkills...)

		if agentIDRaw := configString(req.Config, "agent_id"); agentIDRaw != "" {
			agentID, err := uuid.Parse(agentIDRaw)
			if err != nil {
				return fmt.Errorf("persistence: invalid agent_id %q: %w", agentIDRaw, err)
			}
			agentSkills, err := skillRepo.ListForAgent(ctx, agentID)
			if err != nil {
				return fmt.Errorf("persistence: listing agent skills: %w", err)
			}
			bound = append(bound, agentSkills...)
		}

		seen := make(map[int]bool, len(bound))
		inputs := make([]skills.SkillVersionInput, 0, len(bound))
		for i, skill := range bound {
			if seen[skill.SkillID] {
				continue
			}
			seen[skill.SkillID] = true

			version, err := skillRepo.LatestVersion(ctx, skill.SkillID)
			if err != nil {
				return fmt.Errorf("persistence: resolving latest version of skill %d: %w", skill.SkillID, err)
			}
			files, err := skillRepo.ListFiles(ctx, version.VersionID)
			if err != nil {
				return fmt.Errorf("persistence: listing files for skill version %d: %w", version.VersionID, err)
			}
			skillFiles := make([]skills.SkillFile, 0, len(files))
			for _, f := range files {
				skillFiles = append(skillFiles, skills.SkillFile{
					Path:      f.Path,
					Content:   string(f.Content),
					Checksum:  f.Checksum,
					SizeBytes: int(f.SizeBytes),
				})
			}

			position := i
			inputs = append(inputs, skills.SkillVersionInput{
				SkillID:      skill.SkillID,
				Name:         skill.Name,
				VersionID:    version.VersionID,
				Version:      strconv.Itoa(version.Version),
				ManifestHash: version.ManifestHash,
				Files:        skillFiles,
				Position:     &position,
			})
		}

		set, err = skills.ResolveOrderedSkillSet(inputs)
		return err
	})
	return set, err
}
