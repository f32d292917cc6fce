package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AgentRepository handles database operations for Agent/Role, the
// authoring entities C6's instruction compiler consumes (§3, §4.6).
type AgentRepository struct {
	sess *Session
}

func NewAgentRepository(sess *Session) *AgentRepository {
	return &AgentRepository{sess: sess}
}

func (r *AgentRepository) GetByID(ctx context.Context, agentID uuid.UUID) (*Agent, error) {
	query := `SELECT agent_id, name, role_id, provider, markdown, created_at FROM agent WHERE agent_id = $1`
	a := &Agent{}
	err := r.sess.QueryRow(ctx, query, agentID).Scan(&a.AgentID, &a.Name, &a.RoleID, &a.Provider, &a.Markdown, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

func (r *AgentRepository) GetRoleByID(ctx context.Context, roleID uuid.UUID) (*Role, error) {
	query := `SELECT role_id, name, markdown, created_at FROM role WHERE role_id = $1`
	role := &Role{}
	err := r.sess.QueryRow(ctx, query, roleID).Scan(&role.RoleID, &role.Name, &role.Markdown, &role.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// SkillRepository handles database operations for Skill/SkillVersion/
// SkillFile, the authoring entities C7's resolver consumes (§3, §4.7).
type SkillRepository struct {
	sess *Session
}

func NewSkillRepository(sess *Session) *SkillRepository {
	return &SkillRepository{sess: sess}
}

// ListForAgent returns the skills bound to an agent, ordered by
// (position, name, id) per §4.7's load order.
func (r *SkillRepository) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]*Skill, error) {
	query := `
		SELECT s.skill_id, s.name, s.created_at
		FROM skill s
		JOIN agent_skill bind ON bind.skill_id = s.skill_id
		WHERE bind.agent_id = $1
		ORDER BY bind.position ASC, s.name ASC, s.skill_id ASC
	`
	rows, err := r.sess.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills for agent: %w", err)
	}
	defer rows.Close()

	var skills []*Skill
	for rows.Next() {
		s := &Skill{}
		if err := rows.Scan(&s.SkillID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// ListForNode returns the skills bound to a flowchart node, same ordering.
func (r *SkillRepository) ListForNode(ctx context.Context, nodeID uuid.UUID) ([]*Skill, error) {
	query := `
		SELECT s.skill_id, s.name, s.created_at
		FROM skill s
		JOIN flowchart_node_skill bind ON bind.skill_id = s.skill_id
		WHERE bind.node_id = $1
		ORDER BY bind.position ASC, s.name ASC, s.skill_id ASC
	`
	rows, err := r.sess.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills for node: %w", err)
	}
	defer rows.Close()

	var skills []*Skill
	for rows.Next() {
		s := &Skill{}
		if err := rows.Scan(&s.SkillID, &s.Name, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// LatestVersion returns the highest-numbered SkillVersion for a skill
// ("For each, pick the highest-numbered SkillVersion", §4.7).
func (r *SkillRepository) LatestVersion(ctx context.Context, skillID int) (*SkillVersion, error) {
	query := `
		SELECT version_id, skill_id, version, manifest_hash, created_at
		FROM skill_version
		WHERE skill_id = $1
		ORDER BY version DESC
		LIMIT 1
	`
	v := &SkillVersion{}
	err := r.sess.QueryRow(ctx, query, skillID).Scan(&v.VersionID, &v.SkillID, &v.Version, &v.ManifestHash, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest skill version: %w", err)
	}
	return v, nil
}

// ListFiles returns every file under a skill version.
func (r *SkillRepository) ListFiles(ctx context.Context, versionID int) ([]*SkillFile, error) {
	query := `
		SELECT file_id, version_id, path, content, checksum, size_bytes
		FROM skill_file
		WHERE version_id = $1
		ORDER BY path ASC
	`
	rows, err := r.sess.Query(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list skill files: %w", err)
	}
	defer rows.Close()

	var files []*SkillFile
	for rows.Next() {
		f := &SkillFile{}
		if err := rows.Scan(&f.FileID, &f.VersionID, &f.Path, &f.Content, &f.Checksum, &f.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan skill file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
