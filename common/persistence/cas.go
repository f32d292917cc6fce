package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CASBlob is content-addressed storage for artifact/manifest payloads,
// generalized from common/models.CASBlob to this domain's media types.
// Maps to: cas_blob table
type CASBlob struct {
	CasID      string    `db:"cas_id" json:"cas_id"`
	MediaType  string    `db:"media_type" json:"media_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	Content    []byte    `db:"content" json:"content,omitempty"`
	StorageURL *string   `db:"storage_url" json:"storage_url,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Media types this module's artifacts and manifests use (§4.1 NodeArtifactPayload,
// §4.6 instruction package manifest, §4.7 skill resolution manifest).
const (
	MediaTypeNodeArtifact        = "application/json;type=node_artifact"
	MediaTypeInstructionManifest = "application/json;type=instruction_manifest"
	MediaTypeSkillManifest       = "application/json;type=skill_manifest"
)

// CasID computes the "sha256:<hex>" content address for a blob body, the
// same scheme common/models.CASBlob.CasID documents.
func CasID(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// CASStore is the repository over cas_blob.
type CASStore struct {
	sess *Session
}

func NewCASStore(sess *Session) *CASStore {
	return &CASStore{sess: sess}
}

// Put writes content under its computed cas_id, returning the id. A
// duplicate cas_id (identical content already stored) is a no-op success,
// matching content-addressed storage's idempotent-write semantics.
func (c *CASStore) Put(ctx context.Context, mediaType string, content []byte) (string, error) {
	casID := CasID(content)
	query := `
		INSERT INTO cas_blob (cas_id, media_type, size_bytes, content, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (cas_id) DO NOTHING
	`
	if err := c.sess.Exec(ctx, query, casID, mediaType, len(content), content); err != nil {
		return "", fmt.Errorf("failed to put cas blob: %w", err)
	}
	return casID, nil
}

// Get retrieves a blob's content by cas_id.
func (c *CASStore) Get(ctx context.Context, casID string) (*CASBlob, error) {
	query := `
		SELECT cas_id, media_type, size_bytes, content, storage_url, created_at
		FROM cas_blob
		WHERE cas_id = $1
	`
	blob := &CASBlob{}
	err := c.sess.QueryRow(ctx, query, casID).Scan(
		&blob.CasID, &blob.MediaType, &blob.SizeBytes, &blob.Content, &blob.StorageURL, &blob.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get cas blob: %w", err)
	}
	return blob, nil
}
