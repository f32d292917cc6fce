package persistence

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// IntegrationSettingRepository handles database operations for
// (provider, key) -> value rows; values marked secret are encrypted at
// rest with AES-GCM under a deployment-wide key (§3 IntegrationSetting).
//
// No example repo imports a secrets/crypto library for this concern, so
// this uses crypto/aes + crypto/cipher from the standard library.
type IntegrationSettingRepository struct {
	sess      *Session
	secretKey []byte // 32 bytes, AES-256
}

func NewIntegrationSettingRepository(sess *Session, secretKey []byte) *IntegrationSettingRepository {
	return &IntegrationSettingRepository{sess: sess, secretKey: secretKey}
}

// Set upserts a setting, encrypting the value first when isSecret is true.
func (r *IntegrationSettingRepository) Set(ctx context.Context, provider, key, value string, isSecret bool) error {
	stored := value
	if isSecret {
		encrypted, err := r.encrypt(value)
		if err != nil {
			return fmt.Errorf("failed to encrypt integration setting: %w", err)
		}
		stored = encrypted
	}

	query := `
		INSERT INTO integration_setting (provider, key, value, is_secret, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (provider, key) DO UPDATE SET value = $3, is_secret = $4, updated_at = now()
	`
	if err := r.sess.Exec(ctx, query, provider, key, stored, isSecret); err != nil {
		return fmt.Errorf("failed to set integration setting: %w", err)
	}
	return nil
}

// Get retrieves a setting, decrypting the value when it was stored secret.
func (r *IntegrationSettingRepository) Get(ctx context.Context, provider, key string) (*IntegrationSetting, error) {
	query := `SELECT provider, key, value, is_secret, updated_at FROM integration_setting WHERE provider = $1 AND key = $2`
	s := &IntegrationSetting{}
	err := r.sess.QueryRow(ctx, query, provider, key).Scan(&s.Provider, &s.Key, &s.Value, &s.IsSecret, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration setting: %w", err)
	}
	if s.IsSecret {
		plain, err := r.decrypt(s.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt integration setting: %w", err)
		}
		s.Value = plain
	}
	return s, nil
}

// ListByProvider retrieves every setting for a provider, decrypting
// secrets — drives provider availability/feature-flag checks (§3).
func (r *IntegrationSettingRepository) ListByProvider(ctx context.Context, provider string) ([]*IntegrationSetting, error) {
	query := `SELECT provider, key, value, is_secret, updated_at FROM integration_setting WHERE provider = $1`
	rows, err := r.sess.Query(ctx, query, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list integration settings: %w", err)
	}
	defer rows.Close()

	var settings []*IntegrationSetting
	for rows.Next() {
		s := &IntegrationSetting{}
		if err := rows.Scan(&s.Provider, &s.Key, &s.Value, &s.IsSecret, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan integration setting: %w", err)
		}
		if s.IsSecret {
			plain, err := r.decrypt(s.Value)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt integration setting: %w", err)
			}
			s.Value = plain
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *IntegrationSettingRepository) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(r.secretKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (r *IntegrationSettingRepository) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(r.secretKey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
