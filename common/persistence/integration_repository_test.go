package persistence

import "testing"

func TestIntegrationSettingRepository_EncryptDecryptRoundTrip(t *testing.T) {
	repo := &IntegrationSettingRepository{secretKey: []byte("01234567890123456789012345678901")}

	plaintext := "sk-super-secret-token"
	ciphertext, err := repo.encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if ciphertext == plaintext {
		t.Fatal("expected ciphertext to differ from plaintext")
	}

	got, err := repo.decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if got != plaintext {
		t.Fatalf("expected round-tripped value %q, got %q", plaintext, got)
	}
}

func TestIntegrationSettingRepository_EncryptIsNonDeterministic(t *testing.T) {
	repo := &IntegrationSettingRepository{secretKey: []byte("01234567890123456789012345678901")}

	a, err := repo.encrypt("same-value")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := repo.encrypt("same-value")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct nonces to produce distinct ciphertexts for identical plaintext")
	}
}
