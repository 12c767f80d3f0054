package postgres

import (
	"errors"
	"testing"
)

func testEncryptor(t *testing.T, secret string) *SecretEncryptor {
	t.Helper()
	key, err := DeriveKey(secret)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	encryptor, err := NewSecretEncryptor(key)
	if err != nil {
		t.Fatalf("NewSecretEncryptor: %v", err)
	}
	return encryptor
}

func TestReencryptBlob(t *testing.T) {
	oldEnc := testEncryptor(t, "retired-secret")
	newEnc := testEncryptor(t, "rotated-secret")

	original := tokenSecrets{
		AccessToken:  "ya29.access123",
		RefreshToken: "1//refresh456",
	}
	blob, err := oldEnc.Encrypt(original)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	rotated, err := reencryptBlob(oldEnc, newEnc, blob)
	if err != nil {
		t.Fatalf("reencryptBlob: %v", err)
	}

	var secrets tokenSecrets
	if err := newEnc.Decrypt(rotated, &secrets); err != nil {
		t.Fatalf("decrypt with new key: %v", err)
	}
	if secrets != original {
		t.Errorf("secrets changed across rotation: got %+v, want %+v", secrets, original)
	}

	// The rotated blob must be unreadable under the retired key.
	if err := oldEnc.Decrypt(rotated, &secrets); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with the old key, got %v", err)
	}
}

func TestReencryptBlob_WrongOldKey(t *testing.T) {
	writtenUnder := testEncryptor(t, "actual-secret")
	claimedOld := testEncryptor(t, "some-other-secret")
	newEnc := testEncryptor(t, "rotated-secret")

	blob, err := writtenUnder.Encrypt(tokenSecrets{AccessToken: "access-1"})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := reencryptBlob(claimedOld, newEnc, blob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for a mismatched old key, got %v", err)
	}
}
