package keymanager

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const envelopeVersion = "v1"

// LocalKeyManager seals values with XChaCha20-Poly1305. The key id is bound as associated
// data, so ciphertext produced under one logical key never opens under another.
type LocalKeyManager struct {
	keyID string
	aead  cipher.AEAD
}

func NewLocalKeyManager(keyID string, key []byte) (*LocalKeyManager, error) {
	if keyID == "" || strings.Contains(keyID, ".") {
		return nil, fmt.Errorf("invalid key id %q", keyID)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	return &LocalKeyManager{keyID: keyID, aead: aead}, nil
}

func (k *LocalKeyManager) KeyID() string {
	return k.keyID
}

// Encrypt returns an envelope of the form v1.<keyID>.<base64url(nonce||sealed)>.
func (k *LocalKeyManager) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	nonce := make([]byte, k.aead.NonceSize(), k.aead.NonceSize()+len(plaintext)+k.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := k.aead.Seal(nonce, nonce, plaintext, []byte(k.keyID))
	return strings.Join([]string{envelopeVersion, k.keyID, base64.RawURLEncoding.EncodeToString(sealed)}, "."), nil
}

func (k *LocalKeyManager) Decrypt(ctx context.Context, ciphertext string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := strings.SplitN(ciphertext, ".", 3)
	if len(parts) != 3 || parts[0] != envelopeVersion {
		return nil, ErrMalformedCiphertext
	}
	if parts[1] != k.keyID {
		return nil, ErrKeyMismatch
	}

	sealed, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(sealed) < k.aead.NonceSize()+k.aead.Overhead() {
		return nil, ErrMalformedCiphertext
	}

	nonce, body := sealed[:k.aead.NonceSize()], sealed[k.aead.NonceSize():]
	plaintext, err := k.aead.Open(nil, nonce, body, []byte(k.keyID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return plaintext, nil
}
