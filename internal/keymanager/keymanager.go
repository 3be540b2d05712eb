package keymanager

import (
	"context"
	"errors"
)

// Operation names a service operation that may hold key grants.
type Operation string

const (
	OpCreate  Operation = "create"
	OpGet     Operation = "get"
	OpList    Operation = "list"
	OpApprove Operation = "approve"
)

type Capability string

const (
	CapabilityEncrypt Capability = "encrypt"
	CapabilityDecrypt Capability = "decrypt"
)

var (
	// ErrAccessDenied is returned when the platform refuses a crypto call. Callers treat it
	// as an absent capability, never as something to retry.
	ErrAccessDenied        = errors.New("key manager: access denied")
	ErrKeyMismatch         = errors.New("key manager: ciphertext was produced under a different key")
	ErrMalformedCiphertext = errors.New("key manager: malformed ciphertext")
)

type Encrypter interface {
	Encrypt(ctx context.Context, plaintext []byte) (string, error)
}

type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext string) ([]byte, error)
}

// KeyManager performs field crypto under a single logical key.
type KeyManager interface {
	Encrypter
	Decrypter
	KeyID() string
}
