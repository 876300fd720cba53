package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
)

// SealedPayload is the stored form of a message body: the ciphertext, the
// random nonce used for it and the key version that sealed it. The version
// travels with the payload so decryption after any number of rotations picks
// the right key.
type SealedPayload struct {
	Nonce      []byte
	Ciphertext []byte
	KeyVersion uint32
}

// EncryptionService seals and opens message payloads.
type EncryptionService interface {
	Seal(plaintext []byte) (*SealedPayload, error)
	Open(payload *SealedPayload) ([]byte, error)
}

// aesGCMEncryptionService implements EncryptionService using AES-256-GCM with
// keys drawn from a versioned keyring.
type aesGCMEncryptionService struct {
	keyring *Keyring
	logger  *zap.Logger
}

// NewAESGCMEncryptionService creates a new instance of aesGCMEncryptionService.
func NewAESGCMEncryptionService(keyring *Keyring, logger *zap.Logger) EncryptionService {
	return &aesGCMEncryptionService{keyring: keyring, logger: logger}
}

// Seal encrypts plaintext under the active key with a fresh random nonce.
func (s *aesGCMEncryptionService) Seal(plaintext []byte) (*SealedPayload, error) {
	version, key, err := s.keyring.Active()
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// GCM standard nonce size is 12 bytes. Never reused: fresh per message.
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &SealedPayload{
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
		KeyVersion: version,
	}, nil
}

// Open decrypts a payload with the key version it was sealed under. An
// unknown version or a failed authentication tag both map to
// ErrDecryptionFailed; the underlying cause is logged, never returned to
// clients.
func (s *aesGCMEncryptionService) Open(payload *SealedPayload) ([]byte, error) {
	key, err := s.keyring.Get(payload.KeyVersion)
	if err != nil {
		s.logger.Error("Decryption failed: unknown key version",
			zap.String("event", "decryption_failed"),
			zap.Uint32("key_version", payload.KeyVersion),
		)
		return nil, domainErrors.ErrDecryptionFailed
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(payload.Nonce) != gcm.NonceSize() {
		s.logger.Error("Decryption failed: bad nonce length",
			zap.String("event", "decryption_failed"),
			zap.Uint32("key_version", payload.KeyVersion),
			zap.Int("nonce_len", len(payload.Nonce)),
		)
		return nil, domainErrors.ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, payload.Nonce, payload.Ciphertext, nil)
	if err != nil {
		// Wrong key or tampered ciphertext; GCM cannot tell which.
		s.logger.Error("Decryption failed: authentication error",
			zap.String("event", "decryption_failed"),
			zap.Uint32("key_version", payload.KeyVersion),
			zap.Error(err),
		)
		return nil, domainErrors.ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher block: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}

var _ EncryptionService = (*aesGCMEncryptionService)(nil)
