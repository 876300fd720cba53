package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Keyring holds every encryption key the service has ever used, indexed by
// version. Versions are append-only: rotation adds a new active version and
// old versions stay readable so stored ciphertext remains decryptable.
// Retire removes a version from the active slot without deleting it.
type Keyring struct {
	mu      sync.RWMutex
	keys    map[uint32][]byte
	active  uint32
	retired map[uint32]bool
}

// NewKeyring creates a keyring with the given key as version 1, active.
func NewKeyring(initial []byte) (*Keyring, error) {
	if len(initial) != KeySize {
		return nil, fmt.Errorf("invalid key length %d: must be %d bytes for AES-256", len(initial), KeySize)
	}
	k := make([]byte, KeySize)
	copy(k, initial)
	return &Keyring{
		keys:    map[uint32][]byte{1: k},
		active:  1,
		retired: make(map[uint32]bool),
	}, nil
}

// Active returns the current active version and its key.
func (r *Keyring) Active() (uint32, []byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == 0 {
		return 0, nil, domainErrors.ErrNoActiveKey
	}
	return r.active, r.keys[r.active], nil
}

// Get returns the key for a specific version, retired or not. Decryption of
// old ciphertext must keep working after rotation and retirement.
func (r *Keyring) Get(version uint32) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[version]
	if !ok {
		return nil, domainErrors.ErrKeyNotFound
	}
	return key, nil
}

// Rotate generates a fresh random key, assigns it the next version number and
// makes it active. Returns the new version.
func (r *Keyring) Rotate() (uint32, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return 0, fmt.Errorf("failed to generate key: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	version := uint32(len(r.keys)) + 1
	r.keys[version] = key
	r.active = version
	return version, nil
}

// Retire marks a version as no longer usable for sealing. The key itself is
// kept so existing ciphertext stays readable. Retiring the active version
// requires a prior Rotate; that is the caller's responsibility, and this
// returns an error rather than leave no active key.
func (r *Keyring) Retire(version uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[version]; !ok {
		return domainErrors.ErrKeyNotFound
	}
	if version == r.active {
		return errors.New("cannot retire the active key version: rotate first")
	}
	r.retired[version] = true
	return nil
}

// IsRetired reports whether the version is retired.
func (r *Keyring) IsRetired(version uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.retired[version]
}

// Versions returns the number of versions the ring has ever held.
func (r *Keyring) Versions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
