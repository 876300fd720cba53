package security_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, security.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewKeyring_BadLength(t *testing.T) {
	_, err := security.NewKeyring([]byte("short"))
	assert.Error(t, err)
}

func TestKeyring_InitialKeyIsActiveVersionOne(t *testing.T) {
	ring, err := security.NewKeyring(generateTestKey(t))
	require.NoError(t, err)

	version, key, err := ring.Active()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), version)
	assert.Len(t, key, security.KeySize)
}

func TestKeyring_RotateActivatesNextVersion(t *testing.T) {
	ring, err := security.NewKeyring(generateTestKey(t))
	require.NoError(t, err)

	v1Key, err := ring.Get(1)
	require.NoError(t, err)

	newVersion, err := ring.Rotate()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), newVersion)

	activeVersion, activeKey, err := ring.Active()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), activeVersion)
	assert.NotEqual(t, v1Key, activeKey, "rotation should produce a fresh key")

	// Old version stays readable after rotation.
	oldKey, err := ring.Get(1)
	require.NoError(t, err)
	assert.Equal(t, v1Key, oldKey)
}

func TestKeyring_GetUnknownVersion(t *testing.T) {
	ring, err := security.NewKeyring(generateTestKey(t))
	require.NoError(t, err)

	_, err = ring.Get(99)
	assert.ErrorIs(t, err, domainErrors.ErrKeyNotFound)
}

func TestKeyring_RetireKeepsKeyReadable(t *testing.T) {
	ring, err := security.NewKeyring(generateTestKey(t))
	require.NoError(t, err)

	_, err = ring.Rotate()
	require.NoError(t, err)

	require.NoError(t, ring.Retire(1))
	assert.True(t, ring.IsRetired(1))

	_, err = ring.Get(1)
	assert.NoError(t, err, "retired version must stay readable for old ciphertext")
}

func TestKeyring_RetireActiveVersionRejected(t *testing.T) {
	ring, err := security.NewKeyring(generateTestKey(t))
	require.NoError(t, err)

	err = ring.Retire(1)
	assert.Error(t, err, "retiring the only active version would leave nothing to seal with")
}

func TestKeyring_RetireUnknownVersion(t *testing.T) {
	ring, err := security.NewKeyring(generateTestKey(t))
	require.NoError(t, err)

	assert.ErrorIs(t, ring.Retire(7), domainErrors.ErrKeyNotFound)
}
