package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
)

func newTestPasswordService(t *testing.T) security.PasswordService {
	t.Helper()
	// Lighter than production so the suite stays fast.
	svc, err := security.NewArgon2idPasswordService(security.Argon2idParams{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return svc
}

func TestNewArgon2idPasswordService_RequiresParams(t *testing.T) {
	_, err := security.NewArgon2idPasswordService(security.Argon2idParams{})
	assert.Error(t, err)
}

func TestHashPassword_Format(t *testing.T) {
	svc := newTestPasswordService(t)

	hash, err := svc.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
}

func TestCheckPasswordHash_Match(t *testing.T) {
	svc := newTestPasswordService(t)

	hash, err := svc.HashPassword("s3cret")
	require.NoError(t, err)

	ok, err := svc.CheckPasswordHash("s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckPasswordHash_Mismatch(t *testing.T) {
	svc := newTestPasswordService(t)

	hash, err := svc.HashPassword("s3cret")
	require.NoError(t, err)

	ok, err := svc.CheckPasswordHash("not-the-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPasswordHash_MalformedHash(t *testing.T) {
	svc := newTestPasswordService(t)

	_, err := svc.CheckPasswordHash("whatever", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	svc := newTestPasswordService(t)

	h1, err := svc.HashPassword("same password")
	require.NoError(t, err)
	h2, err := svc.HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
