package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HashPassword_RoundTrip(t *testing.T) {
	hash, salt, err := hashPassword([]byte("hunter22hunter22"), nil)
	require.NoError(t, err)
	assert.Len(t, hash, int(hashKeyLen))
	assert.Len(t, salt, int(hashSaltLen))

	assert.NoError(t, comparePassword(hash, salt, []byte("hunter22hunter22")))
	assert.ErrorIs(t, comparePassword(hash, salt, []byte("wrong-password")), errPasswordMismatch)
}

func Test_HashPassword_GeneratedSaltsDiffer(t *testing.T) {
	hashA, saltA, err := hashPassword([]byte("same password"), nil)
	require.NoError(t, err)
	hashB, saltB, err := hashPassword([]byte("same password"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, saltA, saltB)
	assert.NotEqual(t, hashA, hashB)
}

func Test_HashPassword_ExplicitSaltIsDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	hashA, usedSalt, err := hashPassword([]byte("same password"), salt)
	require.NoError(t, err)
	hashB, _, err := hashPassword([]byte("same password"), salt)
	require.NoError(t, err)

	assert.Equal(t, salt, usedSalt)
	assert.Equal(t, hashA, hashB)
}
