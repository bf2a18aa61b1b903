package user

import (
	"bytes"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for password hashing. Changing these invalidates no
// stored credentials (the salt and resulting hash length are stored per
// user) but new hashes will use the new cost.
const (
	hashTime    uint32 = 1
	hashMemory  uint32 = 64 * 1024
	hashThreads uint8  = 1
	hashKeyLen  uint32 = 128
	hashSaltLen uint32 = 64
)

var errPasswordMismatch = errors.New("password does not match stored hash")

// hashPassword derives the argon2id hash of the password under the given
// salt, generating a random salt when none is provided. The salt actually
// used is returned alongside the hash.
func hashPassword(password []byte, salt []byte) ([]byte, []byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, hashSaltLen)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}

	return argon2.IDKey(password, salt, hashTime, hashMemory, hashThreads, hashKeyLen), salt, nil
}

// comparePassword re-derives the hash of the candidate password under the
// stored salt and compares it against the stored hash.
func comparePassword(hash []byte, salt []byte, password []byte) error {
	candidate, _, err := hashPassword(password, salt)
	if err != nil {
		return err
	}

	if !bytes.Equal(hash, candidate) {
		return errPasswordMismatch
	}

	return nil
}
