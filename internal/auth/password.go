package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argonMemory      = 19 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

// PasswordHasher derives deterministic argon2id digests peppered with a server secret.
//
// The salt is derived from the secret, so equal passwords hash to equal digests.
type PasswordHasher struct {
	pepper []byte
	salt   []byte
}

// NewPasswordHasher builds a hasher bound to secret.
func NewPasswordHasher(secret string) *PasswordHasher {
	sum := sha256.Sum256([]byte("edu-gateway/password-salt:" + secret))
	return &PasswordHasher{
		pepper: []byte(secret),
		salt:   sum[:argonSaltLength],
	}
}

// Hash returns the encoded digest of password.
func (h *PasswordHasher) Hash(password string) string {
	input := make([]byte, 0, len(password)+len(h.pepper))
	input = append(input, password...)
	input = append(input, h.pepper...)

	key := argon2.IDKey(input, h.salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify reports whether password matches digest. Digests produced by bcrypt
// are accepted too so rows migrated from older stores keep working.
func (h *PasswordHasher) Verify(password, digest string) bool {
	if digest == "" {
		return false
	}
	if isBcryptDigest(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(h.Hash(password)), []byte(digest)) == 1
}

func isBcryptDigest(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}
