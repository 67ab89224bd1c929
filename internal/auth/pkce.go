package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// PKCEMethodS256 is the only challenge method the gateway issues or accepts.
const PKCEMethodS256 = "S256"

const (
	verifierEntropyBytes = 32
	verifierMinLength    = 43
	verifierMaxLength    = 128
)

// PKCEPair holds a code verifier and the challenge derived from it.
type PKCEPair struct {
	CodeVerifier  string
	CodeChallenge string
	Method        string
}

// GeneratePKCE creates a fresh verifier (32 random bytes, base64url, 43 chars)
// and its S256 challenge.
func GeneratePKCE() (*PKCEPair, error) {
	buf := make([]byte, verifierEntropyBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return &PKCEPair{
		CodeVerifier:  verifier,
		CodeChallenge: ChallengeFromVerifier(verifier),
		Method:        PKCEMethodS256,
	}, nil
}

// ChallengeFromVerifier computes BASE64URL(SHA256(verifier)).
func ChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE reports whether challenge was derived from verifier.
func VerifyPKCE(verifier, challenge string) bool {
	if !validVerifier(verifier) || challenge == "" {
		return false
	}
	expected := ChallengeFromVerifier(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}

// GenerateState returns a random hex string used as the OAuth state parameter.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RFC 7636 section 4.1: 43..128 chars of [A-Z] / [a-z] / [0-9] / "-" / "." / "_" / "~".
func validVerifier(verifier string) bool {
	if len(verifier) < verifierMinLength || len(verifier) > verifierMaxLength {
		return false
	}
	for i := 0; i < len(verifier); i++ {
		c := verifier[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
