package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength = 16
	keyLength  = 32
	// Recommended Argon2id parameters (OWASP)
	timeCost    = 1
	memoryCost  = 64 * 1024 // 64MB
	parallelism = 4
)

func generateSalt(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// hashSecret Argon2id-hashes any bearer secret (a login password or a
// session token) into the same self-describing encoded format.
func hashSecret(secret string) (string, error) {
	salt, err := generateSalt(saltLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, timeCost, memoryCost, parallelism, keyLength)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s", argon2.Version, memoryCost, timeCost, parallelism, encodedSalt, encodedHash), nil
}

// verifySecret reports whether secret matches encoded.
func verifySecret(encoded, secret string) bool {
	var version int
	var memory, time, parallelism int
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	salt, hash := parts[4], parts[5]

	_, err := fmt.Sscanf(parts[2]+"$"+parts[3], "v=%d$m=%d,t=%d,p=%d", &version, &memory, &time, &parallelism)
	if err != nil {
		return false
	}

	decodedSalt, err := base64.RawStdEncoding.DecodeString(string(salt))
	if err != nil {
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(string(hash))
	if err != nil {
		return false
	}

	newHash := argon2.IDKey([]byte(secret), decodedSalt, uint32(time), uint32(memory), uint8(parallelism), uint32(keyLength))

	return fmt.Sprintf("%x", newHash) == fmt.Sprintf("%x", decodedHash)
}

// HashToken hashes a bearer session token with Argon2id before it is stored
// in a SessionTokenState, so a leaked database row never yields a usable
// token.
func HashToken(token string) (string, error) {
	return hashSecret(token)
}

// VerifyToken reports whether token matches hashedToken.
func VerifyToken(hashedToken, token string) bool {
	return verifySecret(hashedToken, token)
}
