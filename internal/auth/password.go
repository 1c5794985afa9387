package auth

// HashPassword Argon2id-hashes an account password at signup time.
func HashPassword(password string) (string, error) {
	return hashSecret(password)
}

// VerifyPassword reports whether password matches hashedPassword.
func VerifyPassword(hashedPassword, password string) bool {
	return verifySecret(hashedPassword, password)
}
