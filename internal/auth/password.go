package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches spec.md's "bcrypt-hashed" requirement for both
// Client.Secret and User.Password.
const bcryptCost = 12

// HashPassword bcrypt-hashes a plaintext secret/password for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
