package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes an account password with bcrypt at the default cost.
// Session participation never touches passwords; only accounts do.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
