package utils

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes a tenant API secret for storage.
func HashSecret(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckSecret compares a stored hash against a presented API secret.
func CheckSecret(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
