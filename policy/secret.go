// ringside/policy/secret.go
package policy

import "golang.org/x/crypto/bcrypt"

// HashSecret hashes an anonymous content password for storage.
func HashSecret(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckSecret reports whether plaintext matches the stored hash.
func CheckSecret(storedHash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}
