/**
 * @description
 * This file handles password hashing and verification for the access-service.
 * bcrypt output self-describes its cost and salt, so verification needs no
 * side channel beyond the stored hash itself.
 */
package auth

import "golang.org/x/crypto/bcrypt"

// passwordCost is the fixed bcrypt work factor for new hashes. Existing
// hashes carry their own cost and keep verifying after a change here.
const passwordCost = bcrypt.DefaultCost

// HashPassword derives a one-way adaptive hash from the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
// The comparison is constant-time inside bcrypt.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
