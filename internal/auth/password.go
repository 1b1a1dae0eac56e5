package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000
)

var (
	// ErrAdminNotConfigured is returned when no admin password or hash is set.
	ErrAdminNotConfigured = errors.New("admin password not configured")
	// ErrInvalidCredentials is returned when a candidate password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AdminCredentials holds the single admin secret. PasswordHash takes
// precedence over Password when both are set.
type AdminCredentials struct {
	Password     string
	PasswordHash string
}

// Configured reports whether any admin secret is set.
func (c AdminCredentials) Configured() bool {
	return c.Password != "" || strings.TrimSpace(c.PasswordHash) != ""
}

// Verify checks candidate against the configured secret. It returns
// ErrInvalidCredentials on mismatch and ErrAdminNotConfigured when unset.
func (c AdminCredentials) Verify(candidate string) error {
	if !c.Configured() {
		return ErrAdminNotConfigured
	}
	if hash := strings.TrimSpace(c.PasswordHash); hash != "" {
		return verifyPasswordHash(hash, candidate)
	}
	if subtle.ConstantTimeCompare([]byte(c.Password), []byte(candidate)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword derives a pbkdf2-sha256 hash in the form
// pbkdf2$sha256$<iterations>$<salt>$<key>.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordHashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", passwordHashIterations, encodedSalt, encodedKey), nil
}

func verifyPasswordHash(encodedHash, candidate string) error {
	if isBcryptHash(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(candidate))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}
		return nil
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return fmt.Errorf("verify password: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("verify password: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("verify password: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("verify password: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("verify password: decode hash: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
