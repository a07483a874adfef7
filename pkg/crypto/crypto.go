package crypto

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a bcrypt hash against its possible plain-text equivalent.
func CheckPassword(hashed, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}

// StorageName builds a collision-free on-disk filename for an uploaded file.
// The random prefix guarantees the stored name never equals the client-supplied one.
func StorageName(originalName string) string {
	return fmt.Sprintf("%s_%s", uuid.NewString(), originalName)
}
