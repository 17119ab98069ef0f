package auth

import (
	"golang.org/x/crypto/bcrypt"

	"turnos/internal/apperr"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are refused
// rather than silently truncated.
const maxPasswordBytes = 72

func HashPassword(pw string) (string, error) {
	if len(pw) > maxPasswordBytes {
		return "", apperr.Invalid(apperr.CodeInvalidInput, "La contraseña es demasiado larga")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// PasswordMatches reports whether pw is the password behind hash. A malformed
// hash never matches.
func PasswordMatches(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
