package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials is the single admin identity configured for the site.
type AdminCredentials struct {
	Email        string
	Password     string
	PasswordHash string
}

// Check compares both values without short-circuiting so that a wrong email
// and a wrong password take the same path.
func (c AdminCredentials) Check(email, password string) bool {
	if c.Email == "" || (c.Password == "" && c.PasswordHash == "") {
		return false
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(strings.TrimSpace(c.Email))),
	) == 1

	var passwordOK bool
	if c.PasswordHash != "" {
		passwordOK = bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	} else {
		passwordOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	}
	return emailOK && passwordOK && password != ""
}
