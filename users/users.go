package users

import (
	"errors"
	"fmt"
	"slices"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")

// User is a resource owner that can authenticate with the password grant.
type User struct {
	ID           string   `json:"id,omitempty" yaml:"id"`
	Username     string   `json:"username,omitempty" yaml:"username"`
	Email        string   `json:"email,omitempty" yaml:"email"`
	PasswordHash string   `json:"-" yaml:"password_hash"` // bcrypt hash - never serialize
	Authorities  []string `json:"authorities,omitempty" yaml:"authorities"`
	Verified     bool     `json:"verified,omitempty" yaml:"verified"`
	Blocked      bool     `json:"blocked,omitempty" yaml:"blocked"`
}

// Enabled reports whether the user may authenticate.
func (u *User) Enabled() bool {
	return u.Verified && !u.Blocked
}

func (u *User) HasAuthority(authority string) bool {
	return slices.Contains(u.Authorities, authority)
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
