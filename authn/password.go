package authn

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier compares a presented secret against its stored form.
type PasswordVerifier interface {
	Matches(raw, encoded string) bool
}

// PasswordVerifierFunc adapts a function to PasswordVerifier.
type PasswordVerifierFunc func(raw, encoded string) bool

func (f PasswordVerifierFunc) Matches(raw, encoded string) bool { return f(raw, encoded) }

// BcryptVerifier checks bcrypt hashes.
type BcryptVerifier struct{}

func (BcryptVerifier) Matches(raw, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(raw)) == nil
}

// PlainVerifier compares unencoded secrets in constant time.
type PlainVerifier struct{}

func (PlainVerifier) Matches(raw, encoded string) bool {
	return subtle.ConstantTimeCompare([]byte(raw), []byte(encoded)) == 1
}

// AllowBlankSecret wraps v so that a blank stored secret matches any input. This is
// how public clients, registered without a secret, authenticate at the token endpoint.
// A non-blank stored secret is always checked by v.
func AllowBlankSecret(v PasswordVerifier) PasswordVerifier {
	return blankSecretVerifier{delegate: v}
}

type blankSecretVerifier struct {
	delegate PasswordVerifier
}

func (b blankSecretVerifier) Matches(raw, encoded string) bool {
	if strings.TrimSpace(encoded) == "" {
		return true
	}
	return b.delegate.Matches(raw, encoded)
}
