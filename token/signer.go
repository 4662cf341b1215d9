package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// KeyInfo is the payload served from the token_key endpoint.
type KeyInfo struct {
	Alg   string `json:"alg"`
	Value string `json:"value,omitempty"`
}

// Signer is an interface for signing and verifying JWT access tokens
type Signer interface {
	// Sign creates a signed JWT from claims
	Sign(claims jwt.MapClaims) (string, error)

	// VerificationKey returns the key used to check a parsed token's signature
	VerificationKey(token *jwt.Token) (any, error)

	SigningMethod() jwt.SigningMethod

	// KeyInfo describes the verification key. Symmetric secrets are never disclosed.
	KeyInfo() KeyInfo
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACSigner) VerificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) SigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

func (h *HMACSigner) KeyInfo() KeyInfo {
	return KeyInfo{Alg: jwt.SigningMethodHS256.Alg()}
}

// KeyPairSigner implements Signer using an RSA key pair
type KeyPairSigner struct {
	keyPair *KeyPair
}

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{
		keyPair: keyPair,
	}
}

func (a *KeyPairSigner) Sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(a.keyPair.SigningMethod(), claims)
	t.Header["kid"] = a.keyPair.KeyID

	signed, err := t.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with key pair")
	}
	return signed, nil
}

func (a *KeyPairSigner) VerificationKey(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return a.keyPair.PublicKey, nil
}

func (a *KeyPairSigner) SigningMethod() jwt.SigningMethod {
	return a.keyPair.SigningMethod()
}

func (a *KeyPairSigner) KeyInfo() KeyInfo {
	info := KeyInfo{Alg: a.keyPair.SigningMethod().Alg()}
	if pemKey, err := a.keyPair.ExportPublicKeyPEM(); err == nil {
		info.Value = pemKey
	}
	return info
}
