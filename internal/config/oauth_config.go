package config

import "time"

type OAuthConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetIssuer() string
	GetJWTSecret() string
	GetJWTKeyFile() string
}

type oauthSection struct {
	AuthCodeTTL     time.Duration `yaml:"auth_code_ttl"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	Issuer          string        `yaml:"issuer"`
	JWTSecret       string        `yaml:"jwt_secret"`
	JWTKeyFile      string        `yaml:"jwt_key_file"`
}

type OAuth struct {
	file oauthSection
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetAuthCodeTimeout() time.Duration {
	return GetEnvDuration("AUTH_CODE_TTL", orDefault(o.file.AuthCodeTTL, 5*time.Minute))
}

func (o OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_TTL", orDefault(o.file.AccessTokenTTL, time.Hour))
}

func (o OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_TTL", orDefault(o.file.RefreshTokenTTL, 7*24*time.Hour)) // 7 days
}

// GetIssuer is empty unless configured; callers fall back to the base URL.
func (o OAuth) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", o.file.Issuer)
}

// GetJWTSecret enables HS256 signed access tokens when set.
func (o OAuth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", o.file.JWTSecret)
}

// GetJWTKeyFile points at a PEM encoded RSA private key and takes precedence over the secret.
func (o OAuth) GetJWTKeyFile() string {
	return GetEnv("JWT_KEY_FILE", o.file.JWTKeyFile)
}
