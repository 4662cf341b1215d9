package config

import (
	"time"

	"github.com/jrsteele09/go-authserver-security/internal/utils"
)

type SecurityConfig interface {
	GetRealm() string
	GetSSLOnly() bool
	GetAllowFormAuthenticationForClients() bool
	GetTokenKeyAccess() string
	GetCheckTokenAccess() string
	GetEnableRateLimiting() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
	GetRateLimitIdleTTL() time.Duration
}

type securitySection struct {
	Realm                             string  `yaml:"realm"`
	SSLOnly                           *bool   `yaml:"ssl_only"`
	AllowFormAuthenticationForClients *bool   `yaml:"allow_form_authentication_for_clients"`
	TokenKeyAccess                    string  `yaml:"token_key_access"`
	CheckTokenAccess                  string  `yaml:"check_token_access"`
	RateLimitRPS                      float64 `yaml:"rate_limit_rps"`
	RateLimitBurst                    int     `yaml:"rate_limit_burst"`
}

type Security struct {
	file securitySection
}

var _ SecurityConfig = Security{}

func (s Security) GetRealm() string {
	return GetEnv("SECURITY_REALM", orDefault(s.file.Realm, "oauth2/client"))
}

func (s Security) GetSSLOnly() bool {
	return GetEnvBool("SECURITY_SSL_ONLY", utils.Value(s.file.SSLOnly))
}

func (s Security) GetAllowFormAuthenticationForClients() bool {
	return GetEnvBool("SECURITY_ALLOW_FORM_AUTH", utils.Value(s.file.AllowFormAuthenticationForClients))
}

func (s Security) GetTokenKeyAccess() string {
	return GetEnv("TOKEN_KEY_ACCESS", orDefault(s.file.TokenKeyAccess, "denyAll()"))
}

func (s Security) GetCheckTokenAccess() string {
	return GetEnv("CHECK_TOKEN_ACCESS", orDefault(s.file.CheckTokenAccess, "denyAll()"))
}

// GetEnableRateLimiting is true once a positive request rate is configured.
func (s Security) GetEnableRateLimiting() bool {
	return s.GetRateLimitRPS() > 0
}

func (s Security) GetRateLimitRPS() float64 {
	return GetEnvFloat("RATE_LIMIT_RPS", s.file.RateLimitRPS)
}

func (s Security) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", orDefault(s.file.RateLimitBurst, 10))
}

func (Security) GetRateLimitIdleTTL() time.Duration {
	return 10 * time.Minute
}
