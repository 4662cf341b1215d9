package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
	BootstrapConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// fileConfig is the optional YAML overlay. Environment variables win over the file,
// the file wins over built-in defaults.
type fileConfig struct {
	Server   serverSection   `yaml:"server"`
	Cors     corsSection     `yaml:"cors"`
	OAuth    oauthSection    `yaml:"oauth"`
	Security securitySection `yaml:"security"`
	Storage  storageSection  `yaml:"storage"`
	Seed     seedSection     `yaml:"seed"`
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Storage
	Bootstrap
}

// New returns a configuration backed by the environment and built-in defaults only.
func New() Config {
	return fromFile(fileConfig{})
}

// Load reads the optional .env files into the environment, then the optional YAML file.
func Load(path string, envFiles ...string) (Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, errors.Wrap(err, "[config.Load] env files")
		}
	}
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "[config.Load] read")
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] parse %s", path)
		}
	}
	return fromFile(fc), nil
}

func fromFile(fc fileConfig) Config {
	return mainConfig{
		EnvVars:   EnvVars{file: fc.Server},
		Cors:      Cors{file: fc.Cors},
		OAuth:     OAuth{file: fc.OAuth},
		Security:  Security{file: fc.Security},
		Storage:   Storage{file: fc.Storage},
		Bootstrap: Bootstrap{file: fc.Seed},
	}
}
