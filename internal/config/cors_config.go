package config

import (
	"sort"
	"strings"
)

const corsOriginsEnvVar = "CORS_ALLOWED_ORIGINS"

type corsSection struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods string   `yaml:"allowed_methods"`
	AllowedHeaders string   `yaml:"allowed_headers"`
}

type Cors struct {
	file corsSection
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins reads a comma separated CORS_ALLOWED_ORIGINS, then the file.
func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := c.file.AllowedOrigins
	if env := GetEnv(corsOriginsEnvVar, ""); env != "" {
		origins = strings.Split(env, ",")
	}
	allowed := AllowedOrigins{}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = nullValue{}
		}
	}
	return allowed
}

func (c Cors) GetAllowedMethods() string {
	return orDefault(c.file.AllowedMethods, "GET, POST")
}

func (c Cors) GetAllowedHeaders() string {
	return orDefault(c.file.AllowedHeaders, "Content-Type, Authorization")
}
