// Package config loads the supervisor's environment-variable configuration.
//
// This is the one place the environment is read (spec.md §1 scopes "loading
// from environment / dotenv" as an external collaborator); every core
// package below it takes its settings as explicit constructor arguments.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config mirrors the environment variables listed in spec.md §6.
type Config struct {
	Bind    string `env:"HC_BIND,default=0.0.0.0:8080"`
	DataDir string `env:"HC_DATA_DIR,default=./data"`

	DevToken     string `env:"HC_DEV_TOKEN"`
	JWTSecret    string `env:"HC_JWT_SECRET,required"`
	JWTIssuer    string `env:"HC_JWT_ISSUER,default=hearthkeep"`
	JWTAudience  string `env:"HC_JWT_AUDIENCE,default=hearthkeep-api"`
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	AllowedCmds  string `env:"HC_ALLOWED_COMMANDS,default=*"`
	AllowedCwds  string `env:"HC_ALLOWED_CWD_PREFIXES,default=*"`
	CORSOrigins  string `env:"HC_CORS_ORIGINS"`
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Load reads a .env file if present (ignored if absent) and then decodes
// HC_* environment variables over the defaults below.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AccessTTL:  defaultAccessTTL,
		RefreshTTL: defaultRefreshTTL,
	}
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "no target field") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}
	return cfg, nil
}

// AllowedCommands parses HC_ALLOWED_COMMANDS into a set, or nil for wildcard.
func (c *Config) AllowedCommands() map[string]struct{} {
	if strings.TrimSpace(c.AllowedCmds) == "*" || strings.TrimSpace(c.AllowedCmds) == "" {
		return nil
	}
	set := make(map[string]struct{})
	for _, s := range strings.Split(c.AllowedCmds, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// AllowedCwdRoots parses HC_ALLOWED_CWD_PREFIXES into a list, "*" for wildcard.
func (c *Config) AllowedCwdRoots() []string {
	trimmed := strings.TrimSpace(c.AllowedCwds)
	if trimmed == "" || trimmed == "*" {
		return []string{"*"}
	}
	var roots []string
	for _, s := range strings.Split(trimmed, ";") {
		s = strings.TrimSpace(s)
		if s != "" {
			roots = append(roots, s)
		}
	}
	if len(roots) == 0 {
		return []string{"*"}
	}
	return roots
}

// CORSOriginList parses HC_CORS_ORIGINS into a slice ("*" allowed as a single entry).
func (c *Config) CORSOriginList() []string {
	trimmed := strings.TrimSpace(c.CORSOrigins)
	if trimmed == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(trimmed, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
