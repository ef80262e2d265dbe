package fileproxy

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Backends.
const (
	BackendB2    = "b2"
	BackendLocal = "local"
)

const evoPrefix = "evolution-api/"

// Scope selects a credential set.
type Scope string

const (
	ScopeDefault Scope = "default"
	ScopeEvo     Scope = "evo"
)

// ScopeFor returns the credential scope of a workspace id.
func ScopeFor(workspaceID string) Scope {
	if strings.HasPrefix(workspaceID, evoPrefix) {
		return ScopeEvo
	}
	return ScopeDefault
}

// Credentials is one B2 key with its bucket.
type Credentials struct {
	KeyID          string
	ApplicationKey string
	Bucket         string
	Endpoint       string
	Region         string
}

// Valid reports whether both key parts are set.
func (c Credentials) Valid() bool {
	return c.KeyID != "" && c.ApplicationKey != ""
}

type Config struct {
	Port     string
	Backend  string
	LocalDir string
	Default  Credentials
	Evo      Credentials
}

// For returns the credentials of a scope.
func (c Config) For(s Scope) Credentials {
	if s == ScopeEvo {
		return c.Evo
	}
	return c.Default
}

// LoadConfig reads the environment, loading .env first when present.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     getEnv("PORT", "3000"),
		Backend:  strings.ToLower(getEnv("FILES_BACKEND", BackendB2)),
		LocalDir: getEnv("FILES_LOCAL_DIR", "./files"),
		Default:  credentialsFromEnv(""),
		Evo:      credentialsFromEnv("_EVO"),
	}

	switch cfg.Backend {
	case BackendB2, BackendLocal:
	default:
		return Config{}, fmt.Errorf("FILES_BACKEND must be %q or %q, got %q", BackendB2, BackendLocal, cfg.Backend)
	}
	return cfg, nil
}

func credentialsFromEnv(suffix string) Credentials {
	region := getEnv("B2_REGION"+suffix, "us-west-004")
	return Credentials{
		KeyID:          os.Getenv("B2_KEY_ID" + suffix),
		ApplicationKey: os.Getenv("B2_APPLICATION_KEY" + suffix),
		Bucket:         getEnv("B2_BUCKET_NAME"+suffix, "advocatech2"),
		Endpoint:       getEnv("B2_ENDPOINT"+suffix, "s3."+region+".backblazeb2.com"),
		Region:         region,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
