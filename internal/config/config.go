package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr         = ":8080"
	defaultMetricsAddr      = ":9090"
	defaultRedirectURI      = "http://localhost:8080/auth/callback"
	defaultAuthorityBaseURL = "https://login.microsoftonline.com"
	defaultGraphBaseURL     = "https://graph.microsoft.com/v1.0"
	defaultSessionLifetime  = 8 * time.Hour

	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string

	TenantID         string
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	AuthorityBaseURL string
	GraphBaseURL     string
	GraphTimeout     time.Duration

	AuthCookieSecure bool
	SessionLifetime  time.Duration
	SessionStore     string
	DatabaseURL      string

	Vault VaultConfig
}

// VaultConfig configures resolution of vault:// secret references.
type VaultConfig struct {
	Address          string
	Namespace        string
	AuthType         string
	Token            string
	AppRoleMountPath string
	AppRoleRoleID    string
	AppRoleSecretID  string
}

type LoadOptions struct {
	RequireIdentity    bool
	RequireDatabaseURL bool
}

// Load returns the configuration required by the web server.
func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireIdentity: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		HTTPAddr:         getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:      getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		TenantID:         strings.TrimSpace(os.Getenv("ENTRA_TENANT_ID")),
		ClientID:         strings.TrimSpace(os.Getenv("ENTRA_CLIENT_ID")),
		ClientSecret:     strings.TrimSpace(os.Getenv("ENTRA_CLIENT_SECRET")),
		RedirectURI:      getenvDefault("ENTRA_REDIRECT_URI", defaultRedirectURI),
		AuthorityBaseURL: strings.TrimRight(getenvDefault("ENTRA_AUTHORITY_URL", defaultAuthorityBaseURL), "/"),
		GraphBaseURL:     strings.TrimRight(getenvDefault("GRAPH_BASE_URL", defaultGraphBaseURL), "/"),
		AuthCookieSecure: getenvBoolDefault("AUTH_COOKIE_SECURE", false),
		SessionLifetime:  defaultSessionLifetime,
		SessionStore:     strings.ToLower(strings.TrimSpace(getenvDefault("SESSION_STORE", SessionStoreMemory))),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Vault: VaultConfig{
			Address:          strings.TrimSpace(os.Getenv("VAULT_ADDR")),
			Namespace:        strings.TrimSpace(os.Getenv("VAULT_NAMESPACE")),
			AuthType:         strings.ToLower(strings.TrimSpace(os.Getenv("VAULT_AUTH_TYPE"))),
			Token:            strings.TrimSpace(os.Getenv("VAULT_TOKEN")),
			AppRoleMountPath: strings.TrimSpace(os.Getenv("VAULT_APPROLE_MOUNT")),
			AppRoleRoleID:    strings.TrimSpace(os.Getenv("VAULT_APPROLE_ROLE_ID")),
			AppRoleSecretID:  strings.TrimSpace(os.Getenv("VAULT_APPROLE_SECRET_ID")),
		},
	}

	if v := os.Getenv("SESSION_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionLifetime = d
		}
	}
	if v := os.Getenv("GRAPH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.GraphTimeout = d
		}
	}

	switch cfg.SessionStore {
	case SessionStoreMemory:
	case SessionStorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, errors.New("DATABASE_URL is required when SESSION_STORE=postgres")
		}
	default:
		return cfg, fmt.Errorf("SESSION_STORE must be one of: %s, %s", SessionStoreMemory, SessionStorePostgres)
	}

	if opts.RequireIdentity {
		if cfg.TenantID == "" {
			return cfg, errors.New("ENTRA_TENANT_ID is required")
		}
		if cfg.ClientID == "" {
			return cfg, errors.New("ENTRA_CLIENT_ID is required")
		}
		if _, err := parseAbsoluteURL(cfg.RedirectURI); err != nil {
			return cfg, fmt.Errorf("ENTRA_REDIRECT_URI: %w", err)
		}
	}
	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

// BaseURL is the scheme and host of the redirect URI, used for post-logout redirects.
func (c Config) BaseURL() string {
	u, err := parseAbsoluteURL(c.RedirectURI)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q must be an absolute URL", raw)
	}
	return u, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
