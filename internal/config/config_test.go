package config

import (
	"strings"
	"testing"
	"time"
)

func setIdentityEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENTRA_TENANT_ID", "11111111-2222-3333-4444-555555555555")
	t.Setenv("ENTRA_CLIENT_ID", "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	t.Setenv("ENTRA_REDIRECT_URI", "")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_LIFETIME", "")
	t.Setenv("GRAPH_TIMEOUT", "")
	t.Setenv("GRAPH_BASE_URL", "")
}

func TestLoad_Defaults(t *testing.T) {
	setIdentityEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != defaultHTTPAddr {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.HTTPAddr, defaultHTTPAddr)
	}
	if cfg.RedirectURI != defaultRedirectURI {
		t.Fatalf("RedirectURI = %q, want %q", cfg.RedirectURI, defaultRedirectURI)
	}
	if cfg.GraphBaseURL != defaultGraphBaseURL {
		t.Fatalf("GraphBaseURL = %q, want %q", cfg.GraphBaseURL, defaultGraphBaseURL)
	}
	if cfg.SessionStore != SessionStoreMemory {
		t.Fatalf("SessionStore = %q, want %q", cfg.SessionStore, SessionStoreMemory)
	}
	if cfg.SessionLifetime != defaultSessionLifetime {
		t.Fatalf("SessionLifetime = %s, want %s", cfg.SessionLifetime, defaultSessionLifetime)
	}
	if cfg.GraphTimeout != 0 {
		t.Fatalf("GraphTimeout = %s, want 0", cfg.GraphTimeout)
	}
	if got := cfg.BaseURL(); got != "http://localhost:8080" {
		t.Fatalf("BaseURL() = %q, want %q", got, "http://localhost:8080")
	}
}

func TestLoad_RequiresIdentity(t *testing.T) {
	tests := []struct {
		name    string
		tenant  string
		client  string
		wantErr string
	}{
		{name: "missing tenant", tenant: "", client: "c", wantErr: "ENTRA_TENANT_ID"},
		{name: "missing client", tenant: "t", client: "", wantErr: "ENTRA_CLIENT_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setIdentityEnv(t)
			t.Setenv("ENTRA_TENANT_ID", tt.tenant)
			t.Setenv("ENTRA_CLIENT_ID", tt.client)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RejectsRelativeRedirectURI(t *testing.T) {
	setIdentityEnv(t)
	t.Setenv("ENTRA_REDIRECT_URI", "/auth/callback")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative redirect URI")
	}
}

func TestLoadWithOptions_PostgresSessionStoreNeedsDatabaseURL(t *testing.T) {
	setIdentityEnv(t)
	t.Setenv("SESSION_STORE", "postgres")

	if _, err := LoadWithOptions(LoadOptions{}); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/intuneview")
	cfg, err := LoadWithOptions(LoadOptions{})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.SessionStore != SessionStorePostgres {
		t.Fatalf("SessionStore = %q, want %q", cfg.SessionStore, SessionStorePostgres)
	}
}

func TestLoadWithOptions_UnknownSessionStore(t *testing.T) {
	setIdentityEnv(t)
	t.Setenv("SESSION_STORE", "redis")

	if _, err := LoadWithOptions(LoadOptions{}); err == nil {
		t.Fatal("expected SESSION_STORE error")
	}
}

func TestLoadWithOptions_ParsesDurationsAndTrimsBaseURLs(t *testing.T) {
	setIdentityEnv(t)
	t.Setenv("SESSION_LIFETIME", "90m")
	t.Setenv("GRAPH_TIMEOUT", "45s")
	t.Setenv("GRAPH_BASE_URL", "http://graph.test/v1.0/")

	cfg, err := LoadWithOptions(LoadOptions{RequireIdentity: true})
	if err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
	if cfg.SessionLifetime != 90*time.Minute {
		t.Fatalf("SessionLifetime = %s, want 1h30m0s", cfg.SessionLifetime)
	}
	if cfg.GraphTimeout != 45*time.Second {
		t.Fatalf("GraphTimeout = %s, want 45s", cfg.GraphTimeout)
	}
	if cfg.GraphBaseURL != "http://graph.test/v1.0" {
		t.Fatalf("GraphBaseURL = %q, want trailing slash trimmed", cfg.GraphBaseURL)
	}
}

func TestLoadWithOptions_MigrateNeedsDatabaseURLOnly(t *testing.T) {
	setIdentityEnv(t)
	t.Setenv("ENTRA_TENANT_ID", "")

	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true}); err == nil {
		t.Fatal("expected DATABASE_URL error")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/intuneview")
	if _, err := LoadWithOptions(LoadOptions{RequireDatabaseURL: true}); err != nil {
		t.Fatalf("LoadWithOptions() error = %v", err)
	}
}
