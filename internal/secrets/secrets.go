// Package secrets resolves configuration values that point into HashiCorp Vault.
//
// A reference has the form vault://<mount>/<path>#<key> and names one key of a
// KV version 2 secret. Any other value is returned unchanged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

const (
	referenceScheme = "vault://"

	vaultAuthTypeToken   = "token"
	vaultAuthTypeAppRole = "approle"
)

var ErrNotFound = errors.New("secret not found")

type VaultOptions struct {
	Address          string
	Namespace        string
	AuthType         string
	Token            string
	AppRoleMountPath string
	AppRoleRoleID    string
	AppRoleSecretID  string
	HTTPClient       *http.Client
}

// Reference is a parsed vault:// value.
type Reference struct {
	Mount string
	Path  string
	Key   string
}

func (r Reference) String() string {
	return referenceScheme + r.Mount + "/" + r.Path + "#" + r.Key
}

// IsReference reports whether value uses the vault:// scheme.
func IsReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), referenceScheme)
}

func ParseReference(value string) (Reference, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, referenceScheme) {
		return Reference{}, fmt.Errorf("%q is not a vault reference", value)
	}
	rest := strings.TrimPrefix(value, referenceScheme)

	location, key, ok := strings.Cut(rest, "#")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Reference{}, errors.New("vault reference must name a key after '#'")
	}
	mount, path, ok := strings.Cut(strings.Trim(location, "/"), "/")
	mount = strings.TrimSpace(mount)
	path = strings.Trim(strings.TrimSpace(path), "/")
	if !ok || mount == "" || path == "" {
		return Reference{}, errors.New("vault reference must be vault://<mount>/<path>#<key>")
	}
	return Reference{Mount: mount, Path: path, Key: key}, nil
}

// Resolver reads KV v2 secrets. The Vault login happens lazily on first use so
// that configurations without references never contact Vault.
type Resolver struct {
	opts   VaultOptions
	client *vaultapi.Client
}

func NewResolver(opts VaultOptions) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve returns value itself, or the secret it references.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	ref, err := ParseReference(value)
	if err != nil {
		return "", err
	}
	if r.client == nil {
		client, err := newVaultClient(ctx, r.opts)
		if err != nil {
			return "", err
		}
		r.client = client
	}

	secret, err := r.client.KVv2(ref.Mount).Get(ctx, ref.Path)
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return "", fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", ref, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	raw, ok := secret.Data[ref.Key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s: key %q: %w", ref, ref.Key, ErrNotFound)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: key %q is not a string", ref, ref.Key)
	}
	return s, nil
}

func newVaultClient(ctx context.Context, opts VaultOptions) (*vaultapi.Client, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, errors.New("vault address is required to resolve vault:// references")
	}
	authType := strings.ToLower(strings.TrimSpace(opts.AuthType))
	if authType == "" {
		authType = vaultAuthTypeToken
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = address
	if opts.HTTPClient != nil {
		cfg.HttpClient = opts.HTTPClient
	} else {
		cfg.HttpClient = &http.Client{Timeout: 30 * time.Second}
	}

	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client setup: %w", err)
	}
	if namespace := strings.TrimSpace(opts.Namespace); namespace != "" {
		client.SetNamespace(namespace)
	}

	switch authType {
	case vaultAuthTypeToken:
		token := strings.TrimSpace(opts.Token)
		if token == "" {
			return nil, errors.New("vault token is required")
		}
		client.SetToken(token)
	case vaultAuthTypeAppRole:
		roleID := strings.TrimSpace(opts.AppRoleRoleID)
		secretID := strings.TrimSpace(opts.AppRoleSecretID)
		mountPath := strings.Trim(strings.TrimSpace(opts.AppRoleMountPath), "/")
		if mountPath == "" {
			mountPath = "approle"
		}
		if roleID == "" {
			return nil, errors.New("vault AppRole role ID is required")
		}
		if secretID == "" {
			return nil, errors.New("vault AppRole secret ID is required")
		}
		loginPath := "auth/" + mountPath + "/login"
		secret, err := client.Logical().WriteWithContext(ctx, loginPath, map[string]any{
			"role_id":   roleID,
			"secret_id": secretID,
		})
		if err != nil {
			return nil, fmt.Errorf("vault approle login at %s: %w", loginPath, err)
		}
		if secret == nil || secret.Auth == nil || strings.TrimSpace(secret.Auth.ClientToken) == "" {
			return nil, errors.New("vault approle login succeeded without client token")
		}
		client.SetToken(secret.Auth.ClientToken)
	default:
		return nil, errors.New("vault auth type is invalid")
	}
	return client, nil
}
