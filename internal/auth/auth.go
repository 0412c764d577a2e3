package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	ProviderDelegated   = "delegated"
	ProviderApplication = "application"

	graphResourcePrefix = "https://graph.microsoft.com/"
)

// LoginScopes are requested at sign-in together with DeviceManagementScopes so a
// single consent covers every screen.
var LoginScopes = []string{"openid", "profile", "email", "offline_access", "User.Read"}

// DeviceManagementScopes is the fixed permission set every data screen requests.
var DeviceManagementScopes = []string{
	"DeviceManagementConfiguration.Read.All",
	"DeviceManagementApps.Read.All",
	"DeviceManagementManagedDevices.Read.All",
}

var (
	ErrNoSession        = errors.New("no signed-in account")
	ErrAccountMismatch  = errors.New("account does not match the signed-in account")
	ErrConsentRequired  = errors.New("consent required")
	ErrInvalidState     = errors.New("sign-in state mismatch")
	ErrMissingIDToken   = errors.New("token response has no id_token")
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrProviderRejected = errors.New("identity provider rejected the request")
)

// Account identifies one signed-in user.
type Account struct {
	HomeAccountID string `json:"home_account_id"`
	TenantID      string `json:"tenant_id"`
	ObjectID      string `json:"object_id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
}

// Token is a bearer token. Callers forward AccessToken and never inspect expiry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Scopes      []string
}

type TokenProvider interface {
	AcquireToken(ctx context.Context, scopes []string, account Account) (Token, error)
}

// State is the authentication state of one browser session.
type State struct {
	Accounts []Account
}

// Active returns the account screens load data for.
func (s State) Active() (Account, bool) {
	if len(s.Accounts) == 0 {
		return Account{}, false
	}
	return s.Accounts[0], true
}

func (s State) SignedIn() bool {
	return len(s.Accounts) > 0
}

// Error is returned for every failed token acquisition or sign-in step.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return "authentication failed: " + e.Err.Error()
	}
	return "authentication failed: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func normalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	if len(scope) >= len(graphResourcePrefix) && strings.EqualFold(scope[:len(graphResourcePrefix)], graphResourcePrefix) {
		scope = scope[len(graphResourcePrefix):]
	}
	return strings.ToLower(scope)
}

// missingScopes returns the requested scopes not present in granted.
func missingScopes(granted, requested []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		have[normalizeScope(s)] = struct{}{}
	}
	var missing []string
	for _, s := range requested {
		n := normalizeScope(s)
		if n == "" {
			continue
		}
		if _, ok := have[n]; !ok {
			missing = append(missing, strings.TrimSpace(s))
		}
	}
	return missing
}

func parseScopeList(raw string) []string {
	return strings.Fields(raw)
}
