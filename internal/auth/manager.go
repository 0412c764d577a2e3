package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/intuneview/intuneview/internal/metrics"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthorityBaseURL = "https://login.microsoftonline.com"

	sessionKeyPending = "auth.pending"
	sessionKeyAccount = "auth.account"
)

type ManagerOptions struct {
	TenantID         string
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	AuthorityBaseURL string

	Sessions   *scs.SessionManager
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Manager owns delegated sign-in. It is created once at startup; the per-session
// state lives in the scs session and changes only through CompleteSignIn and SignOut.
type Manager struct {
	oauth      *oauth2.Config
	verifier   *IDTokenVerifier
	sessions   *scs.SessionManager
	httpClient *http.Client
	logoutURL  string
	logger     *slog.Logger
}

type pendingSignIn struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
	Nonce    string `json:"nonce"`
	Next     string `json:"next,omitempty"`
}

type sessionRecord struct {
	Account Account       `json:"account"`
	Token   *oauth2.Token `json:"token"`
	Scopes  []string      `json:"scopes"`
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	tenantID := strings.TrimSpace(opts.TenantID)
	clientID := strings.TrimSpace(opts.ClientID)
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	if strings.TrimSpace(opts.RedirectURI) == "" {
		return nil, errors.New("redirect uri is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session manager is required")
	}

	authority := strings.TrimRight(strings.TrimSpace(opts.AuthorityBaseURL), "/")
	if authority == "" {
		authority = DefaultAuthorityBaseURL
	}
	if _, err := url.ParseRequestURI(authority); err != nil {
		return nil, fmt.Errorf("invalid authority url: %w", err)
	}
	tenantBase := authority + "/" + url.PathEscape(tenantID)

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	scopes := append(append([]string(nil), LoginScopes...), DeviceManagementScopes...)

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  strings.TrimSpace(opts.RedirectURI),
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   tenantBase + "/oauth2/v2.0/authorize",
				TokenURL:  tenantBase + "/oauth2/v2.0/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier:   NewIDTokenVerifier(tenantBase+"/discovery/v2.0/keys", authority, tenantID, clientID, httpClient),
		sessions:   opts.Sessions,
		httpClient: httpClient,
		logoutURL:  tenantBase + "/oauth2/v2.0/logout",
		logger:     logger,
	}, nil
}

// Close releases the id token key cache.
func (m *Manager) Close(ctx context.Context) error {
	return m.verifier.Close(ctx)
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// BeginSignIn records a pending sign-in in the session and returns the
// authorization URL to redirect the browser to.
func (m *Manager) BeginSignIn(ctx context.Context, next string) (string, error) {
	pending := pendingSignIn{
		State:    uuid.NewString(),
		Verifier: oauth2.GenerateVerifier(),
		Nonce:    uuid.NewString(),
		Next:     next,
	}
	payload, err := json.Marshal(pending)
	if err != nil {
		return "", err
	}
	m.sessions.Put(ctx, sessionKeyPending, payload)

	return m.oauth.AuthCodeURL(pending.State,
		oauth2.S256ChallengeOption(pending.Verifier),
		oauth2.SetAuthURLParam("nonce", pending.Nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// CompleteSignIn handles the authorization response. On success the session
// token is renewed and the signed-in account is stored. It returns the path the
// user asked for before sign-in, if any.
func (m *Manager) CompleteSignIn(ctx context.Context, query url.Values) (string, error) {
	next, err := m.completeSignIn(ctx, query)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("failure").Inc()
		return "", err
	}
	metrics.SignInsTotal.WithLabelValues("success").Inc()
	return next, nil
}

func (m *Manager) completeSignIn(ctx context.Context, query url.Values) (string, error) {
	raw := m.sessions.PopBytes(ctx, sessionKeyPending)
	if len(raw) == 0 {
		return "", &Error{Op: "sign-in", Err: ErrInvalidState}
	}
	var pending pendingSignIn
	if err := json.Unmarshal(raw, &pending); err != nil {
		return "", &Error{Op: "sign-in", Err: ErrInvalidState}
	}
	if got := query.Get("state"); got == "" || got != pending.State {
		return "", &Error{Op: "sign-in", Err: ErrInvalidState}
	}

	if code := strings.TrimSpace(query.Get("error")); code != "" {
		desc := strings.TrimSpace(query.Get("error_description"))
		if desc == "" {
			return "", &Error{Op: "sign-in", Err: fmt.Errorf("%w: %s", ErrProviderRejected, code)}
		}
		return "", &Error{Op: "sign-in", Err: fmt.Errorf("%w: %s: %s", ErrProviderRejected, code, desc)}
	}
	code := strings.TrimSpace(query.Get("code"))
	if code == "" {
		return "", &Error{Op: "sign-in", Err: errors.New("authorization code is missing")}
	}

	tok, err := m.oauth.Exchange(m.clientContext(ctx), code, oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		return "", &Error{Op: "redeem authorization code", Err: err}
	}

	rawID, _ := tok.Extra("id_token").(string)
	claims, err := m.verifier.Verify(ctx, rawID, pending.Nonce)
	if err != nil {
		return "", &Error{Op: "verify id token", Err: err}
	}

	rec := sessionRecord{
		Account: claims.Account(),
		Token:   tok,
		Scopes:  grantedScopes(tok, m.oauth.Scopes),
	}
	if err := m.sessions.RenewToken(ctx); err != nil {
		return "", err
	}
	if err := m.putRecord(ctx, rec); err != nil {
		return "", err
	}

	m.logger.Info("user signed in",
		"account", rec.Account.HomeAccountID,
		"tenant_id", rec.Account.TenantID,
	)
	return pending.Next, nil
}

// SignOut tears down the session. The returned URL ends the identity provider's
// session and sends the browser back to postLogoutRedirect.
func (m *Manager) SignOut(ctx context.Context, postLogoutRedirect string) (string, error) {
	if err := m.sessions.Destroy(ctx); err != nil {
		return "", err
	}
	return m.LogoutURL(postLogoutRedirect), nil
}

func (m *Manager) LogoutURL(postLogoutRedirect string) string {
	postLogoutRedirect = strings.TrimSpace(postLogoutRedirect)
	if postLogoutRedirect == "" {
		return m.logoutURL
	}
	return m.logoutURL + "?" + url.Values{"post_logout_redirect_uri": {postLogoutRedirect}}.Encode()
}

// State returns the accounts of the current session.
func (m *Manager) State(ctx context.Context) State {
	rec, ok := m.record(ctx)
	if !ok {
		return State{}
	}
	return State{Accounts: []Account{rec.Account}}
}

// AcquireToken returns an access token for account, refreshing it through the
// stored refresh token when it has expired.
func (m *Manager) AcquireToken(ctx context.Context, scopes []string, account Account) (Token, error) {
	tok, err := m.acquireToken(ctx, scopes, account)
	if err != nil {
		metrics.TokenAcquisitionsTotal.WithLabelValues(ProviderDelegated, "failure").Inc()
		return Token{}, err
	}
	metrics.TokenAcquisitionsTotal.WithLabelValues(ProviderDelegated, "success").Inc()
	return tok, nil
}

func (m *Manager) acquireToken(ctx context.Context, scopes []string, account Account) (Token, error) {
	rec, ok := m.record(ctx)
	if !ok || rec.Token == nil {
		return Token{}, &Error{Op: "acquire token", Err: ErrNoSession}
	}
	if account.HomeAccountID != rec.Account.HomeAccountID {
		return Token{}, &Error{Op: "acquire token", Err: ErrAccountMismatch}
	}
	if missing := missingScopes(rec.Scopes, scopes); len(missing) > 0 {
		return Token{}, &Error{Op: "acquire token", Err: fmt.Errorf("%w for %s", ErrConsentRequired, strings.Join(missing, ", "))}
	}

	current, err := m.oauth.TokenSource(m.clientContext(ctx), rec.Token).Token()
	if err != nil {
		return Token{}, &Error{Op: "refresh token", Err: err}
	}
	if current.AccessToken != rec.Token.AccessToken {
		rec.Token = current
		rec.Scopes = grantedScopes(current, rec.Scopes)
		if err := m.putRecord(ctx, rec); err != nil {
			return Token{}, err
		}
		m.logger.Debug("access token refreshed", "account", rec.Account.HomeAccountID)
	}

	return Token{
		AccessToken: current.AccessToken,
		ExpiresAt:   current.Expiry,
		Scopes:      append([]string(nil), rec.Scopes...),
	}, nil
}

func (m *Manager) record(ctx context.Context) (sessionRecord, bool) {
	raw := m.sessions.GetBytes(ctx, sessionKeyAccount)
	if len(raw) == 0 {
		return sessionRecord{}, false
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		m.logger.Warn("discarding unreadable session record", "err", err)
		m.sessions.Remove(ctx, sessionKeyAccount)
		return sessionRecord{}, false
	}
	if rec.Account.HomeAccountID == "" {
		return sessionRecord{}, false
	}
	return rec, true
}

func (m *Manager) putRecord(ctx context.Context, rec sessionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.sessions.Put(ctx, sessionKeyAccount, payload)
	return nil
}

// grantedScopes reads the "scope" field of a token response. An omitted field
// means the requested scopes were granted unchanged.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if raw, ok := tok.Extra("scope").(string); ok && strings.TrimSpace(raw) != "" {
		return parseScopeList(raw)
	}
	return append([]string(nil), requested...)
}
