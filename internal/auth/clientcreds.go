package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/intuneview/intuneview/internal/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const graphDefaultScope = graphResourcePrefix + ".default"

type ClientCredentialsOptions struct {
	TenantID         string
	ClientID         string
	ClientSecret     string
	AuthorityBaseURL string
	HTTPClient       *http.Client
}

// ClientCredentials acquires app-only tokens. Application permissions are fixed by
// the app registration, so every request maps to the Graph ".default" scope.
type ClientCredentials struct {
	cfg        clientcredentials.Config
	httpClient *http.Client
	account    Account

	once   sync.Once
	source oauth2.TokenSource
}

func NewClientCredentials(opts ClientCredentialsOptions) (*ClientCredentials, error) {
	tenantID := strings.TrimSpace(opts.TenantID)
	clientID := strings.TrimSpace(opts.ClientID)
	if tenantID == "" || clientID == "" {
		return nil, errors.New("tenant id and client id are required")
	}
	if strings.TrimSpace(opts.ClientSecret) == "" {
		return nil, errors.New("client secret is required for app-only access")
	}
	authority := strings.TrimRight(strings.TrimSpace(opts.AuthorityBaseURL), "/")
	if authority == "" {
		authority = DefaultAuthorityBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     authority + "/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token",
			Scopes:       []string{graphDefaultScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		account: Account{
			HomeAccountID: clientID + "." + tenantID,
			TenantID:      tenantID,
			ObjectID:      clientID,
			Username:      clientID,
			Name:          "application",
		},
	}, nil
}

// State returns a state whose only account is the application itself.
func (p *ClientCredentials) State() State {
	return State{Accounts: []Account{p.account}}
}

func (p *ClientCredentials) AcquireToken(ctx context.Context, scopes []string, account Account) (Token, error) {
	tok, err := p.acquireToken(ctx, scopes, account)
	if err != nil {
		metrics.TokenAcquisitionsTotal.WithLabelValues(ProviderApplication, "failure").Inc()
		return Token{}, err
	}
	metrics.TokenAcquisitionsTotal.WithLabelValues(ProviderApplication, "success").Inc()
	return tok, nil
}

func (p *ClientCredentials) acquireToken(ctx context.Context, scopes []string, account Account) (Token, error) {
	if account.HomeAccountID != p.account.HomeAccountID {
		return Token{}, &Error{Op: "acquire app token", Err: ErrAccountMismatch}
	}
	if err := ctx.Err(); err != nil {
		return Token{}, &Error{Op: "acquire app token", Err: err}
	}

	// The cached source outlives any single request, so it carries only the HTTP client.
	p.once.Do(func() {
		base := context.WithValue(context.Background(), oauth2.HTTPClient, p.httpClient)
		p.source = p.cfg.TokenSource(base)
	})

	tok, err := p.source.Token()
	if err != nil {
		return Token{}, &Error{Op: "acquire app token", Err: err}
	}
	return Token{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
		Scopes:      append([]string(nil), scopes...),
	}, nil
}
