package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	idTokenClockSkew = 2 * time.Minute
	jwksMinRefresh   = 15 * time.Minute
)

// IDClaims are the identity claims read from a verified id token.
type IDClaims struct {
	Subject           string
	ObjectID          string
	TenantID          string
	PreferredUsername string
	Email             string
	Name              string
}

func (c IDClaims) Account() Account {
	username := c.PreferredUsername
	if username == "" {
		username = c.Email
	}
	home := c.Subject
	if c.ObjectID != "" && c.TenantID != "" {
		home = c.ObjectID + "." + c.TenantID
	}
	return Account{
		HomeAccountID: home,
		TenantID:      c.TenantID,
		ObjectID:      c.ObjectID,
		Username:      username,
		Name:          c.Name,
	}
}

// IDTokenVerifier checks id token signatures against the tenant's published keys.
// The key set is cached after the first sign-in and refetched when a token names
// a key id the cached set does not have.
//
// The issuer must be the authority followed by the token's own tid claim. When the
// configured tenant is a tenant id the tid must also match it; domain names and the
// multi-tenant aliases accept any tenant the authority signed for.
type IDTokenVerifier struct {
	jwksURL    string
	authority  string
	tenantID   string
	clientID   string
	httpClient *http.Client

	mu    sync.Mutex
	cache *jwk.Cache
}

func NewIDTokenVerifier(jwksURL, authority, tenant, clientID string, httpClient *http.Client) *IDTokenVerifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IDTokenVerifier{
		jwksURL:    jwksURL,
		authority:  strings.TrimRight(authority, "/"),
		tenantID:   pinnedTenantID(tenant),
		clientID:   clientID,
		httpClient: httpClient,
	}
}

// pinnedTenantID returns the tenant id tokens must carry, or "" when the
// configured tenant is a domain name or alias.
func pinnedTenantID(tenant string) string {
	id, err := uuid.Parse(strings.TrimSpace(tenant))
	if err != nil {
		return ""
	}
	return id.String()
}

func (v *IDTokenVerifier) Verify(ctx context.Context, raw, nonce string) (IDClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return IDClaims{}, ErrMissingIDToken
	}

	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return IDClaims{}, errors.Join(ErrInvalidIDToken, err)
	}
	var kid string
	if sigs := msg.Signatures(); len(sigs) > 0 {
		kid, _ = sigs[0].ProtectedHeaders().KeyID()
	}

	set, err := v.keySet(ctx, kid)
	if err != nil {
		return IDClaims{}, fmt.Errorf("fetch signing keys: %w", err)
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithAudience(v.clientID),
		jwt.WithAcceptableSkew(idTokenClockSkew),
	)
	if err != nil {
		return IDClaims{}, errors.Join(ErrInvalidIDToken, err)
	}

	tid := stringClaim(tok, "tid")
	if tid == "" {
		return IDClaims{}, fmt.Errorf("%w: no tenant", ErrInvalidIDToken)
	}
	if v.tenantID != "" && !strings.EqualFold(tid, v.tenantID) {
		return IDClaims{}, fmt.Errorf("%w: tenant mismatch", ErrInvalidIDToken)
	}
	if iss, _ := tok.Issuer(); iss != v.authority+"/"+tid+"/v2.0" {
		return IDClaims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidIDToken)
	}

	if nonce != "" {
		if got := stringClaim(tok, "nonce"); got != nonce {
			return IDClaims{}, fmt.Errorf("%w: nonce mismatch", ErrInvalidIDToken)
		}
	}

	claims := IDClaims{
		Subject:           stringClaim(tok, "sub"),
		ObjectID:          stringClaim(tok, "oid"),
		TenantID:          tid,
		PreferredUsername: stringClaim(tok, "preferred_username"),
		Email:             stringClaim(tok, "email"),
		Name:              stringClaim(tok, "name"),
	}
	if claims.Subject == "" && claims.ObjectID == "" {
		return IDClaims{}, fmt.Errorf("%w: no subject", ErrInvalidIDToken)
	}
	return claims, nil
}

func (v *IDTokenVerifier) keySet(ctx context.Context, kid string) (jwk.Set, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cache == nil {
		cache, err := jwk.NewCache(context.Background(), httprc.NewClient())
		if err != nil {
			return nil, err
		}
		err = cache.Register(ctx, v.jwksURL,
			jwk.WithHTTPClient(v.httpClient),
			jwk.WithMinInterval(jwksMinRefresh),
		)
		if err != nil {
			_ = cache.Shutdown(ctx)
			return nil, err
		}
		v.cache = cache
	}

	set, err := v.cache.Lookup(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}
	if kid != "" {
		if _, ok := set.LookupKeyID(kid); !ok {
			return v.cache.Refresh(ctx, v.jwksURL)
		}
	}
	return set, nil
}

// Close stops the background key refresh.
func (v *IDTokenVerifier) Close(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cache == nil {
		return nil
	}
	err := v.cache.Shutdown(ctx)
	v.cache = nil
	return err
}

func stringClaim(tok jwt.Token, name string) string {
	var v string
	if err := tok.Get(name, &v); err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}
