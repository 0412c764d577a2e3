package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	testTenantID = "tenant-1"
	testClientID = "client-1"
)

var fullGrant = "openid profile email User.Read DeviceManagementConfiguration.Read.All DeviceManagementApps.Read.All DeviceManagementManagedDevices.Read.All"

type fakeAuthority struct {
	t      *testing.T
	srv    *httptest.Server
	key    jwk.Key
	tenant string
	tid    string

	mu             sync.Mutex
	nonce          string
	issuerOverride string
	keyFetches     int
	grantedScopes  string
	expiresIn      int
	codeVerifier   string
	refreshCalls   int
	tokenCalls     int
	clientCredForm url.Values
}

func newFakeAuthority(t *testing.T) *fakeAuthority {
	t.Helper()
	return newFakeAuthorityFor(t, testTenantID, testTenantID)
}

// newFakeAuthorityFor serves the endpoints under the tenant path segment and
// issues tokens for tid.
func newFakeAuthorityFor(t *testing.T, tenant, tid string) *fakeAuthority {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	key, err := jwk.Import(priv)
	if err != nil {
		t.Fatalf("jwk.Import: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, "test-key"); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		t.Fatalf("PublicKeyOf: %v", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	f := &fakeAuthority{t: t, key: key, tenant: tenant, tid: tid, grantedScopes: fullGrant, expiresIn: 3600}
	mux := http.NewServeMux()
	mux.HandleFunc("/"+tenant+"/discovery/v2.0/keys", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.keyFetches++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	})
	mux.HandleFunc("/"+tenant+"/oauth2/v2.0/token", f.handleToken)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// issuer is called with f.mu held.
func (f *fakeAuthority) issuer() string {
	if f.issuerOverride != "" {
		return f.issuerOverride
	}
	return f.srv.URL + "/" + f.tid + "/v2.0"
}

func (f *fakeAuthority) idToken(nonce string) string {
	f.t.Helper()
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(f.issuer()).
		Audience([]string{testClientID}).
		Subject("sub-1").
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("oid", "oid-1").
		Claim("tid", f.tid).
		Claim("nonce", nonce).
		Claim("preferred_username", "adele@contoso.com").
		Claim("name", "Adele Vance").
		Build()
	if err != nil {
		f.t.Fatalf("build id token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256(), f.key))
	if err != nil {
		f.t.Fatalf("sign id token: %v", err)
	}
	return string(signed)
}

func (f *fakeAuthority) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++

	resp := map[string]any{"token_type": "Bearer"}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		f.codeVerifier = r.PostForm.Get("code_verifier")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"AADSTS70008: code expired"}`))
			return
		}
		resp["access_token"] = "at-1"
		resp["refresh_token"] = "rt-1"
		resp["id_token"] = f.idToken(f.nonce)
		resp["expires_in"] = f.expiresIn
		resp["scope"] = f.grantedScopes
	case "refresh_token":
		f.refreshCalls++
		if r.PostForm.Get("refresh_token") != "rt-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		resp["access_token"] = "at-2"
		resp["refresh_token"] = "rt-1"
		resp["expires_in"] = 3600
		resp["scope"] = f.grantedScopes
	case "client_credentials":
		f.clientCredForm = r.PostForm
		resp["access_token"] = "app-token"
		resp["expires_in"] = 3600
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestManager(t *testing.T, f *fakeAuthority) (*Manager, context.Context) {
	t.Helper()

	sessions := scs.New()
	m, err := NewManager(ManagerOptions{
		TenantID:         f.tenant,
		ClientID:         testClientID,
		ClientSecret:     "secret",
		RedirectURI:      "http://localhost:8080/auth/callback",
		AuthorityBaseURL: f.srv.URL,
		Sessions:         sessions,
		HTTPClient:       f.srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	ctx, err := sessions.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("sessions.Load() error = %v", err)
	}
	return m, ctx
}

// beginSignIn starts a sign-in and primes the fake authority with its nonce.
func beginSignIn(t *testing.T, m *Manager, ctx context.Context, f *fakeAuthority, next string) url.Values {
	t.Helper()

	raw, err := m.BeginSignIn(ctx, next)
	if err != nil {
		t.Fatalf("BeginSignIn() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	f.mu.Lock()
	f.nonce = q.Get("nonce")
	f.mu.Unlock()
	return q
}

func TestBeginSignInBuildsPKCEAuthorizationURL(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)

	raw, err := m.BeginSignIn(ctx, "/devices")
	if err != nil {
		t.Fatalf("BeginSignIn() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Path != "/"+testTenantID+"/oauth2/v2.0/authorize" {
		t.Fatalf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("client_id") != testClientID {
		t.Fatalf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("missing PKCE challenge: %v", q)
	}
	if q.Get("state") == "" || q.Get("nonce") == "" {
		t.Fatalf("missing state or nonce: %v", q)
	}
	for _, scope := range DeviceManagementScopes {
		if !strings.Contains(q.Get("scope"), scope) {
			t.Fatalf("scope %q missing from %q", scope, q.Get("scope"))
		}
	}
}

func TestSignInRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)

	if state := m.State(ctx); state.SignedIn() {
		t.Fatalf("State() before sign-in = %+v, want no accounts", state)
	}

	q := beginSignIn(t, m, ctx, f, "/devices")
	next, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}})
	if err != nil {
		t.Fatalf("CompleteSignIn() error = %v", err)
	}
	if next != "/devices" {
		t.Fatalf("next = %q, want /devices", next)
	}
	f.mu.Lock()
	if f.codeVerifier == "" {
		t.Fatal("code_verifier was not sent to the token endpoint")
	}
	f.mu.Unlock()

	state := m.State(ctx)
	account, ok := state.Active()
	if !ok {
		t.Fatal("State() has no active account after sign-in")
	}
	if account.HomeAccountID != "oid-1."+testTenantID || account.Username != "adele@contoso.com" || account.Name != "Adele Vance" {
		t.Fatalf("account = %+v", account)
	}

	tok, err := m.AcquireToken(ctx, DeviceManagementScopes, account)
	if err != nil {
		t.Fatalf("AcquireToken() error = %v", err)
	}
	if tok.AccessToken != "at-1" {
		t.Fatalf("AccessToken = %q, want at-1", tok.AccessToken)
	}
}

func TestCompleteSignInRejectsStateMismatch(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)
	beginSignIn(t, m, ctx, f, "")

	_, err := m.CompleteSignIn(ctx, url.Values{"state": {"forged"}, "code": {"good-code"}})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}
	if m.State(ctx).SignedIn() {
		t.Fatal("session signed in after state mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 0 {
		t.Fatalf("token endpoint called %d times, want 0", f.tokenCalls)
	}
}

func TestCompleteSignInWithoutPendingState(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)

	_, err := m.CompleteSignIn(ctx, url.Values{"state": {"x"}, "code": {"good-code"}})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}
}

func TestCompleteSignInSurfacesProviderError(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")

	_, err := m.CompleteSignIn(ctx, url.Values{
		"state":             {q.Get("state")},
		"error":             {"access_denied"},
		"error_description": {"The user cancelled."},
	})
	if !errors.Is(err, ErrProviderRejected) {
		t.Fatalf("error = %v, want ErrProviderRejected", err)
	}
	if !strings.Contains(err.Error(), "access_denied: The user cancelled.") {
		t.Fatalf("error = %q, want provider description", err.Error())
	}
}

func TestCompleteSignInRejectsWrongNonce(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")
	f.mu.Lock()
	f.nonce = "replayed"
	f.mu.Unlock()

	_, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}})
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("error = %v, want ErrInvalidIDToken", err)
	}
	var authErr *Error
	if !errors.As(err, &authErr) || authErr.Op != "verify id token" {
		t.Fatalf("error = %#v, want *Error with verify op", err)
	}
}

func TestSignInWithDomainTenant(t *testing.T) {
	t.Parallel()

	const tid = "9f0c1e2d-3b4a-4c5d-8e6f-7a8b9c0d1e2f"
	f := newFakeAuthorityFor(t, "contoso.onmicrosoft.com", tid)
	m, ctx := newTestManager(t, f)

	q := beginSignIn(t, m, ctx, f, "")
	if _, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}}); err != nil {
		t.Fatalf("CompleteSignIn() error = %v", err)
	}
	account, ok := m.State(ctx).Active()
	if !ok {
		t.Fatal("State() has no active account after sign-in")
	}
	if account.TenantID != tid || account.HomeAccountID != "oid-1."+tid {
		t.Fatalf("account = %+v", account)
	}
}

func TestCompleteSignInRejectsIssuerOfOtherTenant(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	f.issuerOverride = f.srv.URL + "/other-tenant/v2.0"
	m, ctx := newTestManager(t, f)

	q := beginSignIn(t, m, ctx, f, "")
	_, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}})
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("error = %v, want ErrInvalidIDToken", err)
	}
	if m.State(ctx).SignedIn() {
		t.Fatal("State() signed in after rejected id token")
	}
}

func TestCompleteSignInRejectsTokenForOtherTenantID(t *testing.T) {
	t.Parallel()

	f := newFakeAuthorityFor(t, "11111111-1111-4111-8111-111111111111", "22222222-2222-4222-8222-222222222222")
	m, ctx := newTestManager(t, f)

	q := beginSignIn(t, m, ctx, f, "")
	_, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}})
	if !errors.Is(err, ErrInvalidIDToken) {
		t.Fatalf("error = %v, want ErrInvalidIDToken", err)
	}
}

func TestSigningKeysFetchedOnceAcrossSignIns(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)

	for i := 0; i < 2; i++ {
		q := beginSignIn(t, m, ctx, f, "")
		if _, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}}); err != nil {
			t.Fatalf("CompleteSignIn() #%d error = %v", i+1, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keyFetches != 1 {
		t.Fatalf("key fetches = %d, want 1", f.keyFetches)
	}
}

func TestCompleteSignInRedeemFailure(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")

	_, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"stale-code"}})
	var authErr *Error
	if !errors.As(err, &authErr) || authErr.Op != "redeem authorization code" {
		t.Fatalf("error = %v, want redeem failure", err)
	}
}

func TestAcquireTokenWithoutSession(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)

	_, err := m.AcquireToken(ctx, DeviceManagementScopes, Account{HomeAccountID: "someone"})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("error = %v, want ErrNoSession", err)
	}
}

func TestAcquireTokenRequiresGrantedScopes(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	f.grantedScopes = "openid profile User.Read DeviceManagementConfiguration.Read.All"
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")
	if _, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}}); err != nil {
		t.Fatalf("CompleteSignIn() error = %v", err)
	}
	account, _ := m.State(ctx).Active()

	_, err := m.AcquireToken(ctx, DeviceManagementScopes, account)
	if !errors.Is(err, ErrConsentRequired) {
		t.Fatalf("error = %v, want ErrConsentRequired", err)
	}
	if !strings.Contains(err.Error(), "DeviceManagementApps.Read.All") {
		t.Fatalf("error = %q, want missing scope named", err.Error())
	}
}

func TestAcquireTokenRejectsOtherAccount(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")
	if _, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}}); err != nil {
		t.Fatalf("CompleteSignIn() error = %v", err)
	}

	_, err := m.AcquireToken(ctx, DeviceManagementScopes, Account{HomeAccountID: "other"})
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("error = %v, want ErrAccountMismatch", err)
	}
}

func TestAcquireTokenRefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	f.expiresIn = 1
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")
	if _, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}}); err != nil {
		t.Fatalf("CompleteSignIn() error = %v", err)
	}
	account, _ := m.State(ctx).Active()

	for i := 0; i < 2; i++ {
		tok, err := m.AcquireToken(ctx, DeviceManagementScopes, account)
		if err != nil {
			t.Fatalf("AcquireToken() #%d error = %v", i, err)
		}
		if tok.AccessToken != "at-2" {
			t.Fatalf("AcquireToken() #%d = %q, want refreshed at-2", i, tok.AccessToken)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", f.refreshCalls)
	}
}

func TestSignOutClearsState(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	m, ctx := newTestManager(t, f)
	q := beginSignIn(t, m, ctx, f, "")
	if _, err := m.CompleteSignIn(ctx, url.Values{"state": {q.Get("state")}, "code": {"good-code"}}); err != nil {
		t.Fatalf("CompleteSignIn() error = %v", err)
	}

	logoutURL, err := m.SignOut(ctx, "http://localhost:8080/login")
	if err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if m.State(ctx).SignedIn() {
		t.Fatal("State() still signed in after SignOut")
	}
	u, err := url.Parse(logoutURL)
	if err != nil {
		t.Fatalf("parse logout url: %v", err)
	}
	if u.Path != "/"+testTenantID+"/oauth2/v2.0/logout" {
		t.Fatalf("logout path = %q", u.Path)
	}
	if got := u.Query().Get("post_logout_redirect_uri"); got != "http://localhost:8080/login" {
		t.Fatalf("post_logout_redirect_uri = %q", got)
	}
}

func TestStateActive(t *testing.T) {
	t.Parallel()

	if _, ok := (State{}).Active(); ok {
		t.Fatal("empty state has an active account")
	}
	s := State{Accounts: []Account{{HomeAccountID: "a"}, {HomeAccountID: "b"}}}
	if got, ok := s.Active(); !ok || got.HomeAccountID != "a" {
		t.Fatalf("Active() = %+v, %v; want first account", got, ok)
	}
}

func TestMissingScopesNormalizesGraphPrefix(t *testing.T) {
	t.Parallel()

	granted := []string{"https://graph.microsoft.com/DeviceManagementApps.Read.All", "devicemanagementconfiguration.read.all"}
	got := missingScopes(granted, DeviceManagementScopes)
	if len(got) != 1 || got[0] != "DeviceManagementManagedDevices.Read.All" {
		t.Fatalf("missingScopes() = %v", got)
	}
}

func TestClientCredentialsReusesToken(t *testing.T) {
	t.Parallel()

	f := newFakeAuthority(t)
	p, err := NewClientCredentials(ClientCredentialsOptions{
		TenantID:         testTenantID,
		ClientID:         testClientID,
		ClientSecret:     "app-secret",
		AuthorityBaseURL: f.srv.URL,
		HTTPClient:       f.srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClientCredentials() error = %v", err)
	}
	account, ok := p.State().Active()
	if !ok {
		t.Fatal("client credentials state has no account")
	}

	for i := 0; i < 2; i++ {
		tok, err := p.AcquireToken(context.Background(), DeviceManagementScopes, account)
		if err != nil {
			t.Fatalf("AcquireToken() error = %v", err)
		}
		if tok.AccessToken != "app-token" {
			t.Fatalf("AccessToken = %q", tok.AccessToken)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenCalls != 1 {
		t.Fatalf("token calls = %d, want 1", f.tokenCalls)
	}
	if got := f.clientCredForm.Get("scope"); got != "https://graph.microsoft.com/.default" {
		t.Fatalf("scope = %q", got)
	}
	if got := f.clientCredForm.Get("client_secret"); got != "app-secret" {
		t.Fatalf("client_secret = %q", got)
	}
}

func TestClientCredentialsRejectsForeignAccount(t *testing.T) {
	t.Parallel()

	p, err := NewClientCredentials(ClientCredentialsOptions{
		TenantID:     testTenantID,
		ClientID:     testClientID,
		ClientSecret: "app-secret",
	})
	if err != nil {
		t.Fatalf("NewClientCredentials() error = %v", err)
	}
	_, err = p.AcquireToken(context.Background(), DeviceManagementScopes, Account{HomeAccountID: "user"})
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("error = %v, want ErrAccountMismatch", err)
	}
}
