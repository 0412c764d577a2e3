package views

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/intuneview/intuneview/internal/http/viewmodels"
)

func renderViewComponent(t *testing.T, component templ.Component) string {
	t.Helper()

	var buf bytes.Buffer
	if err := component.Render(context.Background(), &buf); err != nil {
		t.Fatalf("render component: %v", err)
	}
	return buf.String()
}

func assertContains(t *testing.T, content, want string) {
	t.Helper()
	if !strings.Contains(content, want) {
		t.Fatalf("expected rendered HTML to contain %q", want)
	}
}

func assertNotContains(t *testing.T, content, disallowed string) {
	t.Helper()
	if strings.Contains(content, disallowed) {
		t.Fatalf("expected rendered HTML to not contain %q", disallowed)
	}
}

func TestLayoutEnablesGlobalHTMXBoost(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		Title:     "Dashboard",
		CSRFToken: "csrf-token-123",
	}))

	assertContains(t, html, `hx-boost="true"`)
	assertContains(t, html, `X-CSRF-Token`)
	assertContains(t, html, `csrf-token-123`)
	assertContains(t, html, `<title>Dashboard · Intune Config Viewer</title>`)
}

func TestLayoutLogoutFormOptsOutOfHTMXBoost(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		Title:     "Dashboard",
		CSRFToken: "csrf-token-123",
		UserEmail: "adele@contoso.com",
	}))

	assertContains(t, html, `form method="post" action="/logout" hx-boost="false"`)
	assertContains(t, html, `name="csrf" value="csrf-token-123"`)
}

func TestLayoutHidesNavigationWithoutUser(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{Title: "Sign in"}))
	assertNotContains(t, html, `action="/logout"`)
	assertNotContains(t, html, `class="navbar"`)
}

func TestLayoutMarksActiveNavigationItem(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, Layout(viewmodels.LayoutData{
		UserEmail:  "adele@contoso.com",
		ActivePath: "/devices",
	}))

	assertContains(t, html, `<a href="/devices" aria-current="page">Managed Devices</a>`)
	assertContains(t, html, `<a href="/">Dashboard</a>`)
}

func TestLayoutRendersChildrenAndToast(t *testing.T) {
	t.Parallel()

	child := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p id="child">hello</p>`)
		return err
	})
	layout := Layout(viewmodels.LayoutData{
		Toast: &viewmodels.ToastViewData{Category: "error", Title: "Sign-in failed", Description: "<script>"},
	})

	var buf bytes.Buffer
	if err := layout.Render(templ.WithChildren(context.Background(), child), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()

	assertContains(t, html, `<main class="container">`)
	assertContains(t, html, `<p id="child">hello</p>`)
	assertContains(t, html, `role="alert"`)
	assertContains(t, html, `Sign-in failed`)
	assertNotContains(t, html, `<span><script>`)
}

func TestLoginPageSignInForm(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, LoginPage(viewmodels.LoginViewData{
		CSRFToken:    "tok",
		Next:         "/devices",
		ErrorMessage: "authentication failed: redeem authorization code: invalid_grant",
	}))

	assertContains(t, html, `Intune Configuration Viewer`)
	assertContains(t, html, `<form method="post" action="/login" hx-boost="false">`)
	assertContains(t, html, `name="next" value="/devices"`)
	assertContains(t, html, `Sign in with Microsoft`)
	assertContains(t, html, `Error: authentication failed: redeem authorization code: invalid_grant`)
	assertNotContains(t, html, `action="/logout"`)
}
