package authn

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/intuneview/intuneview/internal/auth"
	"github.com/labstack/echo/v5"
)

const ContextKeyAuthState = "auth_state"

// StateSource yields the authentication state of the session bound to ctx.
type StateSource interface {
	State(ctx context.Context) auth.State
}

// StateFromContext returns the state stored by RequireAuth, or the empty state.
func StateFromContext(c *echo.Context) auth.State {
	state, _ := c.Get(ContextKeyAuthState).(auth.State)
	return state
}

func RequireAuth(source StateSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			state := source.State(c.Request().Context())
			if !state.SignedIn() {
				return handleUnauth(c)
			}
			c.Set(ContextKeyAuthState, state)
			return next(c)
		}
	}
}

func handleUnauth(c *echo.Context) error {
	location := "/login"
	if c.Request().Method == http.MethodGet {
		if next := SanitizeNext(c.Request().URL.RequestURI()); next != "" {
			location = "/login?next=" + url.QueryEscape(next)
		}
	}
	if strings.EqualFold(strings.TrimSpace(c.Request().Header.Get("HX-Request")), "true") {
		c.Response().Header().Set("HX-Redirect", location)
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.Redirect(http.StatusSeeOther, location)
}

// SanitizeNext returns next when it is a local path worth returning to after
// sign-in, and "" otherwise.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || next == "/" || len(next) > 2048 {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	for _, r := range next {
		if unicode.IsControl(r) {
			return ""
		}
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	if strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, "\\") {
		return ""
	}
	if u.Path == "/login" || strings.HasPrefix(u.Path, "/login/") || strings.HasPrefix(u.Path, "/auth/") {
		return ""
	}
	return next
}
