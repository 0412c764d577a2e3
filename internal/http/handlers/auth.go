package handlers

import (
	"errors"
	"net/http"

	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/http/authn"
	"github.com/intuneview/intuneview/internal/http/viewmodels"
	"github.com/intuneview/intuneview/internal/http/views"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func (h *Handlers) HandleLoginGet(c *echo.Context) error {
	if h.Auth == nil {
		return errors.New("authentication not configured")
	}
	if h.Auth.State(c.Request().Context()).SignedIn() {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return h.RenderComponent(c, views.LoginPage(viewmodels.LoginViewData{
		CSRFToken: csrfToken,
		Next:      authn.SanitizeNext(c.QueryParam("next")),
		Toast:     popFlashToast(c),
	}))
}

// HandleLoginPost starts an interactive sign-in and sends the browser to the
// identity provider.
func (h *Handlers) HandleLoginPost(c *echo.Context) error {
	if h.Auth == nil {
		return errors.New("authentication not configured")
	}

	next := authn.SanitizeNext(c.FormValue("next"))
	authURL, err := h.Auth.BeginSignIn(c.Request().Context(), next)
	if err != nil {
		return err
	}
	return redirectSeeOther(c, authURL)
}

// HandleAuthCallback finishes a sign-in started by HandleLoginPost. Failures are
// shown on the login page; the session stays signed out.
func (h *Handlers) HandleAuthCallback(c *echo.Context) error {
	if h.Auth == nil {
		return errors.New("authentication not configured")
	}

	next, err := h.Auth.CompleteSignIn(c.Request().Context(), c.QueryParams())
	if err != nil {
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			return err
		}
		requestID, _ := c.Get(ContextKeyRequestID).(string)
		c.Logger().Warn("sign-in failed", "request_id", requestID, "op", authErr.Op, "error", authErr.Err)

		csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
		return h.RenderComponentStatus(c, http.StatusUnauthorized, views.LoginPage(viewmodels.LoginViewData{
			CSRFToken:    csrfToken,
			ErrorMessage: err.Error(),
		}))
	}

	h.setFlashToast(c, viewmodels.ToastViewData{
		Category: "success",
		Title:    "Signed in",
	})
	if next = authn.SanitizeNext(next); next != "" {
		return c.Redirect(http.StatusSeeOther, next)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// HandleLogoutPost destroys the session and signs the browser out of the
// identity provider, which returns it to the login page.
func (h *Handlers) HandleLogoutPost(c *echo.Context) error {
	if h.Auth == nil {
		return errors.New("authentication not configured")
	}

	postLogout := ""
	if base := h.Cfg.BaseURL(); base != "" {
		postLogout = base + "/login"
	}
	logoutURL, err := h.Auth.SignOut(c.Request().Context(), postLogout)
	if err != nil {
		return err
	}

	h.setFlashToast(c, viewmodels.ToastViewData{
		Category: "success",
		Title:    "Signed out",
	})
	return redirectSeeOther(c, logoutURL)
}
