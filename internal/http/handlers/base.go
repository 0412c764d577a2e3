// Package handlers contains HTTP handler logic split by screen.
package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/config"
	"github.com/intuneview/intuneview/internal/controller"
	"github.com/intuneview/intuneview/internal/http/authn"
	"github.com/intuneview/intuneview/internal/http/viewmodels"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// Authenticator is the delegated sign-in surface the handlers need. *auth.Manager
// implements it.
type Authenticator interface {
	auth.TokenProvider
	authn.StateSource
	BeginSignIn(ctx context.Context, next string) (string, error)
	CompleteSignIn(ctx context.Context, query url.Values) (string, error)
	SignOut(ctx context.Context, postLogoutRedirect string) (string, error)
}

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg    config.Config
	Auth   Authenticator
	Graph  controller.GraphReader
	Logger *slog.Logger
}

func (h *Handlers) controllerOptions() []controller.Option {
	return []controller.Option{controller.WithLogger(h.Logger)}
}

// LayoutData builds the common layout data for page rendering.
func (h *Handlers) LayoutData(c *echo.Context, title string) viewmodels.LayoutData {
	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	layout := viewmodels.LayoutData{
		Title:      title,
		CSRFToken:  csrfToken,
		Toast:      popFlashToast(c),
		ActivePath: c.Request().URL.Path,
	}
	if account, ok := authn.StateFromContext(c).Active(); ok {
		layout.UserName = account.Name
		layout.UserEmail = account.Username
	}
	return layout
}

// RenderComponent renders a templ component as the response.
func (h *Handlers) RenderComponent(c *echo.Context, component templ.Component) error {
	return h.RenderComponentStatus(c, http.StatusOK, component)
}

// RenderComponentStatus renders a templ component with an explicit status code.
func (h *Handlers) RenderComponentStatus(c *echo.Context, status int, component templ.Component) error {
	var buf bytes.Buffer
	if err := component.Render(c.Request().Context(), &buf); err != nil {
		return h.RenderError(c, err)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// RenderError returns a plain text error response.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	path := ""
	if req := c.Request(); req != nil && req.URL != nil {
		path = req.URL.Path
	}
	method := ""
	if req := c.Request(); req != nil {
		method = req.Method
	}
	c.Logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	msg = fmt.Sprintf("%s Code: %s.", msg, InternalErrorCode)
	return c.String(http.StatusInternalServerError, msg)
}

// RenderNotFound returns a 404 response.
func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}

func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// HandleUnknownRoute sends every unmatched GET back to the dashboard.
func (h *Handlers) HandleUnknownRoute(c *echo.Context) error {
	return c.Redirect(http.StatusFound, "/")
}
