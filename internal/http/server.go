package httpapp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/intuneview/intuneview/internal/config"
	"github.com/intuneview/intuneview/internal/controller"
	"github.com/intuneview/intuneview/internal/http/authn"
	"github.com/intuneview/intuneview/internal/http/handlers"
	"github.com/intuneview/intuneview/internal/logging"
	"github.com/intuneview/intuneview/internal/metrics"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxRequestIDLen   = 128
)

type ServerOptions struct {
	Config   config.Config
	Sessions *scs.SessionManager
	Auth     handlers.Authenticator
	Graph    controller.GraphReader
	Logger   *slog.Logger
}

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h        *handlers.Handlers
	e        *echo.Echo
	sessions *scs.SessionManager
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(opts ServerOptions) (*EchoServer, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if opts.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if opts.Graph == nil {
		return nil, errors.New("graph reader is required")
	}

	e := echo.New()
	e.Logger = logging.Component(opts.Logger, "http")

	h := &handlers.Handlers{
		Cfg:    opts.Config,
		Auth:   opts.Auth,
		Graph:  opts.Graph,
		Logger: opts.Logger,
	}
	es := &EchoServer{h: h, e: e, sessions: opts.Sessions}
	e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.Use(middleware.Recover())
	es.e.Use(requestID)
	es.e.Use(logRequests)
	es.e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   es.h.Cfg.AuthCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	es.e.GET("/healthz", es.h.HandleHealthz)
	es.e.GET("/login", es.h.HandleLoginGet)
	es.e.POST("/login", es.h.HandleLoginPost)
	es.e.GET("/auth/callback", es.h.HandleAuthCallback)
	es.e.POST("/logout", es.h.HandleLogoutPost)

	authed := es.e.Group("", authn.RequireAuth(es.h.Auth))
	authed.GET("/", es.h.HandleDashboard)
	authed.GET("/configurations", es.h.HandleConfigurations)
	authed.GET("/compliance", es.h.HandleCompliancePolicies)
	authed.GET("/devices", es.h.HandleManagedDevices)
	authed.GET("/apps", es.h.HandleMobileApps)

	es.e.GET("/*", es.h.HandleUnknownRoute)
}

// Handler returns the application handler with sessions loaded and saved around
// every request and request counts recorded.
func (es *EchoServer) Handler() http.Handler {
	var h http.Handler = es.e
	if es.sessions != nil {
		h = es.sessions.LoadAndSave(h)
	}
	h = promhttp.InstrumentHandlerCounter(metrics.HTTPRequestsTotal, h)
	return promhttp.InstrumentHandlerDuration(metrics.HTTPRequestDuration, h)
}

// NewHTTPServer returns an http.Server serving Handler on addr.
func (es *EchoServer) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           es.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

func logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := time.Now()
		err := next(c)
		requestID, _ := c.Get(handlers.ContextKeyRequestID).(string)
		req := c.Request()
		c.Logger().Debug("request",
			"request_id", requestID,
			"method", req.Method,
			"path", req.URL.Path,
			"duration", time.Since(start),
			"error", err,
		)
		return err
	}
}

// httpErrorHandler never shows error details to the client. Server errors are
// logged and answered with a reference to the request id.
func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	status := httpStatusFromError(err)
	switch {
	case status >= http.StatusInternalServerError:
		_ = es.h.RenderError(c, err)
	case status == http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

func httpStatusFromError(err error) int {
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		if code := coder.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code >= 400 && he.Code <= 599 {
		return he.Code
	}
	return http.StatusInternalServerError
}
