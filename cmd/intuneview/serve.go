package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/config"
	"github.com/intuneview/intuneview/internal/db"
	"github.com/intuneview/intuneview/internal/graph"
	httpapp "github.com/intuneview/intuneview/internal/http"
	"github.com/intuneview/intuneview/internal/logging"
	"github.com/intuneview/intuneview/internal/metrics"
	"github.com/intuneview/intuneview/internal/secrets"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
)

const (
	sessionCookieName = "iv_session"
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the dashboard HTTP server.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogAnnotations(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	clientSecret, err := secrets.NewResolver(vaultOptions(cfg.Vault)).Resolve(ctx, cfg.ClientSecret)
	if err != nil {
		return fmt.Errorf("resolve ENTRA_CLIENT_SECRET: %w", err)
	}

	sessions := newSessionManager(cfg)
	if cfg.SessionStore == config.SessionStorePostgres {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := pgxstore.New(pool)
		defer store.StopCleanup()
		sessions.Store = store
	}

	httpClient := &http.Client{Timeout: cfg.GraphTimeout}

	manager, err := auth.NewManager(auth.ManagerOptions{
		TenantID:         cfg.TenantID,
		ClientID:         cfg.ClientID,
		ClientSecret:     clientSecret,
		RedirectURI:      cfg.RedirectURI,
		AuthorityBaseURL: cfg.AuthorityBaseURL,
		Sessions:         sessions,
		HTTPClient:       httpClient,
		Logger:           logging.Component(logger, "auth"),
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = manager.Close(closeCtx)
	}()

	graphClient, err := graph.New(graph.Options{
		BaseURL:    cfg.GraphBaseURL,
		HTTPClient: httpClient,
		Logger:     logging.Component(logger, "graph"),
	})
	if err != nil {
		return err
	}

	srv, err := httpapp.NewEchoServer(httpapp.ServerOptions{
		Config:   cfg,
		Sessions: sessions,
		Auth:     manager,
		Graph:    graphClient,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	httpServer := srv.NewHTTPServer(cfg.HTTPAddr)
	metricsServer := metrics.NewServer(cfg.MetricsAddr)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		logger.Info("listening", "addr", httpServer.Addr, "session_store", cfg.SessionStore)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	})
	if metricsServer != nil {
		g.Add(func() error {
			return metrics.Serve(metricsServer, logger)
		}, func(error) {
			metrics.Shutdown(metricsServer)
		})
	}

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		logger.Info("shutting down", "signal", sigErr.Signal.String())
		return nil
	}
	return err
}

func newSessionManager(cfg config.Config) *scs.SessionManager {
	sessions := scs.New()
	sessions.Lifetime = cfg.SessionLifetime
	sessions.Cookie.Name = sessionCookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.Path = "/"
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = cfg.AuthCookieSecure
	return sessions
}

func vaultOptions(v config.VaultConfig) secrets.VaultOptions {
	return secrets.VaultOptions{
		Address:          v.Address,
		Namespace:        v.Namespace,
		AuthType:         v.AuthType,
		Token:            v.Token,
		AppRoleMountPath: v.AppRoleMountPath,
		AppRoleRoleID:    v.AppRoleRoleID,
		AppRoleSecretID:  v.AppRoleSecretID,
	}
}
