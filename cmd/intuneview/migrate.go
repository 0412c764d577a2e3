package main

import (
	"log/slog"

	"github.com/intuneview/intuneview/internal/config"
	"github.com/intuneview/intuneview/internal/db"
	"github.com/intuneview/intuneview/internal/logging"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Create the Postgres session table",
	Args:        cobra.NoArgs,
	Annotations: structuredLogAnnotations(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithOptions(config.LoadOptions{RequireDatabaseURL: true})
		if err != nil {
			return err
		}
		return db.Migrate(cfg.DatabaseURL, logging.Component(slog.Default(), "migrate"))
	},
}
