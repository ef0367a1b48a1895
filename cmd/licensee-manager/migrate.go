package main

import (
	"fmt"

	"github.com/MacJediWizard/licensee-manager/internal/config"
	"github.com/MacJediWizard/licensee-manager/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	var list, showVersion bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations",
		Long: `Apply pending PostgreSQL schema migrations. SQLite databases are
migrated automatically when they are opened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				migrations, err := db.GetMigrations()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Available migrations:")
				for _, m := range migrations {
					fmt.Fprintf(out, "  %03d: %s\n", m.Version, m.Name)
				}
				return nil
			}

			if opts.cfg.DatabaseDriver != config.DriverPostgres {
				return fmt.Errorf("migrate requires the %s driver; got %s", config.DriverPostgres, opts.cfg.DatabaseDriver)
			}

			ctx := cmd.Context()
			dbCfg := db.DefaultConfig(opts.cfg.DatabaseURL)
			dbCfg.MaxConns = 5
			dbCfg.MinConns = 1

			database, err := db.New(ctx, dbCfg, opts.logger)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer database.Close()

			if !showVersion {
				opts.logger.Info().Msg("running database migrations")
				if err := database.Migrate(ctx); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			}

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Current schema version: %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations and exit")
	cmd.Flags().BoolVar(&showVersion, "version", false, "show the current schema version without migrating")
	return cmd
}
