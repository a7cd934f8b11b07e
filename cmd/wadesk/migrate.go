package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	dbembed "github.com/memohai/wadesk/db"
	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}
	run := func(command string) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log := logger.Init(cfg.Log.Level, cfg.Log.Format)
			migrations, err := fs.Sub(dbembed.MigrationsFS, "migrations")
			if err != nil {
				return fmt.Errorf("migrations fs: %w", err)
			}
			return db.RunMigrate(log, cfg.Postgres, migrations, command, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply all pending migrations", Args: cobra.NoArgs, RunE: run("up")},
		&cobra.Command{Use: "down", Short: "Roll back all migrations", Args: cobra.NoArgs, RunE: run("down")},
		&cobra.Command{Use: "steps N", Short: "Apply N migrations; roll back with a negative N after --", Args: cobra.ExactArgs(1), RunE: run("steps")},
		&cobra.Command{Use: "version", Short: "Print the current schema version", Args: cobra.NoArgs, RunE: run("version")},
		&cobra.Command{Use: "force VERSION", Short: "Mark VERSION as applied and clear the dirty flag", Args: cobra.ExactArgs(1), RunE: run("force")},
	)
	return cmd
}
