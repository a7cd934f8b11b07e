package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/memohai/wadesk/internal/config"
)

// ErrUnknownMigrateCommand is returned for commands other than up, down, steps, version and force.
var ErrUnknownMigrateCommand = errors.New("unknown migrate command (use: up, down, steps N, version, force N)")

// MigrateCommand is a parsed migrate invocation.
type MigrateCommand struct {
	Name string
	// N is the step count for steps and the target version for force.
	N int
}

// ParseMigrateCommand validates command and its arguments without touching the database.
func ParseMigrateCommand(command string, args []string) (MigrateCommand, error) {
	switch command {
	case "up", "down", "version":
		return MigrateCommand{Name: command}, nil
	case "steps", "force":
		if len(args) == 0 {
			return MigrateCommand{}, fmt.Errorf("%s requires a number argument", command)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return MigrateCommand{}, fmt.Errorf("invalid %s argument %q: %w", command, args[0], err)
		}
		if command == "steps" && n == 0 {
			return MigrateCommand{}, errors.New("steps must not be zero")
		}
		return MigrateCommand{Name: command, N: n}, nil
	}
	return MigrateCommand{}, fmt.Errorf("%w: %s", ErrUnknownMigrateCommand, command)
}

// RunMigrate applies cmd against the database in cfg. migrationsFS holds the
// .sql files at its root.
func RunMigrate(logger *slog.Logger, cfg config.PostgresConfig, migrationsFS fs.FS, command string, args []string) error {
	cmd, err := ParseMigrateCommand(command, args)
	if err != nil {
		return err
	}
	if migrationsFS == nil {
		return errors.New("migrations source not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "migrate"))

	source, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, DSN(cfg))
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()
	m.Log = &migrateLogger{logger: logger}

	switch cmd.Name {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(cmd.N)
	case "force":
		err = m.Force(cmd.N)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", cmd.Name, err)
	}

	ver, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("no migrations applied", slog.String("command", cmd.Name))
	case err != nil:
		return fmt.Errorf("migrate version: %w", err)
	default:
		logger.Info("schema version", slog.String("command", cmd.Name), slog.Uint64("version", uint64(ver)), slog.Bool("dirty", dirty))
	}
	return nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
