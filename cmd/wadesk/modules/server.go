package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.uber.org/fx"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/handlers"
	"github.com/memohai/wadesk/internal/server"
	"github.com/memohai/wadesk/internal/sweeper"
	"github.com/memohai/wadesk/internal/version"
)

// DefaultAdminPassword is the placeholder shipped in the sample config.
const DefaultAdminPassword = "change-your-password-here"

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServer,
	),
	fx.Invoke(startSweeper, startServer),
)

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	Accounts       *accounts.Service
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) (*server.Server, error) {
	if strings.TrimSpace(params.Config.Auth.JWTSecret) == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return server.NewServer(params.Logger, server.Options{
		Addr:        params.Config.Server.Addr,
		JWTSecret:   params.Config.Auth.JWTSecret,
		Active:      params.Accounts,
		Validator:   handlers.NewValidator(),
		PublicPaths: handlers.PublicPaths,
	}, params.ServerHandlers...), nil
}

func startSweeper(lc fx.Lifecycle, sw *sweeper.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return sw.Start()
		},
		OnStop: func(ctx context.Context) error {
			return sw.Stop(ctx)
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, accountService *accounts.Service) {
	fmt.Printf("Starting %s %s\n", version.Name, version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := EnsureAdmin(ctx, logger, accountService, cfg.Admin); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// EnsureAdmin creates the configured admin when no account exists yet.
func EnsureAdmin(ctx context.Context, log *slog.Logger, accountService *accounts.Service, admin config.AdminConfig) error {
	name := strings.TrimSpace(admin.Name)
	email := strings.TrimSpace(admin.Email)
	password := strings.TrimSpace(admin.Password)
	if email == "" || password == "" {
		return errors.New("admin email/password required in config.toml")
	}
	if password == DefaultAdminPassword {
		log.Warn("admin password uses default placeholder; please update config.toml")
	}
	created, err := accountService.EnsureAdmin(ctx, name, email, password)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		log.Info("admin user created", slog.String("email", email))
	}
	return nil
}
