// Package modules groups the fx providers of the helpdesk server.
package modules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/events"
	"github.com/memohai/wadesk/internal/logger"
	"github.com/memohai/wadesk/internal/message/event"
	"github.com/memohai/wadesk/internal/settings"
	"github.com/memohai/wadesk/internal/whatsapp"
)

// InfraModule expects a config.Config to be supplied by the caller.
var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideLogger,
		provideDBConn,
		provideDBQueries,
		event.NewHub,
		provideEventPublisher,
		provideWhatsAppClient,
	),
)

// ---------------------------------------------------------------------------
// infrastructure providers
// ---------------------------------------------------------------------------

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDBQueries(conn *pgxpool.Pool) *store.Queries {
	return store.New(conn)
}

// provideEventPublisher fans message events out to the in-process hub and,
// when a broker is configured, to RabbitMQ. A broker that cannot be reached
// at startup is logged and skipped; live updates keep working.
func provideEventPublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, hub *event.Hub) event.Publisher {
	if cfg.RabbitMQ.URL == "" {
		return hub
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	amqp, err := events.Dial(ctx, log, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		log.Error("rabbitmq unavailable, broker publishing disabled", slog.Any("error", err))
		return hub
	}

	runCtx, stop := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go amqp.Run(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			defer stop()
			return amqp.Close()
		},
	})
	return event.Multi{hub, amqp}
}

func provideWhatsAppClient(log *slog.Logger, cfg config.Config, source *settings.WhatsAppConfigSource) *whatsapp.Client {
	client := whatsapp.NewClient(log, cfg.WhatsApp, source)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !client.Configured(ctx) {
		log.Warn("whatsapp access_token or phone_number_id missing; outbound messages are disabled")
	}
	return client
}
