package modules

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/handlers"
	"github.com/memohai/wadesk/internal/message/event"
	"github.com/memohai/wadesk/internal/server"
	"github.com/memohai/wadesk/internal/settings"
	"github.com/memohai/wadesk/internal/whatsapp"
)

var HandlersModule = fx.Module(
	"handlers",
	fx.Provide(
		provideSender,
		provideServerHandler(providePingHandler),
		provideServerHandler(provideAuthHandler),
		provideServerHandler(handlers.NewUsersHandler),
		provideServerHandler(handlers.NewTeamsHandler),
		provideServerHandler(handlers.NewContactsHandler),
		provideServerHandler(handlers.NewConversationsHandler),
		provideServerHandler(handlers.NewMessageHandler),
		provideServerHandler(handlers.NewTagsHandler),
		provideServerHandler(handlers.NewSettingsHandler),
		provideServerHandler(handlers.NewActivityHandler),
		provideServerHandler(provideEventsHandler),
		provideServerHandler(provideWhatsAppHandler),
	),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideSender(client *whatsapp.Client) handlers.Sender {
	return client
}

func providePingHandler(log *slog.Logger, pool *pgxpool.Pool) *handlers.PingHandler {
	return handlers.NewPingHandler(log, pool)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, accountService *accounts.Service, activityService *activity.Service) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, accountService, activityService, cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn(), cfg.Auth.LoginRatePerMinute)
}

func provideEventsHandler(log *slog.Logger, hub *event.Hub, conversationService *conversation.Service, accountService *accounts.Service) *handlers.EventsHandler {
	return handlers.NewEventsHandler(log, hub, conversationService, accountService)
}

func provideWhatsAppHandler(
	log *slog.Logger,
	configSource *settings.WhatsAppConfigSource,
	processor *whatsapp.Processor,
	sender handlers.Sender,
	accountService *accounts.Service,
	activityService *activity.Service,
) *handlers.WhatsAppHandler {
	return handlers.NewWhatsAppHandler(log, processor, configSource, sender, accountService, activityService)
}

