package modules

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/activity"
	"github.com/memohai/wadesk/internal/config"
	"github.com/memohai/wadesk/internal/contacts"
	"github.com/memohai/wadesk/internal/conversation"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/message"
	"github.com/memohai/wadesk/internal/message/event"
	"github.com/memohai/wadesk/internal/settings"
	"github.com/memohai/wadesk/internal/sweeper"
	"github.com/memohai/wadesk/internal/tags"
	"github.com/memohai/wadesk/internal/teams"
	"github.com/memohai/wadesk/internal/whatsapp"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		provideAccountService,
		provideActivityService,
		provideContactService,
		provideConversationService,
		provideTeamService,
		provideTagService,
		provideSettingsService,
		provideWhatsAppConfigSource,
		provideMessageService,
		provideProcessor,
		provideSweeper,
	),
)

// ---------------------------------------------------------------------------
// domain service providers (interface adapters)
// ---------------------------------------------------------------------------

func provideAccountService(log *slog.Logger, queries *store.Queries) *accounts.Service {
	return accounts.NewService(log, queries)
}

func provideActivityService(log *slog.Logger, queries *store.Queries) *activity.Service {
	return activity.NewService(log, queries)
}

func provideContactService(log *slog.Logger, queries *store.Queries) *contacts.Service {
	return contacts.NewService(log, queries)
}

func provideConversationService(log *slog.Logger, queries *store.Queries) *conversation.Service {
	return conversation.NewService(log, queries)
}

func provideTeamService(log *slog.Logger, queries *store.Queries) *teams.Service {
	return teams.NewService(log, queries)
}

func provideTagService(log *slog.Logger, queries *store.Queries) *tags.Service {
	return tags.NewService(log, queries)
}

func provideSettingsService(log *slog.Logger, queries *store.Queries) *settings.Service {
	return settings.NewService(log, queries)
}

func provideWhatsAppConfigSource(log *slog.Logger, cfg config.Config, settingsService *settings.Service) *settings.WhatsAppConfigSource {
	return settings.NewWhatsAppConfigSource(log, cfg.WhatsApp, settingsService)
}

func provideMessageService(log *slog.Logger, queries *store.Queries, publisher event.Publisher) *message.Service {
	return message.NewService(log, queries, publisher)
}

func provideProcessor(log *slog.Logger, contactService *contacts.Service, conversationService *conversation.Service, messageService *message.Service) *whatsapp.Processor {
	return whatsapp.NewProcessor(log, contactService, conversationService, messageService)
}

func provideSweeper(log *slog.Logger, cfg config.Config, conversationService *conversation.Service) (*sweeper.Sweeper, error) {
	return sweeper.New(log, conversationService, cfg.Sweeper.Schedule, cfg.Sweeper.TTL())
}
