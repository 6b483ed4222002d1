package telegram

import (
	"context"
	"trade_console/internal/modules/config"
	journal "trade_console/internal/modules/journal/service"
	"trade_console/internal/modules/telegram_bot/service"
	"trade_console/pkg/logger"

	botapi "trade_console/internal/modules/botapi/service"
	livefeed "trade_console/internal/modules/livefeed/service"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		// 1. Клиент Bot API; без токена: nil, экраны и пересылка тостов выключены
		fx.Provide(
			func(cfg *config.Config) (*tgbot.BotAPI, error) {
				if cfg.Telegram.Token == "" {
					return nil, nil
				}
				b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
				if err != nil {
					return nil, err
				}
				logger.Info("[TG] authorized as @%s", b.Self.UserName)
				return b, nil
			},
		),

		// 2. Сервис экранов оператора
		fx.Provide(
			func(
				bot *tgbot.BotAPI,
				cfg *config.Config,
				api *botapi.Client,
				client *livefeed.Client,
				j journal.Journal,
			) *service.Telegram {
				var b service.Bot
				if bot != nil {
					b = bot
				}
				return service.NewTelegram(b, cfg, api, client, client.Store(), j)
			},
		),

		// Запуск основного цикла через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						t.Start(ctx)
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
