package notify

import (
	"context"
	"trade_console/internal/modules/config"
	journal "trade_console/internal/modules/journal/service"
	"trade_console/internal/modules/notify/service"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
)

// Module отдаёт тосты в лог, в журнал и в Telegram.
func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			service.NewLog,
			func(lc fx.Lifecycle, j journal.Journal) *service.Journal {
				s := service.NewJournal(j)
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						s.Start()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						s.Stop()
						return nil
					},
				})
				return s
			},
			func(lc fx.Lifecycle, bot *tgbot.BotAPI, cfg *config.Config) *service.Telegram {
				var sender service.Sender
				if bot != nil {
					sender = bot
				}
				t := service.NewTelegram(sender, cfg)
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						t.Start()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
				return t
			},
			func(l *service.Log, j *service.Journal, t *service.Telegram) *service.Fanout {
				return service.NewFanout(l, j, t)
			},
		),
	)
}
