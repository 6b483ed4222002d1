package livefeed

import (
	"context"
	"trade_console/internal/modules/livefeed/service"
	notify "trade_console/internal/modules/notify/service"

	"go.uber.org/fx"
)

// Module поднимает live-канал к торговому серверу.
func Module() fx.Option {
	return fx.Module("livefeed",
		fx.Provide(
			service.NewStore,
			service.NewClient,
			func() service.Clock {
				return service.NewClock()
			},
			func(t *service.WSTransport) service.Transport {
				return t
			},
			service.NewWSTransport,
			// адаптер: общий нотифайер -> service.Notifier
			func(f *notify.Fanout) service.Notifier {
				return f
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					c.Connect() // не блокирует: dial идёт в своей горутине
					return nil
				},
				OnStop: func(ctx context.Context) error {
					return c.Close()
				},
			})
		}),
	)
}
