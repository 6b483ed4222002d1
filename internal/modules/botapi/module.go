package botapi

import (
	"trade_console/internal/modules/botapi/service"

	"go.uber.org/fx"
)

// Module: REST-клиент торгового сервера.
func Module() fx.Option {
	return fx.Module("botapi",
		fx.Provide(
			service.NewClient,
		),
	)
}
