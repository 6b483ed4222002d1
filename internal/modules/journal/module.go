package journal

import (
	"context"
	"fmt"
	"trade_console/internal/modules/config"
	"trade_console/internal/modules/journal/service"
	"trade_console/pkg/db"
	"trade_console/pkg/logger"

	"go.uber.org/fx"
)

// Module: журнал событий; бэкенд выбирается journal.driver.
func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			New,
		),
	)
}

func New(lc fx.Lifecycle, cfg *config.Config) (service.Journal, error) {
	ctx := context.Background()

	var (
		j   service.Journal
		err error
	)
	switch cfg.Journal.Driver {
	case "postgres":
		var tm *db.PgTxManager
		tm, err = db.Open(ctx, db.PoolConfig{DSN: cfg.DB})
		if err != nil {
			return nil, fmt.Errorf("failed to create poolMaster: %w", err)
		}
		j, err = service.NewPostgres(ctx, tm)
		if err != nil {
			tm.Close()
		}
	case "sqlite":
		j, err = service.NewSQLite(ctx, cfg.Journal.Path)
	default:
		j = service.NewMemory(cfg.Journal.Capacity)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("[JOURNAL] driver=%s", cfg.Journal.Driver)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return j.Close()
		},
	})
	return j, nil
}
