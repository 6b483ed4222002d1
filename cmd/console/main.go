package main

import (
	"context"
	"trade_console/internal/modules/botapi"
	"trade_console/internal/modules/config"
	"trade_console/internal/modules/health"
	"trade_console/internal/modules/journal"
	"trade_console/internal/modules/livefeed"
	"trade_console/internal/modules/notify"
	"trade_console/pkg/logger"
	"trade_console/pkg/tracing"

	telegram "trade_console/internal/modules/telegram_bot"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const serviceName = "trade_console"

func main() {
	app := fx.New(
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l}
		}),
		config.Module(),
		fx.Provide(
			newLogger,
			newTracer,
		),
		journal.Module(),
		notify.Module(),
		botapi.Module(),
		livefeed.Module(),
		telegram.Module(),
		health.Module(),
		fx.Invoke(func(cfg *config.Config) {
			dump, err := cfg.Dump()
			if err != nil {
				logger.Warn("[MAIN] config dump failed: %v", err)
				return
			}
			logger.Debug("[MAIN] effective config:\n%s", dump)
		}),
	)
	app.Run()
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(serviceName)
	l, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Sync()
			return nil
		},
	})
	return l, nil
}

func newTracer(lc fx.Lifecycle, cfg *config.Config) (opentracing.Tracer, error) {
	name := cfg.Tracing.ServiceName
	if name == "" {
		name = serviceName
	}
	tracing.SetServiceName(name)

	tracer, closer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closer()
			return nil
		},
	})
	return tracer, nil
}
