package health

import (
	"context"
	"net"
	"net/http"
	"time"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
	"trade_console/internal/modules/health/service"
	livefeed "trade_console/internal/modules/livefeed/service"
	"trade_console/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Snapshot: то, что отдаёт /state.
type Snapshot interface {
	State() livefeed.State
	BotStatus() models.BotStatus
	Positions() []models.Position
	MarketData() models.MarketData
}

func NewRouter(state *service.State, snap Snapshot) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// liveness: процесс жив
	engine.GET("/livez", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	engine.GET("/readyz", func(c *gin.Context) {
		if !state.Ready() {
			c.String(http.StatusServiceUnavailable, "not ready")
			return
		}
		c.String(http.StatusOK, "ready")
	})

	engine.GET("/healthz", func(c *gin.Context) {
		var lastFrame int64
		if t := state.LastFrame(); !t.IsZero() {
			lastFrame = t.Unix()
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":         state.Ready(),
			"wsConnected":   state.WSConnected(),
			"state":         state.WSState().String(),
			"uptimeSec":     int64(state.Uptime().Seconds()),
			"lastFrameUnix": lastFrame,
			"reconnects":    state.Reconnects(),
		})
	})

	engine.GET("/state", func(c *gin.Context) {
		positions := snap.Positions()
		c.JSON(http.StatusOK, gin.H{
			"connection":   snap.State().String(),
			"bot_status":   snap.BotStatus(),
			"positions":    positions,
			"total_profit": models.TotalProfit(positions),
			"market_data":  snap.MarketData(),
		})
	})

	return engine
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, state *service.State, store *livefeed.Store, engine *gin.Engine) {
	addr := cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	var unsubscribe func()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			unsubscribe = state.Watch(store)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("[HEALTH] serve failed: %v", err)
				}
			}()
			state.SetReady(true)
			logger.Info("[HEALTH] listening on %s", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			if unsubscribe != nil {
				unsubscribe()
			}
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			func(s *livefeed.Store) Snapshot { return s },
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
