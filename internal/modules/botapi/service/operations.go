package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"trade_console/internal/models"

	"github.com/pkg/errors"
)

const defaultBars = 100

func (c *Client) BotStatus(ctx context.Context) (models.BotStatus, error) {
	var st models.BotStatus
	err := c.get(ctx, "/bot/status", nil, &st)
	return st, err
}

func (c *Client) StartBot(ctx context.Context, cfg *models.BotConfig) (models.ActionResult, error) {
	var res models.ActionResult
	err := c.post(ctx, "/bot/start", cfg, &res)
	return res, err
}

func (c *Client) StopBot(ctx context.Context) (models.ActionResult, error) {
	var res models.ActionResult
	err := c.post(ctx, "/bot/stop", nil, &res)
	return res, err
}

// BotConfig понимает и плоский ответ, и вложенный risk_parameters.
func (c *Client) BotConfig(ctx context.Context) (models.BotConfig, error) {
	var raw struct {
		models.BotConfig
		RiskParameters *struct {
			RiskPerTrade *float64 `json:"risk_per_trade"`
			MaxDrawdown  *float64 `json:"max_drawdown"`
			StopLoss     *int     `json:"stop_loss"`
			TakeProfit   *int     `json:"take_profit"`
		} `json:"risk_parameters"`
	}
	if err := c.get(ctx, "/bot/config", nil, &raw); err != nil {
		return models.BotConfig{}, err
	}

	cfg := raw.BotConfig
	if rp := raw.RiskParameters; rp != nil {
		if rp.RiskPerTrade != nil {
			cfg.RiskPerTrade = *rp.RiskPerTrade
		}
		if rp.MaxDrawdown != nil {
			cfg.MaxDrawdown = *rp.MaxDrawdown
		}
		if rp.StopLoss != nil {
			cfg.StopLoss = *rp.StopLoss
		}
		if rp.TakeProfit != nil {
			cfg.TakeProfit = *rp.TakeProfit
		}
	}
	return cfg, nil
}

func (c *Client) UpdateBotConfig(ctx context.Context, cfg *models.BotConfig) (models.ActionResult, error) {
	var res models.ActionResult
	err := c.post(ctx, "/bot/config", cfg, &res)
	return res, err
}

func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	var wrap struct {
		Positions []models.Position `json:"positions"`
	}
	if err := c.get(ctx, "/positions", nil, &wrap); err != nil {
		return nil, err
	}
	if wrap.Positions == nil {
		wrap.Positions = []models.Position{}
	}
	return wrap.Positions, nil
}

func (c *Client) ExecuteTrade(ctx context.Context, req *models.TradeRequest) (models.TradeResult, error) {
	if err := req.Validate(); err != nil {
		return models.TradeResult{}, errors.Wrap(err, "botapi")
	}
	var res models.TradeResult
	err := c.post(ctx, "/trade", req, &res)
	return res, err
}

// MarketData: история по символу как есть; bars <= 0 значит 100.
func (c *Client) MarketData(ctx context.Context, symbol string, bars int) (json.RawMessage, error) {
	if symbol == "" {
		return nil, errors.New("botapi: empty symbol")
	}
	if bars <= 0 {
		bars = defaultBars
	}
	var out json.RawMessage
	q := url.Values{"bars": []string{strconv.Itoa(bars)}}
	err := c.get(ctx, "/market-data/"+url.PathEscape(symbol), q, &out)
	return out, err
}

func (c *Client) RunBacktest(ctx context.Context, req *models.BacktestRequest) (models.BacktestResult, error) {
	if req.Episodes == 0 {
		req.Episodes = models.DefaultEpisodes
	}
	if err := req.Validate(); err != nil {
		return models.BacktestResult{}, errors.Wrap(err, "botapi")
	}
	var res models.BacktestResult
	err := c.post(ctx, "/backtest", req, &res)
	return res, err
}

func (c *Client) RunOptimization(ctx context.Context, req *models.OptimizationRequest) (models.OptimizationResult, error) {
	if req.Symbol == "" {
		return models.OptimizationResult{}, errors.New("botapi: empty symbol")
	}
	if len(req.ParameterGrid) == 0 {
		return models.OptimizationResult{}, errors.New("botapi: empty parameter grid")
	}
	if req.Metric == "" {
		req.Metric = "sharpe_ratio"
	}
	var res models.OptimizationResult
	err := c.post(ctx, "/optimize", req, &res)
	return res, err
}

func (c *Client) Performance(ctx context.Context) (models.Performance, error) {
	var p models.Performance
	err := c.get(ctx, "/performance", nil, &p)
	return p, err
}

func (c *Client) SessionLogs(ctx context.Context, sessionID string) (models.SessionLogs, error) {
	if sessionID == "" {
		return models.SessionLogs{}, errors.New("botapi: empty session id")
	}
	var logs models.SessionLogs
	err := c.get(ctx, "/logs/"+url.PathEscape(sessionID), nil, &logs)
	return logs, err
}
