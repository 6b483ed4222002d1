package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// TradeRequest: ручная сделка (/trade).
type TradeRequest struct {
	Symbol     string           `json:"symbol"`
	Action     string           `json:"action"` // buy/sell
	Volume     decimal.Decimal  `json:"volume"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
}

func (r *TradeRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("trade: empty symbol")
	}
	switch r.Action {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("trade: unsupported action %q", r.Action)
	}
	if !r.Volume.IsPositive() {
		return fmt.Errorf("trade: volume must be > 0")
	}
	return nil
}

type TradeResult struct {
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// BacktestRequest: запуск бэктеста (/backtest).
type BacktestRequest struct {
	Symbol    string `json:"symbol"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Episodes  int    `json:"episodes"`
	Optimize  bool   `json:"optimize,omitempty"`
}

const DefaultEpisodes = 100

func (r *BacktestRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("backtest: empty symbol")
	}
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return fmt.Errorf("backtest: bad start_date %q", r.StartDate)
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return fmt.Errorf("backtest: bad end_date %q", r.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("backtest: end_date before start_date")
	}
	if r.Episodes < 0 {
		return fmt.Errorf("backtest: episodes must be >= 0")
	}
	return nil
}

type BacktestTrade struct {
	EntryTime    string  `json:"entry_time,omitempty"`
	ExitTime     string  `json:"exit_time,omitempty"`
	Direction    string  `json:"direction,omitempty"`
	EntryPrice   float64 `json:"entry_price,omitempty"`
	ExitPrice    float64 `json:"exit_price,omitempty"`
	Profit       float64 `json:"profit,omitempty"`
	BalanceAfter float64 `json:"balance_after,omitempty"`
}

type BacktestSummary struct {
	TotalTrades      int     `json:"total_trades"`
	FinalBalance     float64 `json:"final_balance"`
	TotalReturn      float64 `json:"total_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	ReturnPercentage float64 `json:"return_percentage"`
}

type BacktestResult struct {
	SessionID    string          `json:"session_id"`
	Symbol       string          `json:"symbol"`
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	Results      []BacktestTrade `json:"results"`
	Summary      BacktestSummary `json:"summary"`
	Optimization json.RawMessage `json:"optimization,omitempty"`
}

// OptimizationRequest: подбор параметров (/optimize).
type OptimizationRequest struct {
	Symbol        string                   `json:"symbol"`
	StartDate     string                   `json:"start_date"`
	EndDate       string                   `json:"end_date"`
	ParameterGrid map[string][]interface{} `json:"parameter_grid"`
	Metric        string                   `json:"metric,omitempty"`
}

// SessionLogs: ответ /logs/{session_id}.
type SessionLogs struct {
	SessionID string            `json:"session_id"`
	Logs      []json.RawMessage `json:"logs"`
	Message   string            `json:"message,omitempty"`
}

type OptimizationResult struct {
	SessionID          string          `json:"session_id"`
	Symbol             string          `json:"symbol"`
	BestParameters     json.RawMessage `json:"best_parameters"`
	ParameterGrid      json.RawMessage `json:"parameter_grid,omitempty"`
	OptimizationMetric string          `json:"optimization_metric"`
}
