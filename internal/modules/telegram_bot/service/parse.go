package service

import (
	"fmt"
	"strconv"
	"strings"
	"trade_console/internal/models"

	"github.com/shopspring/decimal"
)

const (
	journalDefault = 10
	journalMax     = 50
)

// parseTradeArgs: "buy EURUSDm 0.1 [SL] [TP]".
func parseTradeArgs(args string) (*models.TradeRequest, error) {
	f := strings.Fields(args)
	if len(f) < 3 || len(f) > 5 {
		return nil, fmt.Errorf("нужно 3-5 аргументов")
	}
	vol, err := parseDecimal(f[2])
	if err != nil {
		return nil, fmt.Errorf("объём %q не число", f[2])
	}
	req := &models.TradeRequest{
		Action: strings.ToLower(f[0]),
		Symbol: f[1],
		Volume: vol,
	}
	if len(f) > 3 {
		sl, err := parseDecimal(f[3])
		if err != nil {
			return nil, fmt.Errorf("SL %q не число", f[3])
		}
		req.StopLoss = &sl
	}
	if len(f) > 4 {
		tp, err := parseDecimal(f[4])
		if err != nil {
			return nil, fmt.Errorf("TP %q не число", f[4])
		}
		req.TakeProfit = &tp
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// parseMarketArgs: "EURUSDm [BARS]".
func parseMarketArgs(args string, defBars int) (string, int, error) {
	f := strings.Fields(args)
	if len(f) == 0 || len(f) > 2 {
		return "", 0, fmt.Errorf("укажи символ")
	}
	bars := defBars
	if len(f) == 2 {
		v, err := strconv.Atoi(f[1])
		if err != nil || v <= 0 {
			return "", 0, fmt.Errorf("BARS должно быть целым > 0")
		}
		bars = v
	}
	return f[0], bars, nil
}

// parseBacktestArgs: "EURUSDm 2024-01-01 2024-03-01 [EPISODES]".
func parseBacktestArgs(args string, defEpisodes int) (*models.BacktestRequest, error) {
	f := strings.Fields(args)
	if len(f) < 3 || len(f) > 4 {
		return nil, fmt.Errorf("нужно: SYMBOL START END [EPISODES]")
	}
	req := &models.BacktestRequest{
		Symbol:    f[0],
		StartDate: f[1],
		EndDate:   f[2],
		Episodes:  defEpisodes,
	}
	if len(f) == 4 {
		v, err := strconv.Atoi(f[3])
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("EPISODES должно быть целым > 0")
		}
		req.Episodes = v
	}
	if req.Episodes <= 0 {
		req.Episodes = models.DefaultEpisodes
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// parseOptimizeArgs: "EURUSDm 2024-01-01 2024-03-01 stop_loss=30,50 [metric=sharpe_ratio]".
func parseOptimizeArgs(args string) (*models.OptimizationRequest, error) {
	f := strings.Fields(args)
	if len(f) < 4 {
		return nil, fmt.Errorf("нужно: SYMBOL START END и хотя бы один параметр")
	}
	bt := models.BacktestRequest{Symbol: f[0], StartDate: f[1], EndDate: f[2]}
	if err := bt.Validate(); err != nil {
		return nil, err
	}

	req := &models.OptimizationRequest{
		Symbol:        f[0],
		StartDate:     f[1],
		EndDate:       f[2],
		ParameterGrid: make(map[string][]interface{}),
	}
	for _, kv := range f[3:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("параметр %q: нужно name=v1,v2", kv)
		}
		if k == "metric" {
			req.Metric = v
			continue
		}
		for _, raw := range strings.Split(v, ",") {
			req.ParameterGrid[k] = append(req.ParameterGrid[k], gridValue(raw))
		}
	}
	if len(req.ParameterGrid) == 0 {
		return nil, fmt.Errorf("пустая сетка параметров")
	}
	return req, nil
}

// gridValue: целые и дробные числа уходят числами, остальное строкой.
func gridValue(s string) interface{} {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil {
		return v
	}
	return s
}

func parseJournalArgs(args string) (int, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return journalDefault, nil
	}
	n, err := strconv.Atoi(args)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("N должно быть целым > 0")
	}
	if n > journalMax {
		n = journalMax
	}
	return n, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
}
