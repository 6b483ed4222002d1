package models

// BotStatus: статус торгового бота на сервере. Всегда заменяется целиком.
type BotStatus struct {
	Running   bool    `json:"running"`
	Connected bool    `json:"connected"` // связь сервера с торговой платформой
	Error     *string `json:"error"`

	// только в REST /bot/status
	TradesThisWeek int     `json:"trades_this_week,omitempty"`
	LastTradeTime  *string `json:"last_trade_time,omitempty"`
}

func (s BotStatus) ErrorText() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// BotConfig: параметры запуска бота (/bot/start, /bot/config).
type BotConfig struct {
	Symbols          []string `json:"symbols"`
	RiskPerTrade     float64  `json:"risk_per_trade"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	StopLoss         int      `json:"stop_loss"`
	TakeProfit       int      `json:"take_profit"`
	MinTradesPerWeek int      `json:"min_trades_per_week,omitempty"`
	MaxTradesPerWeek int      `json:"max_trades_per_week,omitempty"`
}

// ActionResult: ответ сервера на start/stop/config.
type ActionResult struct {
	Message string     `json:"message"`
	Status  *BotStatus `json:"status,omitempty"`
}

// Performance: сводка /performance.
type Performance struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalProfit   float64 `json:"total_profit"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	LastUpdated   string  `json:"last_updated"`
	WeeklyTarget  struct {
		MinTrades     int `json:"min_trades"`
		MaxTrades     int `json:"max_trades"`
		CurrentTrades int `json:"current_trades"`
	} `json:"weekly_target"`
}
