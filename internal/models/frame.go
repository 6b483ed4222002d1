package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// типы входящих кадров live-канала
const (
	FrameBotStatus       = "bot_status"
	FramePositionsUpdate = "positions_update"
	FrameMarketData      = "market_data"
	FrameTradeExecuted   = "trade_executed"
	FrameError           = "error"
)

// исходящие команды, которые понимает сервер
const (
	CommandPing          = "ping"
	CommandRequestStatus = "request_status"
)

// Frame: конверт входящего сообщения. Data разбирается уже по Type.
type Frame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Symbol  string          `json:"symbol,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Command: исходящее сообщение без схемы, кроме type.
type Command struct {
	Type string `json:"type"`
}

type TradeExecuted struct {
	Action string          `json:"action"`
	Volume decimal.Decimal `json:"volume"`
	Symbol string          `json:"symbol"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// MarketData: symbol -> последний непрозрачный payload.
type MarketData map[string]json.RawMessage

func (m MarketData) Clone() MarketData {
	out := make(MarketData, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
