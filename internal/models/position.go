package models

import "github.com/shopspring/decimal"

// сервер ждёт объёмы и цены числами, а не строками
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Position: открытая позиция в том виде, как её отдаёт сервер (MT5 тикет).
type Position struct {
	Ticket       int64           `json:"ticket"`
	Symbol       string          `json:"symbol"`
	Type         string          `json:"type"` // buy/sell
	Volume       decimal.Decimal `json:"volume"`
	PriceOpen    decimal.Decimal `json:"price_open"`
	PriceCurrent decimal.Decimal `json:"price_current"`
	Profit       decimal.Decimal `json:"profit"`
	SL           decimal.Decimal `json:"sl"`
	TP           decimal.Decimal `json:"tp"`
}

// TotalProfit: суммарный профит по набору позиций.
func TotalProfit(ps []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(p.Profit)
	}
	return total
}

// FilterBySide оставляет только позиции нужной стороны.
func FilterBySide(ps []Position, side string) []Position {
	out := make([]Position, 0, len(ps))
	for _, p := range ps {
		if p.Type == side {
			out = append(out, p)
		}
	}
	return out
}
