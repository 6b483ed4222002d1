package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"trade_console/internal/models"
	journal "trade_console/internal/modules/journal/service"
	livefeed "trade_console/internal/modules/livefeed/service"

	"github.com/bytedance/sonic"
)

const (
	maxPayloadLen    = 600
	lastBacktestRows = 5
)

func stateLabel(s livefeed.State) string {
	switch s {
	case livefeed.StateConnected:
		return "🟢 подключено"
	case livefeed.StateConnecting:
		return "🟡 подключение…"
	default:
		return "🔴 нет связи"
	}
}

func formatDashboard(
	state livefeed.State,
	st models.BotStatus,
	positions []models.Position,
	perf *models.Performance,
	perfErr error,
) string {
	var b strings.Builder
	b.WriteString("📊 Статус\n\n")
	fmt.Fprintf(&b, "Канал: %s\n", stateLabel(state))
	fmt.Fprintf(&b, "Бот: %s\n", runningLabel(st.Running))
	fmt.Fprintf(&b, "MT5: %s\n", yesNo(st.Connected, "подключен", "не подключен"))
	if e := st.ErrorText(); e != "" {
		fmt.Fprintf(&b, "Ошибка: %s\n", e)
	}
	fmt.Fprintf(&b, "Позиций: %d, P/L: %s\n", len(positions), models.TotalProfit(positions).StringFixed(2))

	b.WriteString("\n")
	if perf == nil {
		fmt.Fprintf(&b, "⚠️ Результаты недоступны: %v\n", perfErr)
		return b.String()
	}
	fmt.Fprintf(&b, "Сделок: %d (win rate %s%%)\n", perf.TotalTrades, f2(perf.WinRate*100))
	fmt.Fprintf(&b, "Профит: %s, просадка: %s\n", f2(perf.TotalProfit), f2(perf.MaxDrawdown))
	wt := perf.WeeklyTarget
	fmt.Fprintf(&b, "Неделя: %d из %d..%d\n", wt.CurrentTrades, wt.MinTrades, wt.MaxTrades)
	return b.String()
}

func formatPositions(ps []models.Position, source string) string {
	if len(ps) == 0 {
		return "📭 Открытых позиций нет (" + source + ")"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📈 Открытые позиции: %d (%s)\n\n", len(ps), source)
	for _, p := range ps {
		fmt.Fprintf(&b, "#%d %s %s %s @ %s → %s\n",
			p.Ticket, p.Symbol, strings.ToUpper(p.Type), p.Volume.String(),
			p.PriceOpen.String(), p.PriceCurrent.String())
		fmt.Fprintf(&b, "   P/L %s  SL %s  TP %s\n", p.Profit.StringFixed(2), p.SL.String(), p.TP.String())
	}
	fmt.Fprintf(&b, "\nИтого P/L: %s", models.TotalProfit(ps).StringFixed(2))
	return b.String()
}

func formatTradePrompt(r *models.TradeRequest) string {
	s := fmt.Sprintf("Открыть сделку?\n\n%s %s %s", strings.ToUpper(r.Action), r.Volume.String(), r.Symbol)
	if r.StopLoss != nil {
		s += "\nSL: " + r.StopLoss.String()
	}
	if r.TakeProfit != nil {
		s += "\nTP: " + r.TakeProfit.String()
	}
	return s
}

func formatTradeDone(r *models.TradeRequest) string {
	return fmt.Sprintf("manual %s %s %s", r.Action, r.Volume.String(), r.Symbol)
}

func formatMarket(symbol string, live, history json.RawMessage, histErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💹 %s\n\n", symbol)
	if len(live) == 0 {
		b.WriteString("Live: данных ещё не было\n")
	} else {
		fmt.Fprintf(&b, "Live: %s\n", truncate(string(live), maxPayloadLen))
	}
	if histErr != nil {
		fmt.Fprintf(&b, "История: ошибка — %s\n", errText(histErr))
	} else {
		fmt.Fprintf(&b, "История: %d баров\n", countBars(history))
	}
	return b.String()
}

// countBars: сервер отдаёт либо массив, либо объект с массивом data.
func countBars(raw json.RawMessage) int {
	var arr []json.RawMessage
	if err := sonic.Unmarshal(raw, &arr); err == nil {
		return len(arr)
	}
	var wrap struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := sonic.Unmarshal(raw, &wrap); err == nil {
		return len(wrap.Data)
	}
	return 0
}

func formatBacktest(r models.BacktestResult) string {
	var b strings.Builder
	s := r.Summary
	fmt.Fprintf(&b, "🧪 Бэктест %s %s..%s\nСессия: %s\n\n", r.Symbol, r.StartDate, r.EndDate, r.SessionID)
	fmt.Fprintf(&b, "Сделок: %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "Итоговый баланс: %s\n", f2(s.FinalBalance))
	fmt.Fprintf(&b, "Доходность: %s (%s%%)\n", f2(s.TotalReturn), f2(s.ReturnPercentage))
	fmt.Fprintf(&b, "Макс. просадка: %s\n", f2(s.MaxDrawdown))

	rows := r.Results
	if len(rows) > lastBacktestRows {
		rows = rows[len(rows)-lastBacktestRows:]
	}
	if len(rows) > 0 {
		b.WriteString("\nПоследние сделки:\n")
		for _, tr := range rows {
			fmt.Fprintf(&b, "%s %s %s → %s: %s\n",
				tr.EntryTime, strings.ToUpper(tr.Direction), f2(tr.EntryPrice), f2(tr.ExitPrice), f2(tr.Profit))
		}
	}
	return b.String()
}

func formatOptimization(r models.OptimizationResult) string {
	return fmt.Sprintf("🔧 Оптимизация %s\nСессия: %s\nМетрика: %s\nЛучшие параметры: %s",
		r.Symbol, r.SessionID, r.OptimizationMetric, truncate(string(r.BestParameters), maxPayloadLen))
}

func formatSessionLogs(l models.SessionLogs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 Логи сессии %s: %d\n", l.SessionID, len(l.Logs))
	if l.Message != "" {
		b.WriteString(l.Message + "\n")
	}
	for _, e := range l.Logs {
		b.WriteString(truncate(string(e), 200) + "\n")
	}
	return b.String()
}

func formatPerformance(p models.Performance) string {
	wt := p.WeeklyTarget
	return fmt.Sprintf(
		"📈 Результаты\n\n"+
			"Сделок: %d (✅ %d / ❌ %d)\n"+
			"Win rate: %s%%\n"+
			"Профит: %s\n"+
			"Макс. просадка: %s\n"+
			"Sharpe: %s\n"+
			"Неделя: %d из %d..%d\n"+
			"Обновлено: %s",
		p.TotalTrades, p.WinningTrades, p.LosingTrades,
		f2(p.WinRate*100),
		f2(p.TotalProfit),
		f2(p.MaxDrawdown),
		f2(p.SharpeRatio),
		wt.CurrentTrades, wt.MinTrades, wt.MaxTrades,
		p.LastUpdated,
	)
}

func formatBotConfig(c models.BotConfig) string {
	return fmt.Sprintf(
		"⚙️ Параметры бота\n\n"+
			"Символы: %s\n"+
			"Риск на сделку: %s%%\n"+
			"Макс. просадка: %s%%\n"+
			"Stop loss: %d п.\n"+
			"Take profit: %d п.",
		strings.Join(c.Symbols, ", "),
		f2(c.RiskPerTrade*100),
		f2(c.MaxDrawdown*100),
		c.StopLoss,
		c.TakeProfit,
	)
}

func formatJournal(entries []journal.Entry) string {
	if len(entries) == 0 {
		return "📭 Журнал пуст"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗒 Последние события: %d\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "%s [%s/%s] %s\n", e.At.Local().Format("01-02 15:04:05"), e.Kind, e.Level, e.Message)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
