package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"trade_console/internal/models"
	botapi "trade_console/internal/modules/botapi/service"
	journal "trade_console/internal/modules/journal/service"
	livefeed "trade_console/internal/modules/livefeed/service"
	"trade_console/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = "Команды:\n" +
	"/status — состояние канала, бота и результаты\n" +
	"/positions [refresh] — открытые позиции\n" +
	"/trade buy|sell SYMBOL VOLUME [SL] [TP] — ручная сделка\n" +
	"/market SYMBOL [BARS] — рыночные данные\n" +
	"/backtest SYMBOL START END [EPISODES] — бэктест\n" +
	"/optimize SYMBOL START END param=v1,v2 [metric=...] — подбор параметров\n" +
	"/logs SESSION — логи сессии\n" +
	"/performance — результаты\n" +
	"/settings — параметры бота\n" +
	"/bot_start, /bot_stop — запуск и остановка\n" +
	"/ping, /refresh — команды в live-канал\n" +
	"/journal [N] — последние события\n" +
	"/config — текущая конфигурация консоли"

func (t *Telegram) handleStart(ctx context.Context, chatID int64, _ string) {
	// Главное меню
	replyKb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStatus),
			tgbotapi.NewKeyboardButton(btnPositions),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBotStart),
			tgbotapi.NewKeyboardButton(btnBotStop),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSettings),
			tgbotapi.NewKeyboardButton(btnBacktest),
		),
	)

	msg := tgbotapi.NewMessage(chatID, "Привет! Это консоль торгового бота MT5.\n\n"+helpText)
	msg.ReplyMarkup = replyKb
	_, _ = t.SendMessage(ctx, msg)
}

// /status показывает дашборд, live-данные плюс сводка из REST. Ошибка REST не ломает экран.
func (t *Telegram) handleStatus(ctx context.Context, chatID int64, _ string) {
	perf, err := t.api.Performance(ctx)
	var perfPtr *models.Performance
	if err == nil {
		perfPtr = &perf
	} else {
		logger.Warn("[TG] performance: %v", err)
	}

	text := formatDashboard(t.snap.State(), t.snap.BotStatus(), t.snap.Positions(), perfPtr, err)
	_, _ = t.Send(ctx, chatID, text)
}

func (t *Telegram) handlePositions(ctx context.Context, chatID int64, args string) {
	positions := t.snap.Positions()
	source := "live"
	if strings.EqualFold(strings.TrimSpace(args), "refresh") {
		ps, err := t.api.Positions(ctx)
		if err != nil {
			_, _ = t.Send(ctx, chatID, "❗️ Не удалось получить позиции: "+errText(err))
			return
		}
		positions, source = ps, "REST"
	}

	msg := tgbotapi.NewMessage(chatID, formatPositions(positions, source))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", "positions:refresh"),
		),
	)
	_, _ = t.SendMessage(ctx, msg)
}

func (t *Telegram) handleTrade(ctx context.Context, chatID int64, args string) {
	req, err := parseTradeArgs(args)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error()+"\nФормат: /trade buy|sell SYMBOL VOLUME [SL] [TP]")
		return
	}

	if !t.Confirm(ctx, chatID, formatTradePrompt(req), t.cfg.Telegram.ConfirmTimeout) {
		return
	}

	res, err := t.api.ExecuteTrade(ctx, req)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❌ Сделка не исполнена: "+errText(err))
		return
	}
	t.record(ctx, journal.KindTrade, formatTradeDone(req), res)
	_, _ = t.Send(ctx, chatID, "✅ "+res.Message)
}

func (t *Telegram) handleMarket(ctx context.Context, chatID int64, args string) {
	symbol, bars, err := parseMarketArgs(args, t.cfg.Defaults.Bars)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error()+"\nФормат: /market SYMBOL [BARS]")
		return
	}

	live, _ := t.snap.MarketDataFor(symbol)
	history, histErr := t.api.MarketData(ctx, symbol, bars)
	_, _ = t.Send(ctx, chatID, formatMarket(symbol, live, history, histErr))
}

func (t *Telegram) handleBacktest(ctx context.Context, chatID int64, args string) {
	if strings.TrimSpace(args) == "" {
		_, _ = t.Send(ctx, chatID, "Формат: /backtest SYMBOL START END [EPISODES]\nНапример: /backtest EURUSDm 2024-01-01 2024-03-01 100")
		return
	}
	req, err := parseBacktestArgs(args, t.cfg.Defaults.Episodes)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error())
		return
	}

	_, _ = t.SendF(ctx, chatID, "🧪 Бэктест %s %s..%s запущен, это может занять время", req.Symbol, req.StartDate, req.EndDate)
	res, err := t.api.RunBacktest(ctx, req)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❌ Бэктест не выполнен: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, formatBacktest(res))
}

func (t *Telegram) handleOptimize(ctx context.Context, chatID int64, args string) {
	req, err := parseOptimizeArgs(args)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error()+"\nФормат: /optimize SYMBOL START END stop_loss=30,50 take_profit=60,100 [metric=sharpe_ratio]")
		return
	}

	_, _ = t.SendF(ctx, chatID, "🔧 Оптимизация %s запущена", req.Symbol)
	res, err := t.api.RunOptimization(ctx, req)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❌ Оптимизация не выполнена: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, formatOptimization(res))
}

func (t *Telegram) handleLogs(ctx context.Context, chatID int64, args string) {
	id := strings.TrimSpace(args)
	if id == "" {
		_, _ = t.Send(ctx, chatID, "Формат: /logs SESSION_ID")
		return
	}
	logs, err := t.api.SessionLogs(ctx, id)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ Не удалось получить логи: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, formatSessionLogs(logs))
}

func (t *Telegram) handlePerformance(ctx context.Context, chatID int64, _ string) {
	p, err := t.api.Performance(ctx)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ Не удалось получить результаты: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, formatPerformance(p))
}

func (t *Telegram) handleBotStart(ctx context.Context, chatID int64, _ string) {
	cfg := t.defaultBotConfig()
	res, err := t.api.StartBot(ctx, &cfg)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❌ Не удалось запустить бота: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, "✅ "+res.Message)
}

func (t *Telegram) handleBotStop(ctx context.Context, chatID int64, _ string) {
	res, err := t.api.StopBot(ctx)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "⚠️ Не удалось остановить бота: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, "🛑 "+res.Message)
}

func (t *Telegram) handlePing(ctx context.Context, chatID int64, _ string) {
	t.sendLive(ctx, chatID, t.feed.Ping, "🏓 ping отправлен")
}

func (t *Telegram) handleRefresh(ctx context.Context, chatID int64, _ string) {
	t.sendLive(ctx, chatID, t.feed.RequestStatus, "🔄 Статус запрошен")
}

// sendLive: при закрытом канале предупреждение уже показано тостом, дублируем в чат.
func (t *Telegram) sendLive(ctx context.Context, chatID int64, send func() error, ok string) {
	if err := send(); err != nil {
		if errors.Is(err, livefeed.ErrNotConnected) {
			_, _ = t.Send(ctx, chatID, "⚠️ Нет соединения с сервером, команда не отправлена")
			return
		}
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error())
		return
	}
	_, _ = t.Send(ctx, chatID, ok)
}

func (t *Telegram) handleJournal(ctx context.Context, chatID int64, args string) {
	n, err := parseJournalArgs(args)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error())
		return
	}
	entries, err := t.journal.Recent(ctx, n)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ Журнал недоступен: "+err.Error())
		return
	}
	_, _ = t.Send(ctx, chatID, formatJournal(entries))
}

func (t *Telegram) handleConfig(ctx context.Context, chatID int64, _ string) {
	dump, err := t.cfg.Dump()
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ "+err.Error())
		return
	}
	_, _ = t.Send(ctx, chatID, "⚙️ Конфигурация консоли:\n\n"+dump)
}

func (t *Telegram) defaultBotConfig() models.BotConfig {
	d := t.cfg.Defaults
	return models.BotConfig{
		Symbols:      append([]string(nil), d.Symbols...),
		RiskPerTrade: d.RiskPerTrade,
		MaxDrawdown:  d.MaxDrawdown,
		StopLoss:     d.StopLoss,
		TakeProfit:   d.TakeProfit,
	}
}

// errText: для ответа сервера показываем detail, остальное как есть.
func errText(err error) string {
	var apiErr *botapi.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (HTTP %d)", apiErr.Detail, apiErr.Status)
	}
	return err.Error()
}
