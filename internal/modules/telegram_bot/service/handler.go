package service

import (
	"context"
	"strings"
	journal "trade_console/internal/modules/journal/service"
	"trade_console/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// кнопки главного меню
const (
	btnStatus    = "📊 Статус"
	btnPositions = "📈 Позиции"
	btnBotStart  = "▶️ Запустить бота"
	btnBotStop   = "⏹ Остановить бота"
	btnSettings  = "⚙️ Настройки"
	btnBacktest  = "🧪 Бэктест"
)

type commandHandler func(t *Telegram, ctx context.Context, chatID int64, args string)

var commands = map[string]commandHandler{
	"start":       (*Telegram).handleStart,
	"help":        (*Telegram).handleStart,
	"status":      (*Telegram).handleStatus,
	"positions":   (*Telegram).handlePositions,
	"trade":       (*Telegram).handleTrade,
	"market":      (*Telegram).handleMarket,
	"backtest":    (*Telegram).handleBacktest,
	"optimize":    (*Telegram).handleOptimize,
	"logs":        (*Telegram).handleLogs,
	"performance": (*Telegram).handlePerformance,
	"settings":    (*Telegram).handleSettingsMenu,
	"bot_start":   (*Telegram).handleBotStart,
	"bot_stop":    (*Telegram).handleBotStop,
	"ping":        (*Telegram).handlePing,
	"refresh":     (*Telegram).handleRefresh,
	"journal":     (*Telegram).handleJournal,
	"config":      (*Telegram).handleConfig,
}

var buttons = map[string]string{
	btnStatus:    "status",
	btnPositions: "positions",
	btnBotStart:  "bot_start",
	btnBotStop:   "bot_stop",
	btnSettings:  "settings",
	btnBacktest:  "backtest",
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// 1) Обычные сообщения
	if msg := update.Message; msg != nil {
		if msg.Chat == nil || !t.isAllowed(msg.Chat.ID) {
			if msg.Chat != nil {
				logger.Warn("[TG] ignored chat %d", msg.Chat.ID)
			}
			return
		}
		// команды могут ждать Confirm, который приходит следующим апдейтом
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handleMessage(ctx, msg)
		}()
		return
	}

	// 2) Inline-кнопки (CallbackQuery)
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil || !t.isAllowed(cb.Message.Chat.ID) {
			return
		}
		t.handleCallback(ctx, cb.Message.Chat.ID, cb)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		t.inputs.forget(chatID)
		t.dispatch(ctx, chatID, msg.Command(), msg.CommandArguments())
		return
	}

	text := strings.TrimSpace(msg.Text)
	if cmd, ok := buttons[text]; ok {
		t.inputs.forget(chatID)
		t.dispatch(ctx, chatID, cmd, "")
		return
	}

	if key, ok := t.inputs.expected(chatID); ok {
		t.handleAwaitValue(ctx, chatID, text, key)
		return
	}

	_, _ = t.Send(ctx, chatID, "Не понял. Список команд: /help")
}

func (t *Telegram) dispatch(ctx context.Context, chatID int64, cmd, args string) {
	h, ok := commands[cmd]
	if !ok {
		_, _ = t.Send(ctx, chatID, "Неизвестная команда. Список команд: /help")
		return
	}
	logger.Info("[TG] chat %d: /%s %s", chatID, cmd, args)
	t.record(ctx, journal.KindCommand, "/"+strings.TrimSpace(cmd+" "+args), map[string]int64{"chat_id": chatID})
	h(t, ctx, chatID, args)
}

func (t *Telegram) handleCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	// отвечаем ТГ, чтобы убрать "часики" на кнопке
	_, _ = t.bot.Request(tgbotapi.NewCallback(cb.ID, ""))

	data := cb.Data
	switch {
	case strings.HasPrefix(data, "set:"):
		t.askValue(ctx, chatID, strings.TrimPrefix(data, "set:"))
	case data == "positions:refresh":
		t.handlePositions(ctx, chatID, "refresh")
	case strings.Contains(data, "::"):
		// Подтверждения: CONF::token / REJ::token
		t.handleConfirmCallback(chatID, data)
	}
}

// handleConfirmCallback обрабатывает callback-и вида CONF::token / REJ::token.
func (t *Telegram) handleConfirmCallback(chatID int64, data string) {
	verb, token := parseConfirmData(data)
	if verb == "" || token == "" {
		return
	}

	p, ok := t.takePending(token)
	if !ok {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted

	status := "Отклонено"
	emoji := "❌"
	if accepted {
		status = "Подтверждено"
		emoji = "✅"
	}

	t.mu.Lock()
	msgID := p.msgID
	t.mu.Unlock()
	_ = t.editReplyMarkupRemove(chatID, msgID)
	_ = t.editText(chatID, msgID, p.prompt+"\n\n"+emoji+" "+status)
}

func parseConfirmData(data string) (verb, token string) {
	for i := 0; i < len(data); i++ {
		if i+1 < len(data) && data[i] == ':' && data[i+1] == ':' {
			return data[:i], data[i+2:]
		}
	}
	return "", ""
}
