package service

import (
	"context"
	"strconv"
	"strings"
	"trade_console/internal/models"
	"trade_console/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ключи редактируемых полей (callback set:<key>)
const (
	keyRisk     = "risk"
	keyDrawdown = "drawdown"
	keyStop     = "sl"
	keyTake     = "tp"
	keySymbols  = "symbols"
)

func (t *Telegram) handleSettingsMenu(ctx context.Context, chatID int64, _ string) {
	cfg, fromServer := t.currentBotConfig(ctx)
	text := formatBotConfig(cfg)
	if !fromServer {
		text += "\n\n⚠️ Сервер недоступен, показаны значения по умолчанию"
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📉 Риск", "set:"+keyRisk),
			tgbotapi.NewInlineKeyboardButtonData("🕳 Просадка", "set:"+keyDrawdown),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛑 Stop loss", "set:"+keyStop),
			tgbotapi.NewInlineKeyboardButtonData("🎯 Take profit", "set:"+keyTake),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💱 Символы", "set:"+keySymbols),
		),
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, _ = t.SendMessage(ctx, msg)
}

// currentBotConfig: конфиг с сервера, при ошибке дефолты консоли.
func (t *Telegram) currentBotConfig(ctx context.Context) (models.BotConfig, bool) {
	cfg, err := t.api.BotConfig(ctx)
	if err != nil {
		logger.Warn("[TG] bot config: %v", err)
		return t.defaultBotConfig(), false
	}
	return cfg, true
}

func (t *Telegram) askValue(ctx context.Context, chatID int64, key string) {
	var hint string
	switch key {
	case keyRisk:
		hint = "Введи риск на сделку в %, например: 2"
	case keyDrawdown:
		hint = "Введи максимальную просадку в %, например: 10"
	case keyStop:
		hint = "Введи stop loss в пунктах (целое), например: 50"
	case keyTake:
		hint = "Введи take profit в пунктах (целое), например: 100"
	case keySymbols:
		hint = "Введи символы через запятую, например: EURUSDm, XAUUSDm"
	default:
		return
	}
	t.inputs.expect(chatID, key)
	_, _ = t.Send(ctx, chatID, "✍️ "+hint+"\n\nОтмена: напиши «отмена»")
}

func (t *Telegram) handleAwaitValue(ctx context.Context, chatID int64, text, key string) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "отмена") {
		t.inputs.forget(chatID)
		_, _ = t.Send(ctx, chatID, "Отменено")
		return
	}

	cfg, _ := t.currentBotConfig(ctx)
	if msg := applySetting(&cfg, key, text); msg != "" {
		// ждём следующую попытку
		_, _ = t.Send(ctx, chatID, "❗️"+msg)
		return
	}
	t.inputs.forget(chatID)

	if _, err := t.api.UpdateBotConfig(ctx, &cfg); err != nil {
		_, _ = t.Send(ctx, chatID, "❌ Не удалось сохранить: "+errText(err))
		return
	}
	_, _ = t.Send(ctx, chatID, "✅ Сохранено\n\n"+formatBotConfig(cfg))
}

// applySetting меняет одно поле; непустой ответ: текст ошибки для оператора.
func applySetting(cfg *models.BotConfig, key, text string) string {
	switch key {
	case keyRisk:
		v, err := parseFloat(text)
		if err != nil || v <= 0 || v > 10 {
			return "Нужно число 0..10, например 2"
		}
		cfg.RiskPerTrade = v / 100

	case keyDrawdown:
		v, err := parseFloat(text)
		if err != nil || v <= 0 || v > 100 {
			return "Нужно число 0..100, например 10"
		}
		cfg.MaxDrawdown = v / 100

	case keyStop, keyTake:
		v, err := strconv.Atoi(text)
		if err != nil || v <= 0 || v > 10000 {
			return "Нужно целое 1..10000, например 50"
		}
		if key == keyStop {
			cfg.StopLoss = v
		} else {
			cfg.TakeProfit = v
		}

	case keySymbols:
		var symbols []string
		for _, s := range strings.Split(text, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) == 0 {
			return "Нужен хотя бы один символ"
		}
		cfg.Symbols = symbols

	default:
		return "Неизвестное поле"
	}
	return ""
}
