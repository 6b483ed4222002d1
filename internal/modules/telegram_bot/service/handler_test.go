package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"trade_console/internal/models"
	journal "trade_console/internal/modules/journal/service"
	livefeed "trade_console/internal/modules/livefeed/service"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

func TestIgnoresForeignChats(t *testing.T) {
	h := newHarness(t, testChat)

	h.run(message(7, "/status"))
	h.run(callback(7, "set:risk"))

	if len(h.bot.Messages()) != 0 {
		t.Fatalf("answered a foreign chat: %q", h.bot.LastText())
	}
}

func TestEmptyAllowListServesEveryone(t *testing.T) {
	h := newHarness(t)
	h.run(message(7, "/start"))
	if !strings.Contains(h.bot.LastText(), "/trade") {
		t.Fatalf("help = %q", h.bot.LastText())
	}
}

func TestStatusShowsPerformanceErrorInline(t *testing.T) {
	h := newHarness(t, testChat)
	h.snap.state = livefeed.StateConnected
	h.snap.status = models.BotStatus{Running: true, Connected: true}
	h.api.perfErr = errors.New("connection refused")

	h.run(message(testChat, "/status"))

	text := h.bot.LastText()
	for _, want := range []string{"🟢 подключено", "▶️ работает", "Результаты недоступны: connection refused"} {
		if !strings.Contains(text, want) {
			t.Fatalf("dashboard misses %q:\n%s", want, text)
		}
	}
}

func TestKeyboardButtonRunsCommand(t *testing.T) {
	h := newHarness(t, testChat)
	h.snap.positions = []models.Position{{Ticket: 1, Symbol: "EURUSDm", Type: "buy", Profit: decimal.NewFromInt(5)}}

	h.run(message(testChat, btnPositions))

	if !strings.Contains(h.bot.LastText(), "#1 EURUSDm BUY") {
		t.Fatalf("positions = %q", h.bot.LastText())
	}
}

func TestPingWhileDisconnected(t *testing.T) {
	h := newHarness(t, testChat)
	h.feed.err = livefeed.ErrNotConnected

	h.run(message(testChat, "/ping"))

	if h.feed.pings.Load() != 1 {
		t.Fatalf("pings = %d", h.feed.pings.Load())
	}
	if !strings.Contains(h.bot.LastText(), "Нет соединения") {
		t.Fatalf("reply = %q", h.bot.LastText())
	}
}

func TestTradeConfirmedAndJournaled(t *testing.T) {
	h := newHarness(t, testChat)

	done := make(chan struct{})
	go func() {
		h.run(message(testChat, "/trade buy EURUSDm 0.1"))
		close(done)
	}()

	var prompt tgbot.MessageConfig
	waitFor(t, "confirmation prompt", func() bool {
		for _, m := range h.bot.Messages() {
			if _, ok := m.ReplyMarkup.(tgbot.InlineKeyboardMarkup); ok {
				prompt = m
				return true
			}
		}
		return false
	})
	if !strings.Contains(prompt.Text, "BUY 0.1 EURUSDm") {
		t.Fatalf("prompt = %q", prompt.Text)
	}
	kb := prompt.ReplyMarkup.(tgbot.InlineKeyboardMarkup)
	confirm := *kb.InlineKeyboard[0][0].CallbackData

	h.t.handleUpdate(context.Background(), callback(testChat, confirm))
	<-done

	trades := h.api.Trades()
	if len(trades) != 1 || trades[0].Symbol != "EURUSDm" || trades[0].Action != "buy" {
		t.Fatalf("trades = %+v", trades)
	}
	if h.bot.LastText() != "✅ Trade executed successfully" {
		t.Fatalf("reply = %q", h.bot.LastText())
	}

	entries, _ := h.j.Recent(context.Background(), 10)
	var kinds []journal.Kind
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	if len(kinds) != 2 || kinds[0] != journal.KindTrade || kinds[1] != journal.KindCommand {
		t.Fatalf("journal kinds = %v", kinds)
	}

	// повторный клик по той же кнопке ничего не делает
	h.t.handleUpdate(context.Background(), callback(testChat, confirm))
	if len(h.api.Trades()) != 1 {
		t.Fatal("second click executed the trade again")
	}
}

func TestTradeRejected(t *testing.T) {
	h := newHarness(t, testChat)

	done := make(chan struct{})
	go func() {
		h.run(message(testChat, "/trade sell XAUUSDm 0.2 1990 1950"))
		close(done)
	}()

	var reject string
	waitFor(t, "confirmation prompt", func() bool {
		for _, m := range h.bot.Messages() {
			if kb, ok := m.ReplyMarkup.(tgbot.InlineKeyboardMarkup); ok {
				reject = *kb.InlineKeyboard[0][1].CallbackData
				return true
			}
		}
		return false
	})
	h.t.handleUpdate(context.Background(), callback(testChat, reject))
	<-done

	if len(h.api.Trades()) != 0 {
		t.Fatal("rejected trade was executed")
	}
}

func TestTradeBadArgs(t *testing.T) {
	h := newHarness(t, testChat)
	h.run(message(testChat, "/trade hold EURUSDm 0.1"))

	if !strings.Contains(h.bot.LastText(), "Формат: /trade") {
		t.Fatalf("reply = %q", h.bot.LastText())
	}
	if len(h.api.Trades()) != 0 {
		t.Fatal("invalid trade executed")
	}
}

func TestSettingsAwaitFlow(t *testing.T) {
	h := newHarness(t, testChat)
	h.api.botConfig = models.BotConfig{Symbols: []string{"EURUSDm"}, RiskPerTrade: 0.02, MaxDrawdown: 0.1, StopLoss: 50, TakeProfit: 100}

	h.run(callback(testChat, "set:risk"))
	if !strings.Contains(h.bot.LastText(), "риск") {
		t.Fatalf("hint = %q", h.bot.LastText())
	}

	h.run(message(testChat, "abc"))
	if len(h.api.updated) != 0 || !strings.Contains(h.bot.LastText(), "Нужно число") {
		t.Fatalf("bad value accepted: %q", h.bot.LastText())
	}

	h.run(message(testChat, "1,5"))
	if len(h.api.updated) != 1 || h.api.updated[0].RiskPerTrade != 0.015 || h.api.updated[0].StopLoss != 50 {
		t.Fatalf("updated = %+v", h.api.updated)
	}
	if _, ok := h.t.inputs.expected(testChat); ok {
		t.Fatal("await not cleared")
	}

	// после сохранения обычный текст снова не понят
	h.run(message(testChat, "2"))
	if len(h.api.updated) != 1 {
		t.Fatal("value applied without await")
	}
}

func TestSettingsMenuFallsBackToDefaults(t *testing.T) {
	h := newHarness(t, testChat)
	h.api.configErr = errors.New("timeout")

	h.run(message(testChat, btnSettings))

	text := h.bot.LastText()
	if !strings.Contains(text, "значения по умолчанию") || !strings.Contains(text, "EURUSDm") {
		t.Fatalf("settings = %q", text)
	}
}

func TestBotStartUsesDefaults(t *testing.T) {
	h := newHarness(t, testChat)
	h.run(message(testChat, "/bot_start"))

	if len(h.api.started) != 1 || h.api.started[0].StopLoss != 50 || h.api.started[0].Symbols[0] != "EURUSDm" {
		t.Fatalf("started = %+v", h.api.started)
	}
}

func TestMarketUsesDefaultBars(t *testing.T) {
	h := newHarness(t, testChat)
	h.run(message(testChat, "/market EURUSDm"))

	if h.api.marketBars != 100 {
		t.Fatalf("bars = %d", h.api.marketBars)
	}
	if !strings.Contains(h.bot.LastText(), "История: 2 баров") {
		t.Fatalf("reply = %q", h.bot.LastText())
	}
}

func TestJournalCommand(t *testing.T) {
	h := newHarness(t, testChat)
	_ = h.j.Append(context.Background(), journal.Entry{Kind: journal.KindToast, Level: "warning", Message: "Отключено от торгового сервера"})

	h.run(message(testChat, "/journal 5"))

	if !strings.Contains(h.bot.LastText(), "[toast/warning] Отключено от торгового сервера") {
		t.Fatalf("journal = %q", h.bot.LastText())
	}
}

func TestStartStopLoop(t *testing.T) {
	h := newHarness(t, testChat)
	h.t.Start(context.Background())

	h.bot.updates <- message(testChat, "/ping")
	waitFor(t, "ping reply", func() bool { return h.feed.pings.Load() == 1 && h.bot.LastText() != "" })

	h.t.Stop()
	if !h.bot.stopped {
		t.Fatal("updates polling not stopped")
	}
}

func TestStartWithoutBotIsNoop(t *testing.T) {
	tg := NewTelegram(nil, newHarness(t).t.cfg, &fakeAPI{}, &fakeFeed{}, &fakeSnapshot{}, nil)
	tg.Start(context.Background())
	tg.Stop()
}
