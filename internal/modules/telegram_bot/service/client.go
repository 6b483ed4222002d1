package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
	journal "trade_console/internal/modules/journal/service"
	livefeed "trade_console/internal/modules/livefeed/service"
	"trade_console/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot: то, что нужно от *tgbot.BotAPI.
type Bot interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	Request(c tgbot.Chattable) (*tgbot.APIResponse, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// API: REST торгового сервера.
type API interface {
	BotStatus(ctx context.Context) (models.BotStatus, error)
	StartBot(ctx context.Context, cfg *models.BotConfig) (models.ActionResult, error)
	StopBot(ctx context.Context) (models.ActionResult, error)
	BotConfig(ctx context.Context) (models.BotConfig, error)
	UpdateBotConfig(ctx context.Context, cfg *models.BotConfig) (models.ActionResult, error)
	Positions(ctx context.Context) ([]models.Position, error)
	ExecuteTrade(ctx context.Context, req *models.TradeRequest) (models.TradeResult, error)
	MarketData(ctx context.Context, symbol string, bars int) (json.RawMessage, error)
	RunBacktest(ctx context.Context, req *models.BacktestRequest) (models.BacktestResult, error)
	RunOptimization(ctx context.Context, req *models.OptimizationRequest) (models.OptimizationResult, error)
	Performance(ctx context.Context) (models.Performance, error)
	SessionLogs(ctx context.Context, sessionID string) (models.SessionLogs, error)
}

// Feed: команды в live-канал.
type Feed interface {
	Ping() error
	RequestStatus() error
}

// Snapshot: последние данные, присланные по live-каналу.
type Snapshot interface {
	State() livefeed.State
	BotStatus() models.BotStatus
	Positions() []models.Position
	MarketDataFor(symbol string) (json.RawMessage, bool)
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

// Telegram: экраны оператора поверх Telegram-бота.
type Telegram struct {
	bot     Bot
	cfg     *config.Config
	api     API
	feed    Feed
	snap    Snapshot
	journal journal.Journal

	allowed map[int64]struct{}
	inputs  *pendingInputs

	mu       sync.Mutex
	pendings map[string]*pending

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTelegram(bot Bot, cfg *config.Config, api API, feed Feed, snap Snapshot, j journal.Journal) *Telegram {
	allowed := make(map[int64]struct{}, len(cfg.Telegram.ChatIDs))
	for _, id := range cfg.Telegram.ChatIDs {
		allowed[id] = struct{}{}
	}
	return &Telegram{
		bot:      bot,
		cfg:      cfg,
		api:      api,
		feed:     feed,
		snap:     snap,
		journal:  j,
		allowed:  allowed,
		inputs:   newPendingInputs(),
		pendings: make(map[string]*pending),
	}
}

func (t *Telegram) Send(ctx context.Context, chatID int64, msg string) (tgbot.Message, error) {
	return t.SendMessage(ctx, tgbot.NewMessage(chatID, msg))
}

func (t *Telegram) SendF(ctx context.Context, chatID int64, format string, args ...any) (tgbot.Message, error) {
	return t.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

func (t *Telegram) SendMessage(_ context.Context, message tgbot.MessageConfig) (tgbot.Message, error) {
	sent, err := t.bot.Send(message)
	if err != nil {
		logger.Error("[TG] send to %d: %v", message.ChatID, err)
	}
	return sent, err
}

func (t *Telegram) editReplyMarkupRemove(chatID int64, msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	edit := tgbot.NewEditMessageReplyMarkup(chatID, msgID, rm)
	_, err := t.bot.Request(edit)
	return err
}

func (t *Telegram) editText(chatID int64, msgID int, text string) error {
	edit := tgbot.NewEditMessageText(chatID, msgID, text)
	_, err := t.bot.Request(edit)
	return err
}

// Confirm: сообщение с кнопками и ожиданием callback.
func (t *Telegram) Confirm(ctx context.Context, chatID int64, prompt string, timeout time.Duration) bool {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{
		ch:     make(chan bool, 1),
		prompt: prompt,
	}

	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	btnYes := tgbot.NewInlineKeyboardButtonData("✅ Подтвердить", "CONF::"+token)
	btnNo := tgbot.NewInlineKeyboardButtonData("❌ Отмена", "REJ::"+token)
	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(btnYes, btnNo))

	msg := tgbot.NewMessage(chatID, prompt)
	msg.ReplyMarkup = kb

	sent, _ := t.SendMessage(ctx, msg)
	t.mu.Lock()
	p.msgID = sent.MessageID
	t.mu.Unlock()

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		t.dropPending(token)
		_ = t.editReplyMarkupRemove(chatID, sent.MessageID)
		_ = t.editText(chatID, sent.MessageID, fmt.Sprintf("%s\n\n⏳ Таймаут", prompt))
		return false
	case <-ctx.Done():
		t.dropPending(token)
		_ = t.editReplyMarkupRemove(chatID, sent.MessageID)
		_ = t.editText(chatID, sent.MessageID, fmt.Sprintf("%s\n\n⛔️ Отменено", prompt))
		return false
	}
}

func (t *Telegram) dropPending(token string) {
	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

// takePending забирает ожидание: второй клик по той же кнопке ничего не найдёт.
func (t *Telegram) takePending(token string) (*pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pendings[token]
	if ok {
		delete(t.pendings, token)
	}
	return p, ok
}

// Start запускает цикл обновлений в фоне.
func (t *Telegram) Start(ctx context.Context) {
	if t.bot == nil {
		logger.Warn("[TG] no bot token, operator screens disabled")
		return
	}
	if len(t.allowed) == 0 {
		logger.Warn("[TG] telegram.chat_ids is empty, serving every chat")
	}

	ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, update)
			}
		}
	}()
	logger.Info("[TG] polling updates")
}

func (t *Telegram) Stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.bot.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *Telegram) isAllowed(chatID int64) bool {
	if len(t.allowed) == 0 {
		return true
	}
	_, ok := t.allowed[chatID]
	return ok
}

// record пишет действие оператора в журнал; ошибка журнала не мешает команде.
func (t *Telegram) record(ctx context.Context, kind journal.Kind, msg string, payload any) {
	if t.journal == nil {
		return
	}
	e, err := journal.NewEntry(kind, "info", msg, payload)
	if err != nil {
		logger.Error("[JOURNAL] %v", err)
		return
	}
	if err := t.journal.Append(ctx, e); err != nil {
		logger.Error("[JOURNAL] append %s: %v", kind, err)
	}
}
