package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
	journal "trade_console/internal/modules/journal/service"
	livefeed "trade_console/internal/modules/livefeed/service"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbot.Chattable
	requests []tgbot.Chattable
	nextID   int
	updates  chan tgbot.Update
	stopped  bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbot.Update, 8)}
}

func (b *fakeBot) Send(c tgbot.Chattable) (tgbot.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.sent = append(b.sent, c)
	return tgbot.Message{MessageID: b.nextID}, nil
}

func (b *fakeBot) Request(c tgbot.Chattable) (*tgbot.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbot.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetUpdatesChan(tgbot.UpdateConfig) tgbot.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

// Messages: тексты отправленных MessageConfig по порядку.
func (b *fakeBot) Messages() []tgbot.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbot.MessageConfig
	for _, c := range b.sent {
		if m, ok := c.(tgbot.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBot) LastText() string {
	ms := b.Messages()
	if len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1].Text
}

type fakeAPI struct {
	mu sync.Mutex

	status     models.BotStatus
	perf       models.Performance
	perfErr    error
	positions  []models.Position
	botConfig  models.BotConfig
	configErr  error
	tradeErr   error
	trades     []models.TradeRequest
	updated    []models.BotConfig
	started    []models.BotConfig
	backtests  []models.BacktestRequest
	marketBars int
}

func (a *fakeAPI) BotStatus(context.Context) (models.BotStatus, error) { return a.status, nil }

func (a *fakeAPI) StartBot(_ context.Context, cfg *models.BotConfig) (models.ActionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = append(a.started, *cfg)
	return models.ActionResult{Message: "Enhanced bot started successfully"}, nil
}

func (a *fakeAPI) StopBot(context.Context) (models.ActionResult, error) {
	return models.ActionResult{Message: "Bot stopped successfully"}, nil
}

func (a *fakeAPI) BotConfig(context.Context) (models.BotConfig, error) {
	return a.botConfig, a.configErr
}

func (a *fakeAPI) UpdateBotConfig(_ context.Context, cfg *models.BotConfig) (models.ActionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updated = append(a.updated, *cfg)
	return models.ActionResult{Message: "ok"}, nil
}

func (a *fakeAPI) Positions(context.Context) ([]models.Position, error) { return a.positions, nil }

func (a *fakeAPI) ExecuteTrade(_ context.Context, req *models.TradeRequest) (models.TradeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trades = append(a.trades, *req)
	if a.tradeErr != nil {
		return models.TradeResult{}, a.tradeErr
	}
	return models.TradeResult{Message: "Trade executed successfully"}, nil
}

func (a *fakeAPI) Trades() []models.TradeRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.TradeRequest(nil), a.trades...)
}

func (a *fakeAPI) MarketData(_ context.Context, _ string, bars int) (json.RawMessage, error) {
	a.mu.Lock()
	a.marketBars = bars
	a.mu.Unlock()
	return json.RawMessage(`{"data":[{"close":1},{"close":2}]}`), nil
}

func (a *fakeAPI) RunBacktest(_ context.Context, req *models.BacktestRequest) (models.BacktestResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.backtests = append(a.backtests, *req)
	return models.BacktestResult{SessionID: "s1", Symbol: req.Symbol, StartDate: req.StartDate, EndDate: req.EndDate}, nil
}

func (a *fakeAPI) RunOptimization(_ context.Context, req *models.OptimizationRequest) (models.OptimizationResult, error) {
	return models.OptimizationResult{SessionID: "o1", Symbol: req.Symbol, BestParameters: json.RawMessage(`{"sl":30}`)}, nil
}

func (a *fakeAPI) Performance(context.Context) (models.Performance, error) { return a.perf, a.perfErr }

func (a *fakeAPI) SessionLogs(_ context.Context, id string) (models.SessionLogs, error) {
	return models.SessionLogs{SessionID: id}, nil
}

type fakeFeed struct {
	err   error
	pings atomic.Int32
}

func (f *fakeFeed) Ping() error {
	f.pings.Add(1)
	return f.err
}

func (f *fakeFeed) RequestStatus() error { return f.err }

type fakeSnapshot struct {
	state     livefeed.State
	status    models.BotStatus
	positions []models.Position
	market    map[string]json.RawMessage
}

func (s *fakeSnapshot) State() livefeed.State        { return s.state }
func (s *fakeSnapshot) BotStatus() models.BotStatus  { return s.status }
func (s *fakeSnapshot) Positions() []models.Position { return s.positions }
func (s *fakeSnapshot) MarketDataFor(sym string) (json.RawMessage, bool) {
	v, ok := s.market[sym]
	return v, ok
}

type harness struct {
	t    *Telegram
	bot  *fakeBot
	api  *fakeAPI
	feed *fakeFeed
	snap *fakeSnapshot
	j    *journal.Memory
}

const testChat = 42

func newHarness(t *testing.T, chats ...int64) *harness {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.ChatIDs = chats
	cfg.Telegram.ConfirmTimeout = 2 * time.Second
	cfg.Defaults.Symbols = []string{"EURUSDm"}
	cfg.Defaults.RiskPerTrade = 0.02
	cfg.Defaults.MaxDrawdown = 0.1
	cfg.Defaults.StopLoss = 50
	cfg.Defaults.TakeProfit = 100
	cfg.Defaults.Bars = 100
	cfg.Defaults.Episodes = 100

	h := &harness{
		bot:  newFakeBot(),
		api:  &fakeAPI{},
		feed: &fakeFeed{},
		snap: &fakeSnapshot{},
		j:    journal.NewMemory(50),
	}
	h.t = NewTelegram(h.bot, cfg, h.api, h.feed, h.snap, h.j)
	return h
}

func message(chatID int64, text string) tgbot.Update {
	msg := &tgbot.Message{
		MessageID: 1,
		Chat:      &tgbot.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbot.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbot.Update{Message: msg}
}

func callback(chatID int64, data string) tgbot.Update {
	return tgbot.Update{CallbackQuery: &tgbot.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbot.Message{MessageID: 99, Chat: &tgbot.Chat{ID: chatID}},
	}}
}

// run обрабатывает апдейт и ждёт фоновые обработчики.
func (h *harness) run(u tgbot.Update) {
	h.t.handleUpdate(context.Background(), u)
	h.t.wg.Wait()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
