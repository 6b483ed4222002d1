package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
	journal "trade_console/internal/modules/journal/service"
	livefeed "trade_console/internal/modules/livefeed/service"
	"trade_console/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu     sync.Mutex
	toasts []models.Toast
}

func (s *recordingSink) Notify(_ context.Context, t models.Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, t)
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.toasts)
}

type panickingSink struct{}

func (panickingSink) Notify(context.Context, models.Toast) { panic("boom") }

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbot.MessageConfig
	fail  error
	block chan struct{}
}

func (f *fakeSender) Send(c tgbot.Chattable) (tgbot.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbot.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbot.Message{}, f.fail
}

func (f *fakeSender) Sent() []tgbot.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbot.MessageConfig(nil), f.sent...)
}

func telegramConfig(level string, chats ...int64) *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.NotifyLevel = level
	cfg.Telegram.ChatIDs = chats
	return cfg
}

func TestFanoutSurvivesPanickingSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanout(a, panickingSink{}, nil, b)

	f.Notify(context.Background(), models.NewToast(models.ToastInfo, "hello", time.Second))

	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("delivered a=%d b=%d", a.Len(), b.Len())
	}
}

func TestTelegramForwardsAtOrAboveThreshold(t *testing.T) {
	s := &fakeSender{}
	tg := NewTelegram(s, telegramConfig("warning", 10, 20))
	tg.Start()

	ctx := context.Background()
	tg.Notify(ctx, models.NewToast(models.ToastInfo, "info", time.Second))
	tg.Notify(ctx, models.NewToast(models.ToastSuccess, "ok", time.Second))
	tg.Notify(ctx, models.NewToast(models.ToastWarning, "Отключено", time.Second))
	tg.Notify(ctx, models.NewToast(models.ToastDanger, "Ошибка", time.Second))
	tg.Stop()

	sent := s.Sent()
	if len(sent) != 4 {
		t.Fatalf("sent %d messages, want 4", len(sent))
	}
	if sent[0].ChatID != 10 || sent[1].ChatID != 20 {
		t.Fatalf("chats = %d, %d", sent[0].ChatID, sent[1].ChatID)
	}
	if sent[0].Text != "⚠️ Отключено" || sent[2].Text != "❌ Ошибка" {
		t.Fatalf("texts = %q, %q", sent[0].Text, sent[2].Text)
	}

	// после Stop ничего не уходит
	tg.Notify(ctx, models.NewToast(models.ToastDanger, "late", time.Second))
	if len(s.Sent()) != 4 {
		t.Fatal("sent after stop")
	}
}

func TestTelegramDisabledWithoutBotOrChats(t *testing.T) {
	for _, tg := range []*Telegram{
		NewTelegram(nil, telegramConfig("info", 1)),
		NewTelegram(&fakeSender{}, telegramConfig("info")),
	} {
		tg.Start()
		tg.Notify(context.Background(), models.NewToast(models.ToastDanger, "x", time.Second))
		tg.Stop()
		if len(tg.queue) != 0 {
			t.Fatal("disabled forwarder queued a toast")
		}
	}
}

func TestTelegramNotifyNeverBlocks(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	tg := NewTelegram(s, telegramConfig("info", 1))
	tg.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*3; i++ {
			tg.Notify(context.Background(), models.NewToast(models.ToastInfo, "spam", time.Second))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a stuck sender")
	}

	close(s.block)
	tg.Stop()
	if n := len(s.Sent()); n == 0 || n > queueSize+1 {
		t.Fatalf("sent = %d", n)
	}
}

func TestTelegramSendErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := logger.InfoLogger
	logger.InfoLogger = zap.New(core)
	defer func() { logger.InfoLogger = prev }()

	tg := NewTelegram(&fakeSender{fail: errors.New("forbidden")}, telegramConfig("info", 7))
	tg.Start()
	tg.Notify(context.Background(), models.NewToast(models.ToastDanger, "x", time.Second))
	tg.Stop()

	if logs.FilterMessageSnippet("send toast to 7").Len() != 1 {
		t.Fatal("send error not logged")
	}
}

func TestJournalSinkAppends(t *testing.T) {
	j := journal.NewMemory(10)
	s := NewJournal(j)

	s.Start()
	toast := models.NewToast(models.ToastWarning, "Нет соединения с сервером", 2*time.Second)
	s.Notify(context.Background(), toast)
	s.Stop()

	got, err := j.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Kind != journal.KindToast || got[0].Level != "warning" || got[0].Message != toast.Message {
		t.Fatalf("entries = %+v", got)
	}
	if !got[0].At.Equal(toast.At) {
		t.Fatalf("at = %s, want %s", got[0].At, toast.At)
	}
}

// stallJournal висит в Append, пока не истечёт контекст.
type stallJournal struct {
	journal.Journal
	calls atomic.Int32
}

func (s *stallJournal) Append(ctx context.Context, _ journal.Entry) error {
	s.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestJournalSinkNeverBlocksOnStalledStore(t *testing.T) {
	stall := &stallJournal{}
	s := NewJournal(stall)
	s.timeout = 50 * time.Millisecond
	s.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*3; i++ {
			s.Notify(context.Background(), models.NewToast(models.ToastWarning, "x", time.Second))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a stalled journal")
	}

	// очередь не дописываем: хватит того, что первый append отвалился по таймауту
	s.once.Do(func() { close(s.done) })
drain:
	for {
		select {
		case <-s.queue:
		default:
			break drain
		}
	}
	s.wg.Wait()
	if stall.calls.Load() == 0 {
		t.Fatal("append was never attempted")
	}
}

func TestSendWhileDisconnectedWithStalledJournal(t *testing.T) {
	s := NewJournal(&stallJournal{})
	s.timeout = 50 * time.Millisecond
	s.Start()
	defer s.Stop()

	cfg := &config.Config{}
	cfg.Server.WSURL = "ws://console.test/ws"
	cfg.Feed.ReconnectDelay = 5 * time.Second
	c := livefeed.NewClient(cfg, nil, livefeed.NewClock(), NewFanout(&Log{}, s), livefeed.NewStore())
	defer c.Close()

	errc := make(chan error, 1)
	go func() { errc <- c.Send(models.Command{Type: models.CommandPing}) }()
	select {
	case err := <-errc:
		if !errors.Is(err, livefeed.ErrNotConnected) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on the journal sink")
	}
}

func TestLogSinkMapsLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := logger.InfoLogger
	logger.InfoLogger = zap.New(core)
	defer func() { logger.InfoLogger = prev }()

	l := &Log{}
	ctx := context.Background()
	l.Notify(ctx, models.NewToast(models.ToastSuccess, "a", 0))
	l.Notify(ctx, models.NewToast(models.ToastWarning, "b", 0))
	l.Notify(ctx, models.NewToast(models.ToastDanger, "c", 0))

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel || entries[2].Level != zap.ErrorLevel {
		t.Fatalf("levels = %s %s %s", entries[0].Level, entries[1].Level, entries[2].Level)
	}
	if entries[2].Message != "[TOAST] c" {
		t.Fatalf("message = %q", entries[2].Message)
	}
}
