package service

import (
	"context"
	"sync"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
	"trade_console/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const queueSize = 64

// Sender: то, что нужно от *tgbot.BotAPI.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// Telegram пересылает тосты не ниже порога в чаты операторов.
// Отправка идёт из своей горутины через ограниченную очередь,
// при переполнении тост теряется.
type Telegram struct {
	bot     Sender
	chatIDs []int64
	min     models.ToastLevel

	queue chan models.Toast
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewTelegram(bot Sender, cfg *config.Config) *Telegram {
	lvl, err := models.ParseToastLevel(cfg.Telegram.NotifyLevel)
	if err != nil {
		logger.Warn("[TG] %v, forwarding everything", err)
	}
	return &Telegram{
		bot:     bot,
		chatIDs: cfg.Telegram.ChatIDs,
		min:     lvl,
		queue:   make(chan models.Toast, queueSize),
		done:    make(chan struct{}),
	}
}

func (t *Telegram) enabled() bool {
	return t.bot != nil && len(t.chatIDs) > 0
}

func (t *Telegram) Start() {
	if !t.enabled() {
		logger.Info("[TG] toast forwarding disabled")
		return
	}
	t.wg.Add(1)
	go t.loop()
}

// Stop дожидается отправки того, что уже в очереди.
func (t *Telegram) Stop() {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
}

func (t *Telegram) Notify(_ context.Context, toast models.Toast) {
	if !t.enabled() || toast.Level < t.min {
		return
	}
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.queue <- toast:
	default:
		logger.Warn("[TG] toast queue full, dropped: %s", toast.Message)
	}
}

func (t *Telegram) loop() {
	defer t.wg.Done()
	for {
		select {
		case toast := <-t.queue:
			t.send(toast)
		case <-t.done:
			for {
				select {
				case toast := <-t.queue:
					t.send(toast)
				default:
					return
				}
			}
		}
	}
}

func (t *Telegram) send(toast models.Toast) {
	text := Emoji(toast.Level) + " " + toast.Message
	for _, id := range t.chatIDs {
		if _, err := t.bot.Send(tgbot.NewMessage(id, text)); err != nil {
			logger.Error("[TG] send toast to %d: %v", id, err)
		}
	}
}
