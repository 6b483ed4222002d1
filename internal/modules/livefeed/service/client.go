package service

import (
	"context"
	"sync"
	"time"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
	"trade_console/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

var ErrNotConnected = errors.New("livefeed: not connected")

// длительность тостов
const (
	toastConnected    = 2 * time.Second
	toastDisconnected = 2 * time.Second
	toastConnError    = 3 * time.Second
	toastTrade        = 4 * time.Second
	toastServerError  = 4 * time.Second
	toastNotConnected = 2 * time.Second
)

// Notifier: куда показывать короткие уведомления.
type Notifier interface {
	Notify(ctx context.Context, t models.Toast)
}

// Client держит одно live-соединение с сервером: переподключается бесконечно
// с фиксированной паузой, раскладывает входящие кадры в Store и отправляет
// команды, только пока соединение открыто.
//
// Все колбэки транспорта и таймера выполняются под c.mu, поэтому события
// обрабатываются строго по одному. Подписчики Store и Notifier вызываются
// изнутри и не должны звать методы Client синхронно.
type Client struct {
	url       string
	delay     time.Duration
	transport Transport
	clock     Clock
	n         Notifier
	store     *Store

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	conn   Conn
	epoch  uint64 // растёт на каждый Connect; колбэки старых соединений игнорируются
	timer  Timer
	timerN uint64 // номер текущего таймера; сработавший чужой таймер его не трогает
	closed bool
}

func NewClient(cfg *config.Config, transport Transport, clock Clock, n Notifier, store *Store) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:       cfg.Server.WSURL,
		delay:     cfg.Feed.ReconnectDelay,
		transport: transport,
		clock:     clock,
		n:         n,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateDisconnected,
	}
}

func (c *Client) Store() *Store { return c.store }

func (c *Client) State() State { return c.store.State() }

// Connect идемпотентен: работает только из Disconnected.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateDisconnected {
		return
	}
	c.stopTimerLocked()
	c.epoch++
	c.setStateLocked(StateConnecting)
	logger.Info("[FEED] connecting to %s", c.url)

	go c.run(c.epoch)
}

// Close делает teardown: отменяет таймер переподключения и закрывает соединение.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.stopTimerLocked()
	c.cancel()

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
	logger.Info("[FEED] closed")
	return err
}

// Send пишет команду в соединение только в состоянии Connected.
// Иначе команда теряется, оператор получает предупреждение.
func (c *Client) Send(msg any) error {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "livefeed: marshal command")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		c.notify(models.ToastWarning, "Нет соединения с сервером", toastNotConnected)
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(payload); err != nil {
		logger.Error("[FEED] write error: %v", err)
		return errors.Wrap(err, "livefeed: write")
	}
	return nil
}

func (c *Client) Ping() error {
	return c.Send(models.Command{Type: models.CommandPing})
}

func (c *Client) RequestStatus() error {
	return c.Send(models.Command{Type: models.CommandRequestStatus})
}

func (c *Client) run(epoch uint64) {
	conn, err := c.transport.Dial(c.ctx, c.url)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.currentLocked(epoch) {
			return
		}
		logger.Error("[FEED] dial %s: %v", c.url, err)
		c.onErrorLocked()
		c.onCloseLocked()
		return
	}

	if !c.onOpen(epoch, conn) {
		_ = conn.Close()
		return
	}

	for {
		raw, err := conn.ReadMessage()

		c.mu.Lock()
		if !c.currentLocked(epoch) {
			c.mu.Unlock()
			return
		}
		if err != nil {
			if isNormalClose(err) {
				logger.Info("[FEED] closed by server: %v", err)
			} else {
				logger.Error("[FEED] read error: %v", err)
				c.onErrorLocked()
			}
			c.onCloseLocked()
			c.mu.Unlock()
			return
		}
		c.onMessageLocked(raw)
		c.mu.Unlock()
	}
}

func (c *Client) onOpen(epoch uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(epoch) {
		return false
	}
	c.conn = conn
	c.setStateLocked(StateConnected)
	logger.Info("[FEED] connected to %s", c.url)
	c.notify(models.ToastSuccess, "Подключено к торговому серверу", toastConnected)
	return true
}

// onErrorLocked только сообщает; переподключение всегда идёт через onCloseLocked,
// который run() вызывает сразу следом.
func (c *Client) onErrorLocked() {
	c.notify(models.ToastDanger, "Ошибка соединения", toastConnError)
}

func (c *Client) onCloseLocked() {
	if c.state == StateDisconnected {
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.setStateLocked(StateDisconnected)
	c.notify(models.ToastWarning, "Отключено от торгового сервера", toastDisconnected)

	c.stopTimerLocked()
	c.timerN++
	n := c.timerN
	c.timer = c.clock.AfterFunc(c.delay, func() { c.reconnect(n) })
	logger.Info("[FEED] reconnect in %s", c.delay)
}

func (c *Client) reconnect(n uint64) {
	c.mu.Lock()
	if c.closed || n != c.timerN {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	c.Connect()
}

func (c *Client) currentLocked(epoch uint64) bool {
	return !c.closed && epoch == c.epoch
}

func (c *Client) setStateLocked(st State) {
	c.state = st
	c.store.setState(st)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) notify(level models.ToastLevel, msg string, d time.Duration) {
	if c.n == nil {
		return
	}
	c.n.Notify(c.ctx, models.NewToast(level, msg, d))
}
