package service

import (
	"context"
	"net/http"
	"sync"
	"time"
	"trade_console/internal/modules/config"

	"github.com/gorilla/websocket"
)

// Transport открывает одно соединение к endpoint'у.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn: хендл соединения. ReadMessage блокируется до кадра или ошибки,
// после Close обязан вернуть ошибку.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// WSTransport: gorilla/websocket реализация.
type WSTransport struct {
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	pingInterval time.Duration
	readLimit    int64
}

func NewWSTransport(cfg *config.Config) *WSTransport {
	return &WSTransport{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		},
		writeTimeout: cfg.Feed.WriteTimeout,
		pingInterval: cfg.Feed.PingInterval,
		readLimit:    cfg.Feed.ReadLimit,
	}
}

func (t *WSTransport) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := t.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		conn:         conn,
		writeTimeout: t.writeTimeout,
		pingInterval: t.pingInterval,
		stop:         make(chan struct{}),
	}
	if t.readLimit > 0 {
		conn.SetReadLimit(t.readLimit)
	}
	if t.pingInterval > 0 {
		// без pong'а дольше трёх интервалов считаем соединение мёртвым
		wait := 3 * t.pingInterval
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
		go c.keepalive()
	}
	return c, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pingInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.pingInterval > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(3 * c.pingInterval))
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return c.conn.Close()
}

// keepalive шлёт control ping; WriteControl можно звать параллельно с WriteMessage.
func (c *wsConn) keepalive() {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			deadline := time.Now().Add(c.writeTimeout)
			if c.writeTimeout <= 0 {
				deadline = time.Now().Add(c.pingInterval)
			}
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// isNormalClose: штатное закрытие сервером, о нём не сообщаем как об ошибке.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
