package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
	"trade_console/internal/models"
	"trade_console/internal/modules/config"
)

var errConnClosed = errors.New("fake conn closed")

type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errConnClosed
	default:
	}
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// push отдаёт кадр в read-loop клиента.
func (c *fakeConn) push(frame string) { c.frames <- []byte(frame) }

// drop: сервер оборвал соединение.
func (c *fakeConn) drop() { close(c.frames) }

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
	fail  error
}

func (t *fakeTransport) Dial(ctx context.Context, url string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials++
	if t.fail != nil {
		return nil, t.fail
	}
	c := newFakeConn()
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *fakeTransport) setFail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = err
}

func (t *fakeTransport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials
}

func (t *fakeTransport) Last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type fakeTimer struct {
	clock   *fakeClock
	due     time.Duration
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock держит ручное время, таймеры срабатывают только в Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, due: c.now + d, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.due <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []models.Toast
}

func (n *recordingNotifier) Notify(_ context.Context, t models.Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, t)
}

func (n *recordingNotifier) Toasts() []models.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Toast(nil), n.toasts...)
}

func (n *recordingNotifier) Levels() []models.ToastLevel {
	var out []models.ToastLevel
	for _, t := range n.Toasts() {
		out = append(out, t.Level)
	}
	return out
}

func testConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.WSURL = url
	cfg.Feed.ReconnectDelay = 5 * time.Second
	cfg.Feed.HandshakeTimeout = 2 * time.Second
	cfg.Feed.WriteTimeout = time.Second
	return cfg
}

func newTestClient(t *testing.T) (*Client, *fakeTransport, *fakeClock, *recordingNotifier) {
	t.Helper()
	tr := &fakeTransport{}
	clk := &fakeClock{}
	n := &recordingNotifier{}
	c := NewClient(testConfig("ws://console.test/ws"), tr, clk, n, NewStore())
	t.Cleanup(func() { _ = c.Close() })
	return c, tr, clk, n
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

func sameLevels(got []models.ToastLevel, want ...models.ToastLevel) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
