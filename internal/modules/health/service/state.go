package service

import (
	"sync/atomic"
	"time"
	livefeed "trade_console/internal/modules/livefeed/service"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected   atomic.Bool
	wsState       atomic.Int32 // livefeed.State
	everConnected atomic.Bool
	reconnects    atomic.Int64
	lastFrameUnix atomic.Int64 // unix seconds

	now func() time.Time
}

func NewState() *State {
	s := &State{startedAt: time.Now(), now: time.Now}
	s.ready.Store(false)
	s.wsState.Store(int32(livefeed.StateDisconnected))
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) WSState() livefeed.State { return livefeed.State(s.wsState.Load()) }

// Reconnects: сколько раз канал поднимался повторно после первого подключения.
func (s *State) Reconnects() int64 { return s.reconnects.Load() }

func (s *State) TouchFrame(t time.Time) { s.lastFrameUnix.Store(t.Unix()) }
func (s *State) LastFrame() time.Time {
	u := s.lastFrameUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// Observe обрабатывает события Store и держит флаги соединения и время последнего кадра.
func (s *State) Observe(ev livefeed.Event) {
	if ev.Kind != livefeed.EventConnection {
		s.TouchFrame(s.now())
		return
	}
	s.wsState.Store(int32(ev.State))
	connected := ev.State == livefeed.StateConnected
	s.SetWSConnected(connected)
	if connected && s.everConnected.Swap(true) {
		s.reconnects.Add(1)
	}
}

// Source: откуда State берёт события live-канала.
type Source interface {
	Subscribe(fn func(livefeed.Event)) (unsubscribe func())
	State() livefeed.State
}

// Watch подписывает State на события и сразу снимает текущее состояние:
// канал мог подняться раньше подписки. Возвращает отписку.
func (s *State) Watch(src Source) (unsubscribe func()) {
	unsubscribe = src.Subscribe(s.Observe)
	s.Observe(livefeed.Event{Kind: livefeed.EventConnection, State: src.State()})
	return unsubscribe
}
