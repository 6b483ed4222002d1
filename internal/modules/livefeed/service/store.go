package service

import (
	"encoding/json"
	"sync"
	"trade_console/internal/models"
)

type EventKind int

const (
	EventConnection EventKind = iota
	EventBotStatus
	EventPositions
	EventMarketData
)

// Event: что поменялось в Store. Сами данные читаются через геттеры.
type Event struct {
	Kind   EventKind
	State  State  // для EventConnection
	Symbol string // для EventMarketData
}

// Store: снапшоты, присланные сервером. Пишет только Client, остальные читают.
type Store struct {
	mu        sync.RWMutex
	state     State
	status    models.BotStatus
	positions []models.Position
	market    models.MarketData

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func NewStore() *Store {
	return &Store{
		state:     StateDisconnected,
		positions: []models.Position{},
		market:    models.MarketData{},
		subs:      make(map[int]func(Event)),
	}
}

// Subscribe регистрирует колбэк; колбэки вызываются синхронно из потока событий,
// долгую работу в них делать нельзя. Возвращает отписку.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()
	if changed {
		s.publish(Event{Kind: EventConnection, State: st})
	}
}

func (s *Store) setBotStatus(st models.BotStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	s.publish(Event{Kind: EventBotStatus})
}

func (s *Store) setPositions(ps []models.Position) {
	if ps == nil {
		ps = []models.Position{}
	}
	s.mu.Lock()
	s.positions = ps
	s.mu.Unlock()
	s.publish(Event{Kind: EventPositions})
}

// mergeMarketData заменяет запись только для symbol, остальные не трогает.
func (s *Store) mergeMarketData(symbol string, payload json.RawMessage) {
	s.mu.Lock()
	s.market[symbol] = payload
	s.mu.Unlock()
	s.publish(Event{Kind: EventMarketData, Symbol: symbol})
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) BotStatus() models.BotStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) Positions() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

func (s *Store) MarketData() models.MarketData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.market.Clone()
}

func (s *Store) MarketDataFor(symbol string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.market[symbol]
	return v, ok
}
