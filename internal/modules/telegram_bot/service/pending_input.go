package service

import (
	"sync"
	"time"
)

// inputTTL: сколько ждём значение настройки, потом забываем.
const inputTTL = 10 * time.Minute

type pendingInput struct {
	key   string
	since time.Time
}

// pendingInputs помнит, значение какой настройки ждём от чата следующим сообщением.
type pendingInputs struct {
	mu  sync.Mutex
	byC map[int64]pendingInput
	ttl time.Duration
	now func() time.Time
}

func newPendingInputs() *pendingInputs {
	return &pendingInputs{
		byC: make(map[int64]pendingInput),
		ttl: inputTTL,
		now: time.Now,
	}
}

func (p *pendingInputs) expect(chatID int64, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byC[chatID] = pendingInput{key: key, since: p.now()}
}

// expected отдаёт ключ, если ожидание ещё не протухло.
func (p *pendingInputs) expected(chatID int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.byC[chatID]
	if !ok {
		return "", false
	}
	if p.now().Sub(in.since) > p.ttl {
		delete(p.byC, chatID)
		return "", false
	}
	return in.key, true
}

func (p *pendingInputs) forget(chatID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byC, chatID)
}
