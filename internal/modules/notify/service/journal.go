package service

import (
	"context"
	"sync"
	"time"
	"trade_console/internal/models"
	journal "trade_console/internal/modules/journal/service"
	"trade_console/pkg/logger"
)

const appendTimeout = 5 * time.Second

// Journal складывает тосты в журнал из своей горутины: Notify зовётся
// под локом live-клиента и не должен ждать базу. При переполнении очереди
// тост в журнал не попадает.
type Journal struct {
	j       journal.Journal
	timeout time.Duration

	queue chan models.Toast
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewJournal(j journal.Journal) *Journal {
	return &Journal{
		j:       j,
		timeout: appendTimeout,
		queue:   make(chan models.Toast, queueSize),
		done:    make(chan struct{}),
	}
}

func (s *Journal) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop дописывает то, что уже в очереди.
func (s *Journal) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Journal) Notify(_ context.Context, t models.Toast) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.queue <- t:
	default:
		logger.Warn("[JOURNAL] toast queue full, dropped: %s", t.Message)
	}
}

func (s *Journal) loop() {
	defer s.wg.Done()
	for {
		select {
		case t := <-s.queue:
			s.append(t)
		case <-s.done:
			for {
				select {
				case t := <-s.queue:
					s.append(t)
				default:
					return
				}
			}
		}
	}
}

func (s *Journal) append(t models.Toast) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	e := journal.Entry{
		At:      t.At,
		Kind:    journal.KindToast,
		Level:   t.Level.String(),
		Message: t.Message,
	}
	if err := s.j.Append(ctx, e); err != nil {
		logger.Error("[JOURNAL] append toast: %v", err)
	}
}
