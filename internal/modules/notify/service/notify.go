package service

import (
	"context"
	"trade_console/internal/models"
	"trade_console/pkg/logger"
)

// Sink: одна поверхность показа тостов.
type Sink interface {
	Notify(ctx context.Context, t models.Toast)
}

// Fanout рассылает тост во все sinks. Паника одного sink'а не мешает остальным.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Notify(ctx context.Context, t models.Toast) {
	for _, s := range f.sinks {
		deliver(ctx, s, t)
	}
}

func deliver(ctx context.Context, s Sink, t models.Toast) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("[NOTIFY] sink %T panicked: %v", s, p)
		}
	}()
	s.Notify(ctx, t)
}
