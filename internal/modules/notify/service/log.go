package service

import (
	"context"
	"os"
	"trade_console/internal/models"
	"trade_console/pkg/logger"

	"golang.org/x/term"
)

// Log пишет тосты в общий лог. В терминале добавляет эмодзи по уровню.
type Log struct {
	decorate bool
}

func NewLog() *Log {
	return &Log{decorate: term.IsTerminal(int(os.Stdout.Fd()))}
}

func (l *Log) Notify(_ context.Context, t models.Toast) {
	msg := t.Message
	if l.decorate {
		msg = Emoji(t.Level) + " " + msg
	}
	switch t.Level {
	case models.ToastDanger:
		logger.Error("[TOAST] %s", msg)
	case models.ToastWarning:
		logger.Warn("[TOAST] %s", msg)
	default:
		logger.Info("[TOAST] %s (%s)", msg, t.Level)
	}
}

func Emoji(l models.ToastLevel) string {
	switch l {
	case models.ToastSuccess:
		return "✅"
	case models.ToastWarning:
		return "⚠️"
	case models.ToastDanger:
		return "❌"
	default:
		return "ℹ️"
	}
}
