package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrClosed = errors.New("journal: closed")

type Kind string

const (
	KindToast   Kind = "toast"
	KindCommand Kind = "command"
	KindTrade   Kind = "trade"
)

// Entry это одна запись журнала: тост, команда оператора или сделка.
type Entry struct {
	ID      uuid.UUID       `json:"id"`
	At      time.Time       `json:"at"`
	Kind    Kind            `json:"kind"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Journal: append-only лента событий консоли.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	// Recent отдаёт не больше limit последних записей, новые первыми.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NewEntry собирает запись; payload сериализуется sonic'ом, nil: без payload.
func NewEntry(kind Kind, level, msg string, payload any) (Entry, error) {
	e := Entry{
		ID:      uuid.New(),
		At:      time.Now().UTC(),
		Kind:    kind,
		Level:   level,
		Message: msg,
	}
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return Entry{}, errors.Wrap(err, "journal: marshal payload")
		}
		e.Payload = data
	}
	return e, nil
}

func prepare(e *Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()
}
