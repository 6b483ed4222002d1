package service

import (
	"context"
	"fmt"
	"trade_console/pkg/db"

	"github.com/jackc/pgx/v5"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS console_journal (
	seq     BIGSERIAL PRIMARY KEY,
	id      UUID        NOT NULL UNIQUE,
	at      TIMESTAMPTZ NOT NULL,
	kind    TEXT        NOT NULL,
	level   TEXT        NOT NULL,
	message TEXT        NOT NULL,
	payload JSONB
)`

const (
	pgInsert = `INSERT INTO console_journal (id, at, kind, level, message, payload)
VALUES ($1, $2, $3, $4, $5, $6)`
	pgRecent = `SELECT id, at, kind, level, message, payload
FROM console_journal ORDER BY at DESC, seq DESC LIMIT $1`
)

// Postgres: журнал в таблице console_journal.
type Postgres struct {
	db *db.PgTxManager
}

// NewPostgres создаёт таблицу, если её ещё нет.
func NewPostgres(ctx context.Context, tm *db.PgTxManager) (_ *Postgres, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.NewPostgres: %w", err)
		}
	}()
	err = tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, pgSchema)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Postgres{db: tm}, nil
}

func (p *Postgres) Append(ctx context.Context, e Entry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.Append: %w", err)
		}
	}()
	prepare(&e)

	var payload []byte
	if len(e.Payload) > 0 {
		payload = e.Payload
	}
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, pgInsert, e.ID, e.At, string(e.Kind), e.Level, e.Message, payload)
		return err
	})
}

func (p *Postgres) Recent(ctx context.Context, limit int) (out []Entry, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.Recent: %w", err)
		}
	}()
	if limit <= 0 {
		limit = defaultCapacity
	}

	rows, err := p.db.Conn().Query(ctx, pgRecent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       Entry
			kind    string
			payload []byte
		)
		if err = rows.Scan(&e.ID, &e.At, &kind, &e.Level, &e.Message, &payload); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.At = e.At.UTC()
		if len(payload) > 0 {
			e.Payload = payload
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
