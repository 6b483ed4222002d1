package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"trade_console/pkg/logger"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS console_journal (
	id      TEXT    NOT NULL UNIQUE,
	at      INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	level   TEXT    NOT NULL,
	message TEXT    NOT NULL,
	payload TEXT
);
CREATE INDEX IF NOT EXISTS console_journal_at ON console_journal (at);
`

// SQLite: журнал в локальном файле (modernc, без cgo).
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal.NewSQLite: open %s: %w", path, err)
	}
	// один писатель: sqlite иначе ловит SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal.NewSQLite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		logger.Warn("[JOURNAL] failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal.NewSQLite: schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, e Entry) error {
	prepare(&e)

	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO console_journal (id, at, kind, level, message, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.At.UnixNano(), string(e.Kind), e.Level, e.Message, payload,
	)
	if err != nil {
		return fmt.Errorf("SQLite.Append: %w", err)
	}
	return nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultCapacity
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, kind, level, message, payload FROM console_journal ORDER BY at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("SQLite.Recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			id      string
			at      int64
			kind    string
			payload sql.NullString
		)
		if err := rows.Scan(&id, &at, &kind, &e.Level, &e.Message, &payload); err != nil {
			return nil, fmt.Errorf("SQLite.Recent: scan: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("SQLite.Recent: bad id %q: %w", id, err)
		}
		e.At = time.Unix(0, at).UTC()
		e.Kind = Kind(kind)
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SQLite.Recent: %w", err)
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
