// Package store writes an append-only log of AI projection attempts to
// Postgres so analysts can trace what was asked and what came back.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Skufu/DiabetView/internal/aiclient"
)

// DB is the subset of *pgxpool.Pool the log needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

const schemaDDL = `CREATE TABLE IF NOT EXISTS projection_log (
	id          UUID PRIMARY KEY,
	created_at  TIMESTAMPTZ NOT NULL,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	error       TEXT,
	result      JSONB,
	latency_ms  BIGINT NOT NULL
)`

const insertSQL = `INSERT INTO projection_log
	(id, created_at, provider, model, outcome, prompt, error, result, latency_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`

type ProjectionLog struct {
	db    DB
	now   func() time.Time
	newID func() uuid.UUID
}

func NewProjectionLog(db DB) *ProjectionLog {
	return &ProjectionLog{db: db, now: time.Now, newID: uuid.New}
}

func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func (l *ProjectionLog) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure projection_log: %w", err)
	}
	return nil
}

func (l *ProjectionLog) Record(ctx context.Context, rec aiclient.AttemptRecord) error {
	var result, errText any
	if rec.Result != nil {
		raw, err := json.Marshal(rec.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = string(raw)
	}
	if rec.Err != nil {
		errText = rec.Err.Error()
	}

	_, err := l.db.Exec(ctx, insertSQL,
		l.newID(),
		l.now().UTC(),
		rec.Provider,
		rec.Model,
		string(rec.Kind),
		rec.Prompt,
		errText,
		result,
		rec.Latency.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert projection_log: %w", err)
	}
	return nil
}

func (l *ProjectionLog) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}
