// Package postgres keeps bot journals in PostgreSQL through a pgx pool.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	seq      BIGSERIAL PRIMARY KEY,
	bot_id   TEXT        NOT NULL,
	entry_id TEXT        NOT NULL,
	type     TEXT        NOT NULL,
	ts       TIMESTAMPTZ NOT NULL,
	payload  JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS journal_entries_bot_seq ON journal_entries (bot_id, seq);
`

// Conn is the query surface shared by the pool and a transaction.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB owns the connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: ping")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres: apply schema")
	}
	log.Info("connected")
	return &DB{pool: pool, log: log}, nil
}

// Conn returns the pool as a Conn.
func (d *DB) Conn() Conn { return d.pool }

// RunInTx runs fn in a read-committed transaction, committing on nil error.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Conn) error) (err error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "postgres: begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = errors.Wrap(tx.Commit(ctx), "postgres: commit")
		}
	}()
	return fn(ctx, tx)
}

func (d *DB) Ping(ctx context.Context) error {
	return errors.Wrap(d.pool.Ping(ctx), "postgres: ping")
}

func (d *DB) Close() { d.pool.Close() }
