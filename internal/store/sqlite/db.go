// Package sqlite persists journal entries and candles in a local SQLite
// database (WAL mode, single writer connection).
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite database.
type Config struct {
	Path string // database file, e.g. "data/botcore.db"; ":memory:" for tests
}

// DB wraps the SQLite handle shared by the journal store and the candle
// writer and reader.
type DB struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (or creates) the database, enables WAL and applies the schema.
func Open(cfg Config, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite open")
	}

	// Single writer connection; also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite schema")
	}

	log.Info("sqlite opened", zap.String("path", cfg.Path))
	return &DB{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_id     TEXT    NOT NULL,
			entry_id   TEXT    NOT NULL,
			type       TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			payload    TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_bot ON journal(bot_id, seq);
		CREATE INDEX IF NOT EXISTS idx_journal_bot_type ON journal(bot_id, type, seq);

		CREATE TABLE IF NOT EXISTS candles (
			symbol     TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL,
			PRIMARY KEY (symbol, timeframe, ts)
		);
	`)
	return err
}

// SQL returns the underlying sql.DB.
func (d *DB) SQL() *sql.DB { return d.db }

// Ping checks the connection, for health probes.
func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }
