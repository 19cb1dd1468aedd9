package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trading-botcore/internal/journal"
	"trading-botcore/internal/model"
)

// JournalStore is a journal.Store over journal_entries. BIGSERIAL keeps the
// insertion order; a per-bot advisory lock serialises appends across writers.
type JournalStore struct {
	db *DB
}

// Journal returns the journal store of d.
func (d *DB) Journal() *JournalStore { return &JournalStore{db: d} }

func (s *JournalStore) Name() string { return "postgres" }

func (s *JournalStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *JournalStore) Append(ctx context.Context, e model.JournalEntry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "postgres: encode entry")
	}
	return s.db.RunInTx(ctx, func(ctx context.Context, tx Conn) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, e.BotID); err != nil {
			return errors.Wrap(err, "postgres: lock bot")
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO journal_entries (bot_id, entry_id, type, ts, payload) VALUES ($1, $2, $3, $4, $5)`,
			e.BotID, e.ID, string(e.Type), e.Timestamp, payload,
		)
		return errors.Wrap(err, "postgres: insert entry")
	})
}

func (s *JournalStore) Query(ctx context.Context, botID string, f journal.Filter) ([]model.JournalEntry, error) {
	var (
		where = []string{"bot_id = $1"}
		args  = []any{botID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Type != "" {
		where = append(where, "type = "+arg(string(f.Type)))
	}
	if !f.From.IsZero() {
		where = append(where, "ts >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "ts <= "+arg(f.To))
	}

	rows, err := s.db.Conn().Query(ctx,
		`SELECT payload FROM journal_entries WHERE `+strings.Join(where, " AND ")+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: query journal")
	}
	defer rows.Close()

	var out []model.JournalEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "postgres: scan journal")
		}
		var e model.JournalEntry
		if err := sonic.Unmarshal(payload, &e); err != nil {
			return nil, errors.Wrap(err, "postgres: decode entry")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "postgres: iterate journal")
}

func (s *JournalStore) Clear(ctx context.Context, botID string) error {
	_, err := s.db.Conn().Exec(ctx, `DELETE FROM journal_entries WHERE bot_id = $1`, botID)
	return errors.Wrap(err, "postgres: clear journal")
}
