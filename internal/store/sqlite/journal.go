package sqlite

import (
	"context"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trading-botcore/internal/journal"
	"trading-botcore/internal/model"
)

// JournalStore is a journal.Store over the journal table. The autoincrement
// sequence preserves insertion order per bot.
type JournalStore struct {
	mu sync.Mutex
	db *DB
}

// Journal returns the journal store of d.
func (d *DB) Journal() *JournalStore { return &JournalStore{db: d} }

func (s *JournalStore) Name() string { return "sqlite" }

func (s *JournalStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *JournalStore) Append(ctx context.Context, e model.JournalEntry) error {
	payload, err := sonic.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "sqlite: encode entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.db.ExecContext(ctx,
		`INSERT INTO journal (bot_id, entry_id, type, ts, payload) VALUES (?, ?, ?, ?, ?)`,
		e.BotID, e.ID, string(e.Type), e.Timestamp.UnixNano(), string(payload),
	)
	return errors.Wrap(err, "sqlite: insert entry")
}

func (s *JournalStore) Query(ctx context.Context, botID string, f journal.Filter) ([]model.JournalEntry, error) {
	var (
		where = []string{"bot_id = ?"}
		args  = []any{botID}
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.From.UnixNano())
	}
	if !f.To.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, f.To.UnixNano())
	}

	rows, err := s.db.db.QueryContext(ctx,
		`SELECT payload FROM journal WHERE `+strings.Join(where, " AND ")+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: query journal")
	}
	defer rows.Close()

	var out []model.JournalEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan journal")
		}
		var e model.JournalEntry
		if err := sonic.UnmarshalString(payload, &e); err != nil {
			return nil, errors.Wrap(err, "sqlite: decode entry")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "sqlite: iterate journal")
}

func (s *JournalStore) Clear(ctx context.Context, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM journal WHERE bot_id = ?`, botID)
	return errors.Wrap(err, "sqlite: clear journal")
}
