// Package store persists the audit trail: one row per engine event.
// External observers depend on this journal; losing rows is an
// operational incident, so Record logs every failed insert.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"astaverde/pkg/domain"
)

type Store struct {
	DB  *pgxpool.Pool
	log zerolog.Logger
}

func New(db *pgxpool.Pool, log zerolog.Logger) *Store {
	return &Store{DB: db, log: log}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS market_events (
  event_id    text PRIMARY KEY,
  type        text NOT NULL,
  occurred_at timestamptz NOT NULL,
  payload     jsonb NOT NULL
)`)
	return err
}

// Record implements domain.Sink.
func (s *Store) Record(e domain.Event) {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", e.ID).Msg("encode event payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.DB.Exec(ctx, `INSERT INTO market_events(event_id,type,occurred_at,payload) VALUES($1,$2,$3,$4::jsonb)`,
		e.ID, string(e.Type), e.At, string(b))
	if err != nil {
		s.log.Error().Err(err).Str("event", e.ID).Str("type", string(e.Type)).Msg("append audit event")
	}
}

// List returns the newest events first, up to limit.
func (s *Store) List(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `SELECT event_id,type,occurred_at,payload FROM market_events ORDER BY occurred_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		var id, typ string
		var at time.Time
		var payload []byte
		if err := rows.Scan(&id, &typ, &at, &payload); err != nil {
			return nil, err
		}
		var obj any
		_ = json.Unmarshal(payload, &obj)
		out = append(out, map[string]any{
			"event_id": id,
			"type":     typ,
			"at":       at.Format(time.RFC3339),
			"payload":  obj,
		})
	}
	return out, rows.Err()
}
