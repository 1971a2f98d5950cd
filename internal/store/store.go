package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Transcription is a confirmed transcription persisted to the durable log.
type Transcription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveTranscription appends a confirmed transcription. Append-only; the
// message-handling core never reads it back.
func (s *Store) SaveTranscription(ctx context.Context, userID, text string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO transcriptions (id, user_id, body, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3)
	`, userID, text, time.Now().UTC())
	return err
}

// ListRecentTranscriptions returns the newest transcriptions, most recent
// first. Used by the admin debug endpoint only.
func (s *Store) ListRecentTranscriptions(ctx context.Context, limit int) ([]Transcription, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, body, created_at
		FROM transcriptions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transcription
	for rows.Next() {
		var t Transcription
		if err := rows.Scan(&t.ID, &t.UserID, &t.Body, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTranscriptionsByUser returns the number of saved transcriptions for
// a user. Used by the admin debug endpoint only.
func (s *Store) CountTranscriptionsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transcriptions WHERE user_id = $1
	`, userID).Scan(&n)
	return n, err
}
