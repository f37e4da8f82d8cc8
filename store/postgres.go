package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JBRUL254/apexnurse/models"
)

// PostgresStore backs the question bank and performance history with the
// shared pgx pool. Schema bootstrap lives in the db package.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) ListPapers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT paper FROM questions ORDER BY paper`)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *PostgresStore) ListSeries(ctx context.Context, paper, qtype string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT series FROM questions
		WHERE paper = $1 AND ($2 = '' OR qtype = $2)
		ORDER BY series
	`, paper, qtype)
	if err != nil {
		return nil, fmt.Errorf("failed to query series for paper %s: %w", paper, err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *PostgresStore) QuestionsBySeries(ctx context.Context, paper, series string) ([]models.RawQuestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM questions
		WHERE paper = $1 AND series = $2
		ORDER BY id
	`, paper, series)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions for %s/%s: %w", paper, series, err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (s *PostgresStore) RandomSample(ctx context.Context, paper string, n int) ([]models.RawQuestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM questions
		WHERE paper = $1
		ORDER BY random()
		LIMIT $2
	`, paper, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample questions for %s: %w", paper, err)
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (s *PostgresStore) SaveSummary(ctx context.Context, userID string, summary models.SessionSummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO performance (user_id, paper, series, score, total, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, summary.Paper, summary.Series, summary.Score, summary.Total, summary.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save summary for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, userID string) ([]models.SessionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT paper, series, score, total, finished_at
		FROM performance
		WHERE user_id = $1
		ORDER BY finished_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", userID, err)
	}
	defer rows.Close()

	var history []models.SessionSummary
	for rows.Next() {
		var entry models.SessionSummary
		if err := rows.Scan(&entry.Paper, &entry.Series, &entry.Score, &entry.Total, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	var prefs models.Preferences
	err := s.pool.QueryRow(ctx, `SELECT theme FROM preferences WHERE user_id = $1`, userID).Scan(&prefs.Theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultPreferences, nil
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("failed to load preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

func (s *PostgresStore) SavePreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (user_id, theme, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			theme = EXCLUDED.theme,
			updated_at = CURRENT_TIMESTAMP
	`, userID, prefs.Theme)
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", userID, err)
	}
	return nil
}

// ReplaceSeries swaps in a freshly ingested bank for one series atomically.
func (s *PostgresStore) ReplaceSeries(ctx context.Context, paper, series, qtype string, raws []models.RawQuestion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE paper = $1 AND series = $2`, paper, series); err != nil {
		return fmt.Errorf("failed to clear series %s/%s: %w", paper, series, err)
	}
	for _, raw := range raws {
		payload, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to marshal question payload: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO questions (paper, series, qtype, payload) VALUES ($1, $2, $3, $4)
		`, paper, series, qtype, payload); err != nil {
			return fmt.Errorf("failed to insert question into %s/%s: %w", paper, series, err)
		}
	}
	return tx.Commit(ctx)
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanPayloads(rows pgx.Rows) ([]models.RawQuestion, error) {
	var out []models.RawQuestion
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan payload: %w", err)
		}
		var raw models.RawQuestion
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}
