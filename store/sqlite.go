package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // driver: sqlite

	"github.com/JBRUL254/apexnurse/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    paper TEXT NOT NULL,
    series TEXT NOT NULL,
    qtype TEXT NOT NULL DEFAULT 'series',
    payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_paper_series ON questions (paper, series);

CREATE TABLE IF NOT EXISTS performance (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    paper TEXT NOT NULL,
    series TEXT NOT NULL,
    score INTEGER NOT NULL,
    total INTEGER NOT NULL,
    finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_performance_user ON performance (user_id, finished_at DESC);

CREATE TABLE IF NOT EXISTS preferences (
    user_id TEXT PRIMARY KEY,
    theme TEXT NOT NULL DEFAULT 'light',
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore is the zero-configuration backend for local runs. Same surface
// as PostgresStore over a file database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "file:apexnurse.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ListPapers(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT paper FROM questions ORDER BY paper`)
}

func (s *SQLiteStore) ListSeries(ctx context.Context, paper, qtype string) ([]string, error) {
	return s.queryStrings(ctx, `
		SELECT DISTINCT series FROM questions
		WHERE paper = ? AND (? = '' OR qtype = ?)
		ORDER BY series
	`, paper, qtype, qtype)
}

func (s *SQLiteStore) QuestionsBySeries(ctx context.Context, paper, series string) ([]models.RawQuestion, error) {
	return s.queryPayloads(ctx, `
		SELECT payload FROM questions
		WHERE paper = ? AND series = ?
		ORDER BY id
	`, paper, series)
}

func (s *SQLiteStore) RandomSample(ctx context.Context, paper string, n int) ([]models.RawQuestion, error) {
	return s.queryPayloads(ctx, `
		SELECT payload FROM questions
		WHERE paper = ?
		ORDER BY RANDOM()
		LIMIT ?
	`, paper, n)
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, userID string, summary models.SessionSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance (user_id, paper, series, score, total, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, summary.Paper, summary.Series, summary.Score, summary.Total, summary.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save summary for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, userID string) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT paper, series, score, total, finished_at
		FROM performance
		WHERE user_id = ?
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

func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	var prefs models.Preferences
	err := s.db.QueryRowContext(ctx, `SELECT theme FROM preferences WHERE user_id = ?`, userID).Scan(&prefs.Theme)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultPreferences, nil
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("failed to load preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, theme, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			theme = excluded.theme,
			updated_at = CURRENT_TIMESTAMP
	`, userID, prefs.Theme)
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceSeries(ctx context.Context, paper, series, qtype string, raws []models.RawQuestion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE paper = ? AND series = ?`, paper, series); err != nil {
		return fmt.Errorf("failed to clear series %s/%s: %w", paper, series, err)
	}
	for _, raw := range raws {
		payload, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to marshal question payload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO questions (paper, series, qtype, payload) VALUES (?, ?, ?, ?)
		`, paper, series, qtype, string(payload)); err != nil {
			return fmt.Errorf("failed to insert question into %s/%s: %w", paper, series, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) queryPayloads(ctx context.Context, query string, args ...interface{}) ([]models.RawQuestion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []models.RawQuestion
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan payload: %w", err)
		}
		var raw models.RawQuestion
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}
