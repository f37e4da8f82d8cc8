package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitDB initializes the PostgreSQL connection pool.
func InitDB(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL database!")
	return pool, nil
}

// CreateSchema sets up the tables for the question bank, finished-session
// summaries and per-user preferences. In a production environment, use a
// proper migration tool (e.g., golang-migrate).
func CreateSchema(pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS questions (
		id SERIAL PRIMARY KEY,
		paper VARCHAR(100) NOT NULL,
		series VARCHAR(100) NOT NULL,
		qtype VARCHAR(20) NOT NULL DEFAULT 'series' CHECK (qtype IN ('series', 'quicktest')),
		-- Raw record as uploaded; field names vary by bank vintage and are
		-- resolved by the normalizer at session start, not here.
		payload JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_questions_paper_series ON questions (paper, series);

	CREATE TABLE IF NOT EXISTS performance (
		id SERIAL PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		paper VARCHAR(100) NOT NULL,
		series VARCHAR(100) NOT NULL,
		score INT NOT NULL,
		total INT NOT NULL,
		finished_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_performance_user ON performance (user_id, finished_at DESC);

	CREATE TABLE IF NOT EXISTS preferences (
		user_id VARCHAR(255) PRIMARY KEY,
		theme VARCHAR(20) NOT NULL DEFAULT 'light',
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := pool.Exec(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	return nil
}
