// Package store abstracts the external collaborators of a test session: the
// question/series data store and the performance-history store. The session
// layer depends on these interfaces only; the concrete backend (Postgres,
// SQLite, or the historical REST question API) is chosen once at startup.
package store

import (
	"context"
	"errors"

	"github.com/JBRUL254/apexnurse/models"
)

// ErrReadOnly is returned by backends that cannot accept bank writes (the
// REST backend proxies a remote service it does not own).
var ErrReadOnly = errors.New("store: backend is read-only")

// QuestionSource supplies ordered raw question records, either by
// (paper, series) or as a random sample across a paper.
type QuestionSource interface {
	ListPapers(ctx context.Context) ([]string, error)
	ListSeries(ctx context.Context, paper, qtype string) ([]string, error)
	QuestionsBySeries(ctx context.Context, paper, series string) ([]models.RawQuestion, error)
	RandomSample(ctx context.Context, paper string, n int) ([]models.RawQuestion, error)
}

// PerformanceStore durably records finished-session summaries. The session
// core only ever writes; History exists for the analytics view.
type PerformanceStore interface {
	SaveSummary(ctx context.Context, userID string, summary models.SessionSummary) error
	History(ctx context.Context, userID string) ([]models.SessionSummary, error)
}

// PreferenceStore holds per-user presentation settings.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	SavePreferences(ctx context.Context, userID string, prefs models.Preferences) error
}

// BankWriter accepts question-bank loads from the ingestion path. Only the
// SQL backends implement it.
type BankWriter interface {
	ReplaceSeries(ctx context.Context, paper, series, qtype string, raws []models.RawQuestion) error
}

// Store is the full backend surface the server wires at startup.
type Store interface {
	QuestionSource
	PerformanceStore
	PreferenceStore
}

// DefaultPreferences is what GetPreferences returns for users who never
// saved any.
var DefaultPreferences = models.Preferences{Theme: "light"}
