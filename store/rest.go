package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/JBRUL254/apexnurse/models"
)

// RESTStore consumes the historical upstream question API — the same
// endpoints the SPA prototypes fetched directly (/papers, /series,
// /questions). It is read-only for bank content; finished-session summaries
// are proxied to the upstream /performance endpoint.
type RESTStore struct {
	base   string
	client *http.Client

	// The upstream API has no preferences endpoint (the SPA kept the theme
	// in localStorage), so preferences live in process memory here.
	mu    sync.Mutex
	prefs map[string]models.Preferences
}

func NewREST(baseURL string, timeout time.Duration) *RESTStore {
	return &RESTStore{
		base:   baseURL,
		client: &http.Client{Timeout: timeout},
		prefs:  make(map[string]models.Preferences),
	}
}

func (s *RESTStore) ListPapers(ctx context.Context) ([]string, error) {
	var papers []string
	if err := s.getJSON(ctx, "/papers", nil, &papers); err != nil {
		return nil, err
	}
	return papers, nil
}

func (s *RESTStore) ListSeries(ctx context.Context, paper, qtype string) ([]string, error) {
	q := url.Values{"paper": {paper}}
	if qtype != "" {
		q.Set("qtype", qtype)
	}
	var series []string
	if err := s.getJSON(ctx, "/series", q, &series); err != nil {
		return nil, err
	}
	return series, nil
}

func (s *RESTStore) QuestionsBySeries(ctx context.Context, paper, series string) ([]models.RawQuestion, error) {
	return s.fetchQuestions(ctx, url.Values{"paper": {paper}, "series": {series}})
}

// RandomSample pulls the whole paper and samples client-side; the upstream
// API has no sampling parameter.
func (s *RESTStore) RandomSample(ctx context.Context, paper string, n int) ([]models.RawQuestion, error) {
	all, err := s.fetchQuestions(ctx, url.Values{"paper": {paper}})
	if err != nil {
		return nil, err
	}
	if len(all) <= n {
		return all, nil
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:n], nil
}

// fetchQuestions tolerates both historical response shapes: a bare array,
// and the newer {"questions": [...]} envelope.
func (s *RESTStore) fetchQuestions(ctx context.Context, query url.Values) ([]models.RawQuestion, error) {
	var body json.RawMessage
	if err := s.getJSON(ctx, "/questions", query, &body); err != nil {
		return nil, err
	}
	var list []models.RawQuestion
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var envelope struct {
		Questions []models.RawQuestion `json:"questions"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected questions response shape: %w", err)
	}
	return envelope.Questions, nil
}

func (s *RESTStore) SaveSummary(ctx context.Context, userID string, summary models.SessionSummary) error {
	payload, err := json.Marshal(struct {
		UserID string `json:"user_id"`
		models.SessionSummary
	}{UserID: userID, SessionSummary: summary})
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/performance", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build performance request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("performance write failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("performance write failed: upstream returned %s", resp.Status)
	}
	return nil
}

func (s *RESTStore) History(ctx context.Context, userID string) ([]models.SessionSummary, error) {
	var history []models.SessionSummary
	if err := s.getJSON(ctx, "/performance", url.Values{"user_id": {userID}}, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *RESTStore) GetPreferences(_ context.Context, userID string) (models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefs, ok := s.prefs[userID]; ok {
		return prefs, nil
	}
	return DefaultPreferences, nil
}

func (s *RESTStore) SavePreferences(_ context.Context, userID string, prefs models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefs
	return nil
}

// ReplaceSeries is not supported: the upstream owns its bank.
func (s *RESTStore) ReplaceSeries(context.Context, string, string, string, []models.RawQuestion) error {
	return ErrReadOnly
}

func (s *RESTStore) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := s.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s failed: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s failed: upstream returned %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
