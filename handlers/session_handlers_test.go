package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JBRUL254/apexnurse/config"
	"github.com/JBRUL254/apexnurse/explain"
	"github.com/JBRUL254/apexnurse/middleware"
	"github.com/JBRUL254/apexnurse/models"
	"github.com/JBRUL254/apexnurse/session"
)

// fakeStore is an in-memory stand-in for the question and performance
// collaborators.
type fakeStore struct {
	mu        sync.Mutex
	questions map[string][]models.RawQuestion // paper/series -> raw records
	saved     []models.SessionSummary
	savedFor  []string
	prefs     map[string]models.Preferences
	failSave  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		questions: make(map[string][]models.RawQuestion),
		prefs:     make(map[string]models.Preferences),
	}
}

func (f *fakeStore) key(paper, series string) string { return paper + "/" + series }

func (f *fakeStore) ListPapers(context.Context) ([]string, error) {
	return []string{"paper1"}, nil
}

func (f *fakeStore) ListSeries(context.Context, string, string) ([]string, error) {
	return []string{"Series_1"}, nil
}

func (f *fakeStore) QuestionsBySeries(_ context.Context, paper, series string) ([]models.RawQuestion, error) {
	return f.questions[f.key(paper, series)], nil
}

func (f *fakeStore) RandomSample(_ context.Context, paper string, n int) ([]models.RawQuestion, error) {
	var all []models.RawQuestion
	for key, raws := range f.questions {
		if len(key) >= len(paper) && key[:len(paper)] == paper {
			all = append(all, raws...)
		}
	}
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (f *fakeStore) SaveSummary(_ context.Context, userID string, summary models.SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("store unavailable")
	}
	f.saved = append(f.saved, summary)
	f.savedFor = append(f.savedFor, userID)
	return nil
}

func (f *fakeStore) History(_ context.Context, userID string) ([]models.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SessionSummary
	for i, summary := range f.saved {
		if f.savedFor[i] == userID {
			out = append(out, summary)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPreferences(_ context.Context, userID string) (models.Preferences, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return models.Preferences{Theme: "light"}, nil
}

func (f *fakeStore) SavePreferences(_ context.Context, userID string, prefs models.Preferences) error {
	f.prefs[userID] = prefs
	return nil
}

var testAuth = config.AuthConfig{
	JWTSigningKey: "test-signing-key",
	Issuer:        "apexnurse.test",
	AllowGuest:    true,
	GuestTokenTTL: time.Hour,
}

func newTestRouter(fake *fakeStore) (*gin.Engine, *session.Registry) {
	gin.SetMode(gin.TestMode)
	registry := session.NewRegistry(time.Hour)

	router := gin.New()
	router.POST("/auth/guest", GuestLogin(testAuth))
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Auth(testAuth))
	{
		apiV1.GET("/papers", GetPapers(fake))
		apiV1.GET("/papers/:paper/series", GetSeries(fake))
		apiV1.POST("/sessions", StartSession(fake, registry, 20))
		apiV1.GET("/sessions/:session_id", GetSessionState(registry))
		apiV1.POST("/sessions/:session_id/select", SelectOption(registry))
		apiV1.POST("/sessions/:session_id/check", CheckAnswer(registry))
		apiV1.POST("/sessions/:session_id/next", NextQuestion(registry))
		apiV1.POST("/sessions/:session_id/previous", PreviousQuestion(registry))
		apiV1.POST("/sessions/:session_id/jump", JumpToQuestion(registry))
		apiV1.POST("/sessions/:session_id/finish", FinishSession(registry, fake))
		apiV1.POST("/sessions/:session_id/exit", ExitSession(registry))
		apiV1.POST("/explain", Explain(nil))
		apiV1.GET("/performance", GetPerformance(fake))
		apiV1.GET("/preferences", GetPreferences(fake))
		apiV1.PUT("/preferences", UpdatePreferences(fake))
	}
	return router, registry
}

func seedSeries(fake *fakeStore, paper, series string, correctKeys ...string) {
	raws := make([]models.RawQuestion, len(correctKeys))
	for i, key := range correctKeys {
		raws[i] = models.RawQuestion{
			"id":             fmt.Sprintf("%s-%s-%d", paper, series, i+1),
			"question":       fmt.Sprintf("Question %d", i+1),
			"option_a":       "first",
			"option_b":       "second",
			"option_c":       "third",
			"option_d":       "fourth",
			"correct_answer": key,
			"rationale":      "because",
		}
	}
	fake.questions[fake.key(paper, series)] = raws
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) models.SessionView {
	t.Helper()
	var view models.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func TestSessionFlow_StartToFinish(t *testing.T) {
	fake := newFakeStore()
	seedSeries(fake, "paper1", "Series_1", "A", "B", "C")
	router, _ := newTestRouter(fake)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Series_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	require.Equal(t, 3, view.Total)
	assert.Equal(t, 0, view.Position)
	assert.Len(t, view.Question.Options, 4)
	sid := view.SessionID

	// The mid-session payload never leaks the answer key or rationale.
	assert.NotContains(t, w.Body.String(), "correct_key")
	assert.NotContains(t, w.Body.String(), "because")

	base := "/api/v1/sessions/" + sid
	for _, step := range []struct {
		selection   string
		wantCorrect bool
	}{
		{"A", true}, {"B", true}, {"D", false},
	} {
		w = doJSON(t, router, http.MethodPost, base+"/select", models.SelectRequest{Option: step.selection})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = doJSON(t, router, http.MethodPost, base+"/check", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var check models.CheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
		assert.Equal(t, step.wantCorrect, check.Correct)

		w = doJSON(t, router, http.MethodPost, base+"/next", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(t, router, http.MethodPost, base+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Score)
	assert.Equal(t, 3, summary.Total)

	// Persisted once, attributed to the anonymous identity.
	require.Len(t, fake.saved, 1)
	assert.Equal(t, middleware.AnonymousUser, fake.savedFor[0])

	// The finished session is gone.
	w = doJSON(t, router, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExitSession_NothingIsPersisted(t *testing.T) {
	fake := newFakeStore()
	seedSeries(fake, "paper1", "Series_1", "A", "B")
	router, _ := newTestRouter(fake)

	view := decodeView(t, doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Series_1"}))
	base := "/api/v1/sessions/" + view.SessionID

	w := doJSON(t, router, http.MethodPost, base+"/select", models.SelectRequest{Option: "A"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, base+"/exit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, fake.saved, "exit must not submit a summary")
	w = doJSON(t, router, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFinishSession_PersistenceFailureStillShowsSummary(t *testing.T) {
	fake := newFakeStore()
	fake.failSave = true
	seedSeries(fake, "paper1", "Series_1", "A")
	router, _ := newTestRouter(fake)

	view := decodeView(t, doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Series_1"}))
	base := "/api/v1/sessions/" + view.SessionID

	doJSON(t, router, http.MethodPost, base+"/select", models.SelectRequest{Option: "A"})
	w := doJSON(t, router, http.MethodPost, base+"/finish", nil)

	require.Equal(t, http.StatusOK, w.Code, "the score is not lost when the store write fails")
	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Score)
}

func TestStartSession_EmptySeriesIsNotFound(t *testing.T) {
	router, _ := newTestRouter(newFakeStore())
	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSession_RandomSample(t *testing.T) {
	fake := newFakeStore()
	seedSeries(fake, "paper1", "Series_1", "A", "B", "C", "D")
	router, _ := newTestRouter(fake)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Random: true, Limit: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, RandomSeriesLabel, view.Series)
}

func TestJumpToQuestion_OutOfRangeIsBadRequest(t *testing.T) {
	fake := newFakeStore()
	seedSeries(fake, "paper1", "Series_1", "A", "B")
	router, _ := newTestRouter(fake)

	view := decodeView(t, doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Series_1"}))
	base := "/api/v1/sessions/" + view.SessionID

	w := doJSON(t, router, http.MethodPost, base+"/jump", models.JumpRequest{Index: 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, base+"/jump", models.JumpRequest{Index: 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeView(t, w).Position)
}

func TestSelectOption_ConflictAfterReveal(t *testing.T) {
	fake := newFakeStore()
	seedSeries(fake, "paper1", "Series_1", "A")
	router, _ := newTestRouter(fake)

	view := decodeView(t, doJSON(t, router, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Series_1"}))
	base := "/api/v1/sessions/" + view.SessionID

	doJSON(t, router, http.MethodPost, base+"/select", models.SelectRequest{Option: "B"})
	doJSON(t, router, http.MethodPost, base+"/check", nil)

	w := doJSON(t, router, http.MethodPost, base+"/select", models.SelectRequest{Option: "A"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGuestFlow_TokenScopesHistory(t *testing.T) {
	fake := newFakeStore()
	seedSeries(fake, "paper1", "Series_1", "A")
	router, _ := newTestRouter(fake)

	w := doJSON(t, router, http.MethodPost, "/auth/guest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var guest models.GuestTokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &guest))
	require.NotEmpty(t, guest.AccessToken)

	authed := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+guest.AccessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w = authed(http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Paper: "paper1", Series: "Series_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decodeView(t, w)
	base := "/api/v1/sessions/" + view.SessionID

	// The anonymous identity cannot touch the guest's session.
	w = doJSON(t, router, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	authed(http.MethodPost, base+"/select", models.SelectRequest{Option: "A"})
	w = authed(http.MethodPost, base+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = authed(http.MethodGet, "/api/v1/performance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Score)
}

func TestExplain_ProxiesUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Because penicillin is first-line."}}]}`))
	}))
	defer upstream.Close()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	client := explain.NewClient(upstream.URL, "sk-test", "deepseek-reasoner", 2*time.Second)
	router.POST("/explain", Explain(client))

	w := doJSON(t, router, http.MethodPost, "/explain",
		models.ExplainRequest{Question: "Which drug treats syphilis?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.ExplainResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Because penicillin is first-line.", resp.Response)

	w = doJSON(t, router, http.MethodPost, "/explain", models.ExplainRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "question text is required")
}

func TestExplain_UnconfiguredIsUnavailable(t *testing.T) {
	router, _ := newTestRouter(newFakeStore())
	w := doJSON(t, router, http.MethodPost, "/api/v1/explain",
		models.ExplainRequest{Question: "anything"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExplain_UpstreamFailureIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	client := explain.NewClient(upstream.URL, "sk-test", "deepseek-reasoner", 2*time.Second)
	router.POST("/explain", Explain(client))

	w := doJSON(t, router, http.MethodPost, "/explain",
		models.ExplainRequest{Question: "anything"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPreferences_RoundTrip(t *testing.T) {
	router, _ := newTestRouter(newFakeStore())

	w := doJSON(t, router, http.MethodGet, "/api/v1/preferences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prefs models.Preferences
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
	assert.Equal(t, "light", prefs.Theme)

	w = doJSON(t, router, http.MethodPut, "/api/v1/preferences", models.Preferences{Theme: "dark"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/preferences", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
	assert.Equal(t, "dark", prefs.Theme)

	w = doJSON(t, router, http.MethodPut, "/api/v1/preferences", models.Preferences{Theme: "sepia"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
