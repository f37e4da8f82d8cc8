package session

import (
	"errors"
	"sync"
	"time"

	"github.com/JBRUL254/apexnurse/models"
)

// Precondition violations. These signal caller defects (bad index, check
// before select), not recoverable runtime conditions; handlers map them to
// 400 responses and nothing retries them.
var (
	ErrNoQuestions     = errors.New("session: question list is empty")
	ErrOutOfRange      = errors.New("session: index out of range")
	ErrInvalidOption   = errors.New("session: option not available for this question")
	ErrNoSelection     = errors.New("session: no option selected for current question")
	ErrAlreadyRevealed = errors.New("session: answer already revealed, navigate away to change selection")
	ErrFinished        = errors.New("session: already finished")
)

// Session is one run through an ordered question list. The question slice is
// fixed at creation; position is the only cursor. All state transitions run
// under the session's own mutex, so a session is safe to drive from concurrent
// HTTP requests while each transition still executes to completion before the
// next one is observed.
type Session struct {
	ID     string
	UserID string
	Paper  string
	Series string

	mu        sync.Mutex
	questions []models.Question
	position  int
	answers   map[string]string // question id -> selected option key, last write wins
	revealed  map[int]bool      // keyed by position, cleared on navigation away
	finished  bool
	touched   time.Time
}

// New builds a session positioned at the first question with an empty answer
// map. An empty question list cannot start a session (DataFetchError at the
// caller's boundary).
func New(id, userID, paper, series string, questions []models.Question) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &Session{
		ID:        id,
		UserID:    userID,
		Paper:     paper,
		Series:    series,
		questions: questions,
		answers:   make(map[string]string, len(questions)),
		revealed:  make(map[int]bool),
		touched:   time.Now(),
	}, nil
}

// SelectOption records the option key for the current question. Re-selection
// is allowed until the answer is revealed; after a reveal the selection is
// locked until the user navigates away and back (which clears the reveal but
// keeps the recorded answer pre-filled).
func (s *Session) SelectOption(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	s.touched = time.Now()
	if s.revealed[s.position] {
		return ErrAlreadyRevealed
	}
	q := s.questions[s.position]
	if !hasOption(q, key) {
		return ErrInvalidOption
	}
	s.answers[q.ID] = key
	return nil
}

// CheckAnswer reveals the correct answer for the current question and reports
// whether the recorded selection matches it. Calling it again while still
// revealed returns the same result and mutates nothing; the score is never
// accumulated here (it is derived once at finish), so repeated checks cannot
// double-count.
func (s *Session) CheckAnswer() (models.CheckResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return models.CheckResponse{}, ErrFinished
	}
	s.touched = time.Now()
	q := s.questions[s.position]
	selected, ok := s.answers[q.ID]
	if !ok {
		return models.CheckResponse{}, ErrNoSelection
	}
	s.revealed[s.position] = true
	return models.CheckResponse{
		Correct:       IsCorrect(q, selected),
		CorrectOption: q.CorrectKey,
		Rationale:     q.Rationale,
	}, nil
}

// Next advances the cursor. A no-op at the last question: there is no
// wraparound, callers finish or jump instead.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.position >= len(s.questions)-1 {
		return
	}
	s.leave()
	s.position++
}

// Previous retreats the cursor, a no-op at position 0.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.position == 0 {
		return
	}
	s.leave()
	s.position--
}

// JumpTo is direct navigation from the index grid. Out-of-range is an error,
// not a clamp.
func (s *Session) JumpTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return ErrFinished
	}
	if index < 0 || index >= len(s.questions) {
		return ErrOutOfRange
	}
	if index == s.position {
		return nil
	}
	s.leave()
	s.position = index
	return nil
}

// leave clears the reveal for the question being navigated away from. The
// recorded answer stays. Reveals for other positions are untouched; callers
// hold s.mu.
func (s *Session) leave() {
	delete(s.revealed, s.position)
	s.touched = time.Now()
}

// Finish runs the single authoritative scoring pass over the answer map and
// seals the session. The summary is computed here and nowhere else.
func (s *Session) Finish() (models.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return models.SessionSummary{}, ErrFinished
	}
	s.finished = true
	return models.SessionSummary{
		Paper:     s.Paper,
		Series:    s.Series,
		Score:     score(s.questions, s.answers),
		Total:     len(s.questions),
		Timestamp: time.Now().UTC(),
	}, nil
}

// View is the presentation-layer snapshot: current question (student-safe),
// cursor, reveal flag, and per-question answered status for the index grid.
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.questions[s.position]
	progress := make([]models.ProgressEntry, len(s.questions))
	for i, question := range s.questions {
		_, answered := s.answers[question.ID]
		progress[i] = models.ProgressEntry{Index: i, Answered: answered}
	}
	return models.SessionView{
		SessionID: s.ID,
		Paper:     s.Paper,
		Series:    s.Series,
		Position:  s.position,
		Total:     len(s.questions),
		Question:  q.View(),
		Selected:  s.answers[q.ID],
		Revealed:  s.revealed[s.position],
		Progress:  progress,
	}
}

// IdleSince reports the last state transition, for the registry sweep.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func hasOption(q models.Question, key string) bool {
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}
