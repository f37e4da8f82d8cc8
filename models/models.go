package models

import (
	"time"
)

// RawQuestion is a question record exactly as it arrives from a question
// source. Historical banks disagree on field names (question/question_text,
// option_a/opt1, correct_answer/answer, ...), so the record stays a loose
// map until question.Normalize turns it into a Question.
type RawQuestion map[string]interface{}

// Option is a single answer choice. Key is one of "A".."D".
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Question is the canonical post-normalization form. CorrectKey is the option
// key, never the option text; it is empty when the source record carried no
// resolvable answer, in which case the question renders but cannot be scored.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Options    []Option `json:"options"`
	CorrectKey string   `json:"correct_key,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
}

// QuestionView is the student-safe projection of a Question: no answer key,
// no rationale. Those are only exposed through the check endpoint.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// View strips the fields a test taker must not see mid-session.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, Text: q.Text, Options: q.Options}
}

// SessionSummary is the immutable record of a finished session, handed to
// the performance store and to the results view.
type SessionSummary struct {
	Paper     string    `json:"paper"`
	Series    string    `json:"series"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// StartSessionRequest starts a test run: either a named (paper, series)
// form, or a random sample drawn from a paper.
type StartSessionRequest struct {
	Paper  string `json:"paper" binding:"required"`
	Series string `json:"series"`
	Random bool   `json:"random"`
	Limit  int    `json:"limit"`
}

// SelectRequest records an option choice for the current question.
type SelectRequest struct {
	Option string `json:"option" binding:"required"`
}

// JumpRequest is direct navigation from the index grid.
type JumpRequest struct {
	Index int `json:"index"`
}

// CheckResponse is the reveal payload for the current question.
type CheckResponse struct {
	Correct       bool   `json:"correct"`
	CorrectOption string `json:"correct_option"`
	Rationale     string `json:"rationale,omitempty"`
}

// ProgressEntry backs the index-grid progress indicator.
type ProgressEntry struct {
	Index    int  `json:"index"`
	Answered bool `json:"answered"`
}

// SessionView is the full state exposed to the presentation layer.
type SessionView struct {
	SessionID string          `json:"session_id"`
	Paper     string          `json:"paper"`
	Series    string          `json:"series"`
	Position  int             `json:"position"`
	Total     int             `json:"total"`
	Question  QuestionView    `json:"question"`
	Selected  string          `json:"selected,omitempty"`
	Revealed  bool            `json:"revealed"`
	Progress  []ProgressEntry `json:"progress"`
}

// Preferences holds per-user presentation settings (theme etc.). Loaded once
// by the SPA at startup; the server is just durable storage for them.
type Preferences struct {
	Theme string `json:"theme"`
}

// ExplainRequest asks the reasoning proxy to explain one question.
type ExplainRequest struct {
	Question string `json:"question" binding:"required"`
}

// ExplainResponse carries the upstream explanation back to the SPA.
type ExplainResponse struct {
	Response string `json:"response"`
}

// GuestTokenResponse is issued by POST /auth/guest.
type GuestTokenResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}
