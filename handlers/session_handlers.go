// --- apexnurse/handlers/session_handlers.go ---
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JBRUL254/apexnurse/models"
	"github.com/JBRUL254/apexnurse/question"
	"github.com/JBRUL254/apexnurse/session"
	"github.com/JBRUL254/apexnurse/store"
)

// RandomSeriesLabel is the series name recorded for random-practice runs.
const RandomSeriesLabel = "random-practice"

// StartSession fetches and normalizes a question list and opens a session
// positioned at the first question.
// POST /api/v1/sessions
func StartSession(src store.QuestionSource, reg *session.Registry, sampleSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StartSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		userID := c.GetString("user_id")

		var (
			raws   []models.RawQuestion
			series string
			err    error
		)
		if req.Random {
			limit := req.Limit
			if limit <= 0 {
				limit = sampleSize
			}
			series = RandomSeriesLabel
			raws, err = src.RandomSample(c.Request.Context(), req.Paper, limit)
		} else {
			if req.Series == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "series is required unless random is set"})
				return
			}
			series = req.Series
			raws, err = src.QuestionsBySeries(c.Request.Context(), req.Paper, req.Series)
		}
		if err != nil {
			log.Printf("Error fetching questions for %s/%s: %v", req.Paper, series, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load questions"})
			return
		}
		if len(raws) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "No questions found for the requested paper and series"})
			return
		}

		questions := question.NormalizeAll(raws)
		s, err := reg.Start(userID, req.Paper, series, questions)
		if err != nil {
			log.Printf("Error starting session for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

// GetSessionState returns the presentation snapshot of a running session.
// GET /api/v1/sessions/:session_id
func GetSessionState(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

// SelectOption records an answer for the current question.
// POST /api/v1/sessions/:session_id/select
func SelectOption(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		var req models.SelectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.SelectOption(req.Option); err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

// CheckAnswer reveals the correct answer for the current question.
// POST /api/v1/sessions/:session_id/check
func CheckAnswer(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		result, err := s.CheckAnswer()
		if err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// NextQuestion advances the cursor; a no-op at the last question.
// POST /api/v1/sessions/:session_id/next
func NextQuestion(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		s.Next()
		c.JSON(http.StatusOK, s.View())
	}
}

// PreviousQuestion retreats the cursor; a no-op at the first question.
// POST /api/v1/sessions/:session_id/previous
func PreviousQuestion(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		s.Previous()
		c.JSON(http.StatusOK, s.View())
	}
}

// JumpToQuestion is direct navigation from the index grid.
// POST /api/v1/sessions/:session_id/jump
func JumpToQuestion(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}
		var req models.JumpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.JumpTo(req.Index); err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.View())
	}
}

// FinishSession runs the scoring pass, persists the summary, and returns it.
// A persistence failure is logged but never hides the summary from the user.
// POST /api/v1/sessions/:session_id/finish
func FinishSession(reg *session.Registry, perf store.PerformanceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		summary, err := reg.Finish(c.Param("session_id"), userID)
		if err != nil {
			writeSessionError(c, err)
			return
		}
		if err := perf.SaveSummary(c.Request.Context(), userID, summary); err != nil {
			log.Printf("Error persisting session summary for %s: %v", userID, err)
		}
		c.JSON(http.StatusOK, summary)
	}
}

// ExitSession discards the session without recording anything.
// POST /api/v1/sessions/:session_id/exit
func ExitSession(reg *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := reg.Exit(c.Param("session_id"), c.GetString("user_id")); err != nil {
			writeSessionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"discarded": true})
	}
}

func lookupSession(c *gin.Context, reg *session.Registry) (*session.Session, bool) {
	s, err := reg.Get(c.Param("session_id"), c.GetString("user_id"))
	if err != nil {
		writeSessionError(c, err)
		return nil, false
	}
	return s, true
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, session.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to this session"})
	case errors.Is(err, session.ErrAlreadyRevealed):
		c.JSON(http.StatusConflict, gin.H{"error": "Answer already revealed, navigate away to change the selection"})
	case errors.Is(err, session.ErrNoSelection):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Select an option before checking"})
	case errors.Is(err, session.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Option not available for this question"})
	case errors.Is(err, session.ErrOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question index out of range"})
	case errors.Is(err, session.ErrFinished):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session already finished"})
	default:
		log.Printf("Unexpected session error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
