// --- apexnurse/handlers/api_handlers.go ---
package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JBRUL254/apexnurse/config"
	"github.com/JBRUL254/apexnurse/explain"
	"github.com/JBRUL254/apexnurse/middleware"
	"github.com/JBRUL254/apexnurse/models"
	"github.com/JBRUL254/apexnurse/store"
	"github.com/JBRUL254/apexnurse/utils"
)

// GuestLogin issues a token for an anonymous identity.
// POST /auth/guest
func GuestLogin(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AllowGuest {
			c.JSON(http.StatusForbidden, gin.H{"error": "Guest access is disabled"})
			return
		}
		token, userID, err := middleware.IssueGuestToken(cfg)
		if err != nil {
			log.Printf("Error issuing guest token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue guest token"})
			return
		}
		c.JSON(http.StatusOK, models.GuestTokenResponse{AccessToken: token, UserID: userID})
	}
}

// Explain proxies a question to the configured reasoning API. A nil client
// means no API key was configured; the feature degrades to 503 rather than
// blocking startup.
// POST /api/v1/explain
func Explain(client *explain.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Explanations are not configured"})
			return
		}
		var req models.ExplainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing question text"})
			return
		}
		answer, err := client.Explain(c.Request.Context(), req.Question)
		if err != nil {
			log.Printf("Error fetching explanation: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch explanation"})
			return
		}
		c.JSON(http.StatusOK, models.ExplainResponse{Response: answer})
	}
}

// GetPapers lists the available papers.
// GET /api/v1/papers
func GetPapers(src store.QuestionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		papers, err := src.ListPapers(c.Request.Context())
		if err != nil {
			log.Printf("Error querying papers: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve papers"})
			return
		}
		if papers == nil {
			papers = []string{}
		}
		c.JSON(http.StatusOK, papers)
	}
}

// GetSeries lists the question series (or quicktests) within a paper.
// GET /api/v1/papers/:paper/series?qtype=series|quicktest
func GetSeries(src store.QuestionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		paper := c.Param("paper")
		qtype := c.Query("qtype")
		if !utils.ContainsString([]string{"", "series", "quicktest"}, qtype) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "qtype must be 'series' or 'quicktest'"})
			return
		}
		series, err := src.ListSeries(c.Request.Context(), paper, qtype)
		if err != nil {
			log.Printf("Error querying series for paper %s: %v", paper, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve series"})
			return
		}
		if series == nil {
			series = []string{}
		}
		c.JSON(http.StatusOK, series)
	}
}

// GetPerformance lists the caller's finished-session history.
// GET /api/v1/performance
func GetPerformance(perf store.PerformanceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		history, err := perf.History(c.Request.Context(), userID)
		if err != nil {
			log.Printf("Error querying performance history for %s: %v", userID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve performance history"})
			return
		}
		if history == nil {
			history = []models.SessionSummary{}
		}
		c.JSON(http.StatusOK, history)
	}
}

// GetPreferences returns the caller's saved presentation settings.
// GET /api/v1/preferences
func GetPreferences(prefs store.PreferenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		p, err := prefs.GetPreferences(c.Request.Context(), userID)
		if err != nil {
			log.Printf("Error loading preferences for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// UpdatePreferences saves the caller's presentation settings.
// PUT /api/v1/preferences
func UpdatePreferences(prefs store.PreferenceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.Preferences
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !utils.ContainsString([]string{"light", "dark"}, req.Theme) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "theme must be 'light' or 'dark'"})
			return
		}
		userID := c.GetString("user_id")
		if err := prefs.SavePreferences(c.Request.Context(), userID, req); err != nil {
			log.Printf("Error saving preferences for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save preferences"})
			return
		}
		c.JSON(http.StatusOK, req)
	}
}
