package session

import (
	"github.com/JBRUL254/apexnurse/models"
)

// IsCorrect compares a recorded selection to the canonical correct key.
// Both sides are option keys; exact, case-sensitive. A question with no
// resolvable correct key always scores incorrect — it still counts in the
// denominator, so total stays len(questions) whatever the bank's data
// quality.
func IsCorrect(q models.Question, selected string) bool {
	if q.CorrectKey == "" || selected == "" {
		return false
	}
	return selected == q.CorrectKey
}

// score counts questions whose final recorded answer matches the correct
// key. Evaluated once, at finish; never incremented from check actions.
func score(questions []models.Question, answers map[string]string) int {
	n := 0
	for _, q := range questions {
		if IsCorrect(q, answers[q.ID]) {
			n++
		}
	}
	return n
}
