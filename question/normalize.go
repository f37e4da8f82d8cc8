package question

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JBRUL254/apexnurse/models"
)

// NoTextPlaceholder is the display prompt for records missing every text alias.
const NoTextPlaceholder = "No question text found"

// Field alias tables. Historical question banks named the same logical field
// differently across uploads; the order within each list is the resolution
// order and is part of the compatibility contract with old data.
var (
	textAliases      = []string{"question", "question_text", "text"}
	correctAliases   = []string{"correct_answer", "answer", "correct", "correct_option"}
	rationaleAliases = []string{"rationale", "explanation"}
	idAliases        = []string{"id", "global_id", "question_id"}

	optionKeys    = []string{"A", "B", "C", "D"}
	optionAliases = [][]string{
		{"option_a", "opt1", "option1"},
		{"option_b", "opt2", "option2"},
		{"option_c", "opt3", "option3"},
		{"option_d", "opt4", "option4"},
	}
)

// Some upstream rows carry the answer embedded in the option text itself,
// e.g. "Penicillin Answer: Correct". Strip it for display and comparison.
var answerSuffix = regexp.MustCompile(`(?i)Answer:.*`)

// Normalize maps a raw record into a canonical Question. It is total: any
// record shape the data store has ever produced yields a displayable
// Question, degrading to placeholders (and an unscorable question) rather
// than failing.
func Normalize(raw models.RawQuestion) models.Question {
	q := models.Question{
		ID:        firstString(raw, idAliases),
		Text:      firstString(raw, textAliases),
		Rationale: firstString(raw, rationaleAliases),
	}
	if q.Text == "" {
		q.Text = NoTextPlaceholder
	}

	// Collect option slots in fixed A..D order; absent slots are omitted so
	// the resulting list has no gaps.
	for i, aliases := range optionAliases {
		text := cleanOptionText(firstString(raw, aliases))
		if text == "" {
			continue
		}
		q.Options = append(q.Options, models.Option{Key: optionKeys[i], Text: text})
	}

	q.CorrectKey = resolveCorrectKey(q.Options, firstString(raw, correctAliases))
	return q
}

// NormalizeAll converts a fetched list once, assigning positional fallback
// IDs to records that carry none so every question can key the answer map.
func NormalizeAll(raws []models.RawQuestion) []models.Question {
	questions := make([]models.Question, 0, len(raws))
	for i, raw := range raws {
		q := Normalize(raw)
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		questions = append(questions, q)
	}
	return questions
}

// resolveCorrectKey canonicalizes the correct-answer field to an option key.
// The raw value may already be a key ("A".."D", either case) or the literal
// text of one of the options. Anything unresolvable leaves the question
// unscorable (empty key), never an error.
func resolveCorrectKey(options []models.Option, raw string) string {
	answer := cleanOptionText(raw)
	if answer == "" {
		return ""
	}
	if len(answer) == 1 {
		key := strings.ToUpper(answer)
		for _, opt := range options {
			if opt.Key == key {
				return key
			}
		}
		// Not a populated slot; the single character may still be the
		// literal text of an option (e.g. a numeric answer "4").
	}
	for _, opt := range options {
		if opt.Text == answer {
			return opt.Key
		}
	}
	return ""
}

func cleanOptionText(s string) string {
	return strings.TrimSpace(answerSuffix.ReplaceAllString(s, ""))
}

// firstString returns the first non-empty value among the aliases,
// stringifying the loosely typed JSON scalars old banks used for IDs.
func firstString(raw models.RawQuestion, aliases []string) string {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			if t == float64(int64(t)) {
				s = strconv.FormatInt(int64(t), 10)
			} else {
				s = strconv.FormatFloat(t, 'f', -1, 64)
			}
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprintf("%v", t)
		}
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}
