package core

import (
	"strings"
	"unicode"
)

// Refusal is the canned reply for questions outside the assistant's domain.
const Refusal = "I am the VERO Academic Assistant. I can only assist with appraisal and document queries."

// allowedKeywords gates whether the assistant engages with a question at all.
var allowedKeywords = []string{"pbas", "score", "category", "promotion", "document", "upload", "points", "rule"}

// activityKeywords trigger the structured rule-catalog lookup.
var activityKeywords = []string{"conference", "journal", "seminar", "workshop", "publication"}

// auditKeywords trigger the audit-log lookup for "explain failure" questions.
var auditKeywords = []string{"why", "rejected", "flagged", "error"}

// WithinGuardrail reports whether the question touches any allow-listed
// domain keyword.
func WithinGuardrail(question string) bool {
	q := strings.ToLower(question)
	for _, word := range allowedKeywords {
		if strings.Contains(q, word) {
			return true
		}
	}
	return false
}

// DetectCategory maps a question to a session category. Priority-ordered;
// first matching rule wins.
func DetectCategory(question string) string {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "upload"), strings.Contains(q, "certificate"), strings.Contains(q, "document"):
		return "upload_help"
	case strings.Contains(q, "promotion"), strings.Contains(q, "eligible"):
		return "promotion"
	case strings.Contains(q, "score"), strings.Contains(q, "points"), strings.Contains(q, "rule"):
		return "scoring"
	default:
		return "general"
	}
}

// MatchActivityKeyword returns the first activity-type keyword the question
// mentions, or "" when none match.
func MatchActivityKeyword(question string) string {
	q := strings.ToLower(question)
	for _, word := range activityKeywords {
		if strings.Contains(q, word) {
			return word
		}
	}
	return ""
}

// MentionsAuditTrigger reports whether the question asks to explain a
// failure or rejection.
func MentionsAuditTrigger(question string) bool {
	q := strings.ToLower(question)
	for _, word := range auditKeywords {
		if strings.Contains(q, word) {
			return true
		}
	}
	return false
}

// ExtractSubmissionID returns the first purely-numeric whitespace token of
// the question, or "" when there is none.
func ExtractSubmissionID(question string) string {
	for _, token := range strings.Fields(question) {
		if token == "" {
			continue
		}
		allDigits := true
		for _, r := range token {
			if !unicode.IsDigit(r) {
				allDigits = false
				break
			}
		}
		if allDigits {
			return token
		}
	}
	return ""
}
