package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"How do I upload my certificate?", "upload_help"},
		{"Am I eligible for promotion?", "promotion"},
		{"How many points for a journal paper?", "scoring"},
		{"What is the PBAS deadline?", "general"},
		// First matching rule wins: "upload" outranks "score".
		{"Will my upload change my score?", "upload_help"},
		// "promotion" outranks "points".
		{"How many points until promotion?", "promotion"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectCategory(tt.question), "question: %q", tt.question)
	}
}

func TestWithinGuardrail(t *testing.T) {
	assert.True(t, WithinGuardrail("What is my PBAS score?"))
	assert.True(t, WithinGuardrail("How do I UPLOAD a document?"))
	assert.False(t, WithinGuardrail("What's the weather like today?"))
	assert.False(t, WithinGuardrail(""))
}

func TestMatchActivityKeyword(t *testing.T) {
	assert.Equal(t, "conference", MatchActivityKeyword("Points for attending a Conference?"))
	assert.Equal(t, "journal", MatchActivityKeyword("journal publication points"))
	assert.Equal(t, "", MatchActivityKeyword("How do I upload a certificate?"))
}

func TestExtractSubmissionID(t *testing.T) {
	assert.Equal(t, "12345", ExtractSubmissionID("Why was submission 12345 rejected?"))
	assert.Equal(t, "7", ExtractSubmissionID("Why did 7 get flagged and 9 not?"))
	assert.Equal(t, "", ExtractSubmissionID("Why was my submission rejected?"))
	// Mixed tokens are not submission ids.
	assert.Equal(t, "", ExtractSubmissionID("Why was SUB-123 rejected?"))
}

func TestMentionsAuditTrigger(t *testing.T) {
	assert.True(t, MentionsAuditTrigger("Why was this rejected?"))
	assert.True(t, MentionsAuditTrigger("My document was flagged"))
	assert.False(t, MentionsAuditTrigger("How many points for a seminar?"))
}
