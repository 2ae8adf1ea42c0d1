package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vero-edu/pbas-assistant/internal/store"
)

func TestFormatMemory(t *testing.T) {
	messages := []store.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
	}
	assert.Equal(t, "USER: a\nASSISTANT: b\n", FormatMemory(messages))
}

func TestFormatMemoryEmpty(t *testing.T) {
	assert.Equal(t, "", FormatMemory(nil))
	assert.Equal(t, "", FormatMemory([]store.Message{}))
}

func TestFormatMemoryPreservesOrder(t *testing.T) {
	messages := []store.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}
	assert.Equal(t, "USER: first\nASSISTANT: second\nUSER: third\n", FormatMemory(messages))
}
