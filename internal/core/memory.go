package core

import (
	"strings"

	"github.com/vero-edu/pbas-assistant/internal/store"
)

// FormatMemory renders an ordered message sequence as one "ROLE: content"
// line per message, oldest first. An empty sequence yields "".
func FormatMemory(messages []store.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(strings.ToUpper(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
