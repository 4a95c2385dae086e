package history

import (
	"github.com/bluevi/agent/internal/models"
	"go.uber.org/zap"
)

// FormatMessages validates role/content pairs and projects the valid ones into
// the chat wire shape. Entries with an unrecognized role or empty content are
// dropped with a warning, never a failure; relative order is preserved.
func FormatMessages(entries []Entry, logger *zap.Logger) []Entry {
	formatted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Role == "" || e.Content == "" {
			logger.Warn("dropping malformed history entry",
				zap.String("role", e.Role),
				zap.Int("content_length", len(e.Content)))
			continue
		}
		if !models.Role(e.Role).Valid() {
			logger.Warn("dropping history entry with unrecognized role",
				zap.String("role", e.Role))
			continue
		}
		formatted = append(formatted, Entry{Role: e.Role, Content: e.Content})
	}
	return formatted
}

// FromMessages projects stored messages into role/content entries.
func FromMessages(msgs []models.Message) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{Role: string(m.Role), Content: m.Content})
	}
	return entries
}
