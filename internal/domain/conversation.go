package domain

import "time"

// Conversation roles. HistoryEntry.Role is always one of these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryEntry is a single turn in a user's conversation transcript.
// Entries are immutable once appended; MessageID is only meaningful for
// user-authored entries (it carries the transport message id).
type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"messageId,omitempty"`
}

// LogMessage is a message-log record exposed by the REST API.
type LogMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
