// Package agent implements the message-handling pipeline: classify the
// inbound text, analyze it against the legal topic index, generate a reply
// with the remote model, and update the conversation transcript.
package agent

import (
	"strings"
	"time"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

// ConversationState is the mutable record threaded through one pipeline
// run. It is created per inbound message, owned by that run, and read by
// the caller once the run finishes.
type ConversationState struct {
	UserID      string
	PhoneNumber string

	CurrentMessage string
	MessageID      string

	// History holds prior turns loaded by the caller plus the two entries
	// appended by the update stage. Append-only; never edited in place.
	History []domain.HistoryEntry

	LegalTopic   string
	LegalContext string

	Response        string
	ConfidenceScore float64

	RequiresFollowup bool
	IsLegalQuestion  bool

	// ErrorMessage is monotonic within a run: once a stage sets it, no
	// later stage clears it. It is observability-only; routing depends on
	// stage results, the user always sees a fixed apology instead.
	ErrorMessage string
}

// NewConversationState builds the initial state for one inbound message.
func NewConversationState(userID, phoneNumber, message, messageID string) *ConversationState {
	return &ConversationState{
		UserID:         userID,
		PhoneNumber:    phoneNumber,
		CurrentMessage: message,
		MessageID:      messageID,
	}
}

// appendHistory adds one entry to the transcript.
func (s *ConversationState) appendHistory(role, content, messageID string, at time.Time) {
	s.History = append(s.History, domain.HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: at,
		MessageID: messageID,
	})
}

// SessionKey derives the key under which a persistent store associates
// multiple pipeline runs from the same user into one growing transcript.
func SessionKey(userID string) string {
	return strings.TrimSpace(userID)
}
