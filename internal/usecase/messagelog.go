package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

// MessageLogStore is the storage collaborator behind the message-log REST
// endpoints.
type MessageLogStore interface {
	Append(ctx context.Context, msg domain.LogMessage) error
	List(ctx context.Context) ([]domain.LogMessage, error)
	// GetByID reports found=false for unknown ids; err is reserved for
	// storage faults.
	GetByID(ctx context.Context, id string) (msg domain.LogMessage, found bool, err error)
}

// MessageLogService implements the message-log operations.
type MessageLogService struct {
	store MessageLogStore
	now   func() time.Time
}

func NewMessageLogService(store MessageLogStore) (*MessageLogService, error) {
	if store == nil {
		return nil, errors.New("usecase: message log store must not be nil")
	}
	return &MessageLogService{store: store, now: time.Now}, nil
}

func (s *MessageLogService) CreateMessage(ctx context.Context, content, sender string) (domain.LogMessage, error) {
	if strings.TrimSpace(content) == "" {
		return domain.LogMessage{}, newError(ErrorInvalidInput, "empty_content", nil)
	}
	if strings.TrimSpace(sender) == "" {
		return domain.LogMessage{}, newError(ErrorInvalidInput, "empty_sender", nil)
	}
	msg := domain.LogMessage{
		ID:        newUUID(),
		Content:   content,
		Sender:    sender,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.Append(ctx, msg); err != nil {
		return domain.LogMessage{}, newError(ErrorInternal, "message_log_write_error", err)
	}
	return msg, nil
}

func (s *MessageLogService) ListMessages(ctx context.Context) ([]domain.LogMessage, error) {
	msgs, err := s.store.List(ctx)
	if err != nil {
		return nil, newError(ErrorInternal, "message_log_read_error", err)
	}
	return msgs, nil
}

func (s *MessageLogService) GetMessage(ctx context.Context, id string) (domain.LogMessage, error) {
	if strings.TrimSpace(id) == "" {
		return domain.LogMessage{}, newError(ErrorInvalidInput, "empty_message_id", nil)
	}
	msg, found, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.LogMessage{}, newError(ErrorInternal, "message_log_read_error", err)
	}
	if !found {
		return domain.LogMessage{}, newError(ErrorNotFound, "message_not_found", nil)
	}
	return msg, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
