package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/agent"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

const defaultMaxContext = 20

// PipelineRunner runs one pipeline pass over a conversation state.
type PipelineRunner interface {
	Run(ctx context.Context, state *agent.ConversationState) *agent.ConversationState
}

// HistoryStore persists per-session conversation transcripts.
type HistoryStore interface {
	GetHistory(ctx context.Context, sessionKey string, limit int) ([]domain.HistoryEntry, error)
	AppendEntries(ctx context.Context, sessionKey string, entries []domain.HistoryEntry) error
}

// ChatService handles one inbound message end to end: it loads the user's
// transcript, runs the pipeline, persists the new turn, and returns the
// reply for the transport layer to send.
type ChatService struct {
	pipeline        PipelineRunner
	store           HistoryStore
	maxContextItems int

	// Concurrent runs for the same user are serialized per session key so
	// transcript turn pairs never interleave in the store.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type MessageInput struct {
	UserID      string
	PhoneNumber string
	Text        string
	MessageID   string
}

type MessageOutput struct {
	Reply            string
	SessionKey       string
	LegalTopic       string
	IsLegalQuestion  bool
	RequiresFollowup bool
	ConfidenceScore  float64
}

func NewChatService(pipeline PipelineRunner, store HistoryStore, maxContextItems int) (*ChatService, error) {
	if pipeline == nil {
		return nil, errors.New("usecase: pipeline must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if maxContextItems <= 0 {
		maxContextItems = defaultMaxContext
	}
	return &ChatService{
		pipeline:        pipeline,
		store:           store,
		maxContextItems: maxContextItems,
		locks:           map[string]*sync.Mutex{},
	}, nil
}

// HandleMessage runs one pipeline pass for an inbound message. The
// pipeline itself never fails (error branches produce a fixed apology
// reply); an error return here means the transcript store failed before
// the run could start.
func (s *ChatService) HandleMessage(ctx context.Context, in MessageInput) (MessageOutput, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return MessageOutput{}, newError(ErrorInvalidInput, "empty_user_id", nil)
	}

	key := agent.SessionKey(in.UserID)
	lock := s.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.store.GetHistory(ctx, key, s.maxContextItems)
	if err != nil {
		return MessageOutput{}, newError(ErrorInternal, "history_load_error", err)
	}

	state := agent.NewConversationState(in.UserID, in.PhoneNumber, in.Text, in.MessageID)
	state.History = history
	s.pipeline.Run(ctx, state)

	// The run appended the user turn and the reply; persist just those.
	// A write failure does not retract the reply already produced.
	if appended := state.History[len(history):]; len(appended) > 0 {
		if err := s.store.AppendEntries(ctx, key, appended); err != nil {
			slog.Error("failed to persist conversation turn", "session_key", key, "err", err)
		}
	}

	return MessageOutput{
		Reply:            state.Response,
		SessionKey:       key,
		LegalTopic:       state.LegalTopic,
		IsLegalQuestion:  state.IsLegalQuestion,
		RequiresFollowup: state.RequiresFollowup,
		ConfidenceScore:  state.ConfidenceScore,
	}, nil
}

// History returns the bounded trailing transcript for a user.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	key := agent.SessionKey(userID)
	if key == "" {
		return nil, newError(ErrorInvalidInput, "empty_user_id", nil)
	}
	if limit <= 0 {
		limit = s.maxContextItems
	}
	entries, err := s.store.GetHistory(ctx, key, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "history_load_error", err)
	}
	return entries, nil
}

func (s *ChatService) sessionLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
