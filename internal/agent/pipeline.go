package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/knowledge"
)

const (
	// Outbound replies must fit the WhatsApp text limit. Anything longer
	// is cut at truncateAt characters and marked with truncationMarker.
	maxResponseChars = 1000
	truncateAt       = 950
	truncationMarker = "..."

	classificationLegal = "LEGAL"

	generatedConfidence = 0.8
)

// casualGreetings short-circuit classification: an exact (trimmed,
// lower-cased) match gets the fixed greeting without a remote call.
var casualGreetings = []string{"hola", "oe", "hey", "buenas", "saludos", "hi", "hello"}

// followupIndicators mark a reply as inviting a follow-up when any of them
// occurs in the lower-cased response.
var followupIndicators = []string{"¿", "pregunta", "consulta", "más información"}

// LLMClient is the remote classifier/generator collaborator. Complete
// sends an optional system instruction plus role-tagged messages and
// returns the model's text.
type LLMClient interface {
	Complete(ctx context.Context, system string, messages []domain.ChatMessage) (string, error)
}

// Pipeline runs the four-stage state machine over a ConversationState:
//
//	classify -> {analyze | update}
//	analyze  -> {generate | update}
//	generate -> update
//	update   -> end
//
// Every stage catches its own faults into the state; Run never fails.
type Pipeline struct {
	llm LLMClient
	now func() time.Time
}

// stageResult is the explicit outcome of one stage. The orchestrator
// branches on it alone; no errors cross stage boundaries.
type stageResult struct {
	failed bool
}

func stageOK() stageResult     { return stageResult{} }
func stageFailed() stageResult { return stageResult{failed: true} }

// NewPipeline builds a Pipeline around the given LLM client.
func NewPipeline(llm LLMClient) (*Pipeline, error) {
	if llm == nil {
		return nil, errors.New("agent: llm client must not be nil")
	}
	return &Pipeline{llm: llm, now: time.Now}, nil
}

// Run executes one full pass over the state and returns it. The update
// stage is terminal and reached from every branch, error paths included.
func (p *Pipeline) Run(ctx context.Context, state *ConversationState) *ConversationState {
	if res := p.classify(ctx, state); !res.failed && state.IsLegalQuestion {
		if res := p.analyze(state); !res.failed {
			p.generate(ctx, state)
		}
	}
	p.update(state)
	return state
}

// classify decides legal question vs. casual message. Empty and greeting
// inputs are answered locally without a remote call. Any classifier output
// other than the literal LEGAL token is treated as casual and gets the
// greeting reply. This is the only stage that can short-circuit the run
// before topic analysis.
func (p *Pipeline) classify(ctx context.Context, state *ConversationState) stageResult {
	message := strings.TrimSpace(state.CurrentMessage)

	if message == "" {
		state.IsLegalQuestion = false
		state.Response = EmptyMessageResponse
		return stageOK()
	}

	lower := strings.ToLower(message)
	for _, greeting := range casualGreetings {
		if lower == greeting {
			state.IsLegalQuestion = false
			state.Response = GreetingResponse
			return stageOK()
		}
	}

	raw, err := p.llm.Complete(ctx, "", []domain.ChatMessage{
		{Role: domain.RoleUser, Content: buildClassificationPrompt(message)},
	})
	if err != nil {
		slog.Error("message classification failed", "user_id", state.UserID, "err", err)
		state.setError("classify: " + err.Error())
		state.IsLegalQuestion = false
		state.Response = ErrorResponse
		return stageFailed()
	}

	classification := strings.ToUpper(strings.TrimSpace(raw))
	state.IsLegalQuestion = classification == classificationLegal
	if !state.IsLegalQuestion {
		state.Response = GreetingResponse
	}
	slog.Info("message classified", "user_id", state.UserID, "classification", classification)
	return stageOK()
}

// analyze maps the message onto the topic index and attaches the static
// legal context. Pure; it has no legitimate failure mode.
func (p *Pipeline) analyze(state *ConversationState) stageResult {
	state.LegalTopic = knowledge.IdentifyTopic(state.CurrentMessage)
	state.LegalContext = knowledge.TopicContext(state.LegalTopic)
	slog.Info("legal topic identified", "user_id", state.UserID, "topic", state.LegalTopic)
	return stageOK()
}

// generate asks the remote model for the answer and enforces the transport
// length cap.
func (p *Pipeline) generate(ctx context.Context, state *ConversationState) stageResult {
	system := buildSystemPrompt(state.LegalContext, state.History)
	prompt := buildLegalPrompt(state.CurrentMessage, state.LegalTopic, state.LegalContext, state.History)

	raw, err := p.llm.Complete(ctx, system, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: prompt},
	})
	if err != nil {
		slog.Error("response generation failed", "user_id", state.UserID, "err", err)
		state.setError("generate: " + err.Error())
		state.Response = ErrorResponse
		state.ConfidenceScore = 0.0
		return stageFailed()
	}

	state.Response = truncateResponse(strings.TrimSpace(raw))
	state.ConfidenceScore = generatedConfidence
	return stageOK()
}

// update appends the user message and the final reply to the transcript
// and derives the follow-up flag. Terminal stage; runs on every branch.
func (p *Pipeline) update(state *ConversationState) stageResult {
	now := p.now().UTC()
	state.appendHistory(domain.RoleUser, state.CurrentMessage, state.MessageID, now)
	state.appendHistory(domain.RoleAssistant, state.Response, "", now)

	lower := strings.ToLower(state.Response)
	state.RequiresFollowup = false
	for _, indicator := range followupIndicators {
		if strings.Contains(lower, indicator) {
			state.RequiresFollowup = true
			break
		}
	}
	return stageOK()
}

func (s *ConversationState) setError(msg string) {
	if s.ErrorMessage == "" {
		s.ErrorMessage = msg
	}
}

// truncateResponse enforces the outbound length contract: responses over
// maxResponseChars characters are cut to truncateAt and marked. Counted in
// runes, not bytes, so multi-byte Spanish text is not cut mid-character.
func truncateResponse(s string) string {
	runes := []rune(s)
	if len(runes) <= maxResponseChars {
		return s
	}
	return string(runes[:truncateAt]) + truncationMarker
}
