// Package handler adapts API Gateway proxy events to the service layer:
// the WhatsApp webhook (verification and inbound messages), the
// message-log REST endpoints, and health checks.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/integrations/whatsapp"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/usecase"
)

const serviceName = "legalink-whatsapp-agent"

// fallbackReply is sent when the service layer itself fails before the
// pipeline could produce a reply. Users never see raw error details.
const fallbackReply = "Lo siento, he tenido un problema técnico. Por favor, intenta de nuevo."

// ChatService handles one inbound message end to end.
type ChatService interface {
	HandleMessage(ctx context.Context, in usecase.MessageInput) (usecase.MessageOutput, error)
}

// MessageLogService backs the message-log REST endpoints.
type MessageLogService interface {
	CreateMessage(ctx context.Context, content, sender string) (domain.LogMessage, error)
	ListMessages(ctx context.Context) ([]domain.LogMessage, error)
	GetMessage(ctx context.Context, id string) (domain.LogMessage, error)
}

// ReplySender delivers outbound replies. Fire-and-forget from the
// handler's perspective; failures are logged, never surfaced.
type ReplySender interface {
	SendText(ctx context.Context, phoneNumberID, to, text, replyToMessageID string) error
}

// ReadMarker marks inbound messages as read. Failures are non-fatal.
type ReadMarker interface {
	MarkRead(ctx context.Context, phoneNumberID, messageID string) error
}

type Handler struct {
	chat        ChatService
	messageLog  MessageLogService
	sender      ReplySender
	marker      ReadMarker
	verifyToken string
}

type createMessageRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(chat ChatService, messageLog MessageLogService, sender ReplySender, marker ReadMarker, verifyToken string) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat service must not be nil")
	}
	if messageLog == nil {
		return nil, errors.New("handler: message log service must not be nil")
	}
	if sender == nil {
		return nil, errors.New("handler: reply sender must not be nil")
	}
	if marker == nil {
		return nil, errors.New("handler: read marker must not be nil")
	}
	if strings.TrimSpace(verifyToken) == "" {
		return nil, errors.New("handler: verify token must not be empty")
	}
	return &Handler{
		chat:        chat,
		messageLog:  messageLog,
		sender:      sender,
		marker:      marker,
		verifyToken: verifyToken,
	}, nil
}

// Handle routes one API Gateway event.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	path := strings.TrimRight(req.Path, "/")

	switch {
	case req.HTTPMethod == http.MethodGet && path == "":
		return jsonResponse(http.StatusOK, map[string]string{"message": "Welcome to Legalink WhatsApp Agent API"}, corrID), nil
	case req.HTTPMethod == http.MethodGet && path == "/health":
		return jsonResponse(http.StatusOK, map[string]string{"status": "healthy", "service": serviceName}, corrID), nil
	case req.HTTPMethod == http.MethodGet && path == "/api/webhook":
		return h.verifyWebhook(req, corrID), nil
	case req.HTTPMethod == http.MethodPost && path == "/api/webhook":
		return h.receiveWebhook(ctx, req, corrID), nil
	case req.HTTPMethod == http.MethodPost && path == "/api/messages":
		return h.createMessage(ctx, req, corrID), nil
	case req.HTTPMethod == http.MethodGet && path == "/api/messages":
		return h.listMessages(ctx, corrID), nil
	case req.HTTPMethod == http.MethodGet && strings.HasPrefix(path, "/api/messages/"):
		return h.getMessage(ctx, strings.TrimPrefix(path, "/api/messages/"), corrID), nil
	default:
		return jsonResponse(http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound)}, corrID), nil
	}
}

// verifyWebhook answers the Cloud API subscription handshake.
func (h *Handler) verifyWebhook(req events.APIGatewayProxyRequest, corrID string) events.APIGatewayProxyResponse {
	mode := req.QueryStringParameters["hub.mode"]
	token := req.QueryStringParameters["hub.verify_token"]
	challenge := req.QueryStringParameters["hub.challenge"]

	if mode == "subscribe" && token == h.verifyToken {
		slog.Info("webhook verified", "correlation_id", corrID)
		return textResponse(http.StatusOK, challenge, corrID)
	}
	slog.Warn("webhook verification failed", "correlation_id", corrID, "mode", mode)
	return jsonResponse(http.StatusForbidden, errorResponse{Error: "VERIFICATION_FAILED"}, corrID)
}

// receiveWebhook processes one inbound event. It always acks 200: events
// this service does not consume are ignored, and reply/read-receipt
// failures are logged without affecting the ack.
func (h *Handler) receiveWebhook(ctx context.Context, req events.APIGatewayProxyRequest, corrID string) events.APIGatewayProxyResponse {
	msg, ok := whatsapp.ParseInbound([]byte(req.Body))
	if !ok {
		slog.Info("ignoring non-text webhook event", "correlation_id", corrID)
		return textResponse(http.StatusOK, "", corrID)
	}

	out, err := h.chat.HandleMessage(ctx, usecase.MessageInput{
		UserID:      msg.From,
		PhoneNumber: msg.From,
		Text:        msg.Text,
		MessageID:   msg.MessageID,
	})
	reply := out.Reply
	if err != nil {
		slog.Error("message handling failed", "correlation_id", corrID, "user_id", msg.From, "err", err)
		reply = fallbackReply
	}

	if err := h.sender.SendText(ctx, msg.PhoneNumberID, msg.From, reply, msg.MessageID); err != nil {
		slog.Error("failed to send reply", "correlation_id", corrID, "user_id", msg.From, "err", err)
	}
	if err := h.marker.MarkRead(ctx, msg.PhoneNumberID, msg.MessageID); err != nil {
		slog.Warn("failed to mark message as read", "correlation_id", corrID, "err", err)
	}

	return textResponse(http.StatusOK, "", corrID)
}

func (h *Handler) createMessage(ctx context.Context, req events.APIGatewayProxyRequest, corrID string) events.APIGatewayProxyResponse {
	var in createMessageRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)}, corrID)
	}
	msg, err := h.messageLog.CreateMessage(ctx, in.Content, in.Sender)
	if err != nil {
		return errorToResponse(err, corrID)
	}
	return jsonResponse(http.StatusCreated, msg, corrID)
}

func (h *Handler) listMessages(ctx context.Context, corrID string) events.APIGatewayProxyResponse {
	msgs, err := h.messageLog.ListMessages(ctx)
	if err != nil {
		return errorToResponse(err, corrID)
	}
	if msgs == nil {
		msgs = []domain.LogMessage{}
	}
	return jsonResponse(http.StatusOK, msgs, corrID)
}

func (h *Handler) getMessage(ctx context.Context, id string, corrID string) events.APIGatewayProxyResponse {
	msg, err := h.messageLog.GetMessage(ctx, id)
	if err != nil {
		return errorToResponse(err, corrID)
	}
	return jsonResponse(http.StatusOK, msg, corrID)
}

// errorToResponse maps usecase error codes onto HTTP statuses.
func errorToResponse(err error, corrID string) events.APIGatewayProxyResponse {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}, corrID)
	}
	status := http.StatusInternalServerError
	switch usecaseErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	}
	return jsonResponse(status, errorResponse{Error: string(usecaseErr.Code)}, corrID)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "X-Correlation-Id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": corrID,
		},
		Body: string(raw),
	}
}

func textResponse(status int, body, corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "text/plain",
			"X-Correlation-Id": corrID,
		},
		Body: body,
	}
}
