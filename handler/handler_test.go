package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
	"github.com/rmarin/leaglink-whatsapp-agent/internal/usecase"
)

type stubChat struct {
	out usecase.MessageOutput
	err error
	in  usecase.MessageInput
}

func (s *stubChat) HandleMessage(_ context.Context, in usecase.MessageInput) (usecase.MessageOutput, error) {
	s.in = in
	return s.out, s.err
}

type stubLog struct {
	msg     domain.LogMessage
	msgs    []domain.LogMessage
	err     error
	created []string
}

func (s *stubLog) CreateMessage(_ context.Context, content, _ string) (domain.LogMessage, error) {
	s.created = append(s.created, content)
	return s.msg, s.err
}

func (s *stubLog) ListMessages(_ context.Context) ([]domain.LogMessage, error) {
	return s.msgs, s.err
}

func (s *stubLog) GetMessage(_ context.Context, _ string) (domain.LogMessage, error) {
	return s.msg, s.err
}

type stubSender struct {
	err   error
	calls []sentReply
}

type sentReply struct {
	phoneNumberID, to, text, replyTo string
}

func (s *stubSender) SendText(_ context.Context, phoneNumberID, to, text, replyTo string) error {
	s.calls = append(s.calls, sentReply{phoneNumberID, to, text, replyTo})
	return s.err
}

type stubMarker struct {
	err   error
	calls int
}

func (s *stubMarker) MarkRead(_ context.Context, _, _ string) error {
	s.calls++
	return s.err
}

type testDeps struct {
	chat   *stubChat
	log    *stubLog
	sender *stubSender
	marker *stubMarker
}

func newTestHandler(t *testing.T) (*Handler, *testDeps) {
	t.Helper()
	deps := &testDeps{chat: &stubChat{}, log: &stubLog{}, sender: &stubSender{}, marker: &stubMarker{}}
	h, err := NewHandler(deps.chat, deps.log, deps.sender, deps.marker, "verify-secret")
	require.NoError(t, err)
	return h, deps
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

const inboundTextBody = `{
	"entry": [{
		"changes": [{
			"value": {
				"metadata": {"phone_number_id": "1098765"},
				"messages": [{
					"from": "573001112233",
					"id": "wamid.abc",
					"type": "text",
					"text": {"body": "qué pasa si me despiden"}
				}]
			}
		}]
	}]
}`

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubLog{}, &stubSender{}, &stubMarker{}, "token")
	require.Error(t, err)
	_, err = NewHandler(&stubChat{}, nil, &stubSender{}, &stubMarker{}, "token")
	require.Error(t, err)
	_, err = NewHandler(&stubChat{}, &stubLog{}, nil, &stubMarker{}, "token")
	require.Error(t, err)
	_, err = NewHandler(&stubChat{}, &stubLog{}, &stubSender{}, nil, "token")
	require.Error(t, err)
	_, err = NewHandler(&stubChat{}, &stubLog{}, &stubSender{}, &stubMarker{}, " ")
	require.Error(t, err)
}

func TestHandle_Health(t *testing.T) {
	h, _ := newTestHandler(t)
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/health", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := parseBody[map[string]string](t, resp.Body)
	require.Equal(t, "healthy", out["status"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_VerifyWebhook(t *testing.T) {
	h, _ := newTestHandler(t)

	event := makeEvent(http.MethodGet, "/api/webhook", "")
	event.QueryStringParameters = map[string]string{
		"hub.mode":         "subscribe",
		"hub.verify_token": "verify-secret",
		"hub.challenge":    "challenge-123",
	}
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "challenge-123", resp.Body)

	event.QueryStringParameters["hub.verify_token"] = "wrong"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandle_InboundText_HappyPath(t *testing.T) {
	h, deps := newTestHandler(t)
	deps.chat.out = usecase.MessageOutput{Reply: "respuesta legal", SessionKey: "573001112233"}

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/webhook", inboundTextBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, "573001112233", deps.chat.in.UserID)
	require.Equal(t, "qué pasa si me despiden", deps.chat.in.Text)
	require.Equal(t, "wamid.abc", deps.chat.in.MessageID)

	require.Len(t, deps.sender.calls, 1)
	sent := deps.sender.calls[0]
	require.Equal(t, "1098765", sent.phoneNumberID)
	require.Equal(t, "573001112233", sent.to)
	require.Equal(t, "respuesta legal", sent.text)
	require.Equal(t, "wamid.abc", sent.replyTo)
	require.Equal(t, 1, deps.marker.calls)
}

func TestHandle_InboundText_ServiceFailureSendsFallback(t *testing.T) {
	h, deps := newTestHandler(t)
	deps.chat.err = &usecase.Error{Code: usecase.ErrorInternal, Reason: "history_load_error"}

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/webhook", inboundTextBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "webhook must ack even on service failure")
	require.Len(t, deps.sender.calls, 1)
	require.Equal(t, fallbackReply, deps.sender.calls[0].text)
}

func TestHandle_InboundText_SendFailureStillAcks(t *testing.T) {
	h, deps := newTestHandler(t)
	deps.chat.out = usecase.MessageOutput{Reply: "ok"}
	deps.sender.err = errors.New("graph api down")
	deps.marker.err = errors.New("graph api down")

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/webhook", inboundTextBody))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandle_IgnoredWebhookEvents(t *testing.T) {
	h, deps := newTestHandler(t)
	for _, body := range []string{`{}`, `not-json`, `{"entry":[{"changes":[{"value":{"statuses":[{}]}}]}]}`} {
		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/webhook", body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body=%q", body)
	}
	require.Empty(t, deps.sender.calls)
	require.Zero(t, deps.marker.calls)
}

func TestHandle_CreateMessage(t *testing.T) {
	h, deps := newTestHandler(t)
	deps.log.msg = domain.LogMessage{ID: "m1", Content: "hola", Sender: "u1"}

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/messages", `{"content":"hola","sender":"u1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := parseBody[domain.LogMessage](t, resp.Body)
	require.Equal(t, "m1", out.ID)

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/messages", `not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandle_GetMessage_MapsUsecaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: &usecase.Error{Code: usecase.ErrorNotFound, Reason: "message_not_found"}, status: http.StatusNotFound, code: string(usecase.ErrorNotFound)},
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_message_id"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "message_log_read_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, deps := newTestHandler(t)
			deps.log.err = tc.err
			resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/messages/m1", ""))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_ListMessages_EmptyIsArray(t *testing.T) {
	h, _ := newTestHandler(t)
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/messages", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "[]", resp.Body)
}

func TestHandle_UnknownRoute(t *testing.T) {
	h, _ := newTestHandler(t)
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodDelete, "/api/messages", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, _ := newTestHandler(t)
	event := makeEvent(http.MethodGet, "/health", "")
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
