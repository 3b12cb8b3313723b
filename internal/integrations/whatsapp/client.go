// Package whatsapp talks to the WhatsApp Cloud (Graph) API: it sends
// replies, marks messages as read, and parses inbound webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com/v18.0"

const messagingProduct = "whatsapp"

// textPayload is the outbound text message shape for the Graph API.
type textPayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Text             textBody     `json:"text"`
	Context          *replyTarget `json:"context,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type replyTarget struct {
	MessageID string `json:"message_id"`
}

// readReceiptPayload marks an inbound message as read.
type readReceiptPayload struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// tokenPayload is the expected JSON shape stored in SSM for the Graph token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("whatsapp: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused WhatsApp Graph API client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore Getter for
// Graph token retrieval. The token is fetched from SSM on the first send
// and reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("whatsapp: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("whatsapp: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		c.token, c.tokenErr = fetchTokenFromParamStore(ctx, c.getter, c.tokenParameterName())
	})
	return c.token, c.tokenErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/graph-api-token"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) messagesURL(phoneNumberID string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/" + phoneNumberID + "/messages"
}

// SendText sends a text reply through the business phone number identified
// by phoneNumberID. A non-empty replyToMessageID threads the reply under
// the original message.
func (c *Client) SendText(ctx context.Context, phoneNumberID, to, text, replyToMessageID string) error {
	if strings.TrimSpace(phoneNumberID) == "" {
		return errors.New("whatsapp: phone number id must not be empty")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("whatsapp: destination must not be empty")
	}

	payload := textPayload{
		MessagingProduct: messagingProduct,
		To:               to,
		Text:             textBody{Body: text},
	}
	if replyToMessageID != "" {
		payload.Context = &replyTarget{MessageID: replyToMessageID}
	}
	return c.post(ctx, c.messagesURL(phoneNumberID), payload)
}

// MarkRead marks an inbound message as read. Independent of reply sending;
// callers treat failures as non-fatal.
func (c *Client) MarkRead(ctx context.Context, phoneNumberID, messageID string) error {
	if strings.TrimSpace(phoneNumberID) == "" {
		return errors.New("whatsapp: phone number id must not be empty")
	}
	if strings.TrimSpace(messageID) == "" {
		return errors.New("whatsapp: message id must not be empty")
	}

	payload := readReceiptPayload{
		MessagingProduct: messagingProduct,
		Status:           "read",
		MessageID:        messageID,
	}
	return c.post(ctx, c.messagesURL(phoneNumberID), payload)
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return fmt.Errorf("whatsapp: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return fmt.Errorf("whatsapp: request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}
	return nil
}

func fetchTokenFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("whatsapp: paramstore getter is nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("whatsapp: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("whatsapp: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("whatsapp: Graph API token is empty")
	}
	return tp.Token, nil
}
