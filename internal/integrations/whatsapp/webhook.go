package whatsapp

import (
	"encoding/json"

	"github.com/rmarin/leaglink-whatsapp-agent/internal/domain"
)

// webhookPayload mirrors only the slice of the Cloud API event envelope
// this service consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Metadata struct {
					PhoneNumberID string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseInbound extracts the first text message from a webhook payload.
// Malformed envelopes, status-only events, and non-text message types all
// return ok=false; the caller acknowledges those without processing.
func ParseInbound(body []byte) (domain.InboundTextMessage, bool) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.InboundTextMessage{}, false
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return domain.InboundTextMessage{}, false
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return domain.InboundTextMessage{}, false
	}
	msg := value.Messages[0]
	if msg.Type != "text" {
		return domain.InboundTextMessage{}, false
	}
	if value.Metadata.PhoneNumberID == "" {
		return domain.InboundTextMessage{}, false
	}
	return domain.InboundTextMessage{
		PhoneNumberID: value.Metadata.PhoneNumberID,
		From:          msg.From,
		MessageID:     msg.ID,
		Text:          msg.Text.Body,
	}, true
}
