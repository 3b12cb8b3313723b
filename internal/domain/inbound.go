package domain

// InboundTextMessage is the typed result of parsing a WhatsApp webhook
// payload. Only text messages produce one; every other event shape is
// acknowledged and ignored at the boundary.
type InboundTextMessage struct {
	// PhoneNumberID identifies the business phone number the message was
	// sent to; replies and read receipts go through it.
	PhoneNumberID string
	From          string
	MessageID     string
	Text          string
}
